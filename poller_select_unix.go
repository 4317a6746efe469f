//go:build !windows

package reactor

import (
	"golang.org/x/sys/unix"
)

// selectBackend is the lowest-ranked, most portable pollerBackend, over
// POSIX select(2). Like pollBackend it is level-triggered and keeps its own
// interest table, since select has no persistent kernel-side registration.
//
// select's fd_set is bounded at FD_SETSIZE (1024 on Linux); descriptors at
// or above that are rejected rather than silently dropped.
type selectBackend struct {
	masks map[int]ReadinessMask
	maxFd int
}

const fdSetSize = 1024

func (b *selectBackend) open(hint int) error {
	if hint <= 0 {
		hint = 64
	}
	b.masks = make(map[int]ReadinessMask, hint)
	b.maxFd = -1
	return nil
}

func (b *selectBackend) close() error {
	b.masks = nil
	return nil
}

func (b *selectBackend) add(fd int, mask ReadinessMask) error {
	if fd >= fdSetSize {
		return wrapf(ErrOutOfResources, "fd %d exceeds select() fd_set size %d", fd, fdSetSize)
	}
	b.masks[fd] = mask
	if fd > b.maxFd {
		b.maxFd = fd
	}
	return nil
}

func (b *selectBackend) modify(fd int, mask ReadinessMask) error {
	return b.add(fd, mask)
}

func (b *selectBackend) remove(fd int) error {
	delete(b.masks, fd)
	if fd == b.maxFd {
		b.maxFd = -1
		for other := range b.masks {
			if other > b.maxFd {
				b.maxFd = other
			}
		}
	}
	return nil
}

func (b *selectBackend) wait(timeoutMs int, out []backendEvent) (int, error) {
	if len(b.masks) == 0 {
		sleepSelect(timeoutMs)
		return 0, nil
	}

	var rfds, wfds, efds unix.FdSet
	for fd, mask := range b.masks {
		if mask&EventRead != 0 {
			fdSet(&rfds, fd)
		}
		if mask&EventWrite != 0 {
			fdSet(&wfds, fd)
		}
		fdSet(&efds, fd)
	}

	var tv *unix.Timeval
	if timeoutMs >= 0 {
		t := unix.NsecToTimeval(int64(timeoutMs) * 1_000_000)
		tv = &t
	}

	n, err := unix.Select(b.maxFd+1, &rfds, &wfds, &efds, tv)
	if err != nil {
		if err == unix.EINTR {
			return 0, ErrInterrupted
		}
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	count := 0
	for fd, mask := range b.masks {
		var observed ReadinessMask
		if mask&EventRead != 0 && fdIsSet(&rfds, fd) {
			observed |= EventRead
		}
		if mask&EventWrite != 0 && fdIsSet(&wfds, fd) {
			observed |= EventWrite
		}
		if fdIsSet(&efds, fd) {
			observed |= EventError
		}
		if observed == 0 {
			continue
		}
		if count >= len(out) {
			break
		}
		out[count] = backendEvent{fd: fd, mask: observed}
		count++
	}
	return count, nil
}

func (b *selectBackend) edgeTriggered() bool { return false }

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}

// sleepSelect parks the caller for timeoutMs using select with no fds, the
// same trick pollBackend uses to let the reactor idle without a registered
// descriptor.
func sleepSelect(timeoutMs int) {
	if timeoutMs < 0 {
		var none unix.FdSet
		_, _ = unix.Select(0, &none, nil, nil, nil)
		return
	}
	tv := unix.NsecToTimeval(int64(timeoutMs) * 1_000_000)
	_, _ = unix.Select(0, nil, nil, nil, &tv)
}
