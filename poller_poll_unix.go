//go:build !windows

package reactor

import (
	"golang.org/x/sys/unix"
)

func init() {
	// Poll and Select are always registered as the POSIX fallback; the
	// platform-specific files for Linux/BSD add higher-ranked backends on
	// top, and lookupBackend(Auto) picks the best one present.
	registerBackend(Poll, 50, func() pollerBackend { return &pollBackend{} })
	registerBackend(Select, 10, func() pollerBackend { return &selectBackend{} })
}

// pollBackend is a level-triggered pollerBackend over POSIX poll(2). It
// keeps its own fd->mask table since poll has no persistent kernel-side
// registration: every wait re-submits the full set of interest.
type pollBackend struct {
	masks map[int]ReadinessMask
}

func (b *pollBackend) open(hint int) error {
	if hint <= 0 {
		hint = 64
	}
	b.masks = make(map[int]ReadinessMask, hint)
	return nil
}

func (b *pollBackend) close() error {
	b.masks = nil
	return nil
}

func (b *pollBackend) add(fd int, mask ReadinessMask) error {
	b.masks[fd] = mask
	return nil
}

func (b *pollBackend) modify(fd int, mask ReadinessMask) error {
	b.masks[fd] = mask
	return nil
}

func (b *pollBackend) remove(fd int) error {
	delete(b.masks, fd)
	return nil
}

func (b *pollBackend) wait(timeoutMs int, out []backendEvent) (int, error) {
	if len(b.masks) == 0 {
		// unix.Poll with an empty slice still honors the timeout, giving
		// the reactor a clean way to sleep with no fds registered yet.
		var none []unix.PollFd
		_, err := unix.Poll(none, timeoutMs)
		if err != nil && err != unix.EINTR {
			return 0, err
		}
		return 0, nil
	}

	pfds := make([]unix.PollFd, 0, len(b.masks))
	for fd, mask := range b.masks {
		pfds = append(pfds, unix.PollFd{Fd: int32(fd), Events: maskToPoll(mask)})
	}

	n, err := unix.Poll(pfds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, ErrInterrupted
		}
		return 0, err
	}

	count := 0
	for _, pfd := range pfds {
		if pfd.Revents == 0 {
			continue
		}
		if count >= len(out) {
			break
		}
		out[count] = backendEvent{fd: int(pfd.Fd), mask: pollToMask(pfd.Revents)}
		count++
	}
	_ = n
	return count, nil
}

func (b *pollBackend) edgeTriggered() bool { return false }

func maskToPoll(mask ReadinessMask) int16 {
	var e int16
	if mask&EventRead != 0 {
		e |= unix.POLLIN
	}
	if mask&EventWrite != 0 {
		e |= unix.POLLOUT
	}
	return e
}

func pollToMask(revents int16) ReadinessMask {
	var m ReadinessMask
	if revents&(unix.POLLIN|unix.POLLHUP) != 0 {
		m |= EventRead
	}
	if revents&unix.POLLOUT != 0 {
		m |= EventWrite
	}
	if revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
		m |= EventError
	}
	return m
}
