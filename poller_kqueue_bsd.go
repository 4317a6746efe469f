//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package reactor

import (
	"golang.org/x/sys/unix"
)

// Poll and Select are registered once, universally, by the init in
// poller_poll_unix.go; this file only adds the platform's best choice.
func init() {
	registerBackend(Kqueue, 100, func() pollerBackend { return &kqueueBackend{} })
}

// kqueueBackend is an edge-triggered pollerBackend over BSD kqueue.
type kqueueBackend struct {
	fd int
}

func (b *kqueueBackend) open(hint int) error {
	fd, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(fd)
	b.fd = fd
	return nil
}

func (b *kqueueBackend) close() error {
	return unix.Close(b.fd)
}

func (b *kqueueBackend) apply(fd int, mask ReadinessMask, add, remove ReadinessMask) error {
	var changes []unix.Kevent_t
	if add&EventRead != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_ENABLE | unix.EV_CLEAR})
	}
	if add&EventWrite != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD | unix.EV_ENABLE | unix.EV_CLEAR})
	}
	if remove&EventRead != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE})
	}
	if remove&EventWrite != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE})
	}
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(b.fd, changes, nil, nil)
	return err
}

func (b *kqueueBackend) add(fd int, mask ReadinessMask) error {
	return b.apply(fd, mask, mask, 0)
}

func (b *kqueueBackend) modify(fd int, mask ReadinessMask) error {
	// Caller (Poller) tracks the previous mask; kqueue itself has no
	// "replace" verb, so re-issue ADD for the full new mask and DELETE for
	// the filters no longer wanted. Deleting a filter that was never added
	// is harmless (ENOENT, ignored).
	_ = b.apply(fd, mask, 0, (EventRead|EventWrite)&^mask)
	return b.apply(fd, mask, mask, 0)
}

func (b *kqueueBackend) remove(fd int) error {
	_, err := unix.Kevent(b.fd, []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}, nil, nil)
	return err
}

func (b *kqueueBackend) wait(timeoutMs int, out []backendEvent) (int, error) {
	var raw [256]unix.Kevent_t
	limit := len(out)
	if limit > len(raw) {
		limit = len(raw)
	}

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{Sec: int64(timeoutMs / 1000), Nsec: int64((timeoutMs % 1000) * 1_000_000)}
	}

	n, err := unix.Kevent(b.fd, nil, raw[:limit], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, ErrInterrupted
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		out[i] = backendEvent{fd: int(raw[i].Ident), mask: keventToMask(&raw[i])}
	}
	return n, nil
}

func (b *kqueueBackend) edgeTriggered() bool { return true }

func keventToMask(kev *unix.Kevent_t) ReadinessMask {
	var m ReadinessMask
	switch kev.Filter {
	case unix.EVFILT_READ:
		m |= EventRead
	case unix.EVFILT_WRITE:
		m |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		m |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		m |= EventRead
	}
	return m
}
