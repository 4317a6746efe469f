//go:build linux

package reactor

import (
	"golang.org/x/sys/unix"
)

// Poll and Select are registered once, universally, by the init in
// poller_poll_unix.go; this file only adds the platform's best choice.
func init() {
	registerBackend(Epoll, 100, func() pollerBackend { return &epollBackend{} })
}

// epollBackend is an edge-triggered pollerBackend over Linux epoll.
type epollBackend struct {
	fd int
}

func (b *epollBackend) open(hint int) error {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	b.fd = fd
	return nil
}

func (b *epollBackend) close() error {
	return unix.Close(b.fd)
}

func (b *epollBackend) add(fd int, mask ReadinessMask) error {
	ev := unix.EpollEvent{Events: maskToEpoll(mask), Fd: int32(fd)}
	return unix.EpollCtl(b.fd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (b *epollBackend) modify(fd int, mask ReadinessMask) error {
	ev := unix.EpollEvent{Events: maskToEpoll(mask), Fd: int32(fd)}
	return unix.EpollCtl(b.fd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (b *epollBackend) remove(fd int) error {
	return unix.EpollCtl(b.fd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (b *epollBackend) wait(timeoutMs int, out []backendEvent) (int, error) {
	var raw [256]unix.EpollEvent
	limit := len(out)
	if limit > len(raw) {
		limit = len(raw)
	}
	n, err := unix.EpollWait(b.fd, raw[:limit], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, ErrInterrupted
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		out[i] = backendEvent{fd: int(raw[i].Fd), mask: epollToMask(raw[i].Events)}
	}
	return n, nil
}

func (b *epollBackend) edgeTriggered() bool { return true }

func maskToEpoll(mask ReadinessMask) uint32 {
	var e uint32
	// Edge-triggered: Poller re-applies the mask whenever a delivery
	// filters down to empty, per the portable backend contract.
	e |= unix.EPOLLET
	if mask&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if mask&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToMask(events uint32) ReadinessMask {
	var m ReadinessMask
	if events&(unix.EPOLLIN|unix.EPOLLHUP) != 0 {
		m |= EventRead
	}
	if events&unix.EPOLLOUT != 0 {
		m |= EventWrite
	}
	if events&unix.EPOLLERR != 0 {
		m |= EventError
	}
	return m
}
