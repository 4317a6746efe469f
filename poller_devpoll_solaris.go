//go:build solaris

package reactor

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Poll and Select are registered once, universally, by the init in
// poller_poll_unix.go; this file only adds the platform's best choice.
func init() {
	registerBackend(DevPoll, 100, func() pollerBackend { return &devPollBackend{} })
}

// dpPollFd mirrors struct pollfd, the unit /dev/poll reads and writes.
type dpPollFd struct {
	fd      int32
	events  int16
	revents int16
}

// dvPoll mirrors struct dvpoll, the ioctl(DP_POLL) argument.
type dvPoll struct {
	fds     *dpPollFd
	nfds    uint64
	timeout int32
	pad     int32
}

const (
	dpPoll = 0xd001
	dpAdd  = 0xd003
)

// devPollBackend is a level-triggered pollerBackend over Solaris /dev/poll:
// writes of pollfd structs register interest, and DP_POLL ioctls harvest
// ready descriptors. Re-registering an fd updates its interest set, mirroring
// the write-to-add semantics documented for /dev/poll.
type devPollBackend struct {
	fd int
}

func (b *devPollBackend) open(hint int) error {
	fd, err := unix.Open("/dev/poll", unix.O_RDWR, 0)
	if err != nil {
		return err
	}
	b.fd = fd
	return nil
}

func (b *devPollBackend) close() error {
	return unix.Close(b.fd)
}

func (b *devPollBackend) writeEntry(fd int, events int16) error {
	entry := dpPollFd{fd: int32(fd), events: events}
	buf := (*[unsafe.Sizeof(entry)]byte)(unsafe.Pointer(&entry))[:]
	_, err := unix.Write(b.fd, buf)
	return err
}

func (b *devPollBackend) add(fd int, mask ReadinessMask) error {
	return b.writeEntry(fd, maskToDevPoll(mask))
}

func (b *devPollBackend) modify(fd int, mask ReadinessMask) error {
	// A fresh write replaces the previous interest for this fd.
	return b.writeEntry(fd, maskToDevPoll(mask))
}

func (b *devPollBackend) remove(fd int) error {
	return b.writeEntry(fd, unix.POLLREMOVE)
}

func (b *devPollBackend) wait(timeoutMs int, out []backendEvent) (int, error) {
	limit := len(out)
	if limit > 256 {
		limit = 256
	}
	raw := make([]dpPollFd, limit)
	arg := dvPoll{fds: &raw[0], nfds: uint64(limit), timeout: int32(timeoutMs)}

	n, err := devPollIoctl(b.fd, dpPoll, uintptr(unsafe.Pointer(&arg)))
	if err != nil {
		if err == unix.EINTR {
			return 0, ErrInterrupted
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		out[i] = backendEvent{fd: int(raw[i].fd), mask: devPollToMask(raw[i].revents)}
	}
	return n, nil
}

func (b *devPollBackend) edgeTriggered() bool { return false }

func devPollIoctl(fd int, req uint, arg uintptr) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), arg)
	if errno != 0 {
		return 0, errno
	}
	return int(r), nil
}

func maskToDevPoll(mask ReadinessMask) int16 {
	var e int16
	if mask&EventRead != 0 {
		e |= unix.POLLIN
	}
	if mask&EventWrite != 0 {
		e |= unix.POLLOUT
	}
	return e
}

func devPollToMask(revents int16) ReadinessMask {
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
