//go:build windows

package reactor

import (
	"golang.org/x/sys/windows"
)

func init() {
	// Windows has no select/epoll/kqueue equivalent in this table; WSAPoll
	// is registered under the Poll kind (non-spec addition, see SPEC_FULL.md)
	// so Auto selection still resolves to a usable backend.
	registerBackend(Poll, 100, func() pollerBackend { return &wsaPollBackend{} })
}

// wsaPollBackend is a level-triggered pollerBackend over Winsock's WSAPoll,
// the closest portable equivalent to POSIX poll() available without IOCP.
type wsaPollBackend struct {
	masks map[int]ReadinessMask
}

func (b *wsaPollBackend) open(hint int) error {
	if hint <= 0 {
		hint = 64
	}
	b.masks = make(map[int]ReadinessMask, hint)
	return nil
}

func (b *wsaPollBackend) close() error {
	b.masks = nil
	return nil
}

func (b *wsaPollBackend) add(fd int, mask ReadinessMask) error {
	b.masks[fd] = mask
	return nil
}

func (b *wsaPollBackend) modify(fd int, mask ReadinessMask) error {
	b.masks[fd] = mask
	return nil
}

func (b *wsaPollBackend) remove(fd int) error {
	delete(b.masks, fd)
	return nil
}

func (b *wsaPollBackend) wait(timeoutMs int, out []backendEvent) (int, error) {
	if len(b.masks) == 0 {
		windows.Sleep(uint32(clampTimeout(timeoutMs)))
		return 0, nil
	}

	pfds := make([]windows.WSAPollFd, 0, len(b.masks))
	for fd, mask := range b.masks {
		pfds = append(pfds, windows.WSAPollFd{Fd: windows.Handle(fd), Events: maskToWSAPoll(mask)})
	}

	n, err := windows.WSAPoll(pfds, timeoutMs)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, pfd := range pfds {
		if pfd.REvents == 0 {
			continue
		}
		if count >= len(out) {
			break
		}
		out[count] = backendEvent{fd: int(pfd.Fd), mask: wsaPollToMask(pfd.REvents)}
		count++
	}
	_ = n
	return count, nil
}

func (b *wsaPollBackend) edgeTriggered() bool { return false }

func clampTimeout(timeoutMs int) int {
	if timeoutMs < 0 {
		return 1000
	}
	return timeoutMs
}

func maskToWSAPoll(mask ReadinessMask) int16 {
	var e int16
	if mask&EventRead != 0 {
		e |= windows.POLLIN
	}
	if mask&EventWrite != 0 {
		e |= windows.POLLOUT
	}
	return e
}

func wsaPollToMask(revents int16) ReadinessMask {
	var m ReadinessMask
	if revents&windows.POLLIN != 0 {
		m |= EventRead
	}
	if revents&windows.POLLOUT != 0 {
		m |= EventWrite
	}
	if revents&(windows.POLLERR|windows.POLLHUP|windows.POLLNVAL) != 0 {
		m |= EventError
	}
	return m
}
