//go:build linux

package reactor

import "golang.org/x/sys/unix"

// wakeSource is Reactor's self-pipe: an eventfd on Linux, interrupting a
// blocked Poller.Wait by making its registered fd readable.
type wakeSource struct {
	fd int
}

func newWakeSource() (*wakeSource, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &wakeSource{fd: fd}, nil
}

// ReadFD is the descriptor to register with a Poller for EventRead.
func (w *wakeSource) ReadFD() int { return w.fd }

// Notify makes ReadFD() become readable, interrupting a blocked Wait.
func (w *wakeSource) Notify() error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(w.fd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

// Drain consumes all pending wake notifications.
func (w *wakeSource) Drain() {
	var buf [8]byte
	for {
		if _, err := unix.Read(w.fd, buf[:]); err != nil {
			break
		}
	}
}

func (w *wakeSource) Close() error {
	return unix.Close(w.fd)
}
