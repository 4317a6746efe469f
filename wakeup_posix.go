//go:build !linux && !windows

package reactor

import "golang.org/x/sys/unix"

// wakeSource is Reactor's self-pipe on BSD-family and other POSIX targets
// without eventfd: a non-blocking pipe, interrupting a blocked Poller.Wait
// by making the read end readable.
type wakeSource struct {
	readFD  int
	writeFD int
}

func newWakeSource() (*wakeSource, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, err
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return nil, err
		}
	}
	return &wakeSource{readFD: fds[0], writeFD: fds[1]}, nil
}

func (w *wakeSource) ReadFD() int { return w.readFD }

func (w *wakeSource) Notify() error {
	_, err := unix.Write(w.writeFD, []byte{1})
	if err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

func (w *wakeSource) Drain() {
	var buf [64]byte
	for {
		if _, err := unix.Read(w.readFD, buf[:]); err != nil {
			break
		}
	}
}

func (w *wakeSource) Close() error {
	_ = unix.Close(w.writeFD)
	return unix.Close(w.readFD)
}
