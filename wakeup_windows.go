//go:build windows

package reactor

import (
	"net"
	"time"
)

// wakeSource is Reactor's self-pipe on Windows. There is no eventfd or
// anonymous-pipe-over-WSAPoll equivalent, so a loopback UDP socket pair
// stands in: Notify writes a byte to the connected peer, which WSAPoll
// reports as EventRead on the read socket's fd.
type wakeSource struct {
	readConn  *net.UDPConn
	writeConn *net.UDPConn
	readFD    int
}

func newWakeSource() (*wakeSource, error) {
	readConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return nil, err
	}
	writeConn, err := net.DialUDP("udp4", nil, readConn.LocalAddr().(*net.UDPAddr))
	if err != nil {
		_ = readConn.Close()
		return nil, err
	}

	var fd int
	rawConn, err := readConn.SyscallConn()
	if err != nil {
		_ = readConn.Close()
		_ = writeConn.Close()
		return nil, err
	}
	_ = rawConn.Control(func(h uintptr) { fd = int(h) })

	return &wakeSource{readConn: readConn, writeConn: writeConn, readFD: fd}, nil
}

func (w *wakeSource) ReadFD() int { return w.readFD }

func (w *wakeSource) Notify() error {
	_, err := w.writeConn.Write([]byte{1})
	return err
}

func (w *wakeSource) Drain() {
	var buf [64]byte
	_ = w.readConn.SetReadDeadline(time.Now())
	for {
		if _, err := w.readConn.Read(buf[:]); err != nil {
			break
		}
	}
	_ = w.readConn.SetReadDeadline(time.Time{})
}

func (w *wakeSource) Close() error {
	_ = w.writeConn.Close()
	return w.readConn.Close()
}
