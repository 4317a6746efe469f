package reactor

import (
	"os"
	"testing"
)

func TestPollerAddWaitReadable(t *testing.T) {
	p, err := NewPoller(Auto, 8)
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	defer p.Destroy()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	fd := int(r.Fd())
	if err := p.Add(fd, EventRead, 0xABCD); err != nil {
		t.Fatalf("Add: %v", err)
	}

	n, err := p.Wait(0)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 0 {
		t.Fatalf("Wait() before any write = %d, want 0", n)
	}

	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	n, err = p.Wait(1000)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 1 {
		t.Fatalf("Wait() after write = %d, want 1", n)
	}

	ev, ok := p.NextEvent()
	if !ok {
		t.Fatalf("NextEvent() returned false, want an event")
	}
	if ev.Fd != fd {
		t.Fatalf("Event.Fd = %d, want %d", ev.Fd, fd)
	}
	if ev.Mask&EventRead == 0 {
		t.Fatalf("Event.Mask = %v, want EventRead set", ev.Mask)
	}
	if ev.Cookie != 0xABCD {
		t.Fatalf("Event.Cookie = %x, want 0xABCD", ev.Cookie)
	}

	if _, ok := p.NextEvent(); ok {
		t.Fatalf("NextEvent() should be exhausted after draining the one pending event")
	}
}

func TestPollerRemoveStopsDelivery(t *testing.T) {
	p, err := NewPoller(Auto, 8)
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	defer p.Destroy()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	fd := int(r.Fd())
	if err := p.Add(fd, EventRead, 0); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := p.Remove(fd); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	n, err := p.Wait(0)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 0 {
		t.Fatalf("Wait() after Remove = %d, want 0", n)
	}
}

func TestPollerSetMaskUnknownFd(t *testing.T) {
	p, err := NewPoller(Auto, 8)
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	defer p.Destroy()

	if err := p.SetMask(999999, EventRead); err == nil {
		t.Fatalf("SetMask on an unregistered fd should fail")
	}
}

func TestPollerDestroyIsIdempotent(t *testing.T) {
	p, err := NewPoller(Auto, 8)
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	if err := p.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := p.Destroy(); err != nil {
		t.Fatalf("second Destroy should be a no-op, got %v", err)
	}
	if _, err := p.Wait(0); err != ErrClosed {
		t.Fatalf("Wait after Destroy = %v, want ErrClosed", err)
	}
}
