package reactor

import (
	"bytes"
	"testing"
)

func TestPushPopMessageRoundTrip(t *testing.T) {
	s := NewStream(nil, 1024, 4096)
	PushMessage(s, 42, 7, -3, []byte("payload"))

	buf := make([]byte, 256)
	d := PopMessage(s, buf)
	if d.Kind != Complete {
		t.Fatalf("Kind = %v, want Complete", d.Kind)
	}
	if d.Message.ID != 42 || d.Message.WParam != 7 || d.Message.LParam != -3 {
		t.Fatalf("Message fields = %+v, want {42 7 -3 ...}", d.Message)
	}
	if !bytes.Equal(d.Message.Payload, []byte("payload")) {
		t.Fatalf("Payload = %q, want \"payload\"", d.Message.Payload)
	}
	if s.Size() != 0 {
		t.Fatalf("stream should be fully drained after a Complete pop, Size() = %d", s.Size())
	}
}

func TestPopMessageIncompleteHeader(t *testing.T) {
	s := NewStream(nil, 1024, 4096)
	s.Write([]byte{1, 2, 3}) // fewer than MessageHeaderSize bytes

	d := PopMessage(s, make([]byte, 64))
	if d.Kind != Incomplete {
		t.Fatalf("Kind = %v, want Incomplete", d.Kind)
	}
	if s.Size() != 3 {
		t.Fatalf("Incomplete must not consume: Size() = %d, want 3", s.Size())
	}
}

func TestPopMessageIncompletePayload(t *testing.T) {
	s := NewStream(nil, 1024, 4096)
	full := NewStream(nil, 1024, 4096)
	PushMessage(full, 1, 0, 0, bytes.Repeat([]byte("z"), 100))
	frame := make([]byte, full.Size()-1) // the whole frame minus its last payload byte
	full.Read(frame)
	s.Write(frame)

	d := PopMessage(s, make([]byte, 256))
	if d.Kind != Incomplete {
		t.Fatalf("Kind = %v, want Incomplete", d.Kind)
	}
}

func TestPopMessageMalformed(t *testing.T) {
	s := NewStream(nil, 1024, 4096)
	var hdr [MessageHeaderSize]byte
	// total_length smaller than the header itself.
	hdr[0] = 4
	s.Write(hdr[:])

	d := PopMessage(s, make([]byte, 64))
	if d.Kind != Malformed {
		t.Fatalf("Kind = %v, want Malformed", d.Kind)
	}
}

// TestPopMessageMalformedBeforeFullHeaderBuffered verifies that a
// total_length < 16 is reported Malformed as soon as its 4-byte prefix is
// available, even when fewer than MessageHeaderSize bytes are buffered in
// total (i.e. Malformed is decided ahead of the Incomplete-by-size check).
func TestPopMessageMalformedBeforeFullHeaderBuffered(t *testing.T) {
	s := NewStream(nil, 1024, 4096)
	// Only the 4-byte total_length prefix, declaring a length of 15
	// (smaller than the 16-byte header): nowhere near a full header's worth
	// of bytes is buffered.
	var lenBytes [4]byte
	lenBytes[0] = 15
	s.Write(lenBytes[:])

	d := PopMessage(s, make([]byte, 64))
	if d.Kind != Malformed {
		t.Fatalf("Kind = %v, want Malformed", d.Kind)
	}
}

func TestPopMessageNeedBuffer(t *testing.T) {
	s := NewStream(nil, 1024, 4096)
	PushMessage(s, 1, 0, 0, bytes.Repeat([]byte("q"), 50))

	d := PopMessage(s, make([]byte, 10))
	if d.Kind != NeedBuffer {
		t.Fatalf("Kind = %v, want NeedBuffer", d.Kind)
	}
	if d.NeededSize != 50 {
		t.Fatalf("NeededSize = %d, want 50", d.NeededSize)
	}
	if s.Size() == 0 {
		t.Fatalf("NeedBuffer must not consume the stream")
	}

	d2 := PopMessage(s, make([]byte, 50))
	if d2.Kind != Complete {
		t.Fatalf("retry with a large-enough buffer should succeed, got %v", d2.Kind)
	}
}

func TestPopMessageMultipleFramesInOneStream(t *testing.T) {
	s := NewStream(nil, 1024, 4096)
	PushMessage(s, 1, 0, 0, []byte("first"))
	PushMessage(s, 2, 0, 0, []byte("second"))

	buf := make([]byte, 64)
	d1 := PopMessage(s, buf)
	if d1.Kind != Complete || d1.Message.ID != 1 {
		t.Fatalf("first frame: %+v", d1)
	}
	d2 := PopMessage(s, buf)
	if d2.Kind != Complete || d2.Message.ID != 2 {
		t.Fatalf("second frame: %+v", d2)
	}
}
