package reactor

import "encoding/binary"

// MessageHeaderSize is the fixed wire header: total length, message id,
// wparam, lparam, all little-endian 32-bit.
const MessageHeaderSize = 16

// DecisionKind discriminates the outcome of a framing attempt.
type DecisionKind uint8

const (
	// Incomplete means fewer than 4 bytes (the length field) are buffered,
	// or the declared length is valid but the rest of the header or the
	// full payload hasn't arrived yet.
	Incomplete DecisionKind = iota
	// Malformed means the header's declared length is out of bounds
	// (smaller than the header itself, or larger than MaxMessageSize).
	Malformed
	// Complete means a full message was decoded.
	Complete
	// NeedBuffer means the caller's destination buffer is too small to
	// hold the decoded payload; Decision.NeededSize reports how large it
	// must be.
	NeedBuffer
)

// Message is one fully decoded length-prefixed frame.
type Message struct {
	ID      int32
	WParam  int32
	LParam  int32
	Payload []byte
}

// Decision is the outcome of a single PopMessage attempt. It is a plain
// struct rather than an interface: the framing hot path only ever needs to
// branch on Kind, never dispatch through a method set.
type Decision struct {
	Kind       DecisionKind
	Message    Message
	Consumed   int
	NeededSize int
}

// MaxMessageSize bounds the total_length header field; frames declaring a
// larger size are rejected as Malformed rather than accepted and left to
// exhaust memory.
const MaxMessageSize = 64 << 20

// PushMessage appends a framed message (header + payload) to s.
func PushMessage(s *Stream, id, wparam, lparam int32, payload []byte) {
	var hdr [MessageHeaderSize]byte
	total := uint32(MessageHeaderSize + len(payload))
	binary.LittleEndian.PutUint32(hdr[0:4], total)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(id))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(wparam))
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(lparam))
	s.Write(hdr[:])
	if len(payload) > 0 {
		s.Write(payload)
	}
}

// PopMessage attempts to decode one message from the front of s. On
// Complete it consumes the whole record (header and payload) from s, and
// Message.Payload aliases buf. buf is a caller-owned scratch buffer for the
// payload; if it is too small, PopMessage returns NeedBuffer with the
// required size. Incomplete, Malformed and NeedBuffer consume nothing.
func PopMessage(s *Stream, buf []byte) Decision {
	// Only the total_length field (the first 4 bytes) is needed to decide
	// Incomplete vs. Malformed; peeking it alone lets a too-small declared
	// length be caught before the rest of the header (let alone the
	// payload) has arrived.
	var lenBytes [4]byte
	if s.Peek(lenBytes[:]) < 4 {
		return Decision{Kind: Incomplete}
	}
	total := binary.LittleEndian.Uint32(lenBytes[:])
	if total < MessageHeaderSize || total > MaxMessageSize {
		return Decision{Kind: Malformed}
	}

	if s.Size() < MessageHeaderSize {
		return Decision{Kind: Incomplete}
	}

	var hdr [MessageHeaderSize]byte
	s.Peek(hdr[:])
	id := int32(binary.LittleEndian.Uint32(hdr[4:8]))
	wparam := int32(binary.LittleEndian.Uint32(hdr[8:12]))
	lparam := int32(binary.LittleEndian.Uint32(hdr[12:16]))

	payloadLen := int(total) - MessageHeaderSize
	if s.Size() < int(total) {
		return Decision{Kind: Incomplete}
	}
	if len(buf) < payloadLen {
		return Decision{Kind: NeedBuffer, NeededSize: payloadLen}
	}

	// Peek copies the header again as part of a contiguous logical read;
	// drop it explicitly then peek the payload into the caller buffer.
	s.Drop(MessageHeaderSize)
	s.Peek(buf[:payloadLen])
	s.Drop(payloadLen)

	return Decision{
		Kind:     Complete,
		Consumed: int(total),
		Message: Message{
			ID:      id,
			WParam:  wparam,
			LParam:  lparam,
			Payload: buf[:payloadLen],
		},
	}
}
