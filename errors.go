package reactor

import (
	"errors"
	"fmt"
)

// Sentinel errors for the error kinds named in the package's error-handling
// design. Most other errors returned by this package wrap one of these via
// fmt.Errorf("%w", ...), so callers can match with errors.Is; errors from
// closing a poll object or creating/signalling the wakeup source
// (Poller.Destroy, Reactor.Destroy, NewReactor, Wake) are returned as the
// operating system reported them.
var (
	// ErrOutOfResources indicates the kernel refused a poll-object or
	// per-fd allocation, or a page allocator could not satisfy a request.
	ErrOutOfResources = errors.New("reactor: out of resources")

	// ErrBadDescriptor indicates a value passed as a file descriptor is
	// not valid in the running process.
	ErrBadDescriptor = errors.New("reactor: bad file descriptor")

	// ErrNotFound indicates SetMask or Remove targeted an fd that was
	// never registered (SetMask fails with this; Remove is a no-op).
	ErrNotFound = errors.New("reactor: fd not registered")

	// ErrMalformed indicates a malformed argument: a Conn registered with
	// no callbacks, or a nil timer callback. Message framing does not return
	// it; PopMessage reports a bad length as Decision{Kind: Malformed}.
	ErrMalformed = errors.New("reactor: malformed message record")

	// ErrIncomplete indicates framing needs more bytes before a record
	// can be decoded; the caller should retry once more data arrives.
	ErrIncomplete = errors.New("reactor: incomplete message record")

	// ErrInterrupted indicates Wait returned early due to a signal; it is
	// reported as zero ready events and is otherwise non-fatal.
	ErrInterrupted = errors.New("reactor: poll interrupted")

	// ErrIoError indicates an underlying kernel call failed for a reason
	// other than EINTR.
	ErrIoError = errors.New("reactor: io error")

	// ErrClosed indicates an operation was attempted on a Poller after it
	// was destroyed, or Reactor.Run was called on a stopped Reactor.
	ErrClosed = errors.New("reactor: handle closed")

	// ErrAlreadyRegistered indicates Add was called for an fd that is
	// already registered at a layer that does not upsert.
	ErrAlreadyRegistered = errors.New("reactor: fd already registered")

	// ErrStaleHandle indicates a TimerHandle was reused by a later timer
	// entry (the generation counter no longer matches).
	ErrStaleHandle = errors.New("reactor: stale timer handle")

	// ErrNotReactorThread indicates a call that must originate on the
	// reactor goroutine was made from elsewhere. Only checked when built
	// with the reactor_debug tag.
	ErrNotReactorThread = errors.New("reactor: call from non-reactor goroutine")
)

// NeedBufferError describes a destination buffer too small for a payload,
// carrying the required size. PopMessage does not return it: it reports
// this case as Decision{Kind: NeedBuffer, NeededSize: ...} and consumes
// nothing, so the caller can grow its buffer and retry.
type NeedBufferError struct {
	// Size is the number of bytes the payload requires.
	Size int
}

func (e *NeedBufferError) Error() string {
	return fmt.Sprintf("reactor: buffer too small, need %d bytes", e.Size)
}

// wrapf wraps a sentinel with formatted context, matching the package's
// errors.Is-friendly wrapping convention.
func wrapf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}
