package reactor

import (
	"sync/atomic"
)

// ReactorState is the run state of a Reactor.
//
// State machine:
//
//	StateAwake (0) → StateRunning (3)        [Run()]
//	StateRunning (3) → StateSleeping (2)     [blocked in Poller.Wait]
//	StateRunning (3) → StateTerminating (4)  [Stop()]
//	StateSleeping (2) → StateRunning (3)     [Wait returned / Wake()]
//	StateSleeping (2) → StateTerminating (4) [Stop() from another goroutine]
//	StateTerminating (4) → StateTerminated (1) [Run() about to return]
//	StateTerminated (1) → (terminal)
//
// Use TryTransition (CAS) for the temporary Running/Sleeping states; use
// Store only for the irreversible Terminated state.
type ReactorState uint64

const (
	StateAwake       ReactorState = 0
	StateTerminated  ReactorState = 1
	StateSleeping    ReactorState = 2
	StateRunning     ReactorState = 3
	StateTerminating ReactorState = 4
)

func (s ReactorState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine with cache-line padding, used by
// Reactor to let Wake() and Stop() be called safely from outside the
// reactor thread while it's blocked in Poller.Wait — the one
// cross-goroutine entry point the concurrency model allows.
type fastState struct { //nolint:govet // cache-line padding intentionally breaks field alignment
	_ [64]byte
	v atomic.Uint64
	_ [56]byte
}

func newFastState() *fastState {
	s := &fastState{}
	s.v.Store(uint64(StateAwake))
	return s
}

func (s *fastState) Load() ReactorState {
	return ReactorState(s.v.Load())
}

func (s *fastState) Store(state ReactorState) {
	s.v.Store(uint64(state))
}

func (s *fastState) TryTransition(from, to ReactorState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

func (s *fastState) TransitionAny(validFrom []ReactorState, to ReactorState) bool {
	for _, from := range validFrom {
		if s.v.CompareAndSwap(uint64(from), uint64(to)) {
			return true
		}
	}
	return false
}

func (s *fastState) IsTerminal() bool {
	return s.Load() == StateTerminated
}

func (s *fastState) IsRunning() bool {
	state := s.Load()
	return state == StateRunning || state == StateSleeping
}
