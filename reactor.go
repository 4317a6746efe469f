// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"runtime"
	"sync/atomic"
)

// Conn is an embedder-supplied file-descriptor registration: ReadReady and
// WriteReady are invoked from the reactor thread when the Poller reports the
// corresponding readiness for FD. Either may be nil.
type Conn struct {
	FD         int
	ReadReady  func()
	WriteReady func()
	ErrorReady func()
}

// fdRegistration is the Reactor's bookkeeping record for one registered
// Conn, keyed by fd.
type fdRegistration struct {
	conn Conn
	mask ReadinessMask
}

// reactorIDSeq hands out small integer identifiers for LogEntry.ReactorID,
// since reactors are cheap to construct in tests and a monotonic counter
// keeps log correlation readable without pulling in a UUID dependency.
var reactorIDSeq atomic.Int64

// Reactor assembles one Clock, one Poller, one Scheduler, and a self-pipe
// wake source into the single-threaded "advance, wait, dispatch" loop: each
// iteration advances the Scheduler to the current time (firing due timers),
// computes a wait timeout bounded by the nearest pending timer, blocks in
// Poller.Wait, then dispatches every ready fd to its registered callbacks.
//
// A Reactor is designed to be driven by exactly one goroutine (the one
// inside Run). Wake and Stop are the only methods safe to call from another
// goroutine; everything else must be called from the reactor thread itself,
// which built with the reactor_debug tag is checked and enforced.
type Reactor struct {
	id int64

	clock     *Clock
	poller    *Poller
	scheduler *Scheduler
	wake      *wakeSource

	state *fastState

	conns map[int]*fdRegistration

	logger  Logger
	metrics *Metrics

	streamAlloc PageAllocator
	streamLow   int
	streamHigh  int

	loopGoroutineID atomic.Uint64
}

// NewReactor constructs a Reactor with the given options applied over the
// package defaults (Auto backend, 10ms tick interval, NoOpLogger, metrics
// disabled).
func NewReactor(opts ...ReactorOption) (*Reactor, error) {
	cfg, err := resolveReactorOptions(opts)
	if err != nil {
		return nil, err
	}

	poller, err := NewPoller(cfg.backend, cfg.pollerHint)
	if err != nil {
		return nil, err
	}

	clock := NewClock()
	sched := NewScheduler(clock.NowMs(), cfg.intervalMs)
	sched.SetLogger(cfg.logger)

	wake, err := newWakeSource()
	if err != nil {
		_ = poller.Destroy()
		return nil, err
	}

	r := &Reactor{
		id:          reactorIDSeq.Add(1),
		clock:       clock,
		poller:      poller,
		scheduler:   sched,
		wake:        wake,
		state:       newFastState(),
		conns:       make(map[int]*fdRegistration),
		logger:      cfg.logger,
		streamAlloc: cfg.streamAlloc,
		streamLow:   cfg.streamLow,
		streamHigh:  cfg.streamHigh,
	}
	if cfg.metricsEnabled {
		r.metrics = &Metrics{}
	}

	if err := poller.Add(wake.ReadFD(), EventRead, 0); err != nil {
		_ = poller.Destroy()
		_ = wake.Close()
		return nil, err
	}

	return r, nil
}

// ID returns the small integer identity this Reactor uses to correlate its
// own log entries (LogEntry.ReactorID).
func (r *Reactor) ID() int64 { return r.id }

// Metrics returns the Reactor's runtime metrics, or nil if it was not
// constructed WithMetrics(true).
func (r *Reactor) Metrics() *Metrics { return r.metrics }

// Logger returns the structured logger this Reactor logs through.
func (r *Reactor) Logger() Logger { return r.logger }

// State reports the Reactor's current run state.
func (r *Reactor) State() ReactorState { return r.state.Load() }

// NewStream constructs a Stream using this Reactor's configured watermarks
// and page allocator, for embedders who want per-connection framing
// buffers. When no allocator was configured, each Stream gets its own
// default pooled allocator.
func (r *Reactor) NewStream() *Stream {
	return NewStream(r.streamAlloc, r.streamLow, r.streamHigh)
}

// assertLoopThread panics with ErrNotReactorThread when built with the
// reactor_debug tag and called from a goroutine other than the one
// currently inside Run. It is a no-op in release builds.
func (r *Reactor) assertLoopThread() {
	assertReactorThread(r)
}

// RegisterFD adds conn to the set of descriptors this Reactor polls,
// delivering readiness to its ReadReady/WriteReady/ErrorReady callbacks.
// Must be called from the reactor thread.
func (r *Reactor) RegisterFD(conn Conn) error {
	r.assertLoopThread()

	mask := ReadinessMask(0)
	if conn.ReadReady != nil {
		mask |= EventRead
	}
	if conn.WriteReady != nil {
		mask |= EventWrite
	}
	if conn.ErrorReady != nil {
		mask |= EventError
	}
	if mask == 0 {
		return wrapf(ErrMalformed, "conn for fd %d has no readiness callbacks", conn.FD)
	}

	if err := r.poller.Add(conn.FD, mask, uintptr(conn.FD)); err != nil {
		return err
	}
	r.conns[conn.FD] = &fdRegistration{conn: conn, mask: mask}
	return nil
}

// ModifyFD changes the readiness mask the Reactor waits for on an
// already-registered fd, replacing its callback set. Must be called from
// the reactor thread.
func (r *Reactor) ModifyFD(conn Conn) error {
	r.assertLoopThread()

	reg, ok := r.conns[conn.FD]
	if !ok {
		return wrapf(ErrNotFound, "fd %d not registered", conn.FD)
	}

	mask := ReadinessMask(0)
	if conn.ReadReady != nil {
		mask |= EventRead
	}
	if conn.WriteReady != nil {
		mask |= EventWrite
	}
	if conn.ErrorReady != nil {
		mask |= EventError
	}
	if err := r.poller.SetMask(conn.FD, mask); err != nil {
		return err
	}
	reg.conn = conn
	reg.mask = mask
	return nil
}

// UnregisterFD removes fd from the poll set. Must be called from the
// reactor thread.
func (r *Reactor) UnregisterFD(fd int) error {
	r.assertLoopThread()
	delete(r.conns, fd)
	return r.poller.Remove(fd)
}

// ArmTimer schedules cb to run every periodMs, repeatCount times (0 means
// forever). Safe to call from the reactor thread, including reentrantly
// from inside a firing timer's own callback.
func (r *Reactor) ArmTimer(periodMs uint64, repeatCount uint32, cb TimerCallback) (TimerHandle, error) {
	r.assertLoopThread()
	h, err := r.scheduler.Arm(periodMs, repeatCount, cb)
	if err == nil {
		LogTimerArmed(r.logger, int64(h.Index), periodMs, repeatCount)
	}
	return h, err
}

// CancelTimer stops h from firing again.
func (r *Reactor) CancelTimer(h TimerHandle) error {
	r.assertLoopThread()
	err := r.scheduler.Cancel(h)
	if err == nil {
		LogTimerCanceled(r.logger, int64(h.Index))
	}
	return err
}

// Wake interrupts a blocked Run, causing it to re-advance the Scheduler and
// recompute its wait timeout. It is the one Reactor method explicitly
// designed to be called from a goroutine other than the reactor thread.
func (r *Reactor) Wake() error {
	return r.wake.Notify()
}

// Stop requests Run to return after completing its current iteration. Safe
// to call from any goroutine, including from inside a timer or readiness
// callback running on the reactor thread itself.
func (r *Reactor) Stop() {
	if !r.state.TransitionAny([]ReactorState{StateRunning, StateSleeping, StateAwake}, StateTerminating) {
		return
	}
	_ = r.wake.Notify()
}

// waitTimeoutMs bounds the next Poller.Wait call by the scheduler's earliest
// armed timer (capped at 1<<30 ms), so a poller with nothing ready still
// wakes in time to dispatch that timer. It returns -1 (wait without a
// timeout) when no timer is armed.
func (r *Reactor) waitTimeoutMs() int {
	nextMs, ok := r.scheduler.NextFireMs()
	if !ok {
		return -1
	}
	nowMs := r.clock.NowMs()
	if nextMs <= nowMs {
		return 0
	}
	delta := nextMs - nowMs
	if delta > 1<<30 {
		return 1 << 30
	}
	return int(delta)
}

// dispatch delivers every Event produced by the most recent Poller.Wait to
// its registered Conn's callbacks. It records no metrics.
func (r *Reactor) dispatch() {
	for {
		ev, ok := r.poller.NextEvent()
		if !ok {
			return
		}
		if ev.Fd == r.wake.ReadFD() {
			r.wake.Drain()
			continue
		}

		reg, ok := r.conns[ev.Fd]
		if !ok {
			continue
		}

		if ev.Mask&EventError != 0 && reg.conn.ErrorReady != nil {
			reg.conn.ErrorReady()
		}
		if ev.Mask&EventRead != 0 && reg.conn.ReadReady != nil {
			reg.conn.ReadReady()
		}
		if ev.Mask&EventWrite != 0 && reg.conn.WriteReady != nil {
			reg.conn.WriteReady()
		}
	}
}

// Run drives the reactor loop until Stop is called or the Poller reports a
// fatal (non-EINTR) error. It must be called from the goroutine that will
// become this Reactor's reactor thread; calling it twice concurrently, or
// from more than one goroutine over the Reactor's lifetime, is undefined.
func (r *Reactor) Run() error {
	if !r.state.TryTransition(StateAwake, StateRunning) {
		return wrapf(ErrClosed, "reactor already running or terminated")
	}
	r.loopGoroutineID.Store(getGoroutineID())

	defer func() {
		r.state.Store(StateTerminated)
	}()

	for {
		if r.state.Load() == StateTerminating {
			return nil
		}

		r.scheduler.Advance(r.clock.NowMs())
		if r.metrics != nil {
			r.updateWheelMetrics()
		}

		timeout := r.waitTimeoutMs()

		r.state.TryTransition(StateRunning, StateSleeping)
		n, err := r.poller.Wait(timeout)
		r.state.TryTransition(StateSleeping, StateRunning)
		if err != nil {
			LogPollError(r.logger, err, true)
			return err
		}
		if n > 0 {
			r.dispatch()
		}

		if r.state.Load() == StateTerminating {
			return nil
		}
	}
}

func (r *Reactor) updateWheelMetrics() {
	near := 0
	for i := range r.scheduler.near {
		if r.scheduler.near[i].head != -1 {
			near++
		}
	}
	r.metrics.Wheel.UpdateNear(near)
	for k := range r.scheduler.far {
		far := 0
		for i := range r.scheduler.far[k] {
			if r.scheduler.far[k][i].head != -1 {
				far++
			}
		}
		r.metrics.Wheel.UpdateFar(k, far)
	}
}

// Destroy releases the Reactor's Poller and wake-source kernel resources.
// Call after Run has returned.
func (r *Reactor) Destroy() error {
	err1 := r.poller.Destroy()
	err2 := r.wake.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// getGoroutineID returns the current goroutine's ID, parsed out of the
// runtime stack trace header ("goroutine NNN [running]: ..."). Used only to
// populate the thread-affinity check compiled in under reactor_debug; never
// called on a hot path in release builds.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
