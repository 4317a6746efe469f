// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import "time"

// reactorOptions holds configuration resolved from a ReactorOption list at
// construction time.
type reactorOptions struct {
	backend        Backend
	pollerHint     int
	intervalMs     uint64
	streamLow      int
	streamHigh     int
	streamAlloc    PageAllocator
	metricsEnabled bool
	logger         Logger
}

// ReactorOption configures a Reactor instance.
type ReactorOption interface {
	applyReactor(*reactorOptions) error
}

// reactorOptionImpl implements ReactorOption via a plain closure, mirroring
// the teacher's wrapper-struct-around-a-func pattern rather than exposing a
// bare function type as the option's public shape.
type reactorOptionImpl struct {
	applyReactorFunc func(*reactorOptions) error
}

func (o *reactorOptionImpl) applyReactor(opts *reactorOptions) error {
	return o.applyReactorFunc(opts)
}

// WithBackend selects the Poller backend the Reactor constructs. Auto (the
// default) picks the best one compiled in for the host OS.
func WithBackend(backend Backend) ReactorOption {
	return &reactorOptionImpl{func(opts *reactorOptions) error {
		opts.backend = backend
		return nil
	}}
}

// WithPollerHint sets the initial capacity hint passed to NewPoller.
func WithPollerHint(hint int) ReactorOption {
	return &reactorOptionImpl{func(opts *reactorOptions) error {
		opts.pollerHint = hint
		return nil
	}}
}

// WithTickInterval sets the scheduler's jiffy length in milliseconds
// (values below 1 are clamped up to 1 by the Scheduler itself).
func WithTickInterval(d time.Duration) ReactorOption {
	return &reactorOptionImpl{func(opts *reactorOptions) error {
		opts.intervalMs = uint64(d / time.Millisecond)
		return nil
	}}
}

// WithStreamWatermarks sets the low/high watermarks used when the Reactor
// constructs its own Streams (clamped to [1024, 65536] by NewStream).
func WithStreamWatermarks(low, high int) ReactorOption {
	return &reactorOptionImpl{func(opts *reactorOptions) error {
		opts.streamLow = low
		opts.streamHigh = high
		return nil
	}}
}

// WithPageAllocator overrides the default pooled PageAllocator used by
// Streams the Reactor constructs.
func WithPageAllocator(alloc PageAllocator) ReactorOption {
	return &reactorOptionImpl{func(opts *reactorOptions) error {
		opts.streamAlloc = alloc
		return nil
	}}
}

// WithMetrics enables runtime metrics collection on the Reactor. When
// enabled, metrics can be read via Reactor.Metrics(). Disable in production
// if the per-event bookkeeping overhead matters more than observability.
func WithMetrics(enabled bool) ReactorOption {
	return &reactorOptionImpl{func(opts *reactorOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithLogger installs a structured logger the Reactor uses for diagnostics.
// The Scheduler it owns is handed the same logger but does not log.
// Defaults to NoOpLogger.
func WithLogger(logger Logger) ReactorOption {
	return &reactorOptionImpl{func(opts *reactorOptions) error {
		opts.logger = logger
		return nil
	}}
}

// resolveReactorOptions applies a ReactorOption list over defaults.
func resolveReactorOptions(opts []ReactorOption) (*reactorOptions, error) {
	cfg := &reactorOptions{
		backend:    Auto,
		pollerHint: 64,
		intervalMs: 10,
		streamLow:  streamLowWaterFloor,
		streamHigh: streamHighWaterCap,
		logger:     NewNoOpLogger(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyReactor(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
