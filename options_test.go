package reactor

import (
	"testing"
	"time"
)

func TestResolveReactorOptionsDefaults(t *testing.T) {
	cfg, err := resolveReactorOptions(nil)
	if err != nil {
		t.Fatalf("resolveReactorOptions(nil): %v", err)
	}
	if cfg.backend != Auto {
		t.Fatalf("default backend = %v, want Auto", cfg.backend)
	}
	if cfg.intervalMs != 10 {
		t.Fatalf("default intervalMs = %d, want 10", cfg.intervalMs)
	}
	if cfg.logger == nil {
		t.Fatalf("default logger must not be nil")
	}
}

func TestResolveReactorOptionsOverrides(t *testing.T) {
	logger := NewWriterLogger(LevelDebug, nil)
	cfg, err := resolveReactorOptions([]ReactorOption{
		WithBackend(Poll),
		WithPollerHint(128),
		WithTickInterval(25 * time.Millisecond),
		WithStreamWatermarks(2048, 8192),
		WithMetrics(true),
		WithLogger(logger),
	})
	if err != nil {
		t.Fatalf("resolveReactorOptions: %v", err)
	}
	if cfg.backend != Poll {
		t.Fatalf("backend = %v, want Poll", cfg.backend)
	}
	if cfg.pollerHint != 128 {
		t.Fatalf("pollerHint = %d, want 128", cfg.pollerHint)
	}
	if cfg.intervalMs != 25 {
		t.Fatalf("intervalMs = %d, want 25", cfg.intervalMs)
	}
	if cfg.streamLow != 2048 || cfg.streamHigh != 8192 {
		t.Fatalf("stream watermarks = %d/%d, want 2048/8192", cfg.streamLow, cfg.streamHigh)
	}
	if !cfg.metricsEnabled {
		t.Fatalf("metricsEnabled should be true")
	}
	if cfg.logger != Logger(logger) {
		t.Fatalf("logger override did not take effect")
	}
}

func TestResolveReactorOptionsSkipsNil(t *testing.T) {
	cfg, err := resolveReactorOptions([]ReactorOption{nil, WithBackend(Epoll), nil})
	if err != nil {
		t.Fatalf("resolveReactorOptions: %v", err)
	}
	if cfg.backend != Epoll {
		t.Fatalf("backend = %v, want Epoll", cfg.backend)
	}
}

func TestBackendString(t *testing.T) {
	cases := map[Backend]string{
		Auto:    "auto",
		Select:  "select",
		Poll:    "poll",
		Epoll:   "epoll",
		Kqueue:  "kqueue",
		DevPoll: "devpoll",
		PollSet: "pollset",
	}
	for b, want := range cases {
		if got := b.String(); got != want {
			t.Fatalf("Backend(%d).String() = %q, want %q", b, got, want)
		}
	}
}
