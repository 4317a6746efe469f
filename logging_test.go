package reactor

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/joeycumines/logiface"
)

// logifaceTestEvent is a minimal logiface.Event implementation, mirroring
// the teacher's own testEvent fixture for proving Logger is wire-compatible
// with a real structured-logging library rather than only its own types.
type logifaceTestEvent struct {
	logiface.UnimplementedEvent
	level   logiface.Level
	message string
	fields  map[string]any
}

func (e *logifaceTestEvent) Level() logiface.Level { return e.level }

func (e *logifaceTestEvent) AddField(key string, val any) {
	if e.fields == nil {
		e.fields = make(map[string]any)
	}
	e.fields[key] = val
}

func (e *logifaceTestEvent) AddMessage(msg string) bool {
	e.message = msg
	return true
}

type logifaceTestEventFactory struct{}

func (logifaceTestEventFactory) NewEvent(level logiface.Level) *logifaceTestEvent {
	return &logifaceTestEvent{level: level}
}

type logifaceTestEventWriter struct {
	onWrite func(*logifaceTestEvent) error
}

func (w *logifaceTestEventWriter) Write(event *logifaceTestEvent) error {
	if w.onWrite != nil {
		return w.onWrite(event)
	}
	return nil
}

// TestLogifaceAdapterWireCompatibility proves reactor.Logger can be backed
// by a real logiface logger rather than only DefaultLogger/WriterLogger,
// the same interface-compatibility guarantee the teacher's own
// coverage_extra_test.go asserts for its Loop.
func TestLogifaceAdapterWireCompatibility(t *testing.T) {
	var captured *logifaceTestEvent
	writer := &logifaceTestEventWriter{
		onWrite: func(event *logifaceTestEvent) error {
			captured = event
			return nil
		},
	}

	typedLogger := logiface.New[*logifaceTestEvent](
		logiface.WithEventFactory[*logifaceTestEvent](logifaceTestEventFactory{}),
		logiface.WithWriter[*logifaceTestEvent](writer),
		logiface.WithLevel[*logifaceTestEvent](logiface.LevelDebug),
	)

	var l Logger = NewLogifaceAdapter(typedLogger.Logger())

	if !l.IsEnabled(LevelError) {
		t.Fatalf("IsEnabled(LevelError) should be true for a logger configured at LevelDebug")
	}

	l.Log(LogEntry{
		Level:    LevelError,
		Category: "poller",
		Message:  "poll failed",
		Err:      errors.New("boom"),
	})

	if captured == nil {
		t.Fatalf("logiface writer never received an event")
	}
	if captured.message != "poll failed" {
		t.Fatalf("captured.message = %q, want \"poll failed\"", captured.message)
	}
	if captured.fields["category"] != "poller" {
		t.Fatalf("captured.fields[category] = %v, want \"poller\"", captured.fields["category"])
	}
}

func TestNoOpLoggerDiscardsEverything(t *testing.T) {
	l := NewNoOpLogger()
	if l.IsEnabled(LevelError) {
		t.Fatalf("NoOpLogger.IsEnabled should always be false")
	}
	l.Log(LogEntry{Level: LevelError, Message: "should be discarded"})
}

func TestWriterLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LevelWarn, &buf)

	LogDebug(l, "scheduler", "debug message", nil)
	if buf.Len() != 0 {
		t.Fatalf("debug message should be filtered below LevelWarn, got %q", buf.String())
	}

	LogWarn(l, "scheduler", "warn message", nil)
	if !strings.Contains(buf.String(), "warn message") {
		t.Fatalf("warn message missing from output: %q", buf.String())
	}
}

func TestWriterLoggerIncludesErrAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LevelDebug, &buf)
	cause := errors.New("boom")

	LogError(l, "poller", "poll failed", cause, map[string]interface{}{"fd": 7})
	out := buf.String()
	if !strings.Contains(out, "boom") {
		t.Fatalf("output missing error cause: %q", out)
	}
	if !strings.Contains(out, "fd=7") {
		t.Fatalf("output missing context field: %q", out)
	}
}

func TestLogEntryBuilderFluentAPI(t *testing.T) {
	entry := NewLogEntry(LevelInfo, "reactor", "started").
		ReactorID(1).
		FD(5).
		TimerID(9).
		Field("backend", "epoll").
		Build()

	if entry.ReactorID != 1 || entry.FD != 5 || entry.TimerID != 9 {
		t.Fatalf("builder did not set IDs correctly: %+v", entry)
	}
	if entry.Context["backend"] != "epoll" {
		t.Fatalf("builder did not set context field: %+v", entry.Context)
	}
}

func TestLogLevelString(t *testing.T) {
	cases := map[LogLevel]string{
		LevelDebug: "DEBUG",
		LevelInfo:  "INFO",
		LevelWarn:  "WARN",
		LevelError: "ERROR",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Fatalf("LogLevel(%d).String() = %q, want %q", level, got, want)
		}
	}
}

func TestTimerAndPollHelpersRespectLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LevelError, &buf)

	LogTimerArmed(l, 1, 10, 0)
	LogTimerFired(l, 1, true)
	LogTimerCanceled(l, 1)
	LogStreamHighWater(l, 2000, 1000)
	if buf.Len() != 0 {
		t.Fatalf("debug/warn helpers should be suppressed at LevelError, got %q", buf.String())
	}

	LogPollError(l, errors.New("epoll_wait failed"), true)
	if !strings.Contains(buf.String(), "epoll_wait failed") {
		t.Fatalf("critical poll error should log at LevelError: %q", buf.String())
	}
}
