// logiface_adapter.go adapts a github.com/joeycumines/logiface logger onto
// the reactor.Logger interface, the same wire-compatibility seam the teacher
// exercises in its own coverage tests: an embedder using a real structured
// logging library (zerolog, logrus, stumpy, or logiface's own generic
// writer) should be able to plug it into a Reactor without reactor knowing
// anything beyond the Logger interface.

package reactor

import (
	"github.com/joeycumines/logiface"
)

// logifaceAdapter implements Logger on top of a generified logiface.Logger.
type logifaceAdapter struct {
	logger *logiface.Logger[logiface.Event]
}

// NewLogifaceAdapter wraps l so it satisfies Logger. l is typically obtained
// via a typed logiface.Logger[E].Logger() call, mirroring how the teacher's
// own tests bridge a concrete Event implementation into the generic form.
func NewLogifaceAdapter(l *logiface.Logger[logiface.Event]) Logger {
	return &logifaceAdapter{logger: l}
}

func logifaceLevel(level LogLevel) logiface.Level {
	switch level {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

func (a *logifaceAdapter) IsEnabled(level LogLevel) bool {
	b := a.logger.Build(logifaceLevel(level))
	enabled := b.Enabled()
	if enabled {
		b.Release()
	}
	return enabled
}

func (a *logifaceAdapter) Log(entry LogEntry) {
	b := a.logger.Build(logifaceLevel(entry.Level))
	if !b.Enabled() {
		return
	}
	b = b.Str("category", entry.Category)
	if entry.ReactorID != 0 {
		b = b.Int64("reactor", entry.ReactorID)
	}
	if entry.FD != 0 {
		b = b.Int64("fd", entry.FD)
	}
	if entry.TimerID != 0 {
		b = b.Int64("timer", entry.TimerID)
	}
	for k, v := range entry.Context {
		b = b.Any(k, v)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	b.Log(entry.Message)
}
