// Package hanlog provides component-scoped structured logging for the han
// core. Every package attaches to the same rails: operations, checks, and
// fail-soft degradations all flow through a Logger so a single log stream
// can reconstruct why a decision was made.
//
// Logging never blocks or fails a caller. Events go to stderr unless
// HAN_LOG_FILE names a rotating log file; if that file cannot be opened or
// written, the event is not written anywhere else and the caller continues.
package hanlog

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a component-scoped wrapper around zerolog.Logger.
type Logger struct {
	component string
	zl        zerolog.Logger
}

var (
	baseOnce   sync.Once
	baseWriter io.Writer
)

// configureBase sets the process-wide rotating writer once, honoring
// HAN_LOG_FILE if set, falling back to stderr.
func configureBase() io.Writer {
	baseOnce.Do(func() {
		if path := os.Getenv("HAN_LOG_FILE"); path != "" {
			baseWriter = &lumberjack.Logger{
				Filename:   path,
				MaxSize:    10, // MB
				MaxBackups: 5,
				MaxAge:     28, // days
				Compress:   true,
			}
			return
		}
		baseWriter = os.Stderr
	})
	return baseWriter
}

// New creates a logger scoped to the named component (e.g. "decision",
// "slotlock", "gc"). Component names appear on every emitted event.
func New(component string) *Logger {
	w := configureBase()
	zl := zerolog.New(w).With().
		Timestamp().
		Str("component", component).
		Logger()
	return &Logger{component: component, zl: zl}
}

// Operation logs an attempted action before its result is known.
func (l *Logger) Operation(op string, fields map[string]any) {
	ev := l.zl.Info().Str("event", "operation").Str("op", op)
	addFields(ev, fields)
	ev.Msg(op)
}

// Success logs a completed, successful action.
func (l *Logger) Success(event string, fields map[string]any) {
	ev := l.zl.Info().Str("event", event).Bool("success", true)
	addFields(ev, fields)
	ev.Msg(event)
}

// Failure logs a completed, unsuccessful action with a reason.
func (l *Logger) Failure(event, reason string, fields map[string]any) {
	ev := l.zl.Warn().Str("event", event).Bool("success", false).Str("reason", reason)
	addFields(ev, fields)
	ev.Msg(event)
}

// Error logs an unexpected error.
func (l *Logger) Error(event string, err error, fields map[string]any) {
	ev := l.zl.Error().Str("event", event).Err(err)
	addFields(ev, fields)
	ev.Msg(event)
}

// Debug logs internal-state detail, suppressed unless HAN_LOG_DEBUG=1.
func (l *Logger) Debug(event string, fields map[string]any) {
	ev := l.zl.Debug().Str("event", event)
	addFields(ev, fields)
	ev.Msg(event)
}

func addFields(ev *zerolog.Event, fields map[string]any) {
	for k, v := range fields {
		ev.Interface(k, v)
	}
}

// Degrade logs err at debug level (a fail-soft call site, per spec.md §7)
// and returns fallback unconditionally. It exists so every "treat as cache
// miss" / "allow execution but don't record" site reads the same way and
// is greppable.
func Degrade[T any](l *Logger, event string, err error, fallback T) T {
	l.Debug(event, map[string]any{"degraded": true, "error": err.Error()})
	return fallback
}

func init() {
	if os.Getenv("HAN_LOG_DEBUG") != "1" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
