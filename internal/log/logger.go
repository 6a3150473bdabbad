// Package log provides structured logging for dexhook using zap.
package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with dexhook-specific helpers.
type Logger struct {
	*zap.Logger
	onEvent func(category, name, detail string) // event callback for hook activity
}

var (
	// L is the global logger instance.
	L    *Logger
	once sync.Once
)

// Init initializes the global logger with the given configuration.
// Safe to call multiple times; only the first call takes effect.
func Init(debug bool) {
	once.Do(func() {
		L = New(debug)
	})
}

// New creates a new Logger instance.
func New(debug bool) *Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}

	// Shorter timestamps in development
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Fallback to no-op if config fails
		logger = zap.NewNop()
	}

	return &Logger{Logger: logger}
}

// NewNop creates a no-op logger for testing.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Wrap adapts an existing zap logger, e.g. one backed by zaptest/observer.
func Wrap(z *zap.Logger) *Logger {
	return &Logger{Logger: z}
}

// Get returns the global logger, or a no-op logger before Init.
func Get() *Logger {
	if L == nil {
		return nop
	}
	return L
}

var nop = NewNop()

// SetOnEvent sets the callback for hook activity events.
func (l *Logger) SetOnEvent(fn func(category, name, detail string)) {
	l.onEvent = fn
}

// Event reports hook activity and calls the event callback if set.
func (l *Logger) Event(category, name, detail string) {
	if l.onEvent != nil {
		l.onEvent(category, name, detail)
	}

	l.Debug("hook",
		zap.String("cat", category),
		zap.String("name", name),
		zap.String("detail", detail),
	)
}

// HookInstall logs when an intercept is installed on a member.
func (l *Logger) HookInstall(class, member, tag string, priority int) {
	l.Debug("installed",
		Class(class),
		Member(member),
		Tag(tag),
		Priority(priority),
	)
}

// HookRemove logs when an installed intercept is released.
func (l *Logger) HookRemove(class, member, tag string) {
	l.Debug("removed",
		Class(class),
		Member(member),
		Tag(tag),
	)
}

// Advisory logs a non-fatal warning about a hook target.
func (l *Logger) Advisory(class, msg string) {
	l.Warn(msg, Class(class))
}

// Failure logs a failure that no registered channel consumed.
func (l *Logger) Failure(kind, host, class, tag, member string, err error) {
	fields := []zap.Field{
		zap.String("kind", kind),
		zap.String("host", host),
		Class(class),
		Tag(tag),
		zap.Error(err),
	}
	if member != "" {
		fields = append(fields, Member(member))
	}
	l.Error("hook failure", fields...)
}

// WithCategory returns a logger with the category field preset.
func (l *Logger) WithCategory(category string) *Logger {
	return &Logger{
		Logger:  l.Logger.With(zap.String("cat", category)),
		onEvent: l.onEvent,
	}
}

// Field helpers for common patterns.

// Class creates a target class field.
func Class(name string) zap.Field {
	return zap.String("class", name)
}

// Member creates a member signature field.
func Member(sig string) zap.Field {
	return zap.String("member", sig)
}

// Tag creates a hook tag field.
func Tag(tag string) zap.Field {
	return zap.String("tag", tag)
}

// Priority creates a hook priority field.
func Priority(p int) zap.Field {
	return zap.Int("priority", p)
}
