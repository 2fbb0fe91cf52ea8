// Package logging is a thin, component-tagged facade over log/slog. It
// mirrors the shape of the teacher's pkg/dialog/logger.go (component name,
// leveled calls, key/value fields) without reimplementing slog's own
// handler/formatter machinery.
package logging

import (
	"context"
	"log/slog"
	"os"
)

// Field is a single structured key/value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

var base = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

// SetOutput replaces the *slog.Logger that every Logger produced by New
// writes through.
func SetOutput(l *slog.Logger) {
	base = l
}

// Logger tags every call with a fixed component name ("sip", "rtp",
// "audio", "ui", "supervisor").
type Logger struct {
	component string
}

// New returns a Logger tagged with component.
func New(component string) Logger {
	return Logger{component: component}
}

func (l Logger) log(level slog.Level, msg string, fields []Field) {
	args := make([]any, 0, 2+2*len(fields))
	args = append(args, "component", l.component)
	for _, f := range fields {
		args = append(args, f.Key, f.Value)
	}
	base.Log(context.Background(), level, msg, args...)
}

func (l Logger) Trace(msg string, fields ...Field) { l.log(slog.LevelDebug-4, msg, fields) }
func (l Logger) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { l.log(slog.LevelInfo, msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { l.log(slog.LevelWarn, msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields) }
