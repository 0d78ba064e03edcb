package core

import (
	"fmt"
	"io"
	"log"
	"strings"
)

// Logger interface for structured logging
// See the logging package for a zap-backed implementation.
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Warn logs a warning message with optional fields
	Warn(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Level is the severity of a log entry.
type Level int8

const (
	LevelDebug Level = iota - 1
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return fmt.Sprintf("LEVEL(%d)", int8(l))
}

// DefaultLogger writes entries at or above its minimum level through a
// standard library logger. Per-group Debug entries are dropped unless the
// level is LevelDebug.
type DefaultLogger struct {
	level Level
	out   *log.Logger
}

// NewDefaultLogger returns a DefaultLogger at LevelInfo on log.Default().
func NewDefaultLogger() *DefaultLogger {
	return NewDefaultLoggerAt(LevelInfo, nil)
}

// NewDefaultLoggerAt returns a DefaultLogger that drops entries below level
// and writes to w. A nil w writes through log.Default().
func NewDefaultLoggerAt(level Level, w io.Writer) *DefaultLogger {
	out := log.Default()
	if w != nil {
		out = log.New(w, "", log.LstdFlags)
	}
	return &DefaultLogger{level: level, out: out}
}

func (l *DefaultLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields) }
func (l *DefaultLogger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields) }
func (l *DefaultLogger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields) }
func (l *DefaultLogger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields) }

func (l *DefaultLogger) log(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", level, msg)
	for i, f := range fields {
		if i == 0 {
			b.WriteString(" {")
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", f.Key, f.Value)
	}
	if len(fields) > 0 {
		b.WriteString("}")
	}
	l.out.Println(b.String())
}

// NoOpLogger is a logger that discards all log messages
// Useful for tests or when logging is not desired
type NoOpLogger struct{}

// NewNoOpLogger creates a new NoOpLogger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(msg string, fields ...Field) {}
func (l *NoOpLogger) Info(msg string, fields ...Field)  {}
func (l *NoOpLogger) Warn(msg string, fields ...Field)  {}
func (l *NoOpLogger) Error(msg string, fields ...Field) {}
