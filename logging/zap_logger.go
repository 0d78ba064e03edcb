package logging

import (
	"go.uber.org/zap"

	"github.com/marijnz/bouncingballs-sub001/core"
)

// ZapLogger adapts a zap logger to core.Logger.
type ZapLogger struct {
	z *zap.Logger
}

var _ core.Logger = (*ZapLogger)(nil)

// NewZapLogger wraps z. The caller skip is adjusted so caller fields point at
// the queue code rather than the adapter.
func NewZapLogger(z *zap.Logger) *ZapLogger {
	return &ZapLogger{z: z.WithOptions(zap.AddCallerSkip(1))}
}

// Zap returns the wrapped logger.
func (l *ZapLogger) Zap() *zap.Logger {
	return l.z
}

func (l *ZapLogger) Debug(msg string, fields ...core.Field) { l.z.Debug(msg, toZap(fields)...) }
func (l *ZapLogger) Info(msg string, fields ...core.Field)  { l.z.Info(msg, toZap(fields)...) }
func (l *ZapLogger) Warn(msg string, fields ...core.Field)  { l.z.Warn(msg, toZap(fields)...) }
func (l *ZapLogger) Error(msg string, fields ...core.Field) { l.z.Error(msg, toZap(fields)...) }

// Sync flushes any buffered log entries.
func (l *ZapLogger) Sync() error {
	return l.z.Sync()
}

func toZap(fields []core.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}
