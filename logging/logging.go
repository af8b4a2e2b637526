// Package logging provides the structured logger used throughout the
// motion-control core.
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a logging severity, serializable to its lowercase string form.
type Level int

// Severities, ordered from most to least verbose.
const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "debug"
	case INFO:
		return "info"
	case WARN:
		return "warn"
	case ERROR:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger is the structured logging interface used by every component in
// this module. Implementations must be safe for concurrent use; the cyclic
// executor logs from its real-time thread while other components log from
// their own goroutines.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	// Sub returns a child logger namespaced under name, the way the
	// teacher's logging package scopes a sub-logger per resource.
	Sub(name string) Logger
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger builds a production-style console logger at the given minimum
// level, named for the top-level component emitting through it (e.g.
// "executor", "fieldbus").
func NewLogger(name string, level Level) Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.Lock(zapcore.AddSync(zapWriter{})),
		level.zapLevel(),
	)
	l := zap.New(core).Named(name)
	return &zapLogger{sugar: l.Sugar()}
}

// NewTestLogger builds a logger that writes through t.Log, mirroring the
// teacher's logging.NewTestLogger(t) helper used pervasively in _test.go
// files across the pack.
func NewTestLogger(t testing.TB) Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(testWriter{t: t}),
		zapcore.DebugLevel,
	)
	return &zapLogger{sugar: zap.New(core).Sugar()}
}

func (z *zapLogger) Debugw(msg string, kv ...interface{}) { z.sugar.Debugw(msg, kv...) }
func (z *zapLogger) Infow(msg string, kv ...interface{})  { z.sugar.Infow(msg, kv...) }
func (z *zapLogger) Warnw(msg string, kv ...interface{})  { z.sugar.Warnw(msg, kv...) }
func (z *zapLogger) Errorw(msg string, kv ...interface{}) { z.sugar.Errorw(msg, kv...) }

func (z *zapLogger) Sub(name string) Logger {
	return &zapLogger{sugar: z.sugar.Named(name)}
}
