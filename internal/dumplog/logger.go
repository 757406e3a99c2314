// Package dumplog provides the structured, concurrency-safe logger shared
// by the coordinator and its workers. Dump workers log concurrently from
// their own goroutines, so the underlying core must be safe for concurrent
// use without an external mutex; zap's core provides that.
package dumplog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger that writes human-readable console output to stderr.
// verbose raises the level to debug; otherwise info and above are logged.
func New(verbose bool) *zap.Logger {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(os.Stderr)),
		level,
	)

	return zap.New(core)
}

// Worker returns a child logger tagged with the given worker id, so log
// lines from concurrent workers can be told apart.
func Worker(base *zap.Logger, id int) *zap.Logger {
	return base.With(zap.Int("worker", id))
}

// Nop returns a logger that discards everything, for use in tests.
func Nop() *zap.Logger {
	return zap.NewNop()
}
