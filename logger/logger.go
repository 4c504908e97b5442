// Package logger provides structured logging for atlasd.
//
// It wraps go.uber.org/zap, exposing a global SugaredLogger plus thin
// package-level helpers so callers don't have to thread a logger through
// every function signature. Output is JSON in daemon mode (machine
// consumption by supervisors/log shippers) or a minimal human-readable
// console encoder when running attached to a terminal.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is the global structured logger. Safe to use before Initialize:
	// it starts as a no-op sink so early package-init logging never panics.
	Logger *zap.SugaredLogger
	// JSONOutput records which encoder Initialize selected.
	JSONOutput bool
)

func init() {
	Logger = zap.NewNop().Sugar()
}

// Initialize sets up the global logger. jsonOutput selects structured JSON
// (for --json / non-tty invocations); otherwise a minimal console encoder
// is used. level controls the minimum severity emitted.
func Initialize(jsonOutput bool, level zapcore.Level) error {
	JSONOutput = jsonOutput

	var zapLogger *zap.Logger
	var err error

	if jsonOutput {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		zapLogger, err = config.Build()
	} else {
		zapLogger = zap.New(
			zapcore.NewCore(
				newConsoleEncoder(),
				zapcore.AddSync(os.Stdout),
				zap.NewAtomicLevelAt(level),
			),
		)
	}

	if err != nil {
		return err
	}

	Logger = zapLogger.Sugar()
	return nil
}

// Cleanup flushes any buffered log entries. Errors from Sync are often
// ignorable for stdout/stderr (EINVAL on some platforms) but are returned
// so callers can decide.
func Cleanup() error {
	if Logger != nil {
		return Logger.Sync()
	}
	return nil
}

func Info(args ...interface{})  { Logger.Info(args...) }
func Infof(format string, args ...interface{})            { Logger.Infof(format, args...) }
func Infow(msg string, keysAndValues ...interface{})      { Logger.Infow(msg, keysAndValues...) }
func Error(args ...interface{}) { Logger.Error(args...) }
func Errorf(format string, args ...interface{})           { Logger.Errorf(format, args...) }
func Errorw(msg string, keysAndValues ...interface{})     { Logger.Errorw(msg, keysAndValues...) }
func Warn(args ...interface{})  { Logger.Warn(args...) }
func Warnf(format string, args ...interface{})            { Logger.Warnf(format, args...) }
func Warnw(msg string, keysAndValues ...interface{})      { Logger.Warnw(msg, keysAndValues...) }
func Debug(args ...interface{}) { Logger.Debug(args...) }
func Debugf(format string, args ...interface{})           { Logger.Debugf(format, args...) }
func Debugw(msg string, keysAndValues ...interface{})     { Logger.Debugw(msg, keysAndValues...) }
