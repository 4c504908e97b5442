package main

import "go.uber.org/zap/zapcore"

// levelFromVerbosity maps -v/-vv/-vvv to a zap level, matching the
// teacher's repeated-count verbosity flag (cmd/qntx/main.go's
// "-v, -vv, -vvv" convention) rather than a single --log-level string.
func levelFromVerbosity(count int) zapcore.Level {
	if count <= 0 {
		return zapcore.InfoLevel
	}
	return zapcore.DebugLevel
}
