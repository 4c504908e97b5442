package logger

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// newConsoleEncoder returns a calm, minimal human-readable encoder: a short
// time, the level, the message, then structured fields tab-separated. It
// deliberately skips zap's default caller/stacktrace noise for console use;
// JSON mode (see Initialize) carries full fidelity for machine consumers.
func newConsoleEncoder() zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     consoleTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	return zapcore.NewConsoleEncoder(cfg)
}

func consoleTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("15:04:05.000"))
}
