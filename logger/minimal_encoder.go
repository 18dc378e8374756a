package logger

import (
	"go.uber.org/zap/zapcore"
)

// newMinimalEncoder returns a console encoder tuned for calm terminal output:
// short timestamps, lowercase levels, caller suppressed. The JSON path uses
// zap's production encoder untouched; this encoder only serves interactive
// sessions.
func newMinimalEncoder() zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    minimalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	return zapcore.NewConsoleEncoder(cfg)
}

// minimalLevelEncoder renders levels as fixed-width lowercase tags so fields
// line up across entries.
func minimalLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch l {
	case zapcore.DebugLevel:
		enc.AppendString("dbg ")
	case zapcore.InfoLevel:
		enc.AppendString("info")
	case zapcore.WarnLevel:
		enc.AppendString("warn")
	case zapcore.ErrorLevel:
		enc.AppendString("err ")
	default:
		enc.AppendString(l.String())
	}
}
