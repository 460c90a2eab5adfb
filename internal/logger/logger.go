package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func New(json bool, debug bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	encoding := "console"

	if json {
		encoding = "json"
	}

	if debug {
		level = zapcore.DebugLevel
	}

	cfg := zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "step",

			LevelKey:    "level",
			EncodeLevel: zapcore.LowercaseLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.RFC3339TimeEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,
		},
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// CronAdapter exposes a zap logger through the cron.Logger interface.
type CronAdapter struct {
	Logger *zap.Logger
}

func (a CronAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.sugar().Debugw(msg, keysAndValues...)
}

func (a CronAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

func (a CronAdapter) sugar() *zap.SugaredLogger {
	return WithFields(a.Logger).Sugar()
}
