// Package logger builds the zap.Logger used across the core, honoring the
// format/level conventions of internal/config.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger named serviceName. format is "json" or
// "console"; environment "development" starts from zap's development
// config with colorized levels, and a non-empty format still overrides
// its encoding.
func New(serviceName, environment, level, format string) (*zap.Logger, error) {
	var cfg zap.Config

	if environment == "development" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.MessageKey = "message"
		cfg.EncoderConfig.LevelKey = "level"
	}

	if format != "" {
		cfg.Encoding = format
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	}

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return log.Named(serviceName), nil
}
