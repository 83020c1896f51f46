package logger

import (
	"strings"

	"github.com/RyanW02/waterledger/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build creates the process logger: JSON in production unless pretty logs are requested, coloured console output
// otherwise.
func Build(cfg config.Config) (*zap.Logger, error) {
	var logCfg zap.Config
	if cfg.Production {
		logCfg = zap.NewProductionConfig()

		if cfg.PrettyLogs {
			logCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
			logCfg.Encoding = "console"
		}
	} else {
		logCfg = zap.NewDevelopmentConfig()
		logCfg.DisableStacktrace = true
		logCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logCfg.Level = zap.NewAtomicLevelAt(ParseLevel(cfg.LogLevel))

	return logCfg.Build()
}

// ParseLevel maps a config log level to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "error":
		return zapcore.ErrorLevel
	case "warn":
		return zapcore.WarnLevel
	case "info":
		return zapcore.InfoLevel
	case "debug":
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
