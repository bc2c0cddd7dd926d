package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/prismgrid/prismgrid/internal/config"
)

// newLogger builds the process logger. The board owns the terminal, so a
// log file keeps the two from interleaving.
func newLogger(cfg config.LoggingConfig, file string) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
		if file == "" {
			zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if file != "" {
		zapCfg.OutputPaths = []string{file}
		zapCfg.ErrorOutputPaths = []string{file}
	}

	return zapCfg.Build()
}
