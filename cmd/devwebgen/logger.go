package main

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds a development logger when verbose, otherwise a
// production logger that only reports warnings and errors so the summary
// stays readable.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func syncLogger(log *zap.Logger) {
	// stderr sync fails with EINVAL on some terminals
	if err := log.Sync(); err != nil && !strings.Contains(err.Error(), "invalid argument") {
		log.Debug("logger sync", zap.Error(err))
	}
}
