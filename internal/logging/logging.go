// Package logging builds the zap loggers used across the obfuscator.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/whit3rabbit/jsmixer/internal/config"
)

// New returns a logger matching the configuration: a no-op logger when
// silent, a debug-level development logger in debug mode, and an info-level
// console logger otherwise. Output goes to stderr so stdout stays usable for
// obfuscated code.
func New(cfg *config.Config) (*zap.Logger, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if cfg.Silent {
		return zap.NewNop(), nil
	}

	var zcfg zap.Config
	if cfg.DebugMode {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zcfg.Sampling = nil
	}
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.DisableStacktrace = !cfg.DebugMode

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Named("jsmixer"), nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
