package zapadapter

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger wraps a zap logger into logr. Verbosity V(n) maps to zap level -n, so debug
// messages (V(1)) need zap DebugLevel and trace messages (V(2)) need level -2.
func NewLogger(logger *zap.Logger) logr.Logger {
	return zapr.NewLogger(logger)
}

// NewProduction creates a JSON zap logger enabled up to the given logr verbosity. A negative
// verbosity only lets errors through.
func NewProduction(verbosity int) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(Level(verbosity))
	cfg.Sampling = nil
	return cfg.Build()
}

// Level converts logr verbosity into a zap level.
func Level(verbosity int) zapcore.Level {
	if verbosity < 0 {
		return zapcore.ErrorLevel
	}
	return zapcore.Level(-verbosity)
}
