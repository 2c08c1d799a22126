// Package log builds the logr.Logger used across qctask from configuration.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/rs/zerolog"

	"github.com/lzap/qctask/log/nopadapter"
	"github.com/lzap/qctask/log/stdoutadapter"
	"github.com/lzap/qctask/log/zapadapter"
	"github.com/lzap/qctask/log/zerologadapter"
)

const (
	BackendStdout  = "stdout"
	BackendZap     = "zap"
	BackendZerolog = "zerolog"
	BackendNop     = "nop"
)

// Config holds the logging configuration.
type Config struct {
	Backend string `yaml:"backend"`
	Level   string `yaml:"level"`

	// Output is used by the stdout and zerolog backends, defaults to standard output.
	Output io.Writer `yaml:"-"`
}

// Verbosity converts a level name into logr verbosity: error is -1, info 0, debug 1 and
// trace 2. Unknown names fall back to info.
func Verbosity(level string) int {
	switch strings.ToLower(level) {
	case "error":
		return -1
	case "debug":
		return 1
	case "trace":
		return 2
	default:
		return 0
	}
}

// New creates a logger for the configured backend.
func New(cfg Config) (logr.Logger, error) {
	v := Verbosity(cfg.Level)
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	switch strings.ToLower(cfg.Backend) {
	case "", BackendStdout:
		return stdoutadapter.NewWriterLogger(out, v), nil
	case BackendZap:
		zl, err := zapadapter.NewProduction(v)
		if err != nil {
			return logr.Discard(), fmt.Errorf("unable to build zap logger: %w", err)
		}
		return zapadapter.NewLogger(zl), nil
	case BackendZerolog:
		zl := zerolog.New(out).Level(zerologadapter.Level(v)).With().Timestamp().Logger()
		return zerologadapter.NewLogger(zl), nil
	case BackendNop:
		return nopadapter.NewLogger(), nil
	}
	return logr.Discard(), fmt.Errorf("unknown log backend %q", cfg.Backend)
}
