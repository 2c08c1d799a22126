package zerologadapter

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog"
)

type Logger struct {
	logger     zerolog.Logger
	skipModule bool
}

type option func(logger *Logger)

// WithoutModule does not add the module field to every message.
func WithoutModule() option {
	return func(l *Logger) {
		l.skipModule = true
	}
}

// NewLogger accepts a zerolog.Logger as input and returns a logr facade as output.
func NewLogger(logger zerolog.Logger, options ...option) logr.Logger {
	l := Logger{
		logger: logger,
	}
	for _, opt := range options {
		opt(&l)
	}
	if !l.skipModule {
		l.logger = l.logger.With().Str("module", "qctask").Logger()
	}
	return zerologr.New(&l.logger)
}

// Level converts logr verbosity into a zerolog level.
func Level(verbosity int) zerolog.Level {
	switch {
	case verbosity < 0:
		return zerolog.ErrorLevel
	case verbosity == 0:
		return zerolog.InfoLevel
	case verbosity == 1:
		return zerolog.DebugLevel
	}
	return zerolog.TraceLevel
}
