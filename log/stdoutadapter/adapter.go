package stdoutadapter

import (
	"io"
	stdlog "log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// NewLogger returns a plain text logger writing to standard output. Verbosity is a global
// setting of stdr, a negative verbosity keeps only errors.
func NewLogger(verbosity int) logr.Logger {
	return NewWriterLogger(os.Stdout, verbosity)
}

// NewWriterLogger is NewLogger writing to w.
func NewWriterLogger(w io.Writer, verbosity int) logr.Logger {
	if verbosity < 0 {
		stdr.SetVerbosity(0)
		logger := stdr.NewWithOptions(stdlog.New(w, "", stdlog.LstdFlags), stdr.Options{LogCaller: stdr.None})
		return logr.New(errorsOnly{logger.GetSink()})
	}
	stdr.SetVerbosity(verbosity)
	return stdr.NewWithOptions(stdlog.New(w, "", stdlog.LstdFlags), stdr.Options{LogCaller: stdr.None})
}

// errorsOnly drops info messages of every verbosity.
type errorsOnly struct {
	logr.LogSink
}

func (errorsOnly) Enabled(int) bool {
	return false
}

func (s errorsOnly) WithValues(keysAndValues ...interface{}) logr.LogSink {
	return errorsOnly{s.LogSink.WithValues(keysAndValues...)}
}

func (s errorsOnly) WithName(name string) logr.LogSink {
	return errorsOnly{s.LogSink.WithName(name)}
}
