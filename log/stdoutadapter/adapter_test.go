package stdoutadapter

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWriterLogger_ErrorsOnly(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, -1).WithName("runner").WithValues("task", "BER")

	logger.Info("cycle finished")
	logger.V(1).Info("published objects")
	assert.Empty(t, buf.String())

	logger.Error(errors.New("database down"), "unable to store objects")
	out := buf.String()
	assert.Contains(t, out, "unable to store objects")
	assert.Contains(t, out, "database down")
	assert.Contains(t, out, "runner")
	assert.Contains(t, out, `"task"="BER"`)
}

func TestNewWriterLogger_Verbosity(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, 0)

	logger.V(1).Info("debug message")
	assert.Empty(t, buf.String())

	logger.Info("info message")
	assert.Contains(t, buf.String(), "info message")
}
