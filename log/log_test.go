package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerbosity(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"error", -1},
		{"info", 0},
		{"INFO", 0},
		{"debug", 1},
		{"trace", 2},
		{"unknown", 0}, // default fallback
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Verbosity(c.in), "Verbosity(%q)", c.in)
	}
}

func TestNew_Backends(t *testing.T) {
	for _, backend := range []string{"", BackendStdout, BackendZap, BackendZerolog, BackendNop} {
		t.Run(backend, func(t *testing.T) {
			_, err := New(Config{Backend: backend, Level: "info", Output: &bytes.Buffer{}})
			assert.NoError(t, err)
		})
	}

	_, err := New(Config{Backend: "syslog"})
	assert.Error(t, err)
}

func TestNew_ZerologLevels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Backend: BackendZerolog, Level: "info", Output: &buf})
	require.NoError(t, err)

	logger.Info("visible", "key", "value")
	logger.V(1).Info("hidden debug")
	logger.Error(errors.New("boom"), "failure")

	out := buf.String()
	assert.Contains(t, out, `"message":"visible"`)
	assert.Contains(t, out, `"key":"value"`)
	assert.Contains(t, out, `"module":"qctask"`)
	assert.Contains(t, out, `"message":"failure"`)
	assert.NotContains(t, out, "hidden debug")
}

func TestNew_ErrorLevelSuppressesInfo(t *testing.T) {
	for _, backend := range []string{BackendStdout, BackendZerolog} {
		t.Run(backend, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := New(Config{Backend: backend, Level: "error", Output: &buf})
			require.NoError(t, err)

			logger.Info("starting QC task")
			assert.Empty(t, buf.String())

			logger.Error(errors.New("boom"), "QC task failed")
			assert.Contains(t, buf.String(), "QC task failed")
		})
	}
}
