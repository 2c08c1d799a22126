package awsadapter

import (
	"testing"

	"github.com/aws/smithy-go/logging"
	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
)

func TestLogf(t *testing.T) {
	var lines []string
	logger := funcr.New(func(prefix, args string) {
		lines = append(lines, prefix+" "+args)
	}, funcr.Options{Verbosity: 0})

	a := NewLogger(logger)
	a.Logf(logging.Warn, "retrying %s after %d attempts", "SendMessageBatch", 2)
	a.Logf(logging.Debug, "request %s", "dump")

	if assert.Len(t, lines, 1) {
		assert.Contains(t, lines[0], "retrying SendMessageBatch after 2 attempts")
		assert.Contains(t, lines[0], "aws")
	}
}
