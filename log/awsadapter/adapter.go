package awsadapter

import (
	"fmt"

	"github.com/aws/smithy-go/logging"
	"github.com/go-logr/logr"
)

type awsAdapter struct {
	logr.Logger
}

// NewLogger bridges AWS SDK logging into logr. SDK debug output goes to V(1).
func NewLogger(logger logr.Logger) logging.Logger {
	return &awsAdapter{Logger: logger.WithName("aws")}
}

func (a *awsAdapter) Logf(classification logging.Classification, format string, msg ...interface{}) {
	switch classification {
	case logging.Warn:
		a.Logger.Info(fmt.Sprintf(format, msg...), "classification", string(classification))
	default:
		a.Logger.V(1).Info(fmt.Sprintf(format, msg...))
	}
}
