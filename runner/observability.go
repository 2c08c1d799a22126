package runner

import (
	"context"
	"time"
)

const (
	MetricCycleDuration     = "qc_cycle_duration_seconds"
	MetricMessagesProcessed = "qc_messages_processed_total"
	MetricTaskErrors        = "qc_task_errors_total"
	MetricObjectsPublished  = "qc_objects_published_total"

	labelTask   = "task"
	labelHook   = "hook"
	labelStatus = "status"

	statusSuccess = "success"
	statusError   = "error"
)

// MetricsCollector interface for collecting runner metrics. It is kept free of any metrics
// library, see the oteladapters package for an OpenTelemetry implementation.
type MetricsCollector interface {
	RecordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(ctx context.Context, metric string, labels map[string]string)
	AddCounter(ctx context.Context, metric string, value int64, labels map[string]string)
}

func (r *Runner) recordDuration(ctx context.Context, metric string, d time.Duration, labels map[string]string) {
	if r.metrics != nil {
		r.metrics.RecordDuration(ctx, metric, d, r.labels(labels))
	}
}

func (r *Runner) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if r.metrics != nil {
		r.metrics.IncrementCounter(ctx, metric, r.labels(labels))
	}
}

func (r *Runner) addCounter(ctx context.Context, metric string, value int64, labels map[string]string) {
	if r.metrics != nil {
		r.metrics.AddCounter(ctx, metric, value, r.labels(labels))
	}
}

func (r *Runner) labels(extra map[string]string) map[string]string {
	result := map[string]string{labelTask: r.cfg.TaskName}
	for k, v := range extra {
		result[k] = v
	}
	return result
}
