// Package jobs wires the asynq client/server wrappers to the application's
// task handlers, keeping internal/metrics free of any asynq dependency.
package jobs

import (
	"context"
	"fmt"

	hibikenasynq "github.com/hibiken/asynq"

	"github.com/icon-forge/iconforge/internal/infrastructure/jobs/asynq"
	"github.com/icon-forge/iconforge/internal/infrastructure/jobs/tasks"
	"github.com/icon-forge/iconforge/internal/metrics"
)

// MetricsEnqueuer adapts the asynq client to metrics.Enqueuer, so that every
// conversion's metric, successful or failed, is delivered without blocking
// the request.
type MetricsEnqueuer struct {
	client *asynq.Client
}

// NewMetricsEnqueuer wraps client as a metrics.Enqueuer.
func NewMetricsEnqueuer(client *asynq.Client) *MetricsEnqueuer {
	return &MetricsEnqueuer{client: client}
}

// EnqueueConversionMetric implements metrics.Enqueuer.
func (e *MetricsEnqueuer) EnqueueConversionMetric(ctx context.Context, metric metrics.ConversionMetric) error {
	payload := tasks.MetricsRecordPayload{
		ID:                metric.ID,
		JobID:             metric.JobID,
		IdentityHash:      metric.IdentityHash,
		InputFormat:       metric.InputFormat,
		OutputFormat:      metric.OutputFormat,
		InputBytes:        metric.InputBytes,
		OutputBytes:       metric.OutputBytes,
		ConversionOptions: metric.ConversionOptions,
		OutputSizes:       metric.OutputSizes,
		DurationMS:        metric.Duration.Milliseconds(),
		Success:           metric.Success,
		FailureReason:     metric.FailureReason,
		CreatedAt:         metric.CreatedAt,
	}

	opts := []hibikenasynq.Option{
		hibikenasynq.MaxRetry(tasks.DefaultMaxRetry),
		hibikenasynq.Timeout(tasks.DefaultTimeout),
	}
	if err := e.client.EnqueueTask(ctx, tasks.TypeMetricsRecord, payload, opts...); err != nil {
		return fmt.Errorf("enqueue conversion metric: %w", err)
	}

	return nil
}
