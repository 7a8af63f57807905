// Package metrics implements the conversion pipeline's durable metrics sink
// (C6): a record(metric) call that is always fire-and-forget from the caller's
// point of view — a failure here is logged and dropped, never surfaced to the
// HTTP response.
package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ConversionMetric describes the outcome of a single conversion job.
type ConversionMetric struct {
	ID           uuid.UUID
	JobID        uuid.UUID
	IdentityHash string
	InputFormat  string
	OutputFormat string
	InputBytes   int
	OutputBytes  int
	// ConversionOptions is the JSON-encoded convertOptions the job ran with
	// (scale, corner radius, background mode, PNG colorspace/depth, ...).
	ConversionOptions []byte
	OutputSizes       []int
	Duration          time.Duration
	Success           bool
	FailureReason     string
	CreatedAt         time.Time
}

// Store persists ConversionMetric records.
type Store interface {
	Record(ctx context.Context, metric ConversionMetric) error
}

// Enqueuer hands a metric off to the asynchronous delivery path (asynq).
type Enqueuer interface {
	EnqueueConversionMetric(ctx context.Context, metric ConversionMetric) error
}

// Recorder is the entry point C7 calls after every conversion attempt. It
// never blocks the HTTP response on the durable write: the metric is handed
// to the enqueuer and any failure to enqueue is logged and dropped.
type Recorder struct {
	enqueuer Enqueuer
}

// NewRecorder constructs a Recorder over the given enqueuer.
func NewRecorder(enqueuer Enqueuer) *Recorder {
	return &Recorder{enqueuer: enqueuer}
}

// Record enqueues metric for durable persistence. Enqueue failures are
// swallowed after being reported to onError, matching the append-only,
// never-fail-the-request contract of the conversion metrics sink.
func (r *Recorder) Record(ctx context.Context, metric ConversionMetric, onError func(error)) {
	if err := r.enqueuer.EnqueueConversionMetric(ctx, metric); err != nil && onError != nil {
		onError(err)
	}
}
