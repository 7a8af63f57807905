package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/icon-forge/iconforge/internal/metrics"
)

const (
	// TypeMetricsRecord is the task type for durably recording a conversion metric.
	TypeMetricsRecord = "metrics:record"

	// DefaultMaxRetry is the default number of retry attempts for metrics recording.
	DefaultMaxRetry = 3

	// DefaultTimeout is the default timeout for metrics recording.
	DefaultTimeout = 30 * time.Second
)

// MetricsRecordPayload contains the data needed to persist a conversion metric.
type MetricsRecordPayload struct {
	ID                uuid.UUID `json:"id"`
	JobID             uuid.UUID `json:"job_id"`
	IdentityHash      string    `json:"identity_hash"`
	InputFormat       string    `json:"input_format"`
	OutputFormat      string    `json:"output_format"`
	InputBytes        int       `json:"input_bytes"`
	OutputBytes       int       `json:"output_bytes,omitempty"`
	ConversionOptions []byte    `json:"conversion_options,omitempty"`
	OutputSizes       []int     `json:"output_sizes"`
	DurationMS        int64     `json:"duration_ms"`
	Success           bool      `json:"success"`
	FailureReason     string    `json:"failure_reason,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// MetricsRecordHandler handles metrics:record tasks, writing each metric to
// the conversion_metric table.
type MetricsRecordHandler struct {
	store  metrics.Store
	logger zerolog.Logger
}

// NewMetricsRecordHandler creates a new metrics recording task handler.
func NewMetricsRecordHandler(store metrics.Store, logger zerolog.Logger) *MetricsRecordHandler {
	return &MetricsRecordHandler{store: store, logger: logger}
}

// ProcessTask implements asynq.Handler. It unmarshals the payload and writes
// it to the durable metrics store.
func (h *MetricsRecordHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload MetricsRecordPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error().
			Err(err).
			Str("task_type", t.Type()).
			Msg("failed to unmarshal metrics record payload")
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	metric := metrics.ConversionMetric{
		ID:                payload.ID,
		JobID:             payload.JobID,
		IdentityHash:      payload.IdentityHash,
		InputFormat:       payload.InputFormat,
		OutputFormat:      payload.OutputFormat,
		InputBytes:        payload.InputBytes,
		OutputBytes:       payload.OutputBytes,
		ConversionOptions: payload.ConversionOptions,
		OutputSizes:       payload.OutputSizes,
		Duration:          time.Duration(payload.DurationMS) * time.Millisecond,
		Success:           payload.Success,
		FailureReason:     payload.FailureReason,
		CreatedAt:         payload.CreatedAt,
	}

	if err := h.store.Record(ctx, metric); err != nil {
		h.logger.Error().
			Err(err).
			Str("job_id", payload.JobID.String()).
			Msg("failed to record conversion metric")
		return fmt.Errorf("record metric %s: %w", payload.JobID, err)
	}

	h.logger.Debug().
		Str("job_id", payload.JobID.String()).
		Str("output_format", payload.OutputFormat).
		Bool("success", payload.Success).
		Msg("conversion metric recorded")

	return nil
}
