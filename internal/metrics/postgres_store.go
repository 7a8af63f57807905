package metrics

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresStore writes ConversionMetric rows to the conversion_metric table.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps db as a metrics Store.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Record inserts metric as a new conversion_metric row.
func (s *PostgresStore) Record(ctx context.Context, metric ConversionMetric) error {
	const query = `
		INSERT INTO conversion_metric
			(id, job_id, identity_hash, input_format, output_format, input_bytes, output_bytes,
			 conversion_options, output_sizes, duration_ms, success, failure_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.db.ExecContext(ctx, query,
		metric.ID,
		metric.JobID,
		metric.IdentityHash,
		metric.InputFormat,
		metric.OutputFormat,
		metric.InputBytes,
		nullableInt(metric.OutputBytes),
		nullableBytes(metric.ConversionOptions),
		pq.Array(metric.OutputSizes),
		metric.Duration.Milliseconds(),
		metric.Success,
		nullableString(metric.FailureReason),
		metric.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversion metric: %w", err)
	}

	return nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

func nullableBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

// Summary is the aggregate conversion_metric rollup the admin stats endpoint
// reads. Pure SQL reads over the durable table; spec.md §4.7 leaves the
// shape of this unspecified beyond "stats".
type Summary struct {
	TotalJobs      int64            `db:"total_jobs" json:"total_jobs"`
	SuccessfulJobs int64            `db:"successful_jobs" json:"successful_jobs"`
	FailedJobs     int64            `db:"failed_jobs" json:"failed_jobs"`
	ByFormat       map[string]int64 `json:"by_format"`
}

// Summarize returns the all-time conversion_metric rollup.
func (s *PostgresStore) Summarize(ctx context.Context) (Summary, error) {
	var row struct {
		TotalJobs      int64 `db:"total_jobs"`
		SuccessfulJobs int64 `db:"successful_jobs"`
		FailedJobs     int64 `db:"failed_jobs"`
	}
	const totalsQuery = `
		SELECT
			count(*) AS total_jobs,
			count(*) FILTER (WHERE success) AS successful_jobs,
			count(*) FILTER (WHERE NOT success) AS failed_jobs
		FROM conversion_metric
	`
	if err := s.db.GetContext(ctx, &row, totalsQuery); err != nil {
		return Summary{}, fmt.Errorf("summarize conversion metrics: %w", err)
	}

	var byFormat []struct {
		Format string `db:"output_format"`
		Count  int64  `db:"count"`
	}
	const byFormatQuery = `SELECT output_format, count(*) AS count FROM conversion_metric GROUP BY output_format`
	if err := s.db.SelectContext(ctx, &byFormat, byFormatQuery); err != nil {
		return Summary{}, fmt.Errorf("summarize conversion metrics by format: %w", err)
	}

	formatCounts := make(map[string]int64, len(byFormat))
	for _, f := range byFormat {
		formatCounts[f.Format] = f.Count
	}

	return Summary{
		TotalJobs:      row.TotalJobs,
		SuccessfulJobs: row.SuccessfulJobs,
		FailedJobs:     row.FailedJobs,
		ByFormat:       formatCounts,
	}, nil
}

// FailureRecord is one failed conversion_metric row.
type FailureRecord struct {
	ID            string `db:"id" json:"id"`
	JobID         string `db:"job_id" json:"job_id"`
	InputFormat   string `db:"input_format" json:"input_format"`
	OutputFormat  string `db:"output_format" json:"output_format"`
	FailureReason string `db:"failure_reason" json:"failure_reason"`
	CreatedAt     string `db:"created_at" json:"created_at"`
}

// ListFailures returns the most recent failed conversions, newest first.
func (s *PostgresStore) ListFailures(ctx context.Context, limit int) ([]FailureRecord, error) {
	const query = `
		SELECT id, job_id, input_format, output_format, coalesce(failure_reason, '') AS failure_reason, created_at
		FROM conversion_metric
		WHERE NOT success
		ORDER BY created_at DESC
		LIMIT $1
	`
	var records []FailureRecord
	if err := s.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("list failed conversion metrics: %w", err)
	}
	return records, nil
}

// DeleteFailures removes every failed conversion_metric row and reports how
// many were deleted.
func (s *PostgresStore) DeleteFailures(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversion_metric WHERE NOT success`)
	if err != nil {
		return 0, fmt.Errorf("delete failed conversion metrics: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read rows affected: %w", err)
	}
	return n, nil
}
