package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresStore persists rate limit records in the rate_limit table, relying
// on Postgres's row-level locking for the atomicity CheckAndIncrement requires.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps db as a rate limit Store.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// IncrementOrCreate implements Store using a single atomic upsert: a fresh or
// expired record resets to count=1 with a new window; a live record increments.
func (s *PostgresStore) IncrementOrCreate(
	ctx context.Context, identityHash string, now time.Time, window time.Duration,
) (int, time.Time, error) {
	const query = `
		INSERT INTO rate_limit (identity_hash, count, window_start, expires_at)
		VALUES ($1, 1, $2, $2 + $3::interval)
		ON CONFLICT (identity_hash) DO UPDATE SET
			count = CASE
				WHEN rate_limit.expires_at > $2 THEN rate_limit.count + 1
				ELSE 1
			END,
			window_start = CASE
				WHEN rate_limit.expires_at > $2 THEN rate_limit.window_start
				ELSE $2
			END,
			expires_at = CASE
				WHEN rate_limit.expires_at > $2 THEN rate_limit.expires_at
				ELSE $2 + $3::interval
			END
		RETURNING count, expires_at
	`

	var count int
	var expiresAt time.Time

	windowSeconds := fmt.Sprintf("%d seconds", int64(window.Seconds()))

	row := s.db.QueryRowxContext(ctx, query, identityHash, now.UTC(), windowSeconds)
	if err := row.Scan(&count, &expiresAt); err != nil {
		return 0, time.Time{}, fmt.Errorf("rate limit upsert: %w", err)
	}

	return count, expiresAt, nil
}

// Sweep deletes all rate_limit rows whose window has already expired.
func (s *PostgresStore) Sweep(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit WHERE expires_at < $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("rate limit sweep: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rate limit sweep rows affected: %w", err)
	}

	return deleted, nil
}
