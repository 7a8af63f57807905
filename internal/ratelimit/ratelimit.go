// Package ratelimit implements the fixed-window-per-identity limiter described
// by the conversion API's rate limit contract: check_and_increment(identity, now).
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// DefaultWindow is the default length of a rate limit window.
const DefaultWindow = time.Hour

// DefaultLimit is the default number of accepted requests per window.
const DefaultLimit = 60

// Result is the outcome of a CheckAndIncrement call.
type Result struct {
	// TotalHits is the request count for this identity within the current window.
	TotalHits int
	// TimeToExpire is how long until the current window resets.
	TimeToExpire time.Duration
	// Blocked is true when TotalHits exceeds the configured limit.
	Blocked bool
}

// Store is the persistence backend for rate limit records, keyed by the
// truncated hash of an identity (IP address, API key, etc).
type Store interface {
	// IncrementOrCreate performs the atomic increment-or-reset-or-insert
	// described by the limiter's window policy and returns the resulting
	// count and expiry for identityHash.
	IncrementOrCreate(ctx context.Context, identityHash string, now time.Time, window time.Duration) (count int, expiresAt time.Time, err error)
	// Sweep deletes all records whose window has already expired as of now.
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

// Limiter enforces a maximum number of requests per identity per window.
type Limiter struct {
	store Store
	limit int
	window time.Duration
}

// New constructs a Limiter backed by store, with limit requests allowed per window.
func New(store Store, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{store: store, limit: limit, window: window}
}

// CheckAndIncrement records one request for identity at time now and reports
// whether the identity has exceeded its window limit.
func (l *Limiter) CheckAndIncrement(ctx context.Context, identity string, now time.Time) (Result, error) {
	hash := IdentityHash(identity)

	count, expiresAt, err := l.store.IncrementOrCreate(ctx, hash, now, l.window)
	if err != nil {
		return Result{}, err
	}

	ttl := expiresAt.Sub(now)
	if ttl < 0 {
		ttl = 0
	}

	return Result{
		TotalHits:    count,
		TimeToExpire: ttl,
		Blocked:      count > l.limit,
	}, nil
}

// Limit returns the configured maximum requests per window.
func (l *Limiter) Limit() int {
	return l.limit
}

// IdentityHash returns the first 16 hex characters of sha256(identity),
// matching the limiter's normative key derivation. Exported so callers
// outside this package (the conversion metrics recorder) can tag a metric
// with the same identity key the rate limiter used for that request.
func IdentityHash(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])[:16]
}
