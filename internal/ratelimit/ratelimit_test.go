package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icon-forge/iconforge/internal/ratelimit"
)

func TestLimiter_CheckAndIncrement_AllowsUnderLimit(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	limiter := ratelimit.New(store, 3, time.Minute)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		result, err := limiter.CheckAndIncrement(ctx, "1.2.3.4", now)
		require.NoError(t, err)
		assert.Equal(t, i, result.TotalHits)
		assert.False(t, result.Blocked)
	}
}

func TestLimiter_CheckAndIncrement_BlocksOverLimit(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	limiter := ratelimit.New(store, 2, time.Minute)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	_, err := limiter.CheckAndIncrement(ctx, "1.2.3.4", now)
	require.NoError(t, err)
	_, err = limiter.CheckAndIncrement(ctx, "1.2.3.4", now)
	require.NoError(t, err)

	result, err := limiter.CheckAndIncrement(ctx, "1.2.3.4", now)
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalHits)
	assert.True(t, result.Blocked)
}

func TestLimiter_CheckAndIncrement_ResetsAfterWindowExpires(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	limiter := ratelimit.New(store, 1, time.Minute)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	result, err := limiter.CheckAndIncrement(ctx, "1.2.3.4", start)
	require.NoError(t, err)
	assert.False(t, result.Blocked)

	after := start.Add(2 * time.Minute)
	result, err = limiter.CheckAndIncrement(ctx, "1.2.3.4", after)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalHits)
	assert.False(t, result.Blocked)
}

func TestLimiter_CheckAndIncrement_SeparateIdentitiesAreIndependent(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	limiter := ratelimit.New(store, 1, time.Minute)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	resultA, err := limiter.CheckAndIncrement(ctx, "1.2.3.4", now)
	require.NoError(t, err)
	assert.False(t, resultA.Blocked)

	resultB, err := limiter.CheckAndIncrement(ctx, "5.6.7.8", now)
	require.NoError(t, err)
	assert.False(t, resultB.Blocked)
}

func TestMemoryStore_Sweep_RemovesExpiredRecords(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	limiter := ratelimit.New(store, 10, time.Minute)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	_, err := limiter.CheckAndIncrement(ctx, "1.2.3.4", start)
	require.NoError(t, err)

	deleted, err := store.Sweep(ctx, start.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestLimiter_DefaultsAppliedForZeroValues(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	limiter := ratelimit.New(store, 0, 0)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	result, err := limiter.CheckAndIncrement(context.Background(), "1.2.3.4", now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalHits)
	assert.False(t, result.Blocked)
}
