package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSweepInterval is how often the background sweeper runs.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically deletes expired rate limit records. Sweep failures are
// logged and never propagated, matching the store's best-effort health-check
// pattern elsewhere in the application.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   zerolog.Logger
}

// NewSweeper constructs a Sweeper over store, running every interval (or
// DefaultSweepInterval if interval <= 0).
func NewSweeper(store Store, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run blocks, sweeping on a ticker until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			deleted, err := s.store.Sweep(ctx, now)
			if err != nil {
				s.logger.Warn().Err(err).Msg("rate limit sweep failed")
				continue
			}
			if deleted > 0 {
				s.logger.Debug().Int64("deleted", deleted).Msg("rate limit sweep completed")
			}
		}
	}
}
