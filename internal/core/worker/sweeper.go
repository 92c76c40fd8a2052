package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/batcher/internal/checkpoint"
)

// Sweeper deletes old completed checkpoints based on retention policy.
// In-progress checkpoints are left alone no matter how old; purging them
// would destroy resumable work.
type Sweeper struct {
	store     *checkpoint.Store
	retention time.Duration
	log       *slog.Logger
}

// NewSweeper creates a Sweeper. A retention of 0 disables sweeping.
func NewSweeper(store *checkpoint.Store, retention time.Duration) *Sweeper {
	return &Sweeper{
		store:     store,
		retention: retention,
		log:       slog.With("component", "sweeper"),
	}
}

// Interval returns how often the sweeper wakes: 10% of the retention
// window, clamped between one minute and one hour.
func (s *Sweeper) Interval() time.Duration {
	interval := min(s.retention/10, 1*time.Hour)
	return max(interval, 1*time.Minute)
}

// Start runs the sweep loop until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	if s.retention <= 0 {
		return // Retention disabled
	}

	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()

	// Initial sweep
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// SweepOnce performs a single purge pass, for one-shot CLI invocations.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	return s.store.PurgeOlderThan(ctx, s.retention)
}

func (s *Sweeper) sweep(ctx context.Context) {
	deleted, err := s.store.PurgeOlderThan(ctx, s.retention)
	if err != nil {
		s.log.Error("Failed to purge old checkpoints", "error", err)
		return
	}
	if deleted > 0 {
		s.log.Info("Purged old checkpoints", "count", deleted)
	}
}
