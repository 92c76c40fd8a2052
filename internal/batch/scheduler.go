// Package batch runs the items of one batch over a fixed worker pool,
// collecting results by original index and checkpointing progress at a
// configurable cadence.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/batcher/internal/core/domain"
	"github.com/vietddude/batcher/internal/metrics"
	"github.com/vietddude/batcher/internal/retry"
)

const (
	// DefaultConcurrency is deliberately low: workers block on external
	// API calls, and the bound exists to stay under upstream rate
	// ceilings, not to saturate CPUs.
	DefaultConcurrency = 2

	// DefaultCheckpointEvery saves a checkpoint after every N completed
	// items.
	DefaultCheckpointEvery = 10
)

// ErrCheckpointSave marks a run whose results are complete in memory but
// whose persistence failed at least once. The run output is still valid;
// resumability is what is at risk.
var ErrCheckpointSave = errors.New("checkpoint save failed")

// WorkFunc processes one item. It must be safe to call concurrently for
// distinct items and safe to re-invoke for the same item after a crash.
type WorkFunc func(ctx context.Context, item domain.WorkItem) (json.RawMessage, error)

// ProgressFunc observes completion counts. It runs on the collection hot
// path and must not block.
type ProgressFunc func(completed, total int)

// SaveFunc persists a snapshot of the run state.
type SaveFunc func(ctx context.Context, state *domain.RunState) error

// Config holds scheduler tuning.
type Config struct {
	Concurrency     int
	CheckpointEvery int
	Retry           retry.Config
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = DefaultCheckpointEvery
	}
	return c
}

// Scheduler dispatches batch items to a worker pool.
type Scheduler struct {
	cfg Config
	log *slog.Logger
}

// New creates a Scheduler. Zero config fields fall back to defaults.
func New(cfg Config) *Scheduler {
	return &Scheduler{
		cfg: cfg.withDefaults(),
		log: slog.With("component", "scheduler"),
	}
}

type indexedResult struct {
	result domain.TaskResult
}

// Run processes every item of state that has no recorded result yet and
// drives state to completion. Item failures become Failure results and
// never abort the batch; persistence failures are reported through the
// returned error (wrapped in ErrCheckpointSave) while the in-memory run
// continues. On context cancellation a best-effort checkpoint is saved
// and ctx.Err() is returned so the run can be resumed later.
func (s *Scheduler) Run(
	ctx context.Context,
	state *domain.RunState,
	work WorkFunc,
	progress ProgressFunc,
	save SaveFunc,
) error {
	pending := state.Remaining()
	total := len(state.Items)
	log := s.log.With("run_id", state.RunID)

	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()
	defer metrics.RunProgress.DeleteLabelValues(state.RunID)

	var mu sync.Mutex // guards state

	if len(pending) == 0 {
		mu.Lock()
		state.MarkCompleted()
		snap := state.Clone()
		mu.Unlock()
		return s.trySave(ctx, save, snap, log)
	}

	runner := retry.NewRunner(s.cfg.Retry)
	runner.OnRetry(func(attempt int, class retry.Class, delay time.Duration, err error) {
		metrics.RetryAttempts.WithLabelValues(class.String()).Inc()
		log.Debug("Retrying item",
			"attempt", attempt, "class", class.String(), "delay", delay, "error", err)
	})

	intake := make(chan int)
	results := make(chan indexedResult)

	// Feeder: hands pending indices to workers in order and keeps the
	// intake cursor current for checkpoints.
	go func() {
		defer close(intake)
		for _, idx := range pending {
			select {
			case <-ctx.Done():
				return
			case intake <- idx:
				mu.Lock()
				state.AdvanceNextIndex(idx + 1)
				mu.Unlock()
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < s.cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range intake {
				mu.Lock()
				item := state.Items[idx]
				mu.Unlock()

				res, ok := s.processItem(ctx, runner, item, work)
				if !ok {
					// Cancelled mid-item: leave no result so resume
					// re-dispatches this index.
					return
				}
				select {
				case results <- indexedResult{result: res}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var saveErr error
	for ir := range results {
		mu.Lock()
		if err := state.SetResult(ir.result); err != nil {
			// Workers produce one result per index; a duplicate means a
			// scheduler bug, not a data race worth crashing the run over.
			mu.Unlock()
			log.Error("Dropped duplicate result", "index", ir.result.Index, "error", err)
			continue
		}
		completed := len(state.Results)
		mu.Unlock()

		outcome := "success"
		if !ir.result.OK {
			outcome = "failure"
		}
		metrics.ItemsProcessed.WithLabelValues(outcome).Inc()
		metrics.RunProgress.WithLabelValues(state.RunID).Set(float64(completed) / float64(total))

		if progress != nil {
			progress(completed, total)
		}

		if completed%s.cfg.CheckpointEvery == 0 && completed < total {
			mu.Lock()
			snap := state.Clone()
			mu.Unlock()
			if err := s.trySave(ctx, save, snap, log); err != nil {
				saveErr = err
			}
		}
	}

	if ctx.Err() != nil {
		// Interrupted: persist what we have so a later resume picks up
		// from here, then surface the cancellation.
		mu.Lock()
		snap := state.Clone()
		mu.Unlock()
		if err := s.trySave(context.WithoutCancel(ctx), save, snap, log); err != nil {
			log.Warn("Failed to checkpoint interrupted run", "error", err)
		}
		return ctx.Err()
	}

	mu.Lock()
	state.MarkCompleted()
	snap := state.Clone()
	mu.Unlock()
	if err := s.trySave(ctx, save, snap, log); err != nil {
		saveErr = err
	}

	log.Info("Batch completed",
		"items", total, "failed", snap.FailedCount())
	return saveErr
}

// processItem runs one item under the retry policy and converts terminal
// failures into Failure results. The second return is false when the
// context was cancelled and no result should be recorded.
func (s *Scheduler) processItem(
	ctx context.Context,
	runner *retry.Runner,
	item domain.WorkItem,
	work WorkFunc,
) (domain.TaskResult, bool) {
	start := time.Now()
	var value json.RawMessage

	err := runner.Do(ctx, func(ctx context.Context) error {
		v, err := work(ctx, item)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	metrics.ItemDuration.Observe(time.Since(start).Seconds())

	if ctx.Err() != nil {
		return domain.TaskResult{}, false
	}
	if err != nil {
		s.log.Warn("Item failed terminally",
			"index", item.Index, "url", item.URL, "error", err)
		return domain.Failure(item.Index, err), true
	}
	return domain.Success(item.Index, value), true
}

func (s *Scheduler) trySave(
	ctx context.Context,
	save SaveFunc,
	snap *domain.RunState,
	log *slog.Logger,
) error {
	if save == nil {
		return nil
	}
	if err := save(ctx, snap); err != nil {
		log.Error("Checkpoint save failed; run continues in memory", "error", err)
		return fmt.Errorf("%w: %v", ErrCheckpointSave, err)
	}
	return nil
}
