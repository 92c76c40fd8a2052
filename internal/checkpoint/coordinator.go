package checkpoint

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/batcher/internal/batch"
	"github.com/vietddude/batcher/internal/core/domain"
)

// Coordinator discovers resumable runs and continues them through the
// batch scheduler under their original run ID.
type Coordinator struct {
	store *Store
	sched *batch.Scheduler
	log   *slog.Logger
}

// NewCoordinator creates a Coordinator over a store and scheduler config.
func NewCoordinator(store *Store, cfg batch.Config) *Coordinator {
	return &Coordinator{
		store: store,
		sched: batch.New(cfg),
		log:   slog.With("component", "resume"),
	}
}

// ListResumable returns every incomplete stored run, newest first.
func (c *Coordinator) ListResumable(ctx context.Context) ([]Summary, error) {
	return c.store.ListIncomplete(ctx)
}

// WorkResolver maps a run's recorded strategy back to the work function
// that implements it. Unknown strategies are an error, not a guess.
type WorkResolver func(strategy string) (batch.WorkFunc, error)

// Start begins a fresh run over items and drives it to completion. The
// strategy is recorded on the run state so resume can rebuild the same
// work function.
func (c *Coordinator) Start(
	ctx context.Context,
	sourceURL, strategy string,
	items []domain.WorkItem,
	work batch.WorkFunc,
	progress batch.ProgressFunc,
) (*domain.RunState, error) {
	state := domain.NewRunState(NewRunID(), sourceURL, items)
	state.Strategy = strategy
	c.log.Info("Starting batch run",
		"run_id", state.RunID, "source", sourceURL, "strategy", strategy, "items", len(items))
	err := c.sched.Run(ctx, state, work, progress, c.store.Save)
	return state, err
}

// Resume loads the run stored under runID and re-dispatches exactly the
// indices that have no recorded result. The item list comes from the
// checkpoint, never re-derived from the source. Resuming a completed run
// is a no-op that returns the stored state unchanged.
func (c *Coordinator) Resume(
	ctx context.Context,
	runID string,
	resolve WorkResolver,
	progress batch.ProgressFunc,
) (*domain.RunState, error) {
	state, err := c.store.Load(ctx, runID)
	if err != nil {
		return nil, err
	}

	if state.Status != domain.RunStatusInProgress {
		c.log.Info("Run already finished; nothing to resume",
			"run_id", runID, "status", state.Status)
		return state, nil
	}

	work, err := resolve(state.Strategy)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	remaining := state.Remaining()
	c.log.Info("Resuming batch run",
		"run_id", runID,
		"completed", len(state.Results),
		"remaining", len(remaining),
		"total", len(state.Items))

	if err := c.sched.Run(ctx, state, work, progress, c.store.Save); err != nil {
		return state, fmt.Errorf("resume of run %s: %w", runID, err)
	}
	return state, nil
}
