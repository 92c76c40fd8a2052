package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/batcher/internal/batch"
	"github.com/vietddude/batcher/internal/core/domain"
	"github.com/vietddude/batcher/internal/infra/storage/memory"
	"github.com/vietddude/batcher/internal/retry"
)

func testConfig() batch.Config {
	return batch.Config{
		Concurrency:     2,
		CheckpointEvery: 10,
		Retry:           retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond},
	}
}

// countingWork records which indices were dispatched.
type countingWork struct {
	mu      sync.Mutex
	indices []int
}

func (w *countingWork) fn(ctx context.Context, item domain.WorkItem) (json.RawMessage, error) {
	w.mu.Lock()
	w.indices = append(w.indices, item.Index)
	w.mu.Unlock()
	return json.RawMessage(fmt.Sprintf(`{"index":%d}`, item.Index)), nil
}

func (w *countingWork) resolve(strategy string) (batch.WorkFunc, error) {
	return w.fn, nil
}

func TestStartRunsToCompletionAndPersists(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.New())
	coord := NewCoordinator(store, testConfig())

	items := make([]domain.WorkItem, 4)
	for i := range items {
		items[i] = domain.WorkItem{URL: fmt.Sprintf("https://example.com/%d", i)}
	}

	w := &countingWork{}
	state, err := coord.Start(ctx, "https://example.com", "analyze", items, w.fn, nil)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !state.IsComplete() {
		t.Error("run not complete")
	}

	stored, err := store.Load(ctx, state.RunID)
	if err != nil {
		t.Fatalf("load after start failed: %v", err)
	}
	if stored.Status != domain.RunStatusCompleted {
		t.Errorf("stored status %s, want completed", stored.Status)
	}
	if stored.Strategy != "analyze" {
		t.Errorf("strategy not persisted: %q", stored.Strategy)
	}
}

func TestResumeUnresolvableStrategy(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.New())
	coord := NewCoordinator(store, testConfig())

	state := testState("odd1", 3, 1)
	state.Strategy = "summarize-v2"
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	resolve := func(strategy string) (batch.WorkFunc, error) {
		return nil, fmt.Errorf("unknown work strategy %q", strategy)
	}
	if _, err := coord.Resume(ctx, "odd1", resolve, nil); err == nil {
		t.Error("expected error for unresolvable strategy")
	}
}

func TestResumeDispatchesOnlyMissingIndices(t *testing.T) {
	// Crash simulation: 5 items, 3 results recorded, next_index 3.
	// Resume must re-dispatch indices 3 and 4 only.
	ctx := context.Background()
	store := NewStore(memory.New())
	coord := NewCoordinator(store, testConfig())

	state := testState("cr5h", 5, 3)
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	w := &countingWork{}
	resumed, err := coord.Resume(ctx, "cr5h", w.resolve, nil)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	if len(w.indices) != 2 {
		t.Fatalf("expected 2 dispatches, got %v", w.indices)
	}
	seen := map[int]bool{}
	for _, i := range w.indices {
		if seen[i] {
			t.Errorf("index %d dispatched twice", i)
		}
		seen[i] = true
	}
	if !seen[3] || !seen[4] {
		t.Errorf("expected indices 3 and 4, got %v", w.indices)
	}

	if len(resumed.Results) != 5 {
		t.Errorf("expected 5 total results, got %d", len(resumed.Results))
	}
	if resumed.Status != domain.RunStatusCompleted {
		t.Errorf("resumed run status %s", resumed.Status)
	}
}

func TestResumeCompletedRunIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.New())
	coord := NewCoordinator(store, testConfig())

	state := testState("d0ne", 3, 3)
	state.MarkCompleted()
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	w := &countingWork{}
	got, err := coord.Resume(ctx, "d0ne", w.resolve, nil)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if len(w.indices) != 0 {
		t.Errorf("work invoked for completed run: %v", w.indices)
	}
	if got.Status != domain.RunStatusCompleted || len(got.Results) != 3 {
		t.Errorf("stored results not returned unchanged: %+v", got)
	}
}

func TestResumeMissingRun(t *testing.T) {
	coord := NewCoordinator(NewStore(memory.New()), testConfig())
	if _, err := coord.Resume(context.Background(), "nope", nil, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResumePreservesExistingResults(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.New())
	coord := NewCoordinator(store, testConfig())

	state := testState("keep", 4, 2)
	// Give the recorded results distinctive payloads.
	state.Results[0] = domain.TaskResult{Index: 0, OK: true, Value: json.RawMessage(`"original-0"`)}
	state.Results[1] = domain.TaskResult{Index: 1, OK: false, Error: "failed terminally"}
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	w := &countingWork{}
	resumed, err := coord.Resume(ctx, "keep", w.resolve, nil)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	if string(resumed.Results[0].Value) != `"original-0"` {
		t.Errorf("existing success overwritten: %s", resumed.Results[0].Value)
	}
	if resumed.Results[1].OK || resumed.Results[1].Error != "failed terminally" {
		t.Error("recorded failure was retried on resume")
	}
	for _, idx := range w.indices {
		if idx < 2 {
			t.Errorf("already-recorded index %d re-dispatched", idx)
		}
	}
}

func TestListResumableOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.New())
	coord := NewCoordinator(store, testConfig())

	a := testState("aaaa", 5, 1)
	_ = store.Save(ctx, a)
	time.Sleep(5 * time.Millisecond)
	b := testState("bbbb", 5, 2)
	_ = store.Save(ctx, b)

	got, err := coord.ListResumable(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 resumable runs, got %d", len(got))
	}
	if got[0].RunID != "bbbb" {
		t.Errorf("expected newest run first, got %s", got[0].RunID)
	}
}
