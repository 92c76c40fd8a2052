// Package checkpoint persists batch run state as JSON blobs and drives
// resume. The store is the only writer to the backend; saves for one
// store instance are serialized so concurrent runs never interleave a
// partial state.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/batcher/internal/core/domain"
	"github.com/vietddude/batcher/internal/infra/storage"
	"github.com/vietddude/batcher/internal/metrics"
)

const keyPrefix = "checkpoint_"

var (
	// ErrNotFound is returned when no checkpoint exists for a run ID.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrCorrupt is returned when a stored checkpoint cannot be decoded.
	// Callers treat it as not-found for resume purposes but surface it so
	// the user can choose to start fresh.
	ErrCorrupt = errors.New("checkpoint is corrupt")
)

// NewRunID produces a fresh opaque run identifier.
func NewRunID() string {
	return uuid.New().String()[:8]
}

func checkpointKey(runID string) string {
	return keyPrefix + runID + ".json"
}

// Summary is the listing view of a stored run.
type Summary struct {
	RunID     string
	SourceURL string
	Completed int
	Total     int
	Status    domain.RunStatus
	UpdatedAt time.Time
}

// Progress renders the completed/total pair for display.
func (s Summary) Progress() string {
	return fmt.Sprintf("%d/%d", s.Completed, s.Total)
}

// Store persists RunState snapshots through a blob backend.
type Store struct {
	backend storage.Backend
	mu      sync.Mutex
	log     *slog.Logger
}

// NewStore creates a checkpoint store over the given backend.
func NewStore(backend storage.Backend) *Store {
	return &Store{
		backend: backend,
		log:     slog.With("component", "checkpoint"),
	}
}

// Save writes a complete snapshot of state, keyed by run ID. Whole-state
// overwrite, last writer wins; the caller always supplies the full
// current RunState.
func (s *Store) Save(ctx context.Context, state *domain.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := s.backend.Put(ctx, checkpointKey(state.RunID), data); err != nil {
		metrics.CheckpointSaves.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to save checkpoint %s: %w", state.RunID, err)
	}
	metrics.CheckpointSaves.WithLabelValues("ok").Inc()
	return nil
}

// Load reads the checkpoint for a run ID.
func (s *Store) Load(ctx context.Context, runID string) (*domain.RunState, error) {
	data, err := s.backend.Get(ctx, checkpointKey(runID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", runID, err)
	}

	var state domain.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, runID, err)
	}
	return &state, nil
}

// ListIncomplete returns summaries for every stored run still in
// progress, newest first. Unreadable checkpoints are skipped with a
// warning rather than failing the whole listing.
func (s *Store) ListIncomplete(ctx context.Context) ([]Summary, error) {
	infos, err := s.backend.List(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	var incomplete []Summary
	for _, info := range infos {
		state, err := s.loadByKey(ctx, info.Key)
		if err != nil {
			s.log.Warn("Skipping unreadable checkpoint", "key", info.Key, "error", err)
			continue
		}
		if state.Status != domain.RunStatusInProgress {
			continue
		}
		incomplete = append(incomplete, Summary{
			RunID:     state.RunID,
			SourceURL: state.SourceURL,
			Completed: len(state.Results),
			Total:     len(state.Items),
			Status:    state.Status,
			UpdatedAt: state.UpdatedAt,
		})
	}

	sort.Slice(incomplete, func(i, j int) bool {
		return incomplete[i].UpdatedAt.After(incomplete[j].UpdatedAt)
	})
	return incomplete, nil
}

// Delete removes the checkpoint for a run ID.
func (s *Store) Delete(ctx context.Context, runID string) error {
	if err := s.backend.Delete(ctx, checkpointKey(runID)); err != nil {
		return fmt.Errorf("failed to delete checkpoint %s: %w", runID, err)
	}
	return nil
}

// PurgeOlderThan deletes terminal (completed or failed) checkpoints whose
// last update is older than maxAge. In-progress runs are never purged
// regardless of age; that would silently destroy resumable work. Returns
// how many were deleted.
func (s *Store) PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	infos, err := s.backend.List(ctx, keyPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	deleted := 0
	for _, info := range infos {
		state, err := s.loadByKey(ctx, info.Key)
		if err != nil {
			s.log.Warn("Skipping unreadable checkpoint during purge", "key", info.Key, "error", err)
			continue
		}
		if state.Status == domain.RunStatusInProgress {
			continue
		}
		if state.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.backend.Delete(ctx, info.Key); err != nil {
			s.log.Warn("Failed to delete old checkpoint", "key", info.Key, "error", err)
			continue
		}
		s.log.Info("Purged old checkpoint", "run_id", state.RunID, "updated_at", state.UpdatedAt)
		deleted++
	}
	return deleted, nil
}

func (s *Store) loadByKey(ctx context.Context, key string) (*domain.RunState, error) {
	runID := strings.TrimSuffix(strings.TrimPrefix(key, keyPrefix), ".json")
	return s.Load(ctx, runID)
}
