package worker

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/batcher/internal/checkpoint"
	"github.com/vietddude/batcher/internal/core/domain"
	"github.com/vietddude/batcher/internal/infra/storage/memory"
)

func TestIntervalClamping(t *testing.T) {
	store := checkpoint.NewStore(memory.New())

	tests := []struct {
		retention time.Duration
		want      time.Duration
	}{
		{7 * 24 * time.Hour, 1 * time.Hour},    // 10% would be 16.8h, clamp to 1h
		{5 * time.Hour, 30 * time.Minute},      // plain 10%
		{5 * time.Minute, 1 * time.Minute},     // 10% would be 30s, clamp up
	}
	for _, tt := range tests {
		s := NewSweeper(store, tt.retention)
		if got := s.Interval(); got != tt.want {
			t.Errorf("Interval(retention=%v) = %v, want %v", tt.retention, got, tt.want)
		}
	}
}

func TestSweepOnce(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewStore(memory.New())

	live := domain.NewRunState("live", "https://example.com", []domain.WorkItem{{}})
	if err := store.Save(ctx, live); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	s := NewSweeper(store, time.Hour)
	deleted, err := s.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("fresh in-progress run purged: %d deletions", deleted)
	}
	if _, err := store.Load(ctx, "live"); err != nil {
		t.Errorf("in-progress checkpoint gone after sweep: %v", err)
	}
}
