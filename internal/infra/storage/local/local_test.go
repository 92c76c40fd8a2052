package local

import (
	"context"
	"errors"
	"testing"

	"github.com/vietddude/batcher/internal/infra/storage"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	return b
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	if err := b.Put(ctx, "checkpoint_ab12.json", []byte(`{"run_id":"ab12"}`)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	data, err := b.Get(ctx, "checkpoint_ab12.json")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(data) != `{"run_id":"ab12"}` {
		t.Errorf("unexpected data: %s", data)
	}
}

func TestGetMissing(t *testing.T) {
	b := newTestBackend(t)
	if _, err := b.Get(context.Background(), "checkpoint_missing.json"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListPrefix(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	_ = b.Put(ctx, "checkpoint_a.json", []byte("a"))
	_ = b.Put(ctx, "checkpoint_b.json", []byte("b"))
	_ = b.Put(ctx, "results_a.json", []byte("r"))

	infos, err := b.List(ctx, "checkpoint_")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(infos) != 2 {
		t.Errorf("expected 2 objects, got %d", len(infos))
	}
}

func TestDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	_ = b.Put(ctx, "checkpoint_a.json", []byte("a"))

	if err := b.Delete(ctx, "checkpoint_a.json"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := b.Delete(ctx, "checkpoint_a.json"); err != nil {
		t.Errorf("second delete errored: %v", err)
	}
}

func TestRejectsPathEscapes(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	for _, key := range []string{"../evil", "a/b", ""} {
		if err := b.Put(ctx, key, []byte("x")); err == nil {
			t.Errorf("key %q accepted", key)
		}
	}
}
