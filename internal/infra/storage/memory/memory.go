// Package memory provides an in-memory blob backend for tests and
// ephemeral runs.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/batcher/internal/infra/storage"
)

type object struct {
	data    []byte
	modTime time.Time
}

// Backend stores blobs in a map guarded by a RWMutex.
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
	now     func() time.Time
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{
		objects: make(map[string]object),
		now:     time.Now,
	}
}

func (b *Backend) Put(ctx context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	owned := make([]byte, len(data))
	copy(owned, data)
	b.objects[key] = object{data: owned, modTime: b.now()}
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, nil
}

func (b *Backend) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var infos []storage.ObjectInfo
	for key, obj := range b.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, storage.ObjectInfo{Key: key, ModTime: obj.modTime})
		}
	}
	return infos, nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

// SetModTime overrides the recorded modification time of a stored object.
// Test helper for age-based purge scenarios.
func (b *Backend) SetModTime(key string, t time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if obj, ok := b.objects[key]; ok {
		obj.modTime = t
		b.objects[key] = obj
	}
}
