// Package redis provides a blob backend on Redis. Object bytes live in
// plain keys; a sorted set indexes keys by modification time so listing
// does not scan the keyspace.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/batcher/internal/infra/storage"
)

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
}

// Backend implements storage.Backend over a Redis instance.
type Backend struct {
	rdb    *redis.Client
	prefix string
}

// New connects to Redis and verifies the connection.
func New(cfg Config) (*Backend, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "batcher"
	}
	return &Backend{rdb: rdb, prefix: prefix}, nil
}

// Close closes the Redis connection.
func (b *Backend) Close() error {
	return b.rdb.Close()
}

func (b *Backend) dataKey(key string) string {
	return fmt.Sprintf("%s:obj:%s", b.prefix, key)
}

func (b *Backend) indexKey() string {
	return fmt.Sprintf("%s:objects", b.prefix)
}

func (b *Backend) Put(ctx context.Context, key string, data []byte) error {
	pipe := b.rdb.TxPipeline()
	pipe.Set(ctx, b.dataKey(key), data, 0)
	pipe.ZAdd(ctx, b.indexKey(), redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: key,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store object: %w", err)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.rdb.Get(ctx, b.dataKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return data, nil
}

func (b *Backend) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	members, err := b.rdb.ZRangeWithScores(ctx, b.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	var infos []storage.ObjectInfo
	for _, m := range members {
		key, ok := m.Member.(string)
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		infos = append(infos, storage.ObjectInfo{
			Key:     key,
			ModTime: time.Unix(int64(m.Score), 0),
		})
	}
	return infos, nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	pipe := b.rdb.TxPipeline()
	pipe.Del(ctx, b.dataKey(key))
	pipe.ZRem(ctx, b.indexKey(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
