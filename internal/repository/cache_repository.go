package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	appErrors "github.com/noah-isme/edu-platform-api/pkg/errors"
)

// invalidateChunk bounds how many keys a single UNLINK carries.
const invalidateChunk = 200

// CacheRepository keeps JSON encoded report payloads in Redis.
// Without a client reads miss and writes are dropped.
type CacheRepository struct {
	rdb *redis.Client
}

// NewCacheRepository wraps a Redis client. client may be nil.
func NewCacheRepository(client *redis.Client) *CacheRepository {
	return &CacheRepository{rdb: client}
}

func (r *CacheRepository) enabled() bool {
	return r != nil && r.rdb != nil
}

// Get decodes the payload stored under key into dest.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if !r.enabled() {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return appErrors.ErrCacheMiss
	case err != nil:
		return fmt.Errorf("read cached report %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode cached report %q: %w", key, err)
	}
	return nil
}

// Set stores value under key until ttl elapses.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !r.enabled() {
		return nil
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode report for cache %q: %w", key, err)
	}
	return r.rdb.Set(ctx, key, encoded, ttl).Err()
}

// DeleteByPattern drops every key matching the glob, e.g. "reports:student:<id>:*".
func (r *CacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	if !r.enabled() {
		return nil
	}

	keys := make([]string, 0, invalidateChunk)
	flush := func() error {
		if len(keys) == 0 {
			return nil
		}
		err := r.rdb.Unlink(ctx, keys...).Err()
		keys = keys[:0]
		return err
	}

	iter := r.rdb.Scan(ctx, 0, pattern, invalidateChunk).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == invalidateChunk {
			if err := flush(); err != nil {
				return fmt.Errorf("invalidate %q: %w", pattern, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan %q: %w", pattern, err)
	}
	if err := flush(); err != nil {
		return fmt.Errorf("invalidate %q: %w", pattern, err)
	}
	return nil
}

// Ping reports Redis reachability. A disabled cache counts as ready.
func (r *CacheRepository) Ping(ctx context.Context) error {
	if !r.enabled() {
		return nil
	}
	return r.rdb.Ping(ctx).Err()
}
