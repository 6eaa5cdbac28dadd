// Package cache holds the Redis-backed cart store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"storefront/internal/repositories"

	"github.com/redis/go-redis/v9"
)

const defaultCartTTL = 30 * 24 * time.Hour

// RedisCartRepository keeps each cart in a hash under cart:<id> with fields
// payload, version and updated. Every save refreshes the TTL.
type RedisCartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCartRepository(client *redis.Client, ttl time.Duration) *RedisCartRepository {
	if ttl <= 0 {
		ttl = defaultCartTTL
	}
	return &RedisCartRepository{client: client, ttl: ttl}
}

func (r *RedisCartRepository) Load(ctx context.Context, id string) (*repositories.CartBlob, error) {
	vals, err := r.client.HGetAll(ctx, cacheKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("cart %s: %w", id, repositories.ErrNotFound)
	}
	version, err := strconv.ParseInt(vals["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cart %s has bad version %q: %w", id, vals["version"], err)
	}
	blob := &repositories.CartBlob{Payload: []byte(vals["payload"]), Version: version}
	if unix, err := strconv.ParseInt(vals["updated"], 10, 64); err == nil {
		blob.UpdatedAt = time.Unix(unix, 0).UTC()
	}
	return blob, nil
}

// Save uses WATCH/MULTI so a concurrent writer on another instance aborts the
// transaction instead of overwriting.
func (r *RedisCartRepository) Save(ctx context.Context, id string, payload []byte, expected int64) (int64, error) {
	key := cacheKey(id)
	next := expected + 1

	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, "version").Int64()
		if errors.Is(err, redis.Nil) {
			current = 0
		} else if err != nil {
			return fmt.Errorf("redis hget failed: %w", err)
		}
		if current != expected {
			return fmt.Errorf("cart %s at version %d: %w", id, expected, repositories.ErrVersionConflict)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"payload", string(payload),
				"version", next,
				"updated", time.Now().Unix(),
			)
			pipe.Expire(ctx, key, r.ttl)
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return 0, fmt.Errorf("cart %s changed concurrently: %w", id, repositories.ErrVersionConflict)
	}
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (r *RedisCartRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(id string) string {
	return fmt.Sprintf("cart:%s", id)
}
