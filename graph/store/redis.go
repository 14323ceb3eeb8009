package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of Store[S].
//
// Each thread's history is a Redis list of JSON-encoded checkpoints in
// sequence order. Redis offers no native version check, so the store
// emulates the append contract with optimistic concurrency: Append WATCHes
// the thread key, verifies the list length matches cp.Seq-1, and pushes in
// a MULTI/EXEC transaction. A concurrent writer invalidates the WATCH and
// the append fails with ErrVersionConflict.
//
// Type parameter S must be JSON-serializable.
type RedisStore[S any] struct {
	client *redis.Client
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*redisConfig)

type redisConfig struct {
	prefix string
}

// WithKeyPrefix overrides the default "stategraph:thread:" key prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(c *redisConfig) { c.prefix = prefix }
}

// NewRedisStore creates a checkpoint store backed by an existing Redis
// client. The caller retains ownership of the client.
func NewRedisStore[S any](client *redis.Client, opts ...RedisOption) *RedisStore[S] {
	cfg := redisConfig{prefix: "stategraph:thread:"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &RedisStore[S]{client: client, prefix: cfg.prefix}
}

func (r *RedisStore[S]) key(threadID string) string {
	return r.prefix + threadID
}

// Latest returns the highest-sequence checkpoint for the thread.
func (r *RedisStore[S]) Latest(ctx context.Context, threadID string) (Checkpoint[S], error) {
	var zero Checkpoint[S]

	data, err := r.client.LIndex(ctx, r.key(threadID), -1).Result()
	if errors.Is(err, redis.Nil) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("read latest checkpoint: %w", err)
	}

	var cp Checkpoint[S]
	if err := json.Unmarshal([]byte(data), &cp); err != nil {
		return zero, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return cp, nil
}

// Append writes cp using a WATCH-guarded length check so the version
// contract holds even against concurrent appenders.
func (r *RedisStore[S]) Append(ctx context.Context, threadID string, cp Checkpoint[S]) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	key := r.key(threadID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		length, err := tx.LLen(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("read history length: %w", err)
		}
		if cp.Seq != int(length)+1 {
			return ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, key, data)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		// The key changed between WATCH and EXEC: a racing writer won.
		return ErrVersionConflict
	}
	return err
}

// History returns the thread's checkpoints in ascending sequence order.
func (r *RedisStore[S]) History(ctx context.Context, threadID string) ([]Checkpoint[S], error) {
	items, err := r.client.LRange(ctx, r.key(threadID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	out := make([]Checkpoint[S], 0, len(items))
	for _, item := range items {
		var cp Checkpoint[S]
		if err := json.Unmarshal([]byte(item), &cp); err != nil {
			return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
		}
		out = append(out, cp)
	}
	return out, nil
}
