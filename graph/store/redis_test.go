package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisTestStore(t *testing.T) Store[testState] {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore[testState](client)
}

func TestRedisStoreContract(t *testing.T) {
	runStoreContract(t, newRedisTestStore)
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisStore[testState](client, WithKeyPrefix("custom:"))
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "t1", cp(1, StatusRunning)))

	keys, err := client.Keys(ctx, "custom:*").Result()
	require.NoError(t, err)
	assert.Len(t, keys, 1)
	assert.Equal(t, "custom:t1", keys[0])
}

func TestRedisStoreConflictOnConcurrentWrite(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisStore[testState](client)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "t1", cp(1, StatusRunning)))

	// A stale writer using an already-taken sequence must lose.
	err := s.Append(ctx, "t1", cp(1, StatusRunning))
	assert.ErrorIs(t, err, ErrVersionConflict)

	latest, err := s.Latest(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Seq)
}
