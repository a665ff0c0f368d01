package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	c := NewEmbeddingCache(client, time.Hour)

	_, ok, err := c.Get(ctx, "model:deposit cap")
	require.NoError(t, err)
	assert.False(t, ok)

	vec := []float32{0.6, 0.8, 0}
	require.NoError(t, c.Set(ctx, "model:deposit cap", vec))

	got, ok, err := c.Get(ctx, "model:deposit cap")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, vec, got)
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"model:deposit cap"))

	mr.FastForward(2 * time.Hour)
	_, ok, err = c.Get(ctx, "model:deposit cap")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmbeddingCache_CorruptEntryIsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, mr.Set(keyPrefix+"k", "not a vector"))
	_, ok, err := NewEmbeddingCache(client, 0).Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmbeddingCache_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	_, _, err := NewEmbeddingCache(client, 0).Get(context.Background(), "k")
	assert.Error(t, err)
}
