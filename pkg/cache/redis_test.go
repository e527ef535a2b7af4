package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := NewRedisCache(&Options{Backend: BackendRedis, RedisAddr: mr.Addr(), DefaultTTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c, mr
}

func TestRedisCache_SetGet(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRedisCache_DeleteByPattern(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	for _, k := range []string{"solve:a:1", "solve:a:2", "solve:b:1"} {
		require.NoError(t, c.Set(ctx, k, []byte("x"), 0))
	}

	n, err := c.DeleteByPattern(ctx, "solve:a:*")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.True(t, mr.Exists("solve:b:1"))
	assert.False(t, mr.Exists("solve:a:1"))

	require.NoError(t, c.Delete(ctx, "solve:b:1"))
	assert.False(t, mr.Exists("solve:b:1"))
}

func TestRedisCache_PingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisCache(&Options{RedisAddr: addr})
	assert.Error(t, err)
}
