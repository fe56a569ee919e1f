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

func newTestClient(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewFromClient(client), mr
}

func TestSetGetDel(t *testing.T) {
	rc, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, rc.SetEx(ctx, "corgi:test", "value", time.Minute))
	got, err := rc.Get(ctx, "corgi:test")
	require.NoError(t, err)
	assert.Equal(t, "value", got)

	ttl, err := rc.TTL(ctx, "corgi:test")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	mr.FastForward(2 * time.Minute)
	_, err = rc.Get(ctx, "corgi:test")
	assert.True(t, IsMiss(err))

	require.NoError(t, rc.SetEx(ctx, "corgi:other", "x", time.Minute))
	require.NoError(t, rc.Del(ctx, "corgi:other"))
	_, err = rc.Get(ctx, "corgi:other")
	assert.True(t, IsMiss(err))
}

func TestNewRedisClientPing(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := NewRedisClient(Options{Host: mr.Host(), Port: mr.Port()})
	require.NoError(t, err)
	defer rc.Close()
	assert.NoError(t, rc.Ping(context.Background()))
}

func TestCloseNil(t *testing.T) {
	var rc *RedisClient
	assert.NoError(t, rc.Close())
}
