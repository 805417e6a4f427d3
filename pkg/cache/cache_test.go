package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopStoreAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	var s Store = NoopStore{}

	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2, time.Minute)

	require.NoError(t, s.Set(ctx, "a", []byte("1")))
	require.NoError(t, s.Set(ctx, "b", []byte("2")))

	v, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	// 超出容量时淘汰最久未使用的 b
	require.NoError(t, s.Set(ctx, "c", []byte("3")))
	_, err = s.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 2, s.Len())

	require.NoError(t, s.Delete(ctx, "a", "c"))
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10, 20*time.Millisecond)

	require.NoError(t, s.Set(ctx, "a", []byte("1")))
	time.Sleep(60 * time.Millisecond)

	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client, "test", ttl)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t, time.Minute)

	require.NoError(t, s.Ping(ctx))

	_, err := s.Get(ctx, "perm:1:2")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, s.Set(ctx, "perm:1:2", []byte(`{"x":1}`)))
	assert.True(t, mr.Exists("test:cache:perm:1:2"))

	v, err := s.Get(ctx, "perm:1:2")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(v))

	require.NoError(t, s.Delete(ctx, "perm:1:2", "missing"))
	assert.False(t, mr.Exists("test:cache:perm:1:2"))
	require.NoError(t, s.Delete(ctx))
}

func TestRedisStoreTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t, 30*time.Second)

	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	assert.Equal(t, 30*time.Second, mr.TTL("test:cache:k"))

	mr.FastForward(31 * time.Second)
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t, time.Minute)
	mr.Close()

	_, err := s.Get(ctx, "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
