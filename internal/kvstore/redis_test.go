package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	srv := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), RedisOptions{Addr: srv.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return srv, store
}

func TestRedisSetGet(t *testing.T) {
	ctx := context.Background()
	_, store := newTestRedis(t)

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))

	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", value)

	_, ok, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisSetKeepTTLPreservesExpiry(t *testing.T) {
	ctx := context.Background()
	srv, store := newTestRedis(t)

	require.NoError(t, store.Set(ctx, "k", "v1", time.Minute))
	require.NoError(t, store.Set(ctx, "k", "v2", KeepTTL))

	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", value)
	require.Equal(t, time.Minute, srv.TTL("k"))
}

func TestRedisSetKeepTTLMissingKeyIsNoop(t *testing.T) {
	ctx := context.Background()
	srv, store := newTestRedis(t)

	require.NoError(t, store.Set(ctx, "gone", "v", KeepTTL))

	_, ok, err := store.Get(ctx, "gone")
	require.NoError(t, err)
	require.False(t, ok)

	// Same shape as the read/write-back race: the key expires between a
	// read and its TTL-preserving write-back.
	require.NoError(t, store.Set(ctx, "k", "v1", time.Minute))
	srv.FastForward(2 * time.Minute)
	require.NoError(t, store.Set(ctx, "k", "v2", KeepTTL))

	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisExpireAndPersist(t *testing.T) {
	ctx := context.Background()
	srv, store := newTestRedis(t)

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))

	ok, err := store.Persist(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, srv.TTL("k"))

	// Already-persistent keys still count as found.
	ok, err = store.Persist(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Persist(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = store.Expire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, time.Minute, srv.TTL("k"))
}

func TestRedisDelete(t *testing.T) {
	ctx := context.Background()
	_, store := newTestRedis(t)

	require.NoError(t, store.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, store.Set(ctx, "b", "2", time.Minute))

	n, err := store.Delete(ctx, "a", "b", "missing")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
