package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func newTestLocker(t *testing.T, ttl time.Duration) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client, ttl), srv
}

func TestLockerExcludesSecondHolder(t *testing.T) {
	locker, srv := newTestLocker(t, time.Minute)
	ctx := context.Background()
	key := shared.DocumentLockKey(1, 7)

	release, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	require.True(t, srv.Exists(key))

	_, err = locker.Acquire(ctx, key)
	require.ErrorIs(t, err, ErrDocumentBusy)
	require.Equal(t, shared.KindTransient, shared.KindOf(err))

	release(ctx)
	require.False(t, srv.Exists(key))

	release, err = locker.Acquire(ctx, key)
	require.NoError(t, err)
	release(ctx)
}

func TestLockerReleaseKeepsForeignToken(t *testing.T) {
	locker, srv := newTestLocker(t, time.Second)
	ctx := context.Background()
	key := shared.DocumentLockKey(1, 8)

	release, err := locker.Acquire(ctx, key)
	require.NoError(t, err)

	srv.FastForward(2 * time.Second)
	require.False(t, srv.Exists(key))
	second, err := locker.Acquire(ctx, key)
	require.NoError(t, err)

	release(ctx)
	require.True(t, srv.Exists(key))
	second(ctx)
	require.False(t, srv.Exists(key))
}

func TestLockerUnavailableRedisIsTransient(t *testing.T) {
	locker, srv := newTestLocker(t, time.Second)
	srv.Close()

	_, err := locker.Acquire(context.Background(), "ledger:test")
	require.Error(t, err)
	require.ErrorIs(t, err, shared.ErrTransient)
}

func TestNewPingsServer(t *testing.T) {
	srv := miniredis.RunT(t)
	client, err := New(context.Background(), srv.Addr())
	require.NoError(t, err)
	require.NoError(t, client.Close())
}
