package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/lock"
)

func newLocker(t *testing.T) (*miniredis.Miniredis, lock.Locker) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, lock.Locker{R: client}
}

func TestTryWithLockReportsHeld(t *testing.T) {
	mr, locker := newLocker(t)
	ctx := context.Background()
	key := lock.RefreshKey(uuid.New(), "ro")

	err := locker.TryWithLock(ctx, key, time.Minute, func(ctx context.Context) error {
		require.True(t, mr.Exists(key))
		inner := locker.TryWithLock(ctx, key, time.Minute, func(context.Context) error { return nil })
		require.ErrorIs(t, inner, lock.ErrHeld)
		return nil
	})
	require.NoError(t, err)
	require.False(t, mr.Exists(key), "lock released after fn returns")
}

func TestLockReleasedOnError(t *testing.T) {
	mr, locker := newLocker(t)
	boom := errors.New("refresh failed")
	err := locker.TryWithLock(context.Background(), "k", time.Minute, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("k"))
}

func TestRefreshKeyIsTenantScoped(t *testing.T) {
	id := uuid.MustParse("5f0c3c1e-8a57-4c55-9f39-0c9d7c1f2a01")
	require.Equal(t, "tenant:5f0c3c1e-8a57-4c55-9f39-0c9d7c1f2a01:lock:taxpool:RO", lock.RefreshKey(id, " ro "))
}

func TestTryWithLockWithoutClient(t *testing.T) {
	err := lock.Locker{}.TryWithLock(context.Background(), "k", time.Second, func(context.Context) error { return nil })
	require.Error(t, err)
}
