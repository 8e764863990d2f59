package lock

import (
	"context"
	"testing"
	"time"

	"couponhub/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestWalletLock_Exclusive(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	owner := model.MerchantOwner(7)

	a := NewWalletLock(client, owner, "req-a")
	b := NewWalletLock(client, owner, "req-b")
	assert.Equal(t, "wallet:lock:merchant:7", a.Key())

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// b must not release a's lock
	require.NoError(t, b.Unlock(ctx))
	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Unlock(ctx))
	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWalletLock_OwnersIndependent(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	ok, err := NewWalletLock(client, model.MerchantOwner(1), "x").TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewWalletLock(client, model.UserOwner(1), "y").TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_GivesUp(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	owner := model.MerchantOwner(3)

	require.NoError(t, NewWalletLock(client, owner, "holder").Lock(ctx, time.Millisecond, 1))
	err := NewWalletLock(client, owner, "waiter").Lock(ctx, time.Millisecond, 3)
	assert.ErrorIs(t, err, ErrLockFailed)
}
