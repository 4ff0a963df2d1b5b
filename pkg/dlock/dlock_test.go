package dlock_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cacheguard/core/pkg/dlock"
)

// =============================================================================
// errors
// =============================================================================

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrNilClient", dlock.ErrNilClient, "dlock: nil client"},
		{"ErrEmptyKey", dlock.ErrEmptyKey, "dlock: empty key"},
		{"ErrInvalidLease", dlock.ErrInvalidLease, "dlock: lease must be positive"},
		{"ErrLockExpired", dlock.ErrLockExpired, "dlock: lock expired or stolen before unlock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

// =============================================================================
// NewRedisAdapter construction
// =============================================================================

func TestNewRedisAdapter_NilClient(t *testing.T) {
	_, err := dlock.NewRedisAdapter(nil)
	assert.ErrorIs(t, err, dlock.ErrNilClient)
}

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// =============================================================================
// TryLock / Lock / Unlock round trip
// =============================================================================

func TestRedisAdapter_TryLock_AcquireAndRelease(t *testing.T) {
	_, client := newTestClient(t)
	adapter, err := dlock.NewRedisAdapter(client)
	require.NoError(t, err)

	ctx := context.Background()
	heldCtx, unlock, acquired, err := adapter.TryLock(ctx, "k1", time.Second, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)
	require.NotNil(t, unlock)
	require.NotNil(t, heldCtx)

	require.NoError(t, unlock(ctx))
}

func TestRedisAdapter_TryLock_ContentionFails(t *testing.T) {
	_, client := newTestClient(t)
	adapter, err := dlock.NewRedisAdapter(client, dlock.WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)

	ctx := context.Background()
	_, unlock1, acquired1, err := adapter.TryLock(ctx, "k1", 0, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired1)

	_, _, acquired2, err := adapter.TryLock(ctx, "k1", 30*time.Millisecond, time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired2)

	require.NoError(t, unlock1(ctx))
}

func TestRedisAdapter_TryLock_Reentrant(t *testing.T) {
	_, client := newTestClient(t)
	adapter, err := dlock.NewRedisAdapter(client)
	require.NoError(t, err)

	ctx := context.Background()
	heldCtx, unlock1, acquired1, err := adapter.TryLock(ctx, "k1", 0, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired1)

	// Reacquiring the same key from a derived context must not block or
	// talk to Redis again.
	_, unlock2, acquired2, err := adapter.TryLock(heldCtx, "k1", 0, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired2)

	require.NoError(t, unlock2(ctx))
	require.NoError(t, unlock1(ctx))
}

func TestRedisAdapter_Lock_BlocksUntilReleased(t *testing.T) {
	_, client := newTestClient(t)
	adapter, err := dlock.NewRedisAdapter(client, dlock.WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)

	ctx := context.Background()
	_, unlock1, _, err := adapter.TryLock(ctx, "k1", 0, 200*time.Millisecond)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, unlock2, err := adapter.Lock(ctx, "k1", time.Minute)
		require.NoError(t, err)
		require.NoError(t, unlock2(ctx))
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, unlock1(ctx))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Lock did not acquire after release")
	}
}

func TestRedisAdapter_Unlock_ExpiredLockReturnsErrLockExpired(t *testing.T) {
	mr, client := newTestClient(t)
	adapter, err := dlock.NewRedisAdapter(client)
	require.NoError(t, err)

	ctx := context.Background()
	_, unlock, acquired, err := adapter.TryLock(ctx, "k1", 0, time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	mr.FastForward(2 * time.Second)

	err = unlock(ctx)
	assert.ErrorIs(t, err, dlock.ErrLockExpired)
}

func TestRedisAdapter_InvalidArgs(t *testing.T) {
	_, client := newTestClient(t)
	adapter, err := dlock.NewRedisAdapter(client)
	require.NoError(t, err)

	ctx := context.Background()
	_, _, _, err = adapter.TryLock(ctx, "", time.Second, time.Minute)
	assert.ErrorIs(t, err, dlock.ErrEmptyKey)

	_, _, _, err = adapter.TryLock(ctx, "k1", time.Second, 0)
	assert.ErrorIs(t, err, dlock.ErrInvalidLease)

	_, _, err = adapter.Lock(ctx, "", time.Minute)
	assert.ErrorIs(t, err, dlock.ErrEmptyKey)
}

// =============================================================================
// NewRedsyncAdapter construction
// =============================================================================

func TestNewRedsyncAdapter_NoClients(t *testing.T) {
	_, err := dlock.NewRedsyncAdapter(nil)
	assert.ErrorIs(t, err, dlock.ErrNilClient)
}

func TestNewRedsyncAdapter_AcquireAndRelease(t *testing.T) {
	_, c1 := newTestClient(t)
	_, c2 := newTestClient(t)
	_, c3 := newTestClient(t)

	adapter, err := dlock.NewRedsyncAdapter([]redis.UniversalClient{c1, c2, c3})
	require.NoError(t, err)

	ctx := context.Background()
	_, unlock, acquired, err := adapter.TryLock(ctx, "k1", time.Second, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)
	require.NoError(t, unlock(ctx))
}
