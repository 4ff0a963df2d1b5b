package locallock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// cron's internal scheduler goroutine and expirable.LRU's TTL sweep
	// goroutine both exit asynchronously after Close/Stop; give them a
	// moment before goleak's final snapshot.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("time.Sleep"))
}

// newForTest creates a Registry, failing the test on error.
func newForTest(tb testing.TB, opts ...Option) *Registry {
	tb.Helper()
	r, err := New(opts...)
	require.NoError(tb, err)
	tb.Cleanup(r.Close)
	return r
}

func TestObtain_EmptyKey(t *testing.T) {
	r := newForTest(t)
	_, _, err := r.Obtain(context.Background(), "c1", "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestObtain_NilContext(t *testing.T) {
	r := newForTest(t)
	_, _, err := r.Obtain(nil, "c1", "k1") //nolint:staticcheck
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestObtain_AcquireAndUnlock(t *testing.T) {
	r := newForTest(t)

	heldCtx, unlock, err := r.Obtain(context.Background(), "c1", "k1")
	require.NoError(t, err)
	require.NotNil(t, heldCtx)
	require.NotNil(t, unlock)

	require.NoError(t, unlock(context.Background()))
}

func TestObtain_UnlockIdempotent(t *testing.T) {
	r := newForTest(t)

	_, unlock, err := r.Obtain(context.Background(), "c1", "k1")
	require.NoError(t, err)

	assert.NoError(t, unlock(context.Background()))
	assert.ErrorIs(t, unlock(context.Background()), ErrNotLocked)
}

func TestObtain_Reentrant(t *testing.T) {
	r := newForTest(t)

	heldCtx, unlock1, err := r.Obtain(context.Background(), "c1", "k1")
	require.NoError(t, err)

	// Same identity from the derived context re-enters without
	// blocking, exercising the breakdown protocol's nested local-lock
	// acquisition.
	_, unlock2, err := r.Obtain(heldCtx, "c1", "k1")
	require.NoError(t, err)

	require.NoError(t, unlock2(context.Background()))
	require.NoError(t, unlock1(context.Background()))
}

func TestObtain_DifferentCacheNamesDoNotCollide(t *testing.T) {
	r := newForTest(t)

	_, unlock1, err := r.Obtain(context.Background(), "c1", "k1")
	require.NoError(t, err)

	// Same key, different cache-name: must not contend.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, unlock2, err := r.Obtain(context.Background(), "c2", "k1")
		require.NoError(t, err)
		require.NoError(t, unlock2(context.Background()))
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cross-cache-name contention should not block")
	}

	require.NoError(t, unlock1(context.Background()))
}

func TestObtain_BlocksUntilReleased(t *testing.T) {
	r := newForTest(t)

	_, unlock1, err := r.Obtain(context.Background(), "c1", "k1")
	require.NoError(t, err)

	var mu sync.Mutex
	acquiredAt2 := false

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, unlock2, err := r.Obtain(context.Background(), "c1", "k1")
		require.NoError(t, err)
		mu.Lock()
		acquiredAt2 = true
		mu.Unlock()
		require.NoError(t, unlock2(context.Background()))
	}()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.False(t, acquiredAt2)
	mu.Unlock()

	require.NoError(t, unlock1(context.Background()))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired after release")
	}
}

func TestObtain_CtxCancelWhileWaiting(t *testing.T) {
	r := newForTest(t)

	_, unlock1, err := r.Obtain(context.Background(), "c1", "k1")
	require.NoError(t, err)
	defer func() { _ = unlock1(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err = r.Obtain(ctx, "c1", "k1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTryObtain_ContentionReturnsNilUnlocker(t *testing.T) {
	r := newForTest(t)

	_, unlock1, err := r.Obtain(context.Background(), "c1", "k1")
	require.NoError(t, err)
	defer func() { _ = unlock1(context.Background()) }()

	_, unlock2, err := r.TryObtain(context.Background(), "c1", "k1")
	assert.NoError(t, err)
	assert.Nil(t, unlock2)
}

func TestRelease_IdleEntryIsEventuallySwept(t *testing.T) {
	r := newForTest(t, WithIdleWindow(20*time.Millisecond), WithSweepInterval(10*time.Millisecond))

	_, unlock, err := r.Obtain(context.Background(), "c1", "k1")
	require.NoError(t, err)
	require.NoError(t, unlock(context.Background()))

	require.Eventually(t, func() bool {
		return r.Len() == 0
	}, time.Second, 5*time.Millisecond, "idle entry should be swept")
}

func TestCompact_EnforcesMaxEntries(t *testing.T) {
	r := newForTest(t, WithMaxEntries(2), WithIdleWindow(time.Hour), WithSweepInterval(10*time.Millisecond))

	for i := 0; i < 5; i++ {
		_, unlock, err := r.Obtain(context.Background(), "c1", string(rune('a'+i)))
		require.NoError(t, err)
		require.NoError(t, unlock(context.Background()))
	}

	require.Eventually(t, func() bool {
		return r.Len() <= 2
	}, time.Second, 10*time.Millisecond, "compact should enforce MaxEntries")
}

func TestClose_StopsAcceptingNewLocks(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	r.Close()

	_, _, err = r.Obtain(context.Background(), "c1", "k1")
	assert.ErrorIs(t, err, ErrClosed)
}
