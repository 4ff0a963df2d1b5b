package xguard_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cacheguard/core/pkg/xguard"
)

func newTestEngine(t *testing.T, opts ...xguard.Option) (*xguard.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := xguard.NewGoRedisStore(client)
	require.NoError(t, err)

	eng, err := xguard.New(store, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = eng.Close(ctx)
	})
	return eng, mr
}

// =============================================================================
// Get / Put round trip
// =============================================================================

func TestEngine_PutThenGet(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	require.NoError(t, eng.Put(ctx, "users", "alice", []byte(`"hello"`)))

	vw, err := eng.Get(ctx, "users", "alice")
	require.NoError(t, err)
	require.NotNil(t, vw)
	assert.False(t, vw.Null)
	assert.Equal(t, []byte(`"hello"`), vw.Value)
}

func TestEngine_GetMiss(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	vw, err := eng.Get(ctx, "users", "missing")
	require.NoError(t, err)
	assert.Nil(t, vw)
}

func TestEngine_EmptyNameOrKey(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	_, err := eng.Get(ctx, "", "alice")
	assert.ErrorIs(t, err, xguard.ErrEmptyCacheName)

	_, err = eng.Get(ctx, "users", "")
	assert.ErrorIs(t, err, xguard.ErrEmptyKey)
}

// =============================================================================
// GetWithLoader / breakdown protection
// =============================================================================

func TestEngine_GetWithLoader_MissInvokesLoaderOnce(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	var calls int32
	loader := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("loaded"), nil
	}

	vw, err := eng.GetWithLoader(ctx, "users", "bob", loader)
	require.NoError(t, err)
	require.NotNil(t, vw)
	assert.Equal(t, []byte("loaded"), vw.Value)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	// A second call should be served from cache, not the loader.
	vw, err = eng.GetWithLoader(ctx, "users", "bob", loader)
	require.NoError(t, err)
	assert.Equal(t, []byte("loaded"), vw.Value)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

// TestEngine_GetWithLoader_NullResultCachedWhenRequested verifies that
// a loader-produced null is represented as a found sentinel hit, not a
// miss, once the descriptor requests null-value caching.
func TestEngine_GetWithLoader_NullResultCachedWhenRequested(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	require.NoError(t, eng.Register("users", "ghost", &xguard.Descriptor{
		CacheNames:      []string{"users"},
		CacheNullValues: true,
	}))

	var calls int32
	loader := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}

	vw, err := eng.GetWithLoader(ctx, "users", "ghost", loader)
	require.NoError(t, err)
	require.NotNil(t, vw)
	assert.True(t, vw.Null)

	// Second call must not re-invoke the loader: the null sentinel was
	// persisted and is itself a hit.
	vw, err = eng.GetWithLoader(ctx, "users", "ghost", loader)
	require.NoError(t, err)
	require.NotNil(t, vw)
	assert.True(t, vw.Null)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestEngine_GetWithLoader_NilLoader(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	_, err := eng.GetWithLoader(ctx, "users", "bob", nil)
	assert.ErrorIs(t, err, xguard.ErrNilLoader)
}

// TestEngine_GetWithLoader_SingleFlightsConcurrentMisses verifies the
// breakdown protocol collapses concurrent misses on the same key into
// one loader invocation.
func TestEngine_GetWithLoader_SingleFlightsConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	require.NoError(t, eng.Register("users", "hot", &xguard.Descriptor{
		CacheNames:   []string{"users"},
		InternalLock: true,
	}))

	var calls int32
	release := make(chan struct{})
	loader := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte("value"), nil
	}

	const waves = 8
	results := make(chan *xguard.ValueWrapper, waves)
	for i := 0; i < waves; i++ {
		go func() {
			vw, err := eng.GetWithLoader(ctx, "users", "hot", loader)
			assert.NoError(t, err)
			results <- vw
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)

	for i := 0; i < waves; i++ {
		vw := <-results
		require.NotNil(t, vw)
		assert.Equal(t, []byte("value"), vw.Value)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

// =============================================================================
// Evict / Clear
// =============================================================================

func TestEngine_Evict(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	require.NoError(t, eng.Put(ctx, "users", "alice", []byte("x")))
	require.NoError(t, eng.Evict(ctx, "users", "alice"))

	vw, err := eng.Get(ctx, "users", "alice")
	require.NoError(t, err)
	assert.Nil(t, vw)
}

func TestEngine_Clear(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	require.NoError(t, eng.Put(ctx, "users", "alice", []byte("x")))
	require.NoError(t, eng.Put(ctx, "users", "bob", []byte("y")))
	require.NoError(t, eng.Clear(ctx, "users"))

	for _, key := range []string{"alice", "bob"} {
		vw, err := eng.Get(ctx, "users", key)
		require.NoError(t, err)
		assert.Nil(t, vw)
	}
}

// =============================================================================
// PutIfAbsent
// =============================================================================

func TestEngine_PutIfAbsent(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	existing, err := eng.PutIfAbsent(ctx, "users", "alice", []byte("first"))
	require.NoError(t, err)
	assert.Nil(t, existing)

	existing, err = eng.PutIfAbsent(ctx, "users", "alice", []byte("second"))
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, []byte("first"), existing.Value)
}

// =============================================================================
// TTL / avalanche jitter
// =============================================================================

// TestEngine_PutWithTTL_JitterNeverExceedsBase verifies the TTL Redis
// actually stores is never greater than the requested base, across a
// spread of calls (the avalanche policy only ever shortens TTL).
func TestEngine_PutWithTTL_JitterNeverExceedsBase(t *testing.T) {
	ctx := context.Background()
	eng, mr := newTestEngine(t)

	base := 100 * time.Second
	for i := 0; i < 20; i++ {
		key := "k" + string(rune('a'+i))
		require.NoError(t, eng.PutWithTTL(ctx, "users", key, []byte("v"), base))
		ttl := mr.TTL(envelopeKeyForTest("users", key))
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, base)
	}
}

// envelopeKeyForTest mirrors the package-private envelope key
// convention ("<cache-name>::<key>") so the test can inspect miniredis
// TTLs directly without exporting internal helpers.
func envelopeKeyForTest(cacheName, key string) string {
	return cacheName + "::" + key
}

func TestEngine_NilStore(t *testing.T) {
	_, err := xguard.New(nil)
	assert.ErrorIs(t, err, xguard.ErrNilStore)
}

// TestEngine_EvictSchedulesDelayedDelete verifies that Close drains
// the second delete an Evict has scheduled without error, and that the
// evicted key stays deleted.
func TestEngine_EvictSchedulesDelayedDelete(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := xguard.NewGoRedisStore(client)
	require.NoError(t, err)

	eng, err := xguard.New(store, xguard.WithDoubleDeleteDelay(10*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, eng.Put(ctx, "users", "alice", []byte("x")))
	require.NoError(t, eng.Evict(ctx, "users", "alice"))

	closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, eng.Close(closeCtx))

	assert.False(t, mr.Exists(envelopeKeyForTest("users", "alice")))
}

func TestEngine_EvictAbsentKeyIsNotAnError(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	err := eng.Evict(ctx, "users", "never-existed")
	// Evicting an absent key is not itself an error.
	require.NoError(t, err)
	require.False(t, errors.Is(err, xguard.ErrBackendUnavailable))
}
