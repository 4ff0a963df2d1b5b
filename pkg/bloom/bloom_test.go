package bloom_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cacheguard/core/pkg/bloom"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// =============================================================================
// construction
// =============================================================================

func TestNew_NilClient(t *testing.T) {
	_, err := bloom.New(nil)
	assert.ErrorIs(t, err, bloom.ErrNilClient)
}

func TestNew_InvalidOptions(t *testing.T) {
	client := newTestClient(t)

	t.Run("zero bit size", func(t *testing.T) {
		_, err := bloom.New(client, bloom.WithBitSize(0))
		assert.ErrorIs(t, err, bloom.ErrInvalidBitSize)
	})

	t.Run("zero hash functions", func(t *testing.T) {
		_, err := bloom.New(client, bloom.WithHashFunctions(0))
		assert.ErrorIs(t, err, bloom.ErrInvalidHashFunctions)
	})
}

// =============================================================================
// Add / MightContain
// =============================================================================

func TestFilter_AddThenMightContain(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	f, err := bloom.New(client)
	require.NoError(t, err)

	assert.False(t, f.MightContain(ctx, "users", "unknown-key"))

	require.NoError(t, f.Add(ctx, "users", "alice"))
	assert.True(t, f.MightContain(ctx, "users", "alice"))
}

func TestFilter_EmptyCacheName(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	f, err := bloom.New(client)
	require.NoError(t, err)

	assert.ErrorIs(t, f.Add(ctx, "", "alice"), bloom.ErrEmptyCacheName)
	assert.ErrorIs(t, f.Clear(ctx, ""), bloom.ErrEmptyCacheName)
	// MightContain fails open on an invalid/empty cache name rather
	// than erroring, consistent with its fail-open read policy.
	assert.True(t, f.MightContain(ctx, "", "alice"))
}

func TestFilter_FilterIsolatedPerCacheName(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	f, err := bloom.New(client)
	require.NoError(t, err)

	require.NoError(t, f.Add(ctx, "users", "alice"))
	assert.False(t, f.MightContain(ctx, "orders", "alice"))
}

// =============================================================================
// Clear
// =============================================================================

func TestFilter_Clear(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	f, err := bloom.New(client)
	require.NoError(t, err)

	require.NoError(t, f.Add(ctx, "users", "alice"))
	require.NoError(t, f.Clear(ctx, "users"))
	assert.False(t, f.MightContain(ctx, "users", "alice"))
}
