package bloom

import (
	"context"
	"crypto/md5"  //nolint:gosec // used only as a fast bit-position source, not for cryptographic strength
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisHashClient is the subset of redis.UniversalClient the filter
// needs. redis.UniversalClient (and therefore any real go-redis client,
// including one backed by miniredis in tests) satisfies it directly.
type RedisHashClient interface {
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// setMarker is the value stored for every set bit position; its
// content is irrelevant, only field presence is checked.
const setMarker = "1"

// Filter is a Redis-backed probabilistic admission set. Multiple
// application instances sharing the same Redis server observe the same
// membership state.
type Filter struct {
	client  RedisHashClient
	options *Options
}

// New creates a bloom Filter backed by client.
func New(client RedisHashClient, opts ...Option) (*Filter, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	options := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	if err := options.validate(); err != nil {
		return nil, err
	}
	return &Filter{client: client, options: options}, nil
}

// hashKey returns the Redis hash key holding cacheName's filter bits.
func (f *Filter) hashKey(cacheName string) string {
	return f.options.KeyPrefix + cacheName
}

// positions derives the k bit positions for key, via double hashing of
// the leading 8 bytes of MD5(key) and SHA-256(key) interpreted as
// signed 64-bit integers: p_i = |h1 + i*h2| mod m.
func (f *Filter) positions(key string) []int64 {
	md5Sum := md5.Sum([]byte(key)) //nolint:gosec // see package doc
	sha256Sum := sha256.Sum256([]byte(key))

	h1 := int64(binary.BigEndian.Uint64(md5Sum[:8]))
	h2 := int64(binary.BigEndian.Uint64(sha256Sum[:8]))

	m := uint64(f.options.BitSize)
	positions := make([]int64, f.options.HashFunctions)
	for i := 0; i < f.options.HashFunctions; i++ {
		sum := h1 + int64(i)*h2
		positions[i] = int64(absInt64(sum) % m)
	}
	return positions
}

// absInt64 returns |x| as a uint64, handling math.MinInt64 (whose
// negation overflows int64) without UB.
func absInt64(x int64) uint64 {
	if x == math.MinInt64 {
		return 1 << 63
	}
	if x < 0 {
		return uint64(-x)
	}
	return uint64(x)
}

// Add records key as a member of cacheName's filter.
func (f *Filter) Add(ctx context.Context, cacheName, key string) error {
	if cacheName == "" {
		return ErrEmptyCacheName
	}
	hashKey := f.hashKey(cacheName)
	fields := make([]any, 0, len(f.positions(key))*2)
	for _, p := range f.positions(key) {
		fields = append(fields, strconv.FormatInt(p, 10), setMarker)
	}
	if err := f.client.HSet(ctx, hashKey, fields...).Err(); err != nil {
		f.logWarn("bloom: add failed", "cache", cacheName, "error", err)
		return err
	}
	return nil
}

// MightContain reports whether key might be a member of cacheName's
// filter. A false result is a definite absence; a true result may be a
// false positive. Any Redis error fails open (returns true): a filter
// must never cause a real entry to be wrongly rejected.
func (f *Filter) MightContain(ctx context.Context, cacheName, key string) bool {
	if cacheName == "" {
		return true
	}
	hashKey := f.hashKey(cacheName)
	for _, p := range f.positions(key) {
		_, err := f.client.HGet(ctx, hashKey, strconv.FormatInt(p, 10)).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return false
			}
			f.logWarn("bloom: might-contain check failed, failing open", "cache", cacheName, "error", err)
			return true
		}
	}
	return true
}

// Clear removes all recorded membership for cacheName.
func (f *Filter) Clear(ctx context.Context, cacheName string) error {
	if cacheName == "" {
		return ErrEmptyCacheName
	}
	if err := f.client.Del(ctx, f.hashKey(cacheName)).Err(); err != nil {
		f.logWarn("bloom: clear failed", "cache", cacheName, "error", err)
		return err
	}
	return nil
}

func (f *Filter) logWarn(msg string, args ...any) {
	if f.options.Logger != nil {
		f.options.Logger.Warn(msg, args...)
	}
}
