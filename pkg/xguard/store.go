package xguard

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the primitive Redis surface the engine needs. The core
// never imports a concrete Redis client directly; NewGoRedisStore is
// the reference implementation, but any conforming adapter (e.g. over
// a cluster client, or a test double) may be substituted.
type RedisStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Keys returns every key matching prefix+"*", used by Clear to
	// walk a cache-name's entries. Implementations may use SCAN to
	// avoid blocking the server on large keyspaces.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// ErrNotFound is returned by RedisStore.Get when key does not exist.
var ErrNotFound = errors.New("xguard: key not found")

// goRedisStore adapts a redis.UniversalClient to RedisStore.
type goRedisStore struct {
	client redis.UniversalClient
}

// NewGoRedisStore creates the default RedisStore backed by go-redis.
func NewGoRedisStore(client redis.UniversalClient) (RedisStore, error) {
	if client == nil {
		return nil, ErrNilStore
	}
	return &goRedisStore{client: client}, nil
}

func (s *goRedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *goRedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	// Mirrors the SET semantics in spec §6: ttl > 0 sets an expiry,
	// ttl < 0 sets none, ttl == 0 is normalized upstream before
	// reaching the store.
	var exp time.Duration
	if ttl > 0 {
		exp = ttl
	}
	return s.client.Set(ctx, key, value, exp).Err()
}

func (s *goRedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *goRedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s *goRedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.client.TTL(ctx, key).Result()
}

func (s *goRedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Codec serializes/deserializes opaque values for storage inside an
// Envelope. The core ships jsonCodec as the default; callers may
// supply their own (protobuf, msgpack, ...) via WithCodec.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

// jsonCodec is the default Codec, grounded on the envelope's own
// "JSON with polymorphic type tagging" encoding (spec §6); the
// TypeTag field carries the polymorphism, so the codec itself stays a
// plain encoding/json round-trip.
type jsonCodec struct{}

func (jsonCodec) Encode(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Decode(data []byte, out any) error { return json.Unmarshal(data, out) }

// DefaultCodec returns the engine's default JSON codec.
func DefaultCodec() Codec { return jsonCodec{} }

// KeyResolver derives the effective cache key for a call from a
// descriptor and the method's arguments. The expression-evaluation
// layer that would normally back this is out of scope for the core;
// StaticKeyResolver and KeyResolverFunc are the reference
// implementations a caller can use directly.
type KeyResolver interface {
	ResolveKey(ctx context.Context, descriptor *Descriptor, args ...any) (string, error)
}

// KeyResolverFunc adapts a function to KeyResolver.
type KeyResolverFunc func(ctx context.Context, descriptor *Descriptor, args ...any) (string, error)

func (f KeyResolverFunc) ResolveKey(ctx context.Context, descriptor *Descriptor, args ...any) (string, error) {
	return f(ctx, descriptor, args...)
}

// StaticKeyResolver always returns the same pre-resolved key,
// ignoring the descriptor and arguments. The front door's direct
// (name, key) API takes keys that are already resolved and does not
// consult any KeyResolver.
type StaticKeyResolver string

func (s StaticKeyResolver) ResolveKey(context.Context, *Descriptor, ...any) (string, error) {
	return string(s), nil
}
