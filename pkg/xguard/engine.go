package xguard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cacheguard/core/pkg/bloom"
	"github.com/cacheguard/core/pkg/dlock"
	"github.com/cacheguard/core/pkg/locallock"
	"github.com/cacheguard/core/pkg/prerefresh"
)

const (
	// DefaultTTL is used when a descriptor's TTLSeconds is 0 ("use the
	// cache's configured default") and the caller has not configured
	// a different default via WithDefaultTTL.
	DefaultTTL = 10 * time.Minute

	// DefaultDoubleDeleteDelay bounds the gap between an EVICT's
	// immediate delete and its scheduled second delete.
	DefaultDoubleDeleteDelay = 500 * time.Millisecond
)

// ValueWrapper mirrors the front door's "T or null or absent"
// three-way result: a nil *ValueWrapper means a definite miss, a
// non-nil one with Null set means a cached-absence hit.
type ValueWrapper struct {
	Value []byte
	Null  bool
}

// Engine is the cache engine front door: the public surface of
// get/put/putIfAbsent/evict/clear. It owns its dependencies and
// constructs the handler pipeline once, at construction time.
type Engine struct {
	store       RedisStore
	codec       Codec
	keyResolver KeyResolver

	penetration *Penetration
	breakdown   *Breakdown
	localLock   *locallock.Registry
	dist        dlock.Adapter
	prerefresh  *prerefresh.Pool
	registry    *MetadataRegistry
	avalanche   *Avalanche
	metrics     Metrics
	logger      *slog.Logger

	defaultTTL        time.Duration
	doubleDeleteDelay time.Duration

	getChain   *Chain
	evictChain *Chain
	clearChain *Chain

	// delayedWG tracks in-flight scheduled double-delete timers so
	// Close can wait for them (bounded by its own ctx) instead of
	// leaking goroutines past shutdown.
	delayedWG sync.WaitGroup

	ownsLocalLock  bool
	ownsPrerefresh bool
}

// Option configures an Engine at construction time.
type Option func(*engineConfig)

type engineConfig struct {
	codec       Codec
	keyResolver KeyResolver
	bloomFilter *bloom.Filter
	dist        dlock.Adapter
	localLock   *locallock.Registry
	prerefresh  *prerefresh.Pool
	registry    *MetadataRegistry
	avalanche   *Avalanche
	metrics     Metrics
	logger      *slog.Logger

	defaultTTL        time.Duration
	doubleDeleteDelay time.Duration

	breakdownOpts []BreakdownOption
}

func defaultEngineConfig() *engineConfig {
	return &engineConfig{
		codec:             DefaultCodec(),
		avalanche:         DefaultAvalanche(),
		metrics:           noopMetrics{},
		logger:            slog.Default(),
		defaultTTL:        DefaultTTL,
		doubleDeleteDelay: DefaultDoubleDeleteDelay,
	}
}

// New creates an Engine backed by store. Dependencies not supplied via
// Option are constructed with their package defaults: a fresh
// locallock.Registry, a fresh MetadataRegistry, no bloom filter, no
// distributed lock adapter, a fresh prerefresh.Pool.
func New(store RedisStore, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	cfg := defaultEngineConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	eng := &Engine{
		store:             store,
		codec:             cfg.codec,
		keyResolver:       cfg.keyResolver,
		dist:              cfg.dist,
		avalanche:         cfg.avalanche,
		metrics:           cfg.metrics,
		logger:            cfg.logger,
		defaultTTL:        cfg.defaultTTL,
		doubleDeleteDelay: cfg.doubleDeleteDelay,
	}

	if cfg.registry != nil {
		eng.registry = cfg.registry
	} else {
		registry, err := NewMetadataRegistry(WithRegistryEvictionHook(func(OperationType) {
			eng.metrics.Eviction()
		}))
		if err != nil {
			return nil, err
		}
		eng.registry = registry
	}

	if cfg.localLock != nil {
		eng.localLock = cfg.localLock
	} else {
		localLock, err := locallock.New()
		if err != nil {
			return nil, err
		}
		eng.localLock = localLock
		eng.ownsLocalLock = true
	}

	if cfg.prerefresh != nil {
		eng.prerefresh = cfg.prerefresh
	} else {
		pool, err := prerefresh.New()
		if err != nil {
			return nil, err
		}
		eng.prerefresh = pool
		eng.ownsPrerefresh = true
	}

	eng.penetration = NewPenetration(cfg.bloomFilter, eng.logger)

	breakdown, err := NewBreakdown(eng.localLock, eng.dist, cfg.breakdownOpts...)
	if err != nil {
		return nil, err
	}
	eng.breakdown = breakdown

	eng.getChain = NewChain(
		&bloomHandler{eng: eng},
		&cacheReadHandler{eng: eng},
		&breakdownLoaderHandler{eng: eng},
		&preRefreshHandler{eng: eng},
	)
	eng.evictChain = NewChain(
		&immediateDeleteHandler{eng: eng},
		&registryCleanupHandler{eng: eng},
		&delayedDeleteHandler{eng: eng},
	)
	eng.clearChain = NewChain(
		&clearKeysHandler{eng: eng},
		&clearRegistryHandler{eng: eng},
		&clearDelayedHandler{eng: eng},
	)

	return eng, nil
}

// Close releases any engine-owned dependency (a locallock.Registry or
// prerefresh.Pool constructed internally because none was supplied via
// Option). Dependencies passed in via Option are left running; the
// caller that constructed them owns their lifecycle.
func (eng *Engine) Close(ctx context.Context) error {
	var firstErr error
	if eng.ownsPrerefresh {
		if err := eng.prerefresh.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}

	drained := make(chan struct{})
	go func() {
		eng.delayedWG.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
	}

	if eng.ownsLocalLock {
		eng.localLock.Close()
	}
	return firstErr
}

// scheduleDelayedDelete arms the second half of the double-delete
// protocol: after doubleDeleteDelay, re-issue DEL and re-run registry
// cleanup under local+distributed lock, closing the read-after-evict
// race described in spec §4.8.
func (eng *Engine) scheduleDelayedDelete(cacheName, key string) {
	eng.delayedWG.Add(1)
	time.AfterFunc(eng.doubleDeleteDelay, func() {
		defer eng.delayedWG.Done()
		eng.runDelayedDelete(cacheName, key)
	})
}

// runDelayedDelete performs the scheduled second delete. It runs on
// its own background context, detached from whatever request
// triggered the original evict, since that caller may long since have
// returned.
func (eng *Engine) runDelayedDelete(cacheName, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if eng.localLock != nil {
		heldCtx, unlock, err := eng.localLock.Obtain(ctx, cacheName, key)
		if err != nil {
			eng.logWarn("xguard: delayed-delete local lock failed", "cache", cacheName, "key", key, "error", err)
			return
		}
		ctx = heldCtx
		defer func() { _ = unlock(ctx) }()
	}

	if eng.dist != nil {
		lockKey := evictLockKey(cacheName, key)
		heldCtx, unlock, acquired, err := eng.dist.TryLock(ctx, lockKey, DefaultLeaseWait, DefaultLease)
		if err != nil {
			eng.logWarn("xguard: delayed-delete distributed lock error", "key", lockKey, "error", err)
		} else if acquired {
			ctx = heldCtx
			defer func() { _ = unlock(ctx) }()
		}
	}

	if err := eng.store.Del(ctx, envelopeKey(cacheName, key)); err != nil {
		eng.logWarn("xguard: delayed-delete failed", "cache", cacheName, "key", key, "error", err)
		return
	}
	eng.registry.Remove(cacheName, key, OperationCache)
	eng.registry.Remove(cacheName, key, OperationEvict)
}

func (eng *Engine) resolveDescriptor(cacheName, key string, op OperationType) *Descriptor {
	if d, ok := eng.registry.Get(cacheName, key, op); ok {
		return d
	}
	return defaultDescriptor(cacheName)
}

// baseTTL normalizes a descriptor's TTLSeconds into the duration that
// should actually be handed to the avalanche policy: 0 means the
// engine's configured default, negative means "never expires".
func (eng *Engine) baseTTL(d *Descriptor) time.Duration {
	switch {
	case d.TTLSeconds == 0:
		return eng.defaultTTL
	case d.TTLSeconds < 0:
		return -1
	default:
		return time.Duration(d.TTLSeconds) * time.Second
	}
}

// persist wraps value (or a null sentinel) in a fresh Envelope, jitters
// base through the avalanche policy, writes it through to Redis, and
// admits the key to the bloom filter. Used both by the breakdown
// protocol's writer callback and by the direct Put/PutIfAbsent API.
// base is the pre-jitter TTL: callers that honor the descriptor pass
// eng.baseTTL(d); an explicit put(name, key, value, ttl) call passes
// ttl directly instead.
func (eng *Engine) persist(ctx context.Context, cacheName, key string, value []byte, null bool, d *Descriptor, base time.Duration) error {
	ttl := eng.avalanche.Resolve(base, d)

	now := time.Now()
	var env *Envelope
	if null {
		env = NewNullEnvelope(ttl, now)
	} else {
		env = NewEnvelope(value, d.ValueType, ttl, now)
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := eng.store.Set(ctx, envelopeKey(cacheName, key), raw, ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	eng.penetration.Admit(ctx, cacheName, key)
	return nil
}

// logWarn emits a warning through the engine's logger, if any.
func (eng *Engine) logWarn(msg string, args ...any) {
	if eng.logger != nil {
		eng.logger.Warn(msg, args...)
	}
}

// readEnvelope fetches and decodes the envelope at (cacheName, key), if
// any and not expired. found is false for a definite miss (absent key
// or an expired envelope); err is reserved for backend failures.
func (eng *Engine) readEnvelope(ctx context.Context, cacheName, key string, now time.Time) (*Envelope, bool, error) {
	raw, err := eng.store.Get(ctx, envelopeKey(cacheName, key))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false, err
	}
	if env.IsExpired(now) {
		return nil, false, nil
	}
	return &env, true, nil
}
