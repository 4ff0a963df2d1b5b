package xguard

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Register indexes d as the CACHE descriptor for (cacheName, key),
// consulted by Get/Put/PutIfAbsent. Registration is idempotent.
func (eng *Engine) Register(cacheName, key string, d *Descriptor) error {
	return eng.registry.Register(cacheName, key, OperationCache, d)
}

// RegisterEvict indexes d as the EVICT descriptor for (cacheName, key),
// consulted by Evict/Clear.
func (eng *Engine) RegisterEvict(cacheName, key string, d *Descriptor) error {
	return eng.registry.Register(cacheName, key, OperationEvict, d)
}

// Get reads (cacheName, key) with no loader: a bare cache read guarded
// by the penetration check. A nil *ValueWrapper is a definite miss.
func (eng *Engine) Get(ctx context.Context, cacheName, key string) (*ValueWrapper, error) {
	return eng.get(ctx, cacheName, key, nil)
}

// GetAs reads (cacheName, key) and decodes it into out via the
// Engine's configured Codec. found is false on a definite miss or a
// cached-null sentinel; out is left untouched in either case.
func (eng *Engine) GetAs(ctx context.Context, cacheName, key string, out any) (found bool, err error) {
	vw, err := eng.get(ctx, cacheName, key, nil)
	if err != nil {
		return false, err
	}
	if vw == nil || vw.Null {
		return false, nil
	}
	if err := eng.codec.Decode(vw.Value, out); err != nil {
		return false, err
	}
	return true, nil
}

// GetWithLoader reads (cacheName, key), invoking loader under the
// breakdown protocol (§4.7.2) on a miss. The returned *ValueWrapper is
// never nil on success: a loader-produced null is represented as
// ValueWrapper{Null: true} rather than a miss.
func (eng *Engine) GetWithLoader(ctx context.Context, cacheName, key string, loader LoadFunc) (*ValueWrapper, error) {
	if loader == nil {
		return nil, ErrNilLoader
	}
	return eng.get(ctx, cacheName, key, loader)
}

func (eng *Engine) get(ctx context.Context, cacheName, key string, loader LoadFunc) (*ValueWrapper, error) {
	if cacheName == "" {
		return nil, ErrEmptyCacheName
	}
	if key == "" {
		return nil, ErrEmptyKey
	}

	d := eng.resolveDescriptor(cacheName, key, OperationCache)
	pc := &PipelineContext{
		Ctx:        ctx,
		CacheName:  cacheName,
		Key:        key,
		Descriptor: d,
		Now:        time.Now(),
		Loader:     loader,
	}
	eng.getChain.Run(pc)

	if !pc.Found {
		// Per §4.8's failure semantics: if every handler that ran
		// failed outright (as opposed to a clean miss), fall back to
		// invoking the raw loader directly, bypassing cache entirely.
		if len(pc.Errs) > 0 && loader != nil {
			value, err := loader(ctx)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrLoaderFailed, err)
			}
			return &ValueWrapper{Value: value, Null: value == nil}, nil
		}
		if len(pc.Errs) > 0 {
			return nil, errors.Join(pc.Errs...)
		}
		return nil, nil
	}

	return &ValueWrapper{Value: pc.Result, Null: pc.ResultNull}, nil
}

// Put writes value for (cacheName, key) using the registered
// descriptor's TTL (or the engine default), applying the avalanche
// jitter policy and admitting the key to the bloom filter.
func (eng *Engine) Put(ctx context.Context, cacheName, key string, value []byte) error {
	if cacheName == "" {
		return ErrEmptyCacheName
	}
	if key == "" {
		return ErrEmptyKey
	}
	d := eng.resolveDescriptor(cacheName, key, OperationCache)
	return eng.persist(ctx, cacheName, key, value, false, d, eng.baseTTL(d))
}

// PutWithTTL writes value for (cacheName, key) with an explicit base
// TTL, overriding the registered descriptor's TTLSeconds for this call
// only. ttl <= 0 is passed through to the avalanche policy unjittered
// (negative meaning "never expires", per §4.2).
func (eng *Engine) PutWithTTL(ctx context.Context, cacheName, key string, value []byte, ttl time.Duration) error {
	if cacheName == "" {
		return ErrEmptyCacheName
	}
	if key == "" {
		return ErrEmptyKey
	}
	d := eng.resolveDescriptor(cacheName, key, OperationCache)
	return eng.persist(ctx, cacheName, key, value, false, d, ttl)
}

// PutIfAbsent writes value only if (cacheName, key) is not already
// present, returning the pre-existing value if it was. Resolved as
// pass-through per spec.md §9's Open Question: it does not invoke the
// breakdown protocol, so concurrent PutIfAbsent calls for the same
// absent key are not single-flighted against each other.
func (eng *Engine) PutIfAbsent(ctx context.Context, cacheName, key string, value []byte) (*ValueWrapper, error) {
	if cacheName == "" {
		return nil, ErrEmptyCacheName
	}
	if key == "" {
		return nil, ErrEmptyKey
	}

	env, found, err := eng.readEnvelope(ctx, cacheName, key, time.Now())
	if err != nil {
		return nil, err
	}
	if found {
		return &ValueWrapper{Value: env.Value, Null: env.Null}, nil
	}

	d := eng.resolveDescriptor(cacheName, key, OperationCache)
	if err := eng.persist(ctx, cacheName, key, value, false, d, eng.baseTTL(d)); err != nil {
		return nil, err
	}
	return nil, nil
}

// Evict removes (cacheName, key): an immediate delete, registry
// cleanup, and a scheduled delayed second delete (§4.8).
func (eng *Engine) Evict(ctx context.Context, cacheName, key string) error {
	if cacheName == "" {
		return ErrEmptyCacheName
	}
	if key == "" {
		return ErrEmptyKey
	}
	pc := &PipelineContext{Ctx: ctx, CacheName: cacheName, Key: key, Now: time.Now()}
	eng.evictChain.Run(pc)
	if len(pc.Errs) > 0 {
		return errors.Join(pc.Errs...)
	}
	return nil
}

// Clear invalidates every entry under cacheName: deletes every
// enumerated key, drops the bloom filter and every registered
// descriptor for cacheName, and arms a delayed second delete per key.
func (eng *Engine) Clear(ctx context.Context, cacheName string) error {
	if cacheName == "" {
		return ErrEmptyCacheName
	}
	pc := &PipelineContext{Ctx: ctx, CacheName: cacheName, Now: time.Now()}
	eng.clearChain.Run(pc)
	if len(pc.Errs) > 0 {
		return errors.Join(pc.Errs...)
	}
	return nil
}
