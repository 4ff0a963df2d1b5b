package xguard

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// bloomHandler implements §4.7.1: before a GET loader runs, consult
// the bloom filter if the descriptor asks for it; a definite miss
// short-circuits the chain.
type bloomHandler struct{ eng *Engine }

func (h *bloomHandler) Name() string { return "bloom-filter" }

func (h *bloomHandler) Supports(pc *PipelineContext) bool {
	return pc.Descriptor.UseBloomFilter
}

func (h *bloomHandler) Handle(pc *PipelineContext) (Outcome, error) {
	if h.eng.penetration.Check(pc.Ctx, pc.CacheName, pc.Key) {
		return Continued, nil
	}
	pc.RejectedByFilter = true
	pc.Found = false
	pc.Result = nil
	h.eng.metrics.BloomRejected()
	return Handled, nil
}

// cacheReadHandler implements the Cache Read step: reads the envelope
// from Redis; a present, non-expired envelope yields its value
// (unwrapped by the caller via Codec). A cached-null sentinel counts
// as a hit with no value.
type cacheReadHandler struct{ eng *Engine }

func (h *cacheReadHandler) Name() string               { return "cache-read" }
func (h *cacheReadHandler) Supports(*PipelineContext) bool { return true }

func (h *cacheReadHandler) Handle(pc *PipelineContext) (Outcome, error) {
	env, found, err := h.eng.readEnvelope(pc.Ctx, pc.CacheName, pc.Key, pc.Now)
	if err != nil {
		return Failed, err
	}
	if !found {
		pc.Found = false
		return Continued, nil
	}

	pc.Envelope = env
	pc.Found = true
	pc.ResultNull = env.Null
	if env.Null {
		pc.Result = nil
	} else {
		pc.Result = env.Value
	}

	h.writeback(pc, env)
	return Continued, nil
}

// writeback opportunistically persists the access-statistic bump.
// Best-effort: the write uses the envelope's own remaining TTL so it
// does not reset expiry, and any failure here is swallowed per the
// envelope's stated invariant that a missed writeback does not
// violate correctness.
func (h *cacheReadHandler) writeback(pc *PipelineContext, env *Envelope) {
	touched := *env
	touched.Touch(time.Now())

	ttl := touched.Remaining(time.Now())
	if ttl <= 0 && env.TTLSeconds > 0 {
		return
	}

	ctx, cancel := contextWithIndependentTimeout(pc.Ctx, 2*time.Second)
	defer cancel()

	raw, err := json.Marshal(&touched)
	if err != nil {
		return
	}
	_ = h.eng.store.Set(ctx, envelopeKey(pc.CacheName, pc.Key), raw, ttl)
}

// breakdownLoaderHandler implements §4.7.2 around the caller-supplied
// loader, on a cache miss.
type breakdownLoaderHandler struct{ eng *Engine }

func (h *breakdownLoaderHandler) Name() string { return "breakdown-loader" }

func (h *breakdownLoaderHandler) Supports(pc *PipelineContext) bool {
	return !pc.Found && pc.Loader != nil
}

func (h *breakdownLoaderHandler) Handle(pc *PipelineContext) (Outcome, error) {
	d := pc.Descriptor
	internalEnabled := d.InternalLock || d.Sync
	distributedEnabled := d.DistributedLock

	reader := func(ctx context.Context) ([]byte, bool, error) {
		env, found, err := h.eng.readEnvelope(ctx, pc.CacheName, pc.Key, time.Now())
		if err != nil || !found {
			return nil, false, err
		}
		if env.Null {
			return nil, true, nil
		}
		return env.Value, true, nil
	}
	loaderFn := func(ctx context.Context) ([]byte, error) {
		h.eng.metrics.BreakdownLoaderInvocation()
		return pc.Loader(ctx)
	}
	writer := func(ctx context.Context, value []byte) error {
		return h.eng.persist(ctx, pc.CacheName, pc.Key, value, false, d, h.eng.baseTTL(d))
	}

	value, err := h.eng.breakdown.Run(pc.Ctx, pc.CacheName, pc.Key, internalEnabled, distributedEnabled, d.DistributedLockName, reader, loaderFn, writer)
	if err != nil {
		if errors.Is(err, ErrLoaderReturnedNull) {
			if d.CacheNullValues {
				if perr := h.eng.persist(pc.Ctx, pc.CacheName, pc.Key, nil, true, d, h.eng.baseTTL(d)); perr != nil {
					return Failed, perr
				}
			}
			pc.Found = true
			pc.Result = nil
			pc.ResultNull = true
			return Handled, nil
		}
		if errors.Is(err, ErrLockAcquisitionTimeout) {
			h.eng.metrics.LockAcquisitionTimeout()
			// §7: a timed-out lease returns whatever reader() last
			// produced, or a clean miss if still nothing — never the
			// raw, unprotected loader. Handled (not Failed) so the
			// front door does not treat this as every-handler-failed
			// and fall back to calling the loader itself.
			pc.Found = false
			pc.Result = nil
			pc.ResultNull = false
			return Handled, nil
		}
		return Failed, err
	}

	pc.Found = true
	pc.Result = value
	pc.ResultNull = value == nil
	return Handled, nil
}

// preRefreshHandler implements the Pre-Refresh Trigger step: on a hit
// whose remaining TTL has crossed the descriptor's threshold, submits
// an async refresh job. It never alters the value already returned to
// this caller.
type preRefreshHandler struct{ eng *Engine }

func (h *preRefreshHandler) Name() string { return "pre-refresh-trigger" }

func (h *preRefreshHandler) Supports(pc *PipelineContext) bool {
	return pc.Found && pc.Descriptor.EnablePreRefresh && pc.Envelope != nil && !pc.Envelope.Null && pc.Loader != nil
}

func (h *preRefreshHandler) Handle(pc *PipelineContext) (Outcome, error) {
	if !pc.Envelope.ShouldPreRefresh(pc.Now, pc.Descriptor.PreRefreshThreshold) {
		return Continued, nil
	}

	cacheName, key, loader, d := pc.CacheName, pc.Key, pc.Loader, pc.Descriptor
	_, _ = h.eng.prerefresh.Submit(identityOf(cacheName, key), func(ctx context.Context) error {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		if value == nil {
			if d.CacheNullValues {
				return h.eng.persist(ctx, cacheName, key, nil, true, d, h.eng.baseTTL(d))
			}
			return nil
		}
		return h.eng.persist(ctx, cacheName, key, value, false, d, h.eng.baseTTL(d))
	})
	return Continued, nil
}
