package xguard

import (
	"fmt"
	"strings"
)

// clearKeysHandler is CLEAR step 1: enumerates every envelope key under
// cacheName's prefix and deletes them in one round-trip, then drops
// the cache-name's bloom filter entirely. The enumerated keys are
// stashed on pc for the later registry/delayed-delete steps, which
// need the user-facing keys rather than the Redis-prefixed ones.
type clearKeysHandler struct{ eng *Engine }

func (h *clearKeysHandler) Name() string                  { return "clear-keys" }
func (h *clearKeysHandler) Supports(*PipelineContext) bool { return true }

func (h *clearKeysHandler) Handle(pc *PipelineContext) (Outcome, error) {
	keys, err := h.eng.store.Keys(pc.Ctx, envelopePrefix(pc.CacheName))
	if err != nil {
		return Failed, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if len(keys) > 0 {
		if err := h.eng.store.Del(pc.Ctx, keys...); err != nil {
			return Failed, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}
	pc.Keys = keys
	h.eng.penetration.Clear(pc.Ctx, pc.CacheName)
	return Continued, nil
}

func (h *clearKeysHandler) StopOnException() bool { return true }

// clearRegistryHandler is CLEAR step 2: drops every descriptor
// registered for cacheName, both CACHE and EVICT operation types.
type clearRegistryHandler struct{ eng *Engine }

func (h *clearRegistryHandler) Name() string                  { return "clear-registry" }
func (h *clearRegistryHandler) Supports(*PipelineContext) bool { return true }

func (h *clearRegistryHandler) Handle(pc *PipelineContext) (Outcome, error) {
	h.eng.registry.RemoveAll(pc.CacheName, OperationCache)
	h.eng.registry.RemoveAll(pc.CacheName, OperationEvict)
	return Continued, nil
}

// clearDelayedHandler is CLEAR step 3: arms one scheduled delayed
// delete per key enumerated by clearKeysHandler, mirroring EVICT's
// double-delete protection across the whole cache-name.
type clearDelayedHandler struct{ eng *Engine }

func (h *clearDelayedHandler) Name() string                  { return "clear-delayed-delete" }
func (h *clearDelayedHandler) Supports(*PipelineContext) bool { return true }

func (h *clearDelayedHandler) Handle(pc *PipelineContext) (Outcome, error) {
	prefix := envelopePrefix(pc.CacheName)
	for _, k := range pc.Keys {
		h.eng.scheduleDelayedDelete(pc.CacheName, strings.TrimPrefix(k, prefix))
	}
	return Continued, nil
}
