package xguard

import "fmt"

// immediateDeleteHandler is EVICT step 1: an unconditional Redis DEL,
// run before any registry bookkeeping so a concurrent reader never
// observes a descriptor cleaned up against a value that is still live.
type immediateDeleteHandler struct{ eng *Engine }

func (h *immediateDeleteHandler) Name() string                  { return "immediate-delete" }
func (h *immediateDeleteHandler) Supports(*PipelineContext) bool { return true }

func (h *immediateDeleteHandler) Handle(pc *PipelineContext) (Outcome, error) {
	if err := h.eng.store.Del(pc.Ctx, envelopeKey(pc.CacheName, pc.Key)); err != nil {
		return Failed, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return Continued, nil
}

// StopOnException: a failed immediate delete must abort the chain —
// scheduling a delayed delete or cleaning up the registry for a value
// that was never actually removed would be worse than doing nothing.
func (h *immediateDeleteHandler) StopOnException() bool { return true }

// registryCleanupHandler is EVICT step 2: drop both the CACHE and
// EVICT descriptors registered for (cacheName, key), so a subsequent
// call synthesizes a fresh default descriptor rather than reusing
// stale metadata.
type registryCleanupHandler struct{ eng *Engine }

func (h *registryCleanupHandler) Name() string                  { return "registry-cleanup" }
func (h *registryCleanupHandler) Supports(*PipelineContext) bool { return true }

func (h *registryCleanupHandler) Handle(pc *PipelineContext) (Outcome, error) {
	h.eng.registry.Remove(pc.CacheName, pc.Key, OperationCache)
	h.eng.registry.Remove(pc.CacheName, pc.Key, OperationEvict)
	return Continued, nil
}

// delayedDeleteHandler is EVICT step 3: arms the scheduled second
// delete that closes the read-after-evict race (spec §4.8).
type delayedDeleteHandler struct{ eng *Engine }

func (h *delayedDeleteHandler) Name() string                  { return "delayed-delete-schedule" }
func (h *delayedDeleteHandler) Supports(*PipelineContext) bool { return true }

func (h *delayedDeleteHandler) Handle(pc *PipelineContext) (Outcome, error) {
	h.eng.scheduleDelayedDelete(pc.CacheName, pc.Key)
	return Continued, nil
}
