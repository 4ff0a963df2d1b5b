package xguard

import (
	"context"
	"time"
)

// detachedCtx decouples a context from its parent's cancellation chain
// while still honoring Value lookups. Used so that the first caller's
// cancellation in a breakdown wave never aborts the shared singleflight
// execution or a lock release running on its behalf for other waiters.
// Grounded on the same pattern in pkg/storage/xcache/loader_impl.go.
type detachedCtx struct {
	context.Context
}

func (c detachedCtx) Deadline() (time.Time, bool) { return time.Time{}, false }
func (c detachedCtx) Done() <-chan struct{}       { return nil }
func (c detachedCtx) Err() error                  { return nil }

func contextDetached(ctx context.Context) context.Context {
	return detachedCtx{Context: ctx}
}

// contextWithIndependentTimeout detaches ctx from its cancellation
// chain and binds a fresh timeout, so a long-running shared operation
// (the singleflight-deduplicated load, or a lock release) still
// terminates even though the originating caller can no longer cancel
// it directly.
func contextWithIndependentTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	detached := contextDetached(ctx)
	if timeout <= 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, timeout)
}
