package locallock

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/robfig/cron/v3"
)

// everySpec renders d as a robfig/cron "@every" schedule.
func everySpec(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}

// Unlocker releases a previously-obtained local lock. Idempotent: the
// first call releases and returns nil, later calls return
// [ErrNotLocked].
type Unlocker func(ctx context.Context) error

// entry is a channel-based mutex: a size-1 channel stands in for the
// lock, a send acquires and a receive releases. refcnt tracks holders
// plus waiters; it reaches zero only once every caller referencing this
// identity has released or given up.
type entry struct {
	ch     chan struct{}
	refcnt atomic.Int32
}

// Registry is the per-process map of (cache-name, key) to reentrant
// mutex backing the breakdown protocol's local-lock step.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry

	// idle tracks identities with refcnt==0, evicting the oldest once
	// either the idle window elapses or capacity is exceeded; its
	// onEvicted callback is what actually removes a cold identity from
	// entries.
	idle *expirable.LRU[string, struct{}]

	cron    *cron.Cron
	options *Options

	closed atomic.Bool
	done   chan struct{}
}

// New creates a Registry. It starts a background goroutine (owned by
// the expirable LRU) and a cron scheduler for periodic compaction; call
// Close to stop both.
func New(opts ...Option) (*Registry, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	r := &Registry{
		entries: make(map[string]*entry),
		options: o,
		done:    make(chan struct{}),
	}
	r.idle = expirable.NewLRU(o.MaxEntries, r.sweepEntry, o.IdleWindow)

	r.cron = cron.New()
	if _, err := r.cron.AddFunc(everySpec(o.SweepInterval), r.compact); err != nil {
		return nil, err
	}
	r.cron.Start()

	return r, nil
}

func identityOf(cacheName, key string) string {
	return cacheName + "\x00" + key
}

// Obtain blocks until the (cacheName, key) lock is acquired or ctx is
// done. A call made with a context already marked as holding this
// identity (returned from a prior Obtain on the same identity)
// re-enters without blocking or touching the registry.
func (r *Registry) Obtain(ctx context.Context, cacheName, key string) (context.Context, Unlocker, error) {
	if ctx == nil {
		return nil, nil, ErrNilContext
	}
	if key == "" {
		return ctx, nil, ErrEmptyKey
	}
	if r.closed.Load() {
		return ctx, nil, ErrClosed
	}

	identity := identityOf(cacheName, key)
	if isHeld(ctx, identity) {
		return ctx, noopUnlock, nil
	}

	e, err := r.getOrCreate(identity)
	if err != nil {
		return ctx, nil, err
	}

	select {
	case e.ch <- struct{}{}:
		if r.closed.Load() {
			<-e.ch
			r.release(identity, e)
			return ctx, nil, ErrClosed
		}
		return withHeldIdentity(ctx, identity), r.unlocker(identity, e), nil
	case <-ctx.Done():
		r.release(identity, e)
		return ctx, nil, ctx.Err()
	case <-r.done:
		r.release(identity, e)
		return ctx, nil, ErrClosed
	}
}

// TryObtain acquires the lock without blocking. A nil Unlocker with a
// nil error means the lock is currently held elsewhere.
func (r *Registry) TryObtain(ctx context.Context, cacheName, key string) (context.Context, Unlocker, error) {
	if ctx == nil {
		return nil, nil, ErrNilContext
	}
	if key == "" {
		return ctx, nil, ErrEmptyKey
	}
	if r.closed.Load() {
		return ctx, nil, ErrClosed
	}

	identity := identityOf(cacheName, key)
	if isHeld(ctx, identity) {
		return ctx, noopUnlock, nil
	}

	e, err := r.getOrCreate(identity)
	if err != nil {
		return ctx, nil, err
	}

	select {
	case e.ch <- struct{}{}:
		if r.closed.Load() {
			<-e.ch
			r.release(identity, e)
			return ctx, nil, ErrClosed
		}
		return withHeldIdentity(ctx, identity), r.unlocker(identity, e), nil
	default:
		r.release(identity, e)
		if r.closed.Load() {
			return ctx, nil, ErrClosed
		}
		return ctx, nil, nil
	}
}

func (r *Registry) getOrCreate(identity string) (*entry, error) {
	r.mu.Lock()
	if r.closed.Load() {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	e, ok := r.entries[identity]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		r.entries[identity] = e
	}
	e.refcnt.Add(1)
	r.mu.Unlock()

	// Cancel idle eligibility now that identity is referenced again.
	// Must happen outside r.mu: Remove can synchronously invoke
	// sweepEntry, which itself takes r.mu.
	r.idle.Remove(identity)
	return e, nil
}

// release drops a reference. When the last reference goes away the
// identity becomes idle-eligible; sweepEntry (invoked by the idle LRU,
// on its own schedule) is what actually deletes it from entries.
func (r *Registry) release(identity string, e *entry) {
	if e.refcnt.Add(-1) == 0 {
		r.idle.Add(identity, struct{}{})
	}
}

// sweepEntry is the expirable LRU's onEvicted callback, invoked either
// by its background TTL sweep or synchronously when Add exceeds
// capacity. It must not call back into r.idle: this runs while the
// LRU's own internal lock is held.
func (r *Registry) sweepEntry(identity string, _ struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[identity]; ok && e.refcnt.Load() == 0 {
		delete(r.entries, identity)
	}
}

// compact is the cron-driven backstop: it enforces MaxEntries directly
// against cold entries, covering any identity the idle LRU has not yet
// caught up to.
func (r *Registry) compact() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) <= r.options.MaxEntries {
		return
	}
	for identity, e := range r.entries {
		if len(r.entries) <= r.options.MaxEntries {
			return
		}
		if e.refcnt.Load() == 0 {
			delete(r.entries, identity)
		}
	}
}

func (r *Registry) unlocker(identity string, e *entry) Unlocker {
	var released atomic.Bool
	return func(context.Context) error {
		if !released.CompareAndSwap(false, true) {
			return ErrNotLocked
		}
		<-e.ch
		r.release(identity, e)
		return nil
	}
}

// Len returns the number of tracked identities, held or idle.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close stops the background sweeper and cron scheduler. Already-held
// locks are unaffected and may still be released normally.
func (r *Registry) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	close(r.done)
	r.cron.Stop()
	stopCleanupGoroutine(r.idle)
}

// stopCleanupGoroutine reaches into expirable.LRU's unexported "done"
// channel to stop its background TTL-sweep goroutine, which has no
// public Close in golang-lru/v2@v2.0.7. Mirrors xlru's handling of the
// same gap; if the upstream layout ever changes this degrades to a
// harmless no-op (goroutine leak only in tests, not production, since
// Registry is process-lifetime there).
func stopCleanupGoroutine(lru any) {
	defer func() { _ = recover() }()

	v := reflect.ValueOf(lru)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return
	}
	doneField := v.Elem().FieldByName("done")
	if !doneField.IsValid() || doneField.IsNil() {
		return
	}
	if doneField.Type() != reflect.TypeOf(make(chan struct{})) {
		return
	}
	doneCh := *(*chan struct{})(unsafe.Pointer(doneField.UnsafeAddr()))
	close(doneCh)
}
