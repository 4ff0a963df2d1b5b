package xguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cacheguard/core/pkg/dlock"
	"github.com/cacheguard/core/pkg/locallock"
)

// Reader attempts to read the current value without invoking the
// loader. found is false when the read is a definite cache miss;
// err is reserved for backend failures.
type Reader func(ctx context.Context) (value []byte, found bool, err error)

// LoadFunc computes the value when every Reader check comes up empty.
// A nil value with a nil error is treated as a null load result.
type LoadFunc func(ctx context.Context) (value []byte, err error)

// Writer persists a freshly loaded value. Writer failures are logged
// and do not fail the overall Run: the loaded value still reaches the
// caller, matching the teacher's "cache write is best-effort" policy.
type Writer func(ctx context.Context, value []byte) error

const (
	// DefaultLeaseWait bounds how long Run waits to acquire the
	// distributed lease before falling back per ErrLockAcquisitionTimeout.
	DefaultLeaseWait = 2 * time.Second

	// DefaultLease bounds how long an acquired distributed lease is
	// held before it auto-expires.
	DefaultLease = 10 * time.Second

	// DefaultOpTimeout bounds the detached, singleflight-shared
	// execution so it cannot hang forever once every original caller
	// has stopped waiting on it.
	DefaultOpTimeout = 30 * time.Second
)

// Breakdown implements the triple-check single-flight protocol: at
// most one loader invocation across the cluster per concurrent wave of
// misses on a given key. It composes an in-process singleflight group
// (collapsing concurrent identical requests on this instance down to
// one executor), the Local Lock Registry (a reentrant mutex so a
// loader that calls back into the engine for the same key does not
// deadlock), and an optional distributed lock Adapter.
//
// Ordering invariant: the local mutex is always acquired before the
// distributed lease and released after it. Reversing this order would
// permit a local deadlock.
type Breakdown struct {
	local *locallock.Registry
	dist  dlock.Adapter

	group singleflight.Group

	leaseWait  time.Duration
	lease      time.Duration
	opTimeout  time.Duration
	lockPrefix string

	logger *slog.Logger
}

// BreakdownOption configures a Breakdown at construction time.
type BreakdownOption func(*Breakdown)

// WithLeaseWait overrides DefaultLeaseWait.
func WithLeaseWait(d time.Duration) BreakdownOption {
	return func(b *Breakdown) {
		if d > 0 {
			b.leaseWait = d
		}
	}
}

// WithLease overrides DefaultLease.
func WithLease(d time.Duration) BreakdownOption {
	return func(b *Breakdown) {
		if d > 0 {
			b.lease = d
		}
	}
}

// WithOpTimeout overrides DefaultOpTimeout.
func WithOpTimeout(d time.Duration) BreakdownOption {
	return func(b *Breakdown) {
		if d > 0 {
			b.opTimeout = d
		}
	}
}

// WithLockPrefix overrides the distributed lock key prefix used when a
// descriptor does not supply its own DistributedLockName. Default
// "breakdown", per spec §6's encoding convention.
func WithLockPrefix(prefix string) BreakdownOption {
	return func(b *Breakdown) {
		if prefix != "" {
			b.lockPrefix = prefix
		}
	}
}

// WithBreakdownLogger overrides the logger. Passing nil disables
// logging.
func WithBreakdownLogger(logger *slog.Logger) BreakdownOption {
	return func(b *Breakdown) { b.logger = logger }
}

// NewBreakdown creates a Breakdown protocol runner. local must not be
// nil; dist may be nil, in which case the distributed lease step is
// always skipped regardless of what callers request.
func NewBreakdown(local *locallock.Registry, dist dlock.Adapter, opts ...BreakdownOption) (*Breakdown, error) {
	if local == nil {
		return nil, errors.New("xguard: nil local lock registry")
	}
	b := &Breakdown{
		local:      local,
		dist:       dist,
		leaseWait:  DefaultLeaseWait,
		lease:      DefaultLease,
		opTimeout:  DefaultOpTimeout,
		lockPrefix: "breakdown",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b, nil
}

// sfIdentity is the singleflight dedup key; distinct from the local
// lock identity only in that it never needs cache-name/key separator
// collision safety beyond what singleflight itself requires.
func sfIdentity(cacheName, key string) string {
	return cacheName + "\x00" + key
}

// Run executes the breakdown protocol for (cacheName, key).
// internalEnabled and distributedEnabled select which lock layers
// apply, per the descriptor's internal-lock/distributed-lock flags;
// lockName overrides the distributed lock key prefix for this call
// (empty uses the Breakdown's configured default).
func (b *Breakdown) Run(
	ctx context.Context,
	cacheName, key string,
	internalEnabled, distributedEnabled bool,
	lockName string,
	reader Reader,
	loader LoadFunc,
	writer Writer,
) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if loader == nil {
		return nil, ErrNilLoader
	}

	// Step 1: unguarded read.
	if v, found, err := reader(ctx); err != nil {
		return nil, err
	} else if found {
		return v, nil
	}

	ch := b.group.DoChan(sfIdentity(cacheName, key), func() (any, error) {
		sfCtx, cancel := contextWithIndependentTimeout(ctx, b.opTimeout)
		defer cancel()
		return b.runLocked(sfCtx, cacheName, key, internalEnabled, distributedEnabled, lockName, reader, loader, writer)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		value, _ := res.Val.([]byte)
		return value, nil
	}
}

// runLocked performs steps 2-6 for the singleflight leader only.
func (b *Breakdown) runLocked(
	ctx context.Context,
	cacheName, key string,
	internalEnabled, distributedEnabled bool,
	lockName string,
	reader Reader,
	loader LoadFunc,
	writer Writer,
) ([]byte, error) {
	if internalEnabled {
		heldCtx, unlock, err := b.local.Obtain(ctx, cacheName, key)
		if err != nil {
			return nil, err
		}
		defer func() {
			unlockCtx, cancel := contextWithIndependentTimeout(ctx, 5*time.Second)
			defer cancel()
			_ = unlock(unlockCtx)
		}()
		ctx = heldCtx

		if v, found, err := reader(ctx); err != nil {
			return nil, err
		} else if found {
			return v, nil
		}
	}

	if distributedEnabled && b.dist != nil {
		prefix := lockName
		if prefix == "" {
			prefix = b.lockPrefix
		}
		lockKey := fmt.Sprintf("%s:%s::%s", prefix, cacheName, key)

		heldCtx, unlock, acquired, err := b.dist.TryLock(ctx, lockKey, b.leaseWait, b.lease)
		if err != nil {
			b.logWarn("xguard: breakdown lock acquisition error", "key", lockKey, "error", err)
		} else if !acquired {
			// Policy per §7: return whatever reader() last produced;
			// if still nothing, a cache miss rather than a loader call.
			if v, found, rerr := reader(ctx); rerr == nil && found {
				return v, nil
			}
			return nil, ErrLockAcquisitionTimeout
		} else {
			defer func() {
				unlockCtx, cancel := contextWithIndependentTimeout(ctx, 5*time.Second)
				defer cancel()
				if uerr := unlock(unlockCtx); uerr != nil {
					b.logWarn("xguard: breakdown unlock failed", "key", lockKey, "error", uerr)
				}
			}()
			ctx = heldCtx

			if v, found, err := reader(ctx); err != nil {
				return nil, err
			} else if found {
				return v, nil
			}
		}
	}

	value, err := loader(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoaderFailed, err)
	}
	if value == nil {
		return nil, ErrLoaderReturnedNull
	}

	if writer != nil {
		if err := writer(ctx, value); err != nil {
			b.logWarn("xguard: breakdown cache write failed", "cache", cacheName, "key", key, "error", err)
		}
	}

	return value, nil
}

func (b *Breakdown) logWarn(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}
}
