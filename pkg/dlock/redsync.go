package dlock

import (
	"context"
	"errors"
	"time"

	"github.com/go-redsync/redsync/v4"
	goredispool "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// redsyncAdapter implements Adapter on top of go-redsync's Redlock
// algorithm, for deployments that run a quorum of independent Redis
// masters instead of a single primary.
type redsyncAdapter struct {
	rs      *redsync.Redsync
	options *Options
}

// NewRedsyncAdapter creates a Redlock-backed Adapter across the given
// independent Redis clients (conventionally an odd number ≥ 3, each a
// separate master, per the Redlock algorithm).
func NewRedsyncAdapter(clients []redis.UniversalClient, opts ...Option) (Adapter, error) {
	if len(clients) == 0 {
		return nil, ErrNilClient
	}
	options := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	pools := make([]redsync.Pool, 0, len(clients))
	for _, c := range clients {
		if c == nil {
			return nil, ErrNilClient
		}
		pools = append(pools, goredispool.NewPool(c))
	}

	return &redsyncAdapter{rs: redsync.New(pools...), options: options}, nil
}

func (a *redsyncAdapter) mutex(key string, lease time.Duration) *redsync.Mutex {
	return a.rs.NewMutex(
		a.options.KeyPrefix+key,
		redsync.WithExpiry(lease),
		redsync.WithRetryDelay(a.options.PollInterval),
	)
}

func (a *redsyncAdapter) TryLock(ctx context.Context, key string, wait, lease time.Duration) (context.Context, Unlocker, bool, error) {
	if key == "" {
		return ctx, nil, false, ErrEmptyKey
	}
	if lease <= 0 {
		return ctx, nil, false, ErrInvalidLease
	}
	if isHeld(ctx, key) {
		return ctx, noopUnlock, true, nil
	}

	tryCtx := ctx
	var cancel context.CancelFunc
	if wait > 0 {
		tryCtx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}

	m := a.mutex(key, lease)
	// TryLockContext makes a single attempt; LockContext retries every
	// PollInterval until tryCtx's wait deadline passes.
	acquire := m.TryLockContext
	if wait > 0 {
		acquire = m.LockContext
	}
	if err := acquire(tryCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redsync.ErrFailed) {
			return ctx, nil, false, nil
		}
		var errTaken *redsync.ErrTaken
		if errors.As(err, &errTaken) {
			return ctx, nil, false, nil
		}
		return ctx, nil, false, err
	}
	return withHeldKey(ctx, key), a.unlocker(m), true, nil
}

func (a *redsyncAdapter) Lock(ctx context.Context, key string, lease time.Duration) (context.Context, Unlocker, error) {
	if key == "" {
		return ctx, nil, ErrEmptyKey
	}
	if lease <= 0 {
		return ctx, nil, ErrInvalidLease
	}
	if isHeld(ctx, key) {
		return ctx, noopUnlock, nil
	}

	m := a.mutex(key, lease)
	if err := m.LockContext(ctx); err != nil {
		return ctx, nil, err
	}
	return withHeldKey(ctx, key), a.unlocker(m), nil
}

func (a *redsyncAdapter) unlocker(m *redsync.Mutex) Unlocker {
	return func(ctx context.Context) error {
		ok, err := m.UnlockContext(ctx)
		if err != nil {
			return err
		}
		if !ok {
			a.options.logInfo("dlock: redsync lock expired before unlock", "key", m.Name())
			return ErrLockExpired
		}
		return nil
	}
}
