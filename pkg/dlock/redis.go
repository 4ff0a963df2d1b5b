package dlock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// redisAdapter implements Adapter with a single-master SETNX+Lua lock.
// It is sufficient to protect a single Redis primary against concurrent
// loaders; it does not provide Redlock's multi-master quorum guarantee
// (see NewRedsyncAdapter for that).
type redisAdapter struct {
	uclient redis.UniversalClient
	options *Options
}

// NewRedisAdapter creates an Adapter backed by client using SET NX PX
// and a Lua compare-and-delete for release.
func NewRedisAdapter(client redis.UniversalClient, opts ...Option) (Adapter, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	options := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return &redisAdapter{uclient: client, options: options}, nil
}

func (a *redisAdapter) TryLock(ctx context.Context, key string, wait, lease time.Duration) (context.Context, Unlocker, bool, error) {
	if key == "" {
		return ctx, nil, false, ErrEmptyKey
	}
	if lease <= 0 {
		return ctx, nil, false, ErrInvalidLease
	}
	if isHeld(ctx, key) {
		return ctx, noopUnlock, true, nil
	}

	lockKey := a.options.KeyPrefix + key
	token := generateToken()

	deadline := time.Now().Add(wait)
	for {
		acquired, err := a.uclient.SetNX(ctx, lockKey, token, lease).Result()
		if err != nil {
			return ctx, nil, false, err
		}
		if acquired {
			return withHeldKey(ctx, key), a.unlocker(lockKey, token), true, nil
		}
		if wait <= 0 || time.Now().After(deadline) {
			return ctx, nil, false, nil
		}
		select {
		case <-ctx.Done():
			return ctx, nil, false, ctx.Err()
		case <-time.After(a.options.PollInterval):
		}
	}
}

func (a *redisAdapter) Lock(ctx context.Context, key string, lease time.Duration) (context.Context, Unlocker, error) {
	if key == "" {
		return ctx, nil, ErrEmptyKey
	}
	if lease <= 0 {
		return ctx, nil, ErrInvalidLease
	}
	if isHeld(ctx, key) {
		return ctx, noopUnlock, nil
	}

	lockKey := a.options.KeyPrefix + key
	token := generateToken()

	for {
		acquired, err := a.uclient.SetNX(ctx, lockKey, token, lease).Result()
		if err != nil {
			return ctx, nil, err
		}
		if acquired {
			return withHeldKey(ctx, key), a.unlocker(lockKey, token), nil
		}
		select {
		case <-ctx.Done():
			return ctx, nil, ctx.Err()
		case <-time.After(a.options.PollInterval):
		}
	}
}

func (a *redisAdapter) unlocker(lockKey, token string) Unlocker {
	return func(ctx context.Context) error {
		result, err := unlockScript.Run(ctx, a.uclient, []string{lockKey}, token).Int64()
		if err != nil {
			return err
		}
		if result == 0 {
			a.options.logInfo("dlock: lock expired before unlock", "key", lockKey)
			return ErrLockExpired
		}
		return nil
	}
}
