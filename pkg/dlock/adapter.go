package dlock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"
)

// Unlocker releases a previously-acquired lock.
type Unlocker func(ctx context.Context) error

// Adapter is the distributed lock abstraction the breakdown protocol
// drives. Every successful acquisition returns a derived context
// marking the key as held, so a nested call for the same key (made by
// the loader this lock is guarding) re-enters without blocking.
type Adapter interface {
	// TryLock attempts to acquire key, polling for up to wait before
	// giving up. lease bounds how long the lock is held once acquired.
	// acquired is false (not an error) when wait elapses without
	// success; errors are reserved for backend failures.
	TryLock(ctx context.Context, key string, wait, lease time.Duration) (heldCtx context.Context, unlock Unlocker, acquired bool, err error)

	// Lock blocks until key is acquired or ctx is done.
	Lock(ctx context.Context, key string, lease time.Duration) (heldCtx context.Context, unlock Unlocker, err error)
}

// Options configures a redisAdapter.
type Options struct {
	// KeyPrefix prefixes every lock key in Redis. Default "lock:".
	KeyPrefix string

	// PollInterval is how often TryLock/Lock retry while waiting for a
	// contended lock to free up. Default 20ms.
	PollInterval time.Duration

	// Logger receives a log line when Unlock finds the lock already
	// expired or stolen. Defaults to slog.Default().
	Logger *slog.Logger
}

// Option configures an Adapter at construction time.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		KeyPrefix:    "lock:",
		PollInterval: 20 * time.Millisecond,
		Logger:       slog.Default(),
	}
}

// WithKeyPrefix overrides the Redis lock key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(o *Options) { o.KeyPrefix = prefix }
}

// WithPollInterval overrides the contention poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.PollInterval = d
		}
	}
}

// WithLogger overrides the logger. Passing nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// generateToken returns a unique lock value used to tell this
// acquisition's lock apart from any other holder's.
func generateToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return hex.EncodeToString(b)
}

func (o *Options) logWarn(msg string, args ...any) {
	if o.Logger != nil {
		o.Logger.Warn(msg, args...)
	}
}

func (o *Options) logInfo(msg string, args ...any) {
	if o.Logger != nil {
		o.Logger.Info(msg, args...)
	}
}

// noopUnlock is returned for reentrant acquisitions: only the outermost
// TryLock/Lock for a given key actually talks to the backend.
func noopUnlock(context.Context) error { return nil }
