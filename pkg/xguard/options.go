package xguard

import (
	"log/slog"
	"time"

	"github.com/cacheguard/core/pkg/bloom"
	"github.com/cacheguard/core/pkg/dlock"
	"github.com/cacheguard/core/pkg/locallock"
	"github.com/cacheguard/core/pkg/prerefresh"
)

// WithCodec overrides the default JSON Codec used to encode/decode
// values wrapped inside an Envelope.
func WithCodec(codec Codec) Option {
	return func(c *engineConfig) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// WithKeyResolver stores a KeyResolver on the Engine. The Engine's
// Get/Put/PutIfAbsent/Evict/Clear methods take an already-resolved key
// and do not call it.
func WithKeyResolver(resolver KeyResolver) Option {
	return func(c *engineConfig) { c.keyResolver = resolver }
}

// WithBloomFilter enables penetration protection using filter.
func WithBloomFilter(filter *bloom.Filter) Option {
	return func(c *engineConfig) { c.bloomFilter = filter }
}

// WithDistributedLock installs the distributed lock Adapter the
// breakdown protocol's distributed-lease step uses. Without it, a
// descriptor's DistributedLock flag has no effect (the step is
// skipped).
func WithDistributedLock(adapter dlock.Adapter) Option {
	return func(c *engineConfig) { c.dist = adapter }
}

// WithLocalLockRegistry supplies an already-constructed Local Lock
// Registry instead of letting the Engine create and own one. The
// caller remains responsible for closing it.
func WithLocalLockRegistry(registry *locallock.Registry) Option {
	return func(c *engineConfig) { c.localLock = registry }
}

// WithPrerefreshPool supplies an already-constructed Pre-Refresh
// Executor instead of letting the Engine create and own one. The
// caller remains responsible for shutting it down.
func WithPrerefreshPool(pool *prerefresh.Pool) Option {
	return func(c *engineConfig) { c.prerefresh = pool }
}

// WithMetadataRegistry supplies an already-constructed Metadata
// Registry instead of letting the Engine create one with default
// Two-List capacities.
func WithMetadataRegistry(registry *MetadataRegistry) Option {
	return func(c *engineConfig) { c.registry = registry }
}

// WithAvalancheJitter overrides the system-default jitter band applied
// when a descriptor does not request its own RandomTTL/Variance.
func WithAvalancheJitter(minRatio, maxRatio float64) Option {
	return func(c *engineConfig) {
		c.avalanche = &Avalanche{MinJitterRatio: minRatio, MaxJitterRatio: maxRatio}
	}
}

// WithDefaultTTL overrides DefaultTTL, used whenever a descriptor's
// TTLSeconds is 0 ("use the cache's configured default").
func WithDefaultTTL(d time.Duration) Option {
	return func(c *engineConfig) {
		if d > 0 {
			c.defaultTTL = d
		}
	}
}

// WithDoubleDeleteDelay overrides DefaultDoubleDeleteDelay, the gap
// between an EVICT's immediate delete and its scheduled second delete.
func WithDoubleDeleteDelay(d time.Duration) Option {
	return func(c *engineConfig) {
		if d > 0 {
			c.doubleDeleteDelay = d
		}
	}
}

// WithMetrics installs a Metrics recorder. Defaults to a no-op.
func WithMetrics(m Metrics) Option {
	return func(c *engineConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithLogger overrides the logger. Passing nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) { c.logger = logger }
}

// WithBreakdownOptions passes additional BreakdownOption values
// through to the internally constructed Breakdown protocol runner
// (lease timing, lock key prefix, and so on).
func WithBreakdownOptions(opts ...BreakdownOption) Option {
	return func(c *engineConfig) { c.breakdownOpts = append(c.breakdownOpts, opts...) }
}
