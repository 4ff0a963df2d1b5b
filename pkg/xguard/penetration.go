package xguard

import (
	"context"
	"log/slog"

	"github.com/cacheguard/core/pkg/bloom"
)

// Penetration wraps the Redis-backed bloom filter for the admission
// check §4.7.1 runs before a GET loader: a key the filter has never
// seen short-circuits the pipeline as a definite miss, instead of
// paying for a loader invocation that is very likely to miss again.
type Penetration struct {
	filter *bloom.Filter
	logger *slog.Logger
}

// NewPenetration wraps filter. filter may be nil, in which case
// Check always passes (penetration protection becomes a no-op) —
// this lets the Engine be constructed without bloom support.
func NewPenetration(filter *bloom.Filter, logger *slog.Logger) *Penetration {
	return &Penetration{filter: filter, logger: logger}
}

// Check reports whether key should be allowed to proceed to the
// loader. A false result means the bloom filter definitely has not
// seen this key before (reject, count as a penetration block).
func (p *Penetration) Check(ctx context.Context, cacheName, key string) bool {
	if p.filter == nil {
		return true
	}
	return p.filter.MightContain(ctx, cacheName, key)
}

// Admit records key as a member of cacheName's filter, called after a
// successful PUT.
func (p *Penetration) Admit(ctx context.Context, cacheName, key string) {
	if p.filter == nil {
		return
	}
	if err := p.filter.Add(ctx, cacheName, key); err != nil {
		p.logWarn("xguard: bloom admit failed", "cache", cacheName, "error", err)
	}
}

// Clear drops cacheName's filter entirely, called by Engine.Clear.
func (p *Penetration) Clear(ctx context.Context, cacheName string) {
	if p.filter == nil {
		return
	}
	if err := p.filter.Clear(ctx, cacheName); err != nil {
		p.logWarn("xguard: bloom clear failed", "cache", cacheName, "error", err)
	}
}

func (p *Penetration) logWarn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
