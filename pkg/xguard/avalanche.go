package xguard

import "time"

// Avalanche resolves the TTL actually written to Redis on every PUT,
// per §4.7.2: if the descriptor requests user jitter (RandomTTL), that
// variance is applied and the system default is suppressed; otherwise
// a system-default jitter is applied so that mass co-expiry from many
// identical-TTL PUTs is spread out. The policy never extends a TTL,
// only shortens it.
type Avalanche struct {
	// MinJitterRatio and MaxJitterRatio bound the system-default
	// jitter band applied when a descriptor does not request its own
	// RandomTTL/Variance. Defaults 0.05/0.20 per spec.md §9 (resolving
	// the two competing source defaults in favor of 5-20%).
	MinJitterRatio float64
	MaxJitterRatio float64
}

// DefaultAvalanche returns the system-default 5-20% jitter policy.
func DefaultAvalanche() *Avalanche {
	return &Avalanche{MinJitterRatio: 0.05, MaxJitterRatio: 0.20}
}

// Resolve computes the TTL to write to Redis for a PUT against
// descriptor, given the base TTL already normalized from the call
// site (0 resolved to the cache's configured default upstream).
func (a *Avalanche) Resolve(base time.Duration, d *Descriptor) time.Duration {
	if base <= 0 {
		return base
	}
	if d != nil && d.RandomTTL {
		return EffectiveTTL(base, true, d.Variance)
	}
	return a.jitter(base)
}

// jitter applies the system-default band: u drawn uniformly from
// [MinJitterRatio, MaxJitterRatio), result = base * (1 - u).
func (a *Avalanche) jitter(base time.Duration) time.Duration {
	lo, hi := a.MinJitterRatio, a.MaxJitterRatio
	if hi <= lo {
		return base
	}
	u := lo + randomFloat64()*(hi-lo)
	jittered := time.Duration(float64(base) * (1 - u))
	if jittered < time.Second {
		return time.Second
	}
	return jittered
}
