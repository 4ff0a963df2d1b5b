package xguard

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// randomFloat64 returns a value in [0.0, 1.0) drawn from crypto/rand.
// Falls back to the midpoint if the system source is unavailable,
// matching the teacher's loader_impl.go behavior for the same failure.
func randomFloat64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0.5
	}
	const mantissaBits = 53
	return float64(binary.LittleEndian.Uint64(buf[:])>>11) * (1.0 / (1 << mantissaBits))
}

// EffectiveTTL computes the TTL a value should actually be stored with.
//
//   - base <= 0: returned unchanged (caller interprets the sign: 0 is
//     "use the cache's configured default", negative is "never expires").
//   - random == false: base is returned unchanged.
//   - random == true: a jitter u is drawn uniformly from [0, variance)
//     and base*(1-u) is returned, floored and never below one second.
//
// The jitter only ever shortens the TTL, never extends it.
func EffectiveTTL(base time.Duration, random bool, variance float64) time.Duration {
	if base <= 0 {
		return base
	}
	if !random {
		return base
	}
	if variance < 0 {
		variance = 0
	}
	if variance > 1 {
		variance = 1
	}
	u := randomFloat64() * variance
	jittered := time.Duration(float64(base) * (1 - u))
	if jittered < time.Second {
		return time.Second
	}
	return jittered
}

// IsExpired reports whether a value created at created with ttl is
// expired as of now. ttl <= 0 means "never expires".
func IsExpired(now, created time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(created) > ttl
}

// Remaining returns the time left before a value created at created
// with ttl expires, as observed at now. A non-positive ttl (never
// expires) returns the maximum representable duration.
func Remaining(now, created time.Time, ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return time.Duration(1<<63 - 1)
	}
	elapsed := now.Sub(created)
	left := ttl - elapsed
	if left < 0 {
		return 0
	}
	return left
}

// ShouldPreRefresh reports whether a value is close enough to
// expiring, relative to threshold, to warrant an async refresh.
// threshold must be in (0,1); values outside that range always return
// false (a no-op pre-refresh policy).
func ShouldPreRefresh(now, created time.Time, ttl time.Duration, threshold float64) bool {
	if threshold <= 0 || threshold >= 1 {
		return false
	}
	if ttl <= 0 {
		return false
	}
	elapsed := now.Sub(created)
	ratio := float64(elapsed) / float64(ttl)
	return ratio >= 1-threshold
}
