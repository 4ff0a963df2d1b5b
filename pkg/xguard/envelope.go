package xguard

import "time"

// Envelope wraps a stored payload with the metadata the engine needs
// to self-report age and expiry without a second Redis round-trip.
// It is what is actually serialized to Redis under
// "<cache-name>::<key>".
type Envelope struct {
	// Value is the opaque Codec output, or nil for a cached-null
	// sentinel (see IsNullSentinel).
	Value []byte `json:"value"`

	// TypeTag names the value's declared type, mirroring the
	// descriptor's ValueType, so a reader constructed without the
	// original descriptor can still deserialize correctly.
	TypeTag string `json:"type_tag,omitempty"`

	// TTLSeconds replicates the Redis EXPIRE so the envelope can
	// self-report age without a separate TTL call. <=0 means "never
	// expires" for the purposes of IsExpired.
	TTLSeconds int64 `json:"ttl_seconds"`

	CreatedEpochMs    int64  `json:"created_epoch_ms"`
	LastAccessEpochMs int64  `json:"last_access_epoch_ms"`
	VisitCount        uint64 `json:"visit_count"`
	Version           uint64 `json:"version"`

	// Null marks a cached-absence sentinel, written when a loader
	// returns null and cache-null-values is enabled.
	Null bool `json:"null,omitempty"`
}

// nullSentinel is the TypeTag used to mark a cached-null envelope.
const nullSentinel = "<null>"

// NewEnvelope wraps value (already codec-encoded) with fresh metadata.
func NewEnvelope(value []byte, typeTag string, ttl time.Duration, now time.Time) *Envelope {
	ms := now.UnixMilli()
	return &Envelope{
		Value:             value,
		TypeTag:           typeTag,
		TTLSeconds:        int64(ttl / time.Second),
		CreatedEpochMs:    ms,
		LastAccessEpochMs: ms,
		VisitCount:        1,
		Version:           1,
	}
}

// NewNullEnvelope wraps a cached-absence marker.
func NewNullEnvelope(ttl time.Duration, now time.Time) *Envelope {
	e := NewEnvelope(nil, nullSentinel, ttl, now)
	e.Null = true
	return e
}

// IsExpired reports whether the envelope is expired as of now, per the
// invariant: is-expired() == true whenever ttl > 0 AND (now - created)
// > ttl * 1000 (ms).
func (e *Envelope) IsExpired(now time.Time) bool {
	if e.TTLSeconds <= 0 {
		return false
	}
	return IsExpired(now, e.createdAt(), e.ttl())
}

// Remaining reports the time left before the envelope expires.
func (e *Envelope) Remaining(now time.Time) time.Duration {
	return Remaining(now, e.createdAt(), e.ttl())
}

// ShouldPreRefresh reports whether the envelope's remaining TTL has
// crossed threshold, relative to its own TTL.
func (e *Envelope) ShouldPreRefresh(now time.Time, threshold float64) bool {
	return ShouldPreRefresh(now, e.createdAt(), e.ttl(), threshold)
}

// Touch records an access: bumps the visit counter and last-access
// timestamp. Called opportunistically; a missed call (e.g. the
// fire-and-forget writeback never lands) does not violate correctness.
func (e *Envelope) Touch(now time.Time) {
	e.VisitCount++
	e.LastAccessEpochMs = now.UnixMilli()
}

func (e *Envelope) createdAt() time.Time {
	return time.UnixMilli(e.CreatedEpochMs)
}

func (e *Envelope) ttl() time.Duration {
	return time.Duration(e.TTLSeconds) * time.Second
}
