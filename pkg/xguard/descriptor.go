package xguard

// OperationType distinguishes a CACHE (get/put) descriptor from an
// EVICT descriptor when both are indexed by the same (cache-name, key)
// in the Metadata Registry.
type OperationType int

const (
	// OperationCache marks a descriptor governing get/put behavior.
	OperationCache OperationType = iota
	// OperationEvict marks a descriptor governing evict/clear behavior.
	OperationEvict
)

func (o OperationType) String() string {
	if o == OperationEvict {
		return "EVICT"
	}
	return "CACHE"
}

// Descriptor is the record stamped onto an annotated method and looked
// up by (cache-name, key) during invocation. The annotation-discovery
// and expression-evaluation layers that would normally populate this
// are out of scope for the core; callers register descriptors directly
// or let the Engine synthesize a default one.
type Descriptor struct {
	// CacheNames is the ordered set of logical cache names this
	// descriptor applies to. The first entry is used as the primary
	// namespace when the caller does not specify one explicitly.
	CacheNames []string

	// KeyExpression and KeyGeneratorName are mutually exclusive;
	// exactly one is used by a KeyResolver to derive the cache key
	// from method arguments. The core does not evaluate either; it
	// passes them through to the configured KeyResolver.
	KeyExpression    string
	KeyGeneratorName string

	// TTLSeconds is the base TTL. 0 means "use the cache's configured
	// default"; negative means "never expires".
	TTLSeconds int64

	// RandomTTL, if true, applies jitter using Variance.
	RandomTTL bool

	// Variance is in [0,1]; effective TTL is drawn from
	// base * (1 - u), u in [0, Variance).
	Variance float64

	// UseBloomFilter, if true, consults the Redis-backed bloom filter
	// on GET before running the breakdown loader.
	UseBloomFilter bool

	// CacheNullValues, if true, stores a loader-returned null as a
	// sentinel envelope; otherwise null results bypass caching.
	CacheNullValues bool

	// DistributedLock and InternalLock select breakdown coordination
	// modes; both may be enabled (distributed wraps local).
	DistributedLock bool
	InternalLock    bool

	// DistributedLockName is an optional prefix for the distributed
	// lease key; defaults to "breakdown" when empty.
	DistributedLockName string

	// EnablePreRefresh and PreRefreshThreshold: if enabled, an async
	// refresh is scheduled when remaining-TTL/configured-TTL falls at
	// or below threshold. Threshold must be in (0,1); default 0.3.
	EnablePreRefresh    bool
	PreRefreshThreshold float64

	// BeforeInvocation and AllEntries are evict-specific: invalidate
	// before the guarded method body runs, and invalidate the entire
	// cache rather than a single key.
	BeforeInvocation bool
	AllEntries       bool

	// Sync forces breakdown protection even for a key that would not
	// otherwise be treated as hot.
	Sync bool

	// Condition and Unless are boolean expressions gating whether this
	// descriptor applies to a given call; evaluated by an external
	// expression evaluator, out of scope here. The core exposes them
	// only for pass-through bookkeeping.
	Condition string
	Unless    string

	// ValueType names the declared element type, consumed by the
	// configured Codec during deserialization.
	ValueType string
}

// validate checks the descriptor's numeric ranges. Structural fields
// (expressions, names) are opaque to the core and are not validated
// here.
func (d *Descriptor) validate() error {
	if d.Variance < 0 || d.Variance > 1 {
		return ErrInvalidConfig
	}
	if d.EnablePreRefresh && (d.PreRefreshThreshold <= 0 || d.PreRefreshThreshold >= 1) {
		return ErrInvalidConfig
	}
	return nil
}

// PrimaryCacheName returns the first configured cache name, or "" if
// none is set.
func (d *Descriptor) PrimaryCacheName() string {
	if len(d.CacheNames) == 0 {
		return ""
	}
	return d.CacheNames[0]
}

// defaultDescriptor synthesizes the descriptor the front door uses
// when no descriptor is registered for a direct API call: no locks, no
// bloom filter, default TTL.
func defaultDescriptor(cacheName string) *Descriptor {
	return &Descriptor{
		CacheNames:          []string{cacheName},
		TTLSeconds:          0,
		PreRefreshThreshold: 0.3,
	}
}
