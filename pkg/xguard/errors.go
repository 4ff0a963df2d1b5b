package xguard

import "errors"

// =============================================================================
// General errors
// =============================================================================

var (
	// ErrNilStore is returned when a required RedisStore is nil.
	ErrNilStore = errors.New("xguard: nil store")

	// ErrEmptyCacheName is returned when a cache name is empty.
	ErrEmptyCacheName = errors.New("xguard: empty cache name")

	// ErrEmptyKey is returned when a key is empty.
	ErrEmptyKey = errors.New("xguard: empty key")

	// ErrInvalidConfig is returned when a configuration value is
	// out of its documented range.
	ErrInvalidConfig = errors.New("xguard: invalid configuration")
)

// =============================================================================
// Loader / breakdown errors
// =============================================================================

var (
	// ErrNilLoader is returned when the loader function passed to the
	// breakdown protocol is nil.
	ErrNilLoader = errors.New("xguard: nil loader function")

	// ErrLoaderReturnedNull is returned by Breakdown.Run when the loader
	// yields a nil value. The engine's GET pipeline does not surface it:
	// GetWithLoader reports the null as ValueWrapper{Null: true} whether
	// or not the descriptor sets CacheNullValues, and stores a null
	// sentinel only when it does.
	ErrLoaderReturnedNull = errors.New("xguard: loader returned null")

	// ErrLoaderFailed wraps an error the loader itself returned.
	ErrLoaderFailed = errors.New("xguard: loader failed")

	// ErrLockAcquisitionTimeout is returned by Breakdown.Run when the
	// distributed lease could not be obtained within wait and a re-read
	// still found nothing (a value found by that re-read is returned
	// instead). The engine's GET pipeline treats it as a cache miss and
	// does not call the loader.
	ErrLockAcquisitionTimeout = errors.New("xguard: lock acquisition timed out")
)

// =============================================================================
// Backend / registry errors
// =============================================================================

var (
	// ErrBackendUnavailable wraps a RedisStore error that reached the
	// caller unresolved.
	ErrBackendUnavailable = errors.New("xguard: backend unavailable")

	// ErrFilterFailure wraps a bloom-filter operational error. Reads
	// fail open (see pkg/bloom); this sentinel is only surfaced on the
	// write (Add) path, where the failure is log-and-continue.
	ErrFilterFailure = errors.New("xguard: filter operation failed")

	// ErrEvictionProtected is returned when the Metadata Registry
	// cannot register a new descriptor because the Two-List cache has
	// no unprotected room to free.
	ErrEvictionProtected = errors.New("xguard: registry eviction protected, cannot admit new descriptor")

	// ErrNoDescriptor is returned by registry lookups that find
	// nothing registered for (cache-name, key).
	ErrNoDescriptor = errors.New("xguard: no descriptor registered")
)
