package twolist

import "errors"

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidCapacity is returned by New when either capacity is not positive.
	ErrInvalidCapacity = errors.New("twolist: capacities must be positive")

	// ErrEvictionProtected is returned by Put when the active list is full
	// and every Active entry is protected by the eviction predicate, so no
	// room can be freed for the newcomer. Protected Inactive entries alone
	// never cause it.
	ErrEvictionProtected = errors.New("twolist: cannot free space, all candidates protected")
)
