// Package xguard implements the cache engine core: a value envelope,
// TTL policy, the three protection protocols (penetration, breakdown,
// avalanche), a handler pipeline, and the front-door Engine that drives
// them over an external RedisStore.
//
// The engine composes four already-standalone packages rather than
// reimplementing their concerns: pkg/twolist backs the Metadata
// Registry, pkg/bloom backs penetration protection, pkg/dlock and
// pkg/locallock back the breakdown protocol's distributed and local
// lock steps, and pkg/prerefresh backs the pre-refresh trigger handler.
package xguard
