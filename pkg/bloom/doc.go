// Package bloom implements a Redis-backed probabilistic admission
// filter used to guard against cache penetration: repeated lookups for
// a key that is known to be absent.
//
// Unlike an in-process bloom filter, the bit positions for a given
// cache-name live in a single Redis hash (bf:<cache-name>) so that
// every instance of a horizontally-scaled application shares the same
// membership view.
//
// # Hashing
//
// Positions are derived via double hashing of two independent digests:
// the leading 8 bytes of MD5(key) and SHA-256(key), interpreted as
// signed 64-bit integers. MD5/SHA-256 are used purely for their wide
// availability and speed as bit-position sources; the filter's
// correctness does not depend on either digest's cryptographic
// properties.
//
// # Fail-open
//
// MightContain fails open: any Redis error is treated as "might
// contain" rather than "definitely absent", because a bloom filter
// must never cause a real entry to be wrongly rejected.
package bloom
