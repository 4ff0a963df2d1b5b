package bloom

import "errors"

var (
	// ErrNilClient is returned by New when the supplied Redis client is nil.
	ErrNilClient = errors.New("bloom: nil client")

	// ErrEmptyCacheName is returned when cacheName is empty.
	ErrEmptyCacheName = errors.New("bloom: empty cache name")

	// ErrInvalidBitSize is returned by New when BitSize is not positive.
	ErrInvalidBitSize = errors.New("bloom: bit size must be positive")

	// ErrInvalidHashFunctions is returned by New when HashFunctions is not positive.
	ErrInvalidHashFunctions = errors.New("bloom: hash function count must be positive")
)
