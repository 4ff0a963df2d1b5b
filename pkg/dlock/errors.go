package dlock

import "errors"

var (
	// ErrNilClient is returned when a required backing client is nil.
	ErrNilClient = errors.New("dlock: nil client")

	// ErrEmptyKey is returned when key is empty.
	ErrEmptyKey = errors.New("dlock: empty key")

	// ErrInvalidLease is returned when lease is not positive.
	ErrInvalidLease = errors.New("dlock: lease must be positive")

	// ErrLockExpired is returned by Unlock when the lock had already
	// expired or been acquired by another holder by the time release
	// was attempted. Callers should log and continue, not treat it as
	// a hard failure.
	ErrLockExpired = errors.New("dlock: lock expired or stolen before unlock")
)
