package locallock

import "errors"

var (
	// ErrEmptyKey is returned when key is empty.
	ErrEmptyKey = errors.New("locallock: empty key")

	// ErrClosed is returned by Obtain once the registry has been closed.
	ErrClosed = errors.New("locallock: registry closed")

	// ErrNilContext is returned when a nil context.Context is passed to
	// Obtain.
	ErrNilContext = errors.New("locallock: nil context")

	// ErrNotLocked is returned by an Unlocker invoked more than once.
	ErrNotLocked = errors.New("locallock: not locked")

	// ErrOccupied names the state of a lock already held by a concurrent
	// caller. TryObtain does not return it: it reports that state as a
	// nil Unlocker with a nil error.
	ErrOccupied = errors.New("locallock: occupied")
)
