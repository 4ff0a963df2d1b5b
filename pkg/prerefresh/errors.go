package prerefresh

import "errors"

var (
	// ErrEmptyKey is returned when Submit is called with an empty key.
	ErrEmptyKey = errors.New("prerefresh: empty key")

	// ErrNilTask is returned when Submit is called with a nil task.
	ErrNilTask = errors.New("prerefresh: nil task")

	// ErrClosed is returned by Submit once the pool has been shut down.
	ErrClosed = errors.New("prerefresh: pool closed")
)
