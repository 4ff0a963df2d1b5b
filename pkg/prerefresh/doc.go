// Package prerefresh implements the bounded worker pool that runs
// asynchronous cache-refresh jobs ahead of TTL expiry.
//
// At most one job runs per key at a time: Submit drops a new job if one
// is already in flight for the same key rather than queuing a second.
// The pool itself is a fixed set of worker goroutines supervised by an
// errgroup.Group, draining a buffered job queue. When the queue is full
// the default rejection policy is caller-runs: the calling goroutine
// executes the job itself instead of the submission being dropped, so
// a refresh is never silently lost under load.
package prerefresh
