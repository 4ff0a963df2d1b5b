// Package dlock provides the distributed lock adapter used by the
// breakdown protection protocol: named leases with a bounded wait,
// a bounded hold time (lease), and release that only succeeds for the
// invocation that actually holds the lock.
//
// # Reentrancy
//
// A goroutine chain already holding a lock for a key may re-acquire it
// without blocking. Go has no thread-local storage, so reentrancy is
// tracked explicitly through the context: TryLock/Lock return a
// derived context carrying the set of keys currently held by this call
// chain, and the caller must thread that context into any nested
// acquisition for the same identity. This is the explicit-context
// design the rest of this module uses in place of the annotation
// framework's thread-local "current key" smuggling.
//
// # Implementations
//
// Default is a single-master SETNX+Lua adapter (cheap, sufficient for
// a single Redis primary). NewRedsyncAdapter wraps go-redsync's
// multi-master Redlock algorithm for deployments that run a Redlock
// quorum across independent Redis instances.
package dlock
