// Package locallock implements the in-process half of the breakdown
// protocol's triple-check: a registry of per-(cache-name, key) reentrant
// mutexes, paired with the distributed lock adapter in pkg/dlock.
//
// Lock identities are channel-based mutexes in the style of xkeylock:
// a size-1 channel stands in for the lock itself, a send acquires and a
// receive releases. Reentrancy is explicit-context based, matching
// pkg/dlock/context.go, because Go has no thread-local storage to
// smuggle a "currently held" flag through.
//
// Unheld, uncontended entries are swept out after a configured idle
// window using an expirable LRU (the same wrapper shape xlru.Cache puts
// around hashicorp/golang-lru/v2/expirable), backstopped by a periodic
// compaction pass so the registry never grows past its size threshold
// even under sustained idle-but-not-yet-expired churn.
package locallock
