package twolist

import "sync"

// node is a doubly-linked list entry shared by the Active and Inactive lists.
type node[K comparable, V any] struct {
	key          K
	value        V
	prev, next   *node[K, V]
	inActiveList bool
}

// list is a sentinel-headed doubly-linked list. head.next is the most
// recently touched entry, tail.prev is the oldest. The sentinels
// themselves are never returned to callers.
type list[K comparable, V any] struct {
	head, tail *node[K, V]
	length     int
}

func newList[K comparable, V any]() *list[K, V] {
	head := &node[K, V]{}
	tail := &node[K, V]{}
	head.next = tail
	tail.prev = head
	return &list[K, V]{head: head, tail: tail}
}

func (l *list[K, V]) pushFront(n *node[K, V]) {
	n.prev = l.head
	n.next = l.head.next
	l.head.next.prev = n
	l.head.next = n
	l.length++
}

func (l *list[K, V]) unlink(n *node[K, V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
	l.length--
}

func (l *list[K, V]) oldest() *node[K, V] {
	if l.tail.prev == l.head {
		return nil
	}
	return l.tail.prev
}

// isHead reports whether n is already the most-recently-touched entry.
func (l *list[K, V]) isHead(n *node[K, V]) bool {
	return l.head.next == n
}

// EvictionPredicate reports whether a value must not be evicted right
// now. Protected entries are skipped, in order, during both the demotion
// walk and the eviction walk.
type EvictionPredicate[V any] func(value V) bool

// EvictedFunc is invoked, outside any lock-protected critical section
// assumption (the call happens while the cache's mutex is held, so it
// must not call back into the cache), whenever an entry is actually
// evicted from the Inactive list.
type EvictedFunc[K comparable, V any] func(key K, value V)

// Stats reports the current shape of a Cache.
type Stats struct {
	ActiveLen   int
	InactiveLen int
	Evictions   uint64
	Rejections  uint64
}

// Cache is a bounded two-list admission container. The zero value is not
// usable; construct one with New.
type Cache[K comparable, V any] struct {
	mu sync.Mutex

	active   *list[K, V]
	inactive *list[K, V]
	items    map[K]*node[K, V]

	activeCap   int
	inactiveCap int

	protected EvictionPredicate[V]
	onEvict   EvictedFunc[K, V]

	evictions  uint64
	rejections uint64
}

// Option configures a Cache at construction time.
type Option[K comparable, V any] func(*Cache[K, V])

// WithEvictionPredicate installs the protection predicate. It is
// provided once at construction and never silently replaced afterward.
func WithEvictionPredicate[K comparable, V any](p EvictionPredicate[V]) Option[K, V] {
	return func(c *Cache[K, V]) { c.protected = p }
}

// WithOnEvict installs the eviction callback, invoked with the evicted
// key/value whenever evictOldestInactive actually removes an entry.
func WithOnEvict[K comparable, V any](fn EvictedFunc[K, V]) Option[K, V] {
	return func(c *Cache[K, V]) { c.onEvict = fn }
}

// New creates a two-list cache with the given Active and Inactive
// capacities. Both must be positive.
func New[K comparable, V any](activeCap, inactiveCap int, opts ...Option[K, V]) (*Cache[K, V], error) {
	if activeCap <= 0 || inactiveCap <= 0 {
		return nil, ErrInvalidCapacity
	}
	c := &Cache[K, V]{
		active:      newList[K, V](),
		inactive:    newList[K, V](),
		items:       make(map[K]*node[K, V]),
		activeCap:   activeCap,
		inactiveCap: inactiveCap,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// isProtected reports whether n's value is currently protected from
// eviction. Nodes are never protected from demotion bookkeeping, only
// from being the chosen victim of a demotion or eviction walk.
func (c *Cache[K, V]) isProtected(n *node[K, V]) bool {
	return c.protected != nil && c.protected(n.value)
}

// Put inserts or updates key k with value v. Existing keys are updated
// in place and promoted to the Active head. New keys are inserted at
// the Active head; if Active is full, demoteOrEvictOldestActive runs
// first. Returns ErrEvictionProtected if room could not be freed for a
// brand-new key (existing-key updates never fail).
func (c *Cache[K, V]) Put(k K, v V) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.items[k]; ok {
		n.value = v
		c.promote(n)
		return nil
	}

	if c.active.length >= c.activeCap {
		if !c.demoteOrEvictOldestActive() {
			c.rejections++
			return ErrEvictionProtected
		}
	}

	n := &node[K, V]{key: k, value: v, inActiveList: true}
	c.active.pushFront(n)
	c.items[k] = n
	return nil
}

// Get returns the value for k and true if present. A hit in Inactive
// promotes the entry to the Active head (possibly cascading a
// demotion); a hit already in Active is spliced to the head unless it
// is already there.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.items[k]
	if !ok {
		var zero V
		return zero, false
	}
	c.promote(n)
	return n.value, true
}

// promote moves n to the Active head, demoting from Inactive first if
// necessary. Called with mu held.
func (c *Cache[K, V]) promote(n *node[K, V]) {
	if !n.inActiveList {
		c.inactive.unlink(n)
		if c.active.length >= c.activeCap {
			c.demoteOrEvictOldestActive()
		}
		n.inActiveList = true
		c.active.pushFront(n)
		return
	}
	if !c.active.isHead(n) {
		c.active.unlink(n)
		c.active.pushFront(n)
	}
}

// Remove deletes k and returns its value, if present.
func (c *Cache[K, V]) Remove(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.items[k]
	if !ok {
		var zero V
		return zero, false
	}
	if n.inActiveList {
		c.active.unlink(n)
	} else {
		c.inactive.unlink(n)
	}
	delete(c.items, k)
	return n.value, true
}

// Contains reports whether k is present, without affecting its position
// in either list.
func (c *Cache[K, V]) Contains(k K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[k]
	return ok
}

// Clear removes every entry. Eviction callbacks are not invoked for a
// Clear; entries are dropped, not "evicted" in the admission sense.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = newList[K, V]()
	c.inactive = newList[K, V]()
	c.items = make(map[K]*node[K, V])
}

// Size returns the total number of entries across both lists.
func (c *Cache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats reports current list lengths and lifetime eviction/rejection
// counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		ActiveLen:   c.active.length,
		InactiveLen: c.inactive.length,
		Evictions:   c.evictions,
		Rejections:  c.rejections,
	}
}

// demoteOrEvictOldestActive walks Active tail-to-head, skipping
// protected nodes, and demotes the first unprotected node found to
// Inactive (evicting Inactive's oldest unprotected entry first if
// Inactive is full). Returns false if every Active node is protected,
// meaning no room could be freed. Called with mu held.
func (c *Cache[K, V]) demoteOrEvictOldestActive() bool {
	victim := c.findUnprotected(c.active)
	if victim == nil {
		return false
	}
	c.active.unlink(victim)

	if c.inactive.length < c.inactiveCap {
		victim.inActiveList = false
		c.inactive.pushFront(victim)
		return true
	}

	if c.evictOldestInactive() {
		victim.inActiveList = false
		c.inactive.pushFront(victim)
		return true
	}

	// Inactive has no room and nothing could be freed there either;
	// the Active victim is discarded outright. Active capacity is
	// still freed, which is all the caller needs.
	delete(c.items, victim.key)
	return true
}

// evictOldestInactive walks Inactive tail-to-head, skipping protected
// nodes, and removes the first unprotected node found from both the
// list and the map, invoking the eviction callback. Returns false if
// every Inactive node is protected. Called with mu held.
func (c *Cache[K, V]) evictOldestInactive() bool {
	victim := c.findUnprotected(c.inactive)
	if victim == nil {
		return false
	}
	c.inactive.unlink(victim)
	delete(c.items, victim.key)
	c.evictions++
	if c.onEvict != nil {
		c.onEvict(victim.key, victim.value)
	}
	return true
}

// findUnprotected walks l tail-to-head and returns the first node whose
// value is not protected, or nil if every node is protected (or the
// list is empty).
func (c *Cache[K, V]) findUnprotected(l *list[K, V]) *node[K, V] {
	for n := l.tail.prev; n != l.head; n = n.prev {
		if !c.isProtected(n) {
			return n
		}
	}
	return nil
}
