package xguard

import (
	"errors"
	"strings"
	"sync"

	"github.com/cacheguard/core/pkg/twolist"
)

const (
	// DefaultRegistryActiveCap and DefaultRegistryInactiveCap are the
	// Two-List capacities backing the Metadata Registry, per spec §5's
	// stated defaults (active=1024, inactive=512).
	DefaultRegistryActiveCap   = 1024
	DefaultRegistryInactiveCap = 512
)

func identityOf(cacheName, key string) string {
	return cacheName + "\x00" + key
}

func splitIdentity(identity string) (cacheName, key string) {
	if i := strings.IndexByte(identity, 0); i >= 0 {
		return identity[:i], identity[i+1:]
	}
	return identity, ""
}

// MetadataRegistry indexes Descriptors by (cache-name, key), separately
// for CACHE and EVICT operation types, backed by two Two-List
// Admission Caches so rarely-used descriptors age out under pressure.
type MetadataRegistry struct {
	cacheDescriptors *twolist.Cache[string, *Descriptor]
	evictDescriptors *twolist.Cache[string, *Descriptor]

	indexMu     sync.Mutex
	byCacheName map[string]map[string]struct{} // cache-name -> set of registered keys (CACHE op)
	byEvictName map[string]map[string]struct{} // cache-name -> set of registered keys (EVICT op)

	// onEvict, if set, is invoked (in addition to the index cleanup
	// every eviction already performs) whenever the Two-List admission
	// cache actually evicts a descriptor, not merely removes one via
	// Remove/RemoveAll. The Engine wires this to its Metrics.Eviction
	// counter for the descriptors cache it constructs by default.
	onEvict func(op OperationType)
}

// RegistryOption configures a MetadataRegistry at construction time.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	activeCap, inactiveCap int
	onEvict                func(op OperationType)
}

// WithRegistryCapacity overrides the Two-List active/inactive
// capacities for both the CACHE and EVICT descriptor caches.
func WithRegistryCapacity(activeCap, inactiveCap int) RegistryOption {
	return func(c *registryConfig) {
		if activeCap > 0 {
			c.activeCap = activeCap
		}
		if inactiveCap > 0 {
			c.inactiveCap = inactiveCap
		}
	}
}

// WithRegistryEvictionHook installs fn to be invoked whenever the
// Two-List admission cache actually evicts a descriptor (as opposed to
// an explicit Remove/RemoveAll).
func WithRegistryEvictionHook(fn func(op OperationType)) RegistryOption {
	return func(c *registryConfig) { c.onEvict = fn }
}

// NewMetadataRegistry creates a MetadataRegistry.
func NewMetadataRegistry(opts ...RegistryOption) (*MetadataRegistry, error) {
	cfg := &registryConfig{activeCap: DefaultRegistryActiveCap, inactiveCap: DefaultRegistryInactiveCap}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	r := &MetadataRegistry{
		byCacheName: make(map[string]map[string]struct{}),
		byEvictName: make(map[string]map[string]struct{}),
		onEvict:     cfg.onEvict,
	}

	cacheDescriptors, err := twolist.New[string, *Descriptor](cfg.activeCap, cfg.inactiveCap,
		twolist.WithOnEvict[string, *Descriptor](r.onCacheEvict))
	if err != nil {
		return nil, err
	}
	evictDescriptors, err := twolist.New[string, *Descriptor](cfg.activeCap, cfg.inactiveCap,
		twolist.WithOnEvict[string, *Descriptor](r.onEvictEvict))
	if err != nil {
		return nil, err
	}
	r.cacheDescriptors = cacheDescriptors
	r.evictDescriptors = evictDescriptors
	return r, nil
}

func (r *MetadataRegistry) onCacheEvict(identity string, _ *Descriptor) {
	r.dropFromIndex(r.byCacheName, identity)
	if r.onEvict != nil {
		r.onEvict(OperationCache)
	}
}

func (r *MetadataRegistry) onEvictEvict(identity string, _ *Descriptor) {
	r.dropFromIndex(r.byEvictName, identity)
	if r.onEvict != nil {
		r.onEvict(OperationEvict)
	}
}

func (r *MetadataRegistry) dropFromIndex(index map[string]map[string]struct{}, identity string) {
	cacheName, key := splitIdentity(identity)
	r.indexMu.Lock()
	defer r.indexMu.Unlock()
	if set, ok := index[cacheName]; ok {
		delete(set, key)
		if len(set) == 0 {
			delete(index, cacheName)
		}
	}
}

func (r *MetadataRegistry) addToIndex(index map[string]map[string]struct{}, cacheName, key string) {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()
	set, ok := index[cacheName]
	if !ok {
		set = make(map[string]struct{})
		index[cacheName] = set
	}
	set[key] = struct{}{}
}

func (r *MetadataRegistry) backingCache(op OperationType) *twolist.Cache[string, *Descriptor] {
	if op == OperationEvict {
		return r.evictDescriptors
	}
	return r.cacheDescriptors
}

func (r *MetadataRegistry) backingIndex(op OperationType) map[string]map[string]struct{} {
	if op == OperationEvict {
		return r.byEvictName
	}
	return r.byCacheName
}

// Register indexes d under (cacheName, key, op). Idempotent:
// re-registering the same identity overwrites the prior descriptor.
func (r *MetadataRegistry) Register(cacheName, key string, op OperationType, d *Descriptor) error {
	if cacheName == "" {
		return ErrEmptyCacheName
	}
	if key == "" {
		return ErrEmptyKey
	}
	if d == nil {
		return ErrInvalidConfig
	}
	if err := d.validate(); err != nil {
		return err
	}

	identity := identityOf(cacheName, key)
	if err := r.backingCache(op).Put(identity, d); err != nil {
		if errors.Is(err, twolist.ErrEvictionProtected) {
			return ErrEvictionProtected
		}
		return err
	}
	r.addToIndex(r.backingIndex(op), cacheName, key)
	return nil
}

// Get performs an O(1) lookup of the descriptor registered for
// (cacheName, key, op).
func (r *MetadataRegistry) Get(cacheName, key string, op OperationType) (*Descriptor, bool) {
	return r.backingCache(op).Get(identityOf(cacheName, key))
}

// Remove deletes the descriptor registered for (cacheName, key, op), if
// any, returning it.
func (r *MetadataRegistry) Remove(cacheName, key string, op OperationType) (*Descriptor, bool) {
	identity := identityOf(cacheName, key)
	d, ok := r.backingCache(op).Remove(identity)
	if ok {
		r.dropFromIndex(r.backingIndex(op), identity)
	}
	return d, ok
}

// RemoveAll deletes every descriptor registered for cacheName under
// op, supporting CLEAR's full-cache invalidation.
func (r *MetadataRegistry) RemoveAll(cacheName string, op OperationType) {
	r.indexMu.Lock()
	keys := make([]string, 0, len(r.backingIndex(op)[cacheName]))
	for k := range r.backingIndex(op)[cacheName] {
		keys = append(keys, k)
	}
	r.indexMu.Unlock()

	for _, key := range keys {
		r.Remove(cacheName, key, op)
	}
}
