package resource_cache

// DefaultCapacity is the default maximum number of entries per store (vertex arrays and framebuffers each).
const DefaultCapacity = 4096

// ResourceCacheBuilderOption is a functional option for configuring a ResourceCache.
type ResourceCacheBuilderOption func(c *resourceCache)

// WithCapacity bounds each store. Least recently used entries beyond the bound are evicted and released
// through the eviction hook. Values <= 0 keep DefaultCapacity.
//
// Parameters:
//   - capacity: maximum entries per store
//
// Returns:
//   - ResourceCacheBuilderOption: option function to apply
func WithCapacity(capacity int) ResourceCacheBuilderOption {
	return func(c *resourceCache) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

// WithEvictHook sets the function called with every derived object that leaves the cache through
// invalidation, replacement or capacity eviction. The hook runs while the cache lock is held and must
// only schedule work (e.g. an async delete on the owning context), never call back into the cache.
//
// Parameters:
//   - hook: function receiving the derived object kind and name
//
// Returns:
//   - ResourceCacheBuilderOption: option function to apply
func WithEvictHook(hook func(kind DerivedKind, name uint32)) ResourceCacheBuilderOption {
	return func(c *resourceCache) {
		c.onEvict = hook
	}
}
