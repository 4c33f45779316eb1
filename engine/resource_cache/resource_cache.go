package resource_cache

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DerivedKind identifies the kind of derived GPU object a cache entry holds.
type DerivedKind int

const (
	// DerivedVertexArray marks a vertex array object derived from buffers.
	DerivedVertexArray DerivedKind = iota

	// DerivedFramebuffer marks a framebuffer object derived from textures and renderbuffers.
	DerivedFramebuffer
)

func (k DerivedKind) String() string {
	if k == DerivedFramebuffer {
		return "framebuffer"
	}
	return "vertex array"
}

// ResourceCache maps the exact set of GPU object names a derived object references to that derived object,
// for one context. Every operation is serialized by a single lock per cache.
//
// An entry is valid only while every name in its key is live: InvalidateHandle must be called for a name
// before the driver can hand that name out again.
type ResourceCache interface {
	// LookupVAO returns the vertex array cached for key.
	//
	// Parameters:
	//   - key: the ordered vertex attribute bindings
	//
	// Returns:
	//   - uint32: the vertex array name
	//   - bool: true if an entry was found
	LookupVAO(key VAOKey) (uint32, bool)

	// StoreVAO caches a vertex array for key. A different vertex array already stored for the key is released
	// through the eviction hook.
	//
	// Parameters:
	//   - key: the ordered vertex attribute bindings
	//   - vao: the vertex array name
	StoreVAO(key VAOKey, vao uint32)

	// LookupFBO returns the framebuffer cached for key.
	//
	// Parameters:
	//   - key: the attachment set
	//
	// Returns:
	//   - uint32: the framebuffer name
	//   - bool: true if an entry was found
	LookupFBO(key FBOKey) (uint32, bool)

	// StoreFBO caches a framebuffer for key. A different framebuffer already stored for the key is released
	// through the eviction hook.
	//
	// Parameters:
	//   - key: the attachment set
	//   - fbo: the framebuffer name
	StoreFBO(key FBOKey, fbo uint32)

	// InvalidateHandle purges every entry whose key references name. Vertex array entries are matched on
	// buffer names and are skipped for renderbuffers; framebuffer entries are matched on attachments of the
	// same namespace as isRenderbuffer. Purged derived objects are released through the eviction hook.
	//
	// Parameters:
	//   - name: the destroyed buffer, texture or renderbuffer name
	//   - isRenderbuffer: true if name is a renderbuffer
	InvalidateHandle(name uint32, isRenderbuffer bool)

	// Len returns the number of cached entries.
	//
	// Returns:
	//   - int: vertex array entries
	//   - int: framebuffer entries
	Len() (int, int)
}

// vaoEntry keeps the structured key next to the value so invalidation can inspect it.
type vaoEntry struct {
	key VAOKey
	vao uint32
}

type fboEntry struct {
	key FBOKey
	fbo uint32
}

// resourceCache implements ResourceCache with two bounded LRU stores. The stores are not synchronized
// themselves; mu is the only lock.
type resourceCache struct {
	mu sync.Mutex

	vaos *simplelru.LRU[string, vaoEntry]
	fbos *simplelru.LRU[string, fboEntry]

	capacity int
	onEvict  func(kind DerivedKind, name uint32)
}

var _ ResourceCache = &resourceCache{}

// New creates an empty ResourceCache with the specified options.
//
// Parameters:
//   - options: functional options to configure the cache
//
// Returns:
//   - ResourceCache: the cache
func New(options ...ResourceCacheBuilderOption) ResourceCache {
	c := &resourceCache{
		capacity: DefaultCapacity,
	}
	for _, opt := range options {
		opt(c)
	}

	// NewLRU only fails for a non-positive size, which the capacity option rules out.
	c.vaos, _ = simplelru.NewLRU[string, vaoEntry](c.capacity, func(_ string, e vaoEntry) {
		c.release(DerivedVertexArray, e.vao)
	})
	c.fbos, _ = simplelru.NewLRU[string, fboEntry](c.capacity, func(_ string, e fboEntry) {
		c.release(DerivedFramebuffer, e.fbo)
	})
	return c
}

func (c *resourceCache) LookupVAO(key VAOKey) (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.vaos.Get(key.canonical())
	if !ok {
		return 0, false
	}
	return e.vao, true
}

func (c *resourceCache) StoreVAO(key VAOKey, vao uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key.canonical()
	if prev, ok := c.vaos.Peek(k); ok && prev.vao != vao {
		c.release(DerivedVertexArray, prev.vao)
	}
	c.vaos.Add(k, vaoEntry{key: append(VAOKey(nil), key...), vao: vao})
}

func (c *resourceCache) LookupFBO(key FBOKey) (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.fbos.Get(key.canonical())
	if !ok {
		return 0, false
	}
	return e.fbo, true
}

func (c *resourceCache) StoreFBO(key FBOKey, fbo uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key.canonical()
	if prev, ok := c.fbos.Peek(k); ok && prev.fbo != fbo {
		c.release(DerivedFramebuffer, prev.fbo)
	}
	c.fbos.Add(k, fboEntry{key: cloneFBOKey(key), fbo: fbo})
}

func (c *resourceCache) InvalidateHandle(name uint32, isRenderbuffer bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	purgedVAOs, purgedFBOs := 0, 0
	if !isRenderbuffer {
		for _, k := range c.vaos.Keys() {
			if e, ok := c.vaos.Peek(k); ok && e.key.mentions(name) {
				c.vaos.Remove(k)
				purgedVAOs++
			}
		}
	}
	for _, k := range c.fbos.Keys() {
		if e, ok := c.fbos.Peek(k); ok && e.key.mentions(name, isRenderbuffer) {
			c.fbos.Remove(k)
			purgedFBOs++
		}
	}

	if purgedVAOs+purgedFBOs > 0 {
		common.Logger().Debug("resource cache invalidated", "name", name, "renderbuffer", isRenderbuffer,
			"vaos", purgedVAOs, "fbos", purgedFBOs)
	}
}

func (c *resourceCache) Len() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vaos.Len(), c.fbos.Len()
}

// release hands a derived object that left the cache to the eviction hook.
func (c *resourceCache) release(kind DerivedKind, name uint32) {
	if c.onEvict != nil {
		c.onEvict(kind, name)
	}
}

// cloneFBOKey copies the key so later mutation of the caller's slices cannot corrupt a stored entry.
func cloneFBOKey(key FBOKey) FBOKey {
	out := FBOKey{Colors: append([]AttachmentKey(nil), key.Colors...)}
	if key.Depth != nil {
		d := *key.Depth
		out.Depth = &d
	}
	if key.Stencil != nil {
		s := *key.Stencil
		out.Stencil = &s
	}
	return out
}
