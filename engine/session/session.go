package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/resource_cache"
	"github.com/Carmen-Shannon/oxy-frame/engine/shared_registry"
	"github.com/Carmen-Shannon/oxy-frame/engine/window"
)

// Session owns one GPU context and is the only path through which GPU work is issued.
// Sessions created with NewShared share buffers and textures with their parent; each session keeps its own
// ResourceCache of vertex arrays and framebuffers, since those objects are never shared between contexts.
type Session interface {
	// DoSync runs action on the session's render thread and blocks until it completes.
	// Must not be called from the render thread itself (e.g. from inside another DoSync action).
	//
	// Parameters:
	//   - action: the GPU work
	//
	// Returns:
	//   - error: the action's error, a recovered panic, or common.ErrSessionClosed
	DoSync(action func() error) error

	// DoAsync schedules action on the render thread without waiting. Work on one session runs in
	// submission order relative to other DoAsync and DoSync work. Failures are logged, never propagated.
	//
	// Parameters:
	//   - action: the GPU work
	DoAsync(action func())

	// SwapBuffers presents the back buffer. May block indefinitely on vsync.
	//
	// Returns:
	//   - error: error if presentation fails or the session is closed
	SwapBuffers() error

	// FrameBufferSize returns the default framebuffer size in pixels.
	//
	// Returns:
	//   - int: width
	//   - int: height
	//   - error: common.ErrSessionClosed if the session is closed
	FrameBufferSize() (int, int, error)

	// NewHandle wraps a freshly created buffer, texture or renderbuffer name. When the last reference is
	// released (or the handle becomes unreachable) the name is purged from every cache of the sharing
	// group, registered finalizers run, and destroy deletes the object, all on a render thread.
	//
	// Parameters:
	//   - kind: the object namespace
	//   - name: the object name
	//   - destroy: optional backend delete, run last
	//
	// Returns:
	//   - *Handle: the handle holding one reference
	NewHandle(kind HandleKind, name uint32, destroy func(name uint32)) *Handle

	// RegisterFinalizer adds a cleanup run asynchronously when owner is finalized. The cleanup receives the
	// name read at finalization time, since the handle may be gone by the time it executes.
	//
	// Parameters:
	//   - owner: the handle whose lifetime the cleanup is tied to
	//   - cleanup: the work to run on the render thread
	RegisterFinalizer(owner *Handle, cleanup func(name uint32))

	// VertexArray returns the vertex array cached for key, creating and caching it on a miss.
	// Must be called on the render thread.
	//
	// Parameters:
	//   - key: the vertex attribute bindings
	//   - create: builds the vertex array on a cache miss
	//
	// Returns:
	//   - uint32: the vertex array name
	//   - error: error from create
	VertexArray(key resource_cache.VAOKey, create func() (uint32, error)) (uint32, error)

	// Framebuffer returns the framebuffer cached for key, creating and caching it on a miss.
	// Must be called on the render thread.
	//
	// Parameters:
	//   - key: the attachment set
	//   - create: builds the framebuffer on a cache miss
	//
	// Returns:
	//   - uint32: the framebuffer name
	//   - error: *common.ResourceLimitError if key has more color attachments than the device supports,
	//     or the error from create
	Framebuffer(key resource_cache.FBOKey, create func() (uint32, error)) (uint32, error)

	// NewShared creates a session in the same object space. Backends with main-thread window rules
	// require this to be called from the goroutine that created the root session.
	//
	// Parameters:
	//   - format: the window and framebuffer format of the new context
	//
	// Returns:
	//   - Session: the new session
	//   - error: *common.ContextCreationError if the backend failed
	NewShared(format window.Format) (Session, error)

	// Cache returns this session's resource cache.
	Cache() resource_cache.ResourceCache

	// Registry returns the registry of the session's sharing group.
	Registry() shared_registry.Registry

	// Device returns the low-level GPU surface. Only valid on the render thread.
	Device() window.Device

	// Window returns the window owned by this session's context.
	Window() window.Window

	// Close deregisters the session's cache, then deletes the context after draining queued work.
	//
	// Returns:
	//   - error: error from the backend, or common.ErrSessionClosed if already closed
	Close() error
}

// group is the state shared by every session of one object space.
type group struct {
	registry shared_registry.Registry

	mu      sync.Mutex
	members []*session
}

// join adds a member session.
func (g *group) join(s *session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members = append(g.members, s)
}

// leave removes a member and reports whether the group is now empty.
func (g *group) leave(s *session) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, m := range g.members {
		if m == s {
			g.members = append(g.members[:i], g.members[i+1:]...)
			break
		}
	}
	return len(g.members) == 0
}

// schedule queues action on preferred, or on any other open member once preferred has closed. It reports
// false only when no member accepted the action, which means the object space is gone.
func (g *group) schedule(preferred *session, action func()) bool {
	if preferred.tryAsync(action) {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.members {
		if m != preferred && m.tryAsync(action) {
			return true
		}
	}
	return false
}

// session implements Session on top of a window.ContextHandle.
type session struct {
	handle window.ContextHandle
	cache  resource_cache.ResourceCache
	group  *group

	// closeMu orders enqueues against Close: an action accepted by tryAsync is queued before the render
	// thread is stopped, so Stop drains it.
	closeMu sync.RWMutex
	closed  atomic.Bool

	cacheCapacity   int
	registryOptions []shared_registry.RegistryBuilderOption
}

var _ Session = &session{}

// New creates a root session, starting a new object space.
//
// Parameters:
//   - factory: the backend creating the context
//   - format: the window and framebuffer format
//   - options: functional options to configure the session
//
// Returns:
//   - Session: the session
//   - error: *common.ContextCreationError if the backend failed, or the default-state setup error
func New(factory window.ContextFactory, format window.Format, options ...SessionBuilderOption) (Session, error) {
	s := &session{}
	for _, opt := range options {
		opt(s)
	}

	h, err := factory.Create(format)
	if err != nil {
		return nil, &common.ContextCreationError{Err: err}
	}

	g := &group{registry: shared_registry.New(s.registryOptions...)}
	if err := s.attach(h, g); err != nil {
		g.registry.Close()
		return nil, err
	}
	return s, nil
}

// attach registers the session's cache with the group and applies the fixed default GL state.
// On failure everything it acquired is released in reverse order, including the context.
func (s *session) attach(h window.ContextHandle, g *group) error {
	s.handle = h
	s.group = g
	s.cache = g.registry.AddContext(
		resource_cache.WithCapacity(s.cacheCapacity),
		resource_cache.WithEvictHook(s.releaseDerived),
	)
	g.join(s)

	err := h.DoSync(func() error {
		d := h.Device()
		d.EnableSRGBFramebuffer()
		d.EnableScissorTest()
		d.SetPixelAlignment(1, 1)
		return nil
	})
	if err != nil {
		g.registry.RemoveContext(s.cache)
		g.leave(s)
		s.closed.Store(true)
		return errors.Join(fmt.Errorf("failed to initialize context state: %w", err), h.Delete())
	}

	common.Logger().Info("session created", "members", g.registry.Len())
	return nil
}

func (s *session) DoSync(action func() error) error {
	if s.closed.Load() {
		return common.ErrSessionClosed
	}
	return s.handle.DoSync(action)
}

func (s *session) DoAsync(action func()) {
	if !s.tryAsync(action) {
		common.Logger().Debug("dropped async action on closed session")
	}
}

// tryAsync queues action unless the session is closed and reports whether it was queued.
func (s *session) tryAsync(action func()) bool {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed.Load() {
		return false
	}
	s.handle.DoAsync(action)
	return true
}

func (s *session) SwapBuffers() error {
	return s.DoSync(s.handle.Swap)
}

func (s *session) FrameBufferSize() (int, int, error) {
	var w, h int
	err := s.DoSync(func() error {
		w, h = s.handle.FrameBufferSize()
		return nil
	})
	return w, h, err
}

func (s *session) VertexArray(key resource_cache.VAOKey, create func() (uint32, error)) (uint32, error) {
	if vao, ok := s.cache.LookupVAO(key); ok {
		return vao, nil
	}
	vao, err := create()
	if err != nil {
		return 0, fmt.Errorf("failed to create vertex array: %w", err)
	}
	s.cache.StoreVAO(key, vao)
	common.Logger().Debug("vertex array cached", "vao", vao, "attributes", len(key))
	return vao, nil
}

func (s *session) Framebuffer(key resource_cache.FBOKey, create func() (uint32, error)) (uint32, error) {
	if fbo, ok := s.cache.LookupFBO(key); ok {
		return fbo, nil
	}
	if limit := s.handle.Device().MaxColorAttachments(); len(key.Colors) > limit {
		return 0, &common.ResourceLimitError{Resource: "color attachments", Limit: limit, Requested: len(key.Colors)}
	}
	fbo, err := create()
	if err != nil {
		return 0, fmt.Errorf("failed to create framebuffer: %w", err)
	}
	s.cache.StoreFBO(key, fbo)
	common.Logger().Debug("framebuffer cached", "fbo", fbo, "colors", len(key.Colors))
	return fbo, nil
}

func (s *session) NewShared(format window.Format) (Session, error) {
	if s.closed.Load() {
		return nil, common.ErrSessionClosed
	}
	h, err := s.handle.CreateShared(format)
	if err != nil {
		return nil, &common.ContextCreationError{Shared: true, Err: err}
	}

	child := &session{cacheCapacity: s.cacheCapacity}
	if err := child.attach(h, s.group); err != nil {
		return nil, err
	}
	return child, nil
}

func (s *session) Cache() resource_cache.ResourceCache { return s.cache }
func (s *session) Registry() shared_registry.Registry  { return s.group.registry }
func (s *session) Device() window.Device               { return s.handle.Device() }
func (s *session) Window() window.Window               { return s.handle.Window() }

func (s *session) Close() error {
	s.closeMu.Lock()
	if !s.closed.CompareAndSwap(false, true) {
		s.closeMu.Unlock()
		return common.ErrSessionClosed
	}
	s.closeMu.Unlock()

	s.group.registry.RemoveContext(s.cache)
	err := s.handle.Delete()
	if s.group.leave(s) {
		s.group.registry.Close()
	}

	common.Logger().Info("session closed", "members", s.group.registry.Len())
	if err != nil {
		return fmt.Errorf("failed to delete context: %w", err)
	}
	return nil
}

// releaseDerived deletes a vertex array or framebuffer that left this session's cache. Derived objects
// belong to exactly one context, so the delete is always queued on this session's own render thread.
func (s *session) releaseDerived(kind resource_cache.DerivedKind, name uint32) {
	s.DoAsync(func() {
		switch kind {
		case resource_cache.DerivedVertexArray:
			s.handle.Device().DeleteVertexArray(name)
		case resource_cache.DerivedFramebuffer:
			s.handle.Device().DeleteFramebuffer(name)
		}
	})
}

// DoSyncValue runs fn on the session's render thread and returns its result.
//
// Parameters:
//   - s: the session
//   - fn: the GPU work producing a value
//
// Returns:
//   - T: fn's result, or the zero value on error
//   - error: fn's error, a recovered panic, or common.ErrSessionClosed
func DoSyncValue[T any](s Session, fn func() (T, error)) (T, error) {
	var out T
	err := s.DoSync(func() error {
		v, err := fn()
		out = v
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
