package session

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-frame/common"
)

// HandleKind is the namespace of a shared GPU object name.
type HandleKind int

const (
	// HandleBuffer marks a buffer object name.
	HandleBuffer HandleKind = iota

	// HandleTexture marks a texture object name.
	HandleTexture

	// HandleRenderbuffer marks a renderbuffer object name.
	HandleRenderbuffer
)

func (k HandleKind) String() string {
	switch k {
	case HandleTexture:
		return "texture"
	case HandleRenderbuffer:
		return "renderbuffer"
	default:
		return "buffer"
	}
}

// Handle is a reference-counted owner of a buffer, texture or renderbuffer name.
// Finalization runs exactly once, either when Release drops the last reference or, as a fallback, when the
// Handle becomes unreachable without having been released.
type Handle struct {
	state *handleState
}

// handleState holds everything finalization needs. It never points back at its Handle so the runtime
// cleanup can fire once the Handle is unreachable.
type handleState struct {
	kind HandleKind
	name atomic.Uint32
	refs atomic.Int32
	sess *session

	mu        sync.Mutex
	cleanups  []func(name uint32)
	destroy   func(name uint32)
	finalized bool
	fallback  runtime.Cleanup
}

func (s *session) NewHandle(kind HandleKind, name uint32, destroy func(name uint32)) *Handle {
	st := &handleState{kind: kind, sess: s, destroy: destroy}
	st.name.Store(name)
	st.refs.Store(1)

	h := &Handle{state: st}
	st.fallback = runtime.AddCleanup(h, func(st *handleState) { st.finalize() }, st)
	return h
}

func (s *session) RegisterFinalizer(owner *Handle, cleanup func(name uint32)) {
	st := owner.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.finalized {
		// Too late to tie the cleanup to the handle; run it against the last known name, on any open member
		// of the handle's object space.
		name := st.name.Load()
		if !st.sess.group.schedule(st.sess, func() { cleanup(name) }) {
			common.Logger().Debug("object space gone, skipping late finalizer", "kind", st.kind, "name", name)
		}
		return
	}
	st.cleanups = append(st.cleanups, cleanup)
}

// Name returns the GPU object name.
func (h *Handle) Name() uint32 {
	return h.state.name.Load()
}

// Kind returns the object namespace.
func (h *Handle) Kind() HandleKind {
	return h.state.kind
}

// Retain adds a reference. Retaining a finalized handle panics.
//
// Returns:
//   - *Handle: h, for chaining
func (h *Handle) Retain() *Handle {
	for {
		n := h.state.refs.Load()
		if n <= 0 {
			panic("session: Retain called on a released handle")
		}
		if h.state.refs.CompareAndSwap(n, n+1) {
			return h
		}
	}
}

// Release drops a reference; the last release finalizes the handle.
func (h *Handle) Release() {
	for {
		n := h.state.refs.Load()
		if n <= 0 {
			panic("session: Release called more times than Retain")
		}
		if h.state.refs.CompareAndSwap(n, n-1) {
			if n == 1 {
				h.state.finalize()
			}
			return
		}
	}
}

// finalize reads the name, then schedules cache invalidation across the sharing group, registered cleanups
// and the backend delete, in that order, so the name cannot be reused while any cache still maps it.
func (st *handleState) finalize() {
	st.mu.Lock()
	if st.finalized {
		st.mu.Unlock()
		return
	}
	st.finalized = true
	st.fallback.Stop()
	name := st.name.Load()
	cleanups := st.cleanups
	st.cleanups = nil
	destroy := st.destroy
	st.mu.Unlock()

	registry := st.sess.group.registry
	isRenderbuffer := st.kind == HandleRenderbuffer
	queued := st.sess.group.schedule(st.sess, func() {
		registry.BroadcastInvalidate(name, isRenderbuffer)
		for _, c := range cleanups {
			c(name)
		}
		if destroy != nil {
			destroy(name)
		}
	})
	if !queued {
		common.Logger().Debug("object space gone, skipping finalizer", "kind", st.kind, "name", name)
	}
}
