package session

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/resource_cache"
	"github.com/Carmen-Shannon/oxy-frame/engine/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFormat() window.Format {
	return window.NewFormat(window.WithWidth(64), window.WithHeight(48))
}

func newTestSession(t *testing.T, options ...SessionBuilderOption) Session {
	t.Helper()
	s, err := New(window.NewHeadlessFactory(window.WithMaxColorAttachments(2)), testFormat(), options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func headlessDevice(t *testing.T, s Session) *window.HeadlessDevice {
	t.Helper()
	d, ok := s.Device().(*window.HeadlessDevice)
	require.True(t, ok)
	return d
}

// flush waits until every action queued on s so far has run.
func flush(t *testing.T, s Session) {
	t.Helper()
	require.NoError(t, s.DoSync(func() error { return nil }))
}

func bufferKey(buffer uint32) resource_cache.VAOKey {
	return resource_cache.VAOKey{{Buffer: buffer, Components: 3}}
}

// failingFactory fails every context creation.
type failingFactory struct{ err error }

func (f failingFactory) Create(window.Format) (window.ContextHandle, error) { return nil, f.err }

// brokenHandle wraps a real context and injects failures.
type brokenHandle struct {
	window.ContextHandle
	failSync   bool
	failShared bool
	deletes    atomic.Int32
}

func (h *brokenHandle) DoSync(action func() error) error {
	if h.failSync {
		return errors.New("lost context")
	}
	return h.ContextHandle.DoSync(action)
}

func (h *brokenHandle) CreateShared(format window.Format) (window.ContextHandle, error) {
	if h.failShared {
		return nil, errors.New("no shared context")
	}
	return h.ContextHandle.CreateShared(format)
}

func (h *brokenHandle) Delete() error {
	h.deletes.Add(1)
	return h.ContextHandle.Delete()
}

type brokenFactory struct {
	inner      window.ContextFactory
	failSync   bool
	failShared bool
	handle     *brokenHandle
}

func (f *brokenFactory) Create(format window.Format) (window.ContextHandle, error) {
	inner, err := f.inner.Create(format)
	if err != nil {
		return nil, err
	}
	f.handle = &brokenHandle{ContextHandle: inner, failSync: f.failSync, failShared: f.failShared}
	return f.handle, nil
}

func TestNewAppliesFixedDefaults(t *testing.T) {
	s := newTestSession(t)
	flush(t, s)

	srgb, scissor, pack, unpack := headlessDevice(t, s).Defaults()
	assert.True(t, srgb)
	assert.True(t, scissor)
	assert.Equal(t, 1, pack)
	assert.Equal(t, 1, unpack)
	assert.Equal(t, 1, s.Registry().Len())
}

func TestContextCreationFailure(t *testing.T) {
	cause := errors.New("no display")
	_, err := New(failingFactory{err: cause}, testFormat())

	assert.ErrorIs(t, err, common.ErrContextCreation)
	assert.ErrorIs(t, err, cause)
}

func TestInitFailureReleasesContext(t *testing.T) {
	f := &brokenFactory{inner: window.NewHeadlessFactory(), failSync: true}
	_, err := New(f, testFormat())

	require.Error(t, err)
	assert.Equal(t, int32(1), f.handle.deletes.Load())
	assert.False(t, f.handle.Window().IsRunning())
}

func TestSharedCreationFailureLeavesNoCacheRegistered(t *testing.T) {
	f := &brokenFactory{inner: window.NewHeadlessFactory(), failShared: true}
	parent, err := New(f, testFormat())
	require.NoError(t, err)
	defer parent.Close()

	_, err = parent.NewShared(testFormat())
	assert.ErrorIs(t, err, common.ErrContextCreation)
	var cce *common.ContextCreationError
	require.ErrorAs(t, err, &cce)
	assert.True(t, cce.Shared)
	assert.Equal(t, 1, parent.Registry().Len())
}

func TestSwapAndFrameBufferSize(t *testing.T) {
	s := newTestSession(t)
	w, h, err := s.FrameBufferSize()
	require.NoError(t, err)
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)
	assert.NoError(t, s.SwapBuffers())

	v, err := DoSyncValue(s, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = DoSyncValue(s, func() (string, error) { return "partial", errors.New("failed") })
	assert.EqualError(t, err, "failed")
}

func TestClosedSessionRejectsWork(t *testing.T) {
	s, err := New(window.NewHeadlessFactory(), testFormat())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Close(), common.ErrSessionClosed)
	assert.ErrorIs(t, s.DoSync(func() error { return nil }), common.ErrSessionClosed)
	assert.ErrorIs(t, s.SwapBuffers(), common.ErrSessionClosed)
	_, _, err = s.FrameBufferSize()
	assert.ErrorIs(t, err, common.ErrSessionClosed)
	_, err = s.NewShared(testFormat())
	assert.ErrorIs(t, err, common.ErrSessionClosed)
	s.DoAsync(func() { t.Error("ran on closed session") })
	assert.False(t, s.Window().IsRunning())
}

func TestDoAsyncPreservesOrderWithDoSync(t *testing.T) {
	s := newTestSession(t)
	var (
		mu  sync.Mutex
		got []int
	)
	for i := range 20 {
		s.DoAsync(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	s.DoAsync(func() { panic("ignored") })
	flush(t, s)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 20)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestVertexArrayGetOrCreate(t *testing.T) {
	s := newTestSession(t)
	creates := 0
	create := func() (uint32, error) {
		creates++
		return 11, nil
	}

	for range 3 {
		vao, err := DoSyncValue(s, func() (uint32, error) { return s.VertexArray(bufferKey(1), create) })
		require.NoError(t, err)
		assert.Equal(t, uint32(11), vao)
	}
	assert.Equal(t, 1, creates)

	_, err := DoSyncValue(s, func() (uint32, error) {
		return s.VertexArray(bufferKey(2), func() (uint32, error) { return 0, errors.New("out of memory") })
	})
	assert.ErrorContains(t, err, "out of memory")
	_, ok := s.Cache().LookupVAO(bufferKey(2))
	assert.False(t, ok)
}

func TestFramebufferResourceLimit(t *testing.T) {
	s := newTestSession(t)
	colors := []resource_cache.AttachmentKey{{Name: 1}, {Name: 2}, {Name: 3}}

	created := false
	_, err := DoSyncValue(s, func() (uint32, error) {
		return s.Framebuffer(resource_cache.FBOKey{Colors: colors}, func() (uint32, error) {
			created = true
			return 1, nil
		})
	})
	assert.ErrorIs(t, err, common.ErrResourceLimitExceeded)
	var rle *common.ResourceLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 2, rle.Limit)
	assert.Equal(t, 3, rle.Requested)
	assert.False(t, created)

	fbo, err := DoSyncValue(s, func() (uint32, error) {
		return s.Framebuffer(resource_cache.FBOKey{Colors: colors[:2]}, func() (uint32, error) { return 5, nil })
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(5), fbo)
}

func TestEvictedDerivedObjectsAreDeleted(t *testing.T) {
	s := newTestSession(t, WithCacheCapacity(1))
	s.Cache().StoreVAO(bufferKey(1), 21)
	s.Cache().StoreVAO(bufferKey(2), 22)
	s.Cache().StoreFBO(resource_cache.FBOKey{Colors: []resource_cache.AttachmentKey{{Name: 3}}}, 31)
	s.Cache().InvalidateHandle(3, false)
	flush(t, s)

	d := headlessDevice(t, s)
	assert.Equal(t, []uint32{21}, d.DeletedVertexArrays())
	assert.Equal(t, []uint32{31}, d.DeletedFramebuffers())
}

func TestCrossContextInvalidation(t *testing.T) {
	a := newTestSession(t)
	b, err := a.NewShared(testFormat())
	require.NoError(t, err)
	defer b.Close()
	require.Equal(t, 2, a.Registry().Len())
	require.Same(t, a.Registry(), b.Registry())

	a.Cache().StoreVAO(bufferKey(9), 90)
	b.Cache().StoreVAO(bufferKey(9), 91)
	a.Cache().StoreVAO(bufferKey(10), 100)

	var destroyed atomic.Uint32
	h := b.NewHandle(HandleBuffer, 9, func(name uint32) { destroyed.Store(name) })
	h.Release()
	flush(t, b)
	flush(t, a)

	_, ok := a.Cache().LookupVAO(bufferKey(9))
	assert.False(t, ok, "invalidation through b must purge a's cache")
	_, ok = b.Cache().LookupVAO(bufferKey(9))
	assert.False(t, ok)
	_, ok = a.Cache().LookupVAO(bufferKey(10))
	assert.True(t, ok)
	assert.Equal(t, uint32(9), destroyed.Load())

	// Each context deletes its own derived vertex array.
	assert.Equal(t, []uint32{90}, headlessDevice(t, a).DeletedVertexArrays())
	assert.Equal(t, []uint32{91}, headlessDevice(t, b).DeletedVertexArrays())
}

func TestRenderbufferHandleKeepsTextureEntries(t *testing.T) {
	s := newTestSession(t)
	tex := resource_cache.FBOKey{Colors: []resource_cache.AttachmentKey{{Name: 4, Layer: 0}}}
	s.Cache().StoreFBO(tex, 40)

	s.NewHandle(HandleRenderbuffer, 4, nil).Release()
	flush(t, s)

	_, ok := s.Cache().LookupFBO(tex)
	assert.True(t, ok)
}

func TestFinalizerOrder(t *testing.T) {
	s := newTestSession(t)
	var steps []string
	s.Cache().StoreVAO(bufferKey(3), 30)

	h := s.NewHandle(HandleBuffer, 3, func(name uint32) {
		steps = append(steps, "destroy")
	})
	assert.Equal(t, uint32(3), h.Name())
	assert.Equal(t, HandleBuffer, h.Kind())
	s.RegisterFinalizer(h, func(name uint32) {
		_, cached := s.Cache().LookupVAO(bufferKey(name))
		assert.False(t, cached, "caches are purged before finalizers run")
		steps = append(steps, "first")
	})
	s.RegisterFinalizer(h, func(uint32) { steps = append(steps, "second") })

	h.Retain()
	h.Release()
	flush(t, s)
	assert.Empty(t, steps, "a retained handle is still live")

	h.Release()
	flush(t, s)
	assert.Equal(t, []string{"first", "second", "destroy"}, steps)

	assert.Panics(t, func() { h.Release() })
	assert.Panics(t, func() { h.Retain() })

	// A finalizer registered after finalization still runs, with the last known name.
	var late atomic.Uint32
	s.RegisterFinalizer(h, func(name uint32) { late.Store(name) })
	flush(t, s)
	assert.Equal(t, uint32(3), late.Load())
}

func TestUnreachableHandleIsFinalized(t *testing.T) {
	s := newTestSession(t)
	var destroyed atomic.Bool
	func() {
		s.NewHandle(HandleTexture, 12, func(uint32) { destroyed.Store(true) })
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		_ = s.DoSync(func() error { return nil })
		return destroyed.Load()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFinalizeFallsBackToLiveSibling(t *testing.T) {
	a := newTestSession(t)
	b, err := a.NewShared(testFormat())
	require.NoError(t, err)

	h := b.NewHandle(HandleBuffer, 5, nil)
	a.Cache().StoreVAO(bufferKey(5), 50)
	require.NoError(t, b.Close())

	h.Release()
	flush(t, a)
	_, ok := a.Cache().LookupVAO(bufferKey(5))
	assert.False(t, ok)
	assert.Equal(t, 1, a.Registry().Len())
}

func TestLateFinalizerRunsOnLiveSibling(t *testing.T) {
	a := newTestSession(t)
	b, err := a.NewShared(testFormat())
	require.NoError(t, err)

	h := a.NewHandle(HandleBuffer, 8, nil)
	h.Release()
	flush(t, a)

	other := newTestSession(t)
	require.NoError(t, a.Close())

	var late atomic.Uint32
	other.RegisterFinalizer(h, func(name uint32) { late.Store(name) })
	flush(t, b)
	assert.Equal(t, uint32(8), late.Load())
	require.NoError(t, b.Close())
}

func TestFinalizeRacingOwnerCloseStillDestroys(t *testing.T) {
	a := newTestSession(t)
	const rounds = 50

	var destroyed atomic.Int32
	for range rounds {
		b, err := a.NewShared(testFormat())
		require.NoError(t, err)
		h := b.NewHandle(HandleBuffer, 9, func(uint32) { destroyed.Add(1) })

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Release()
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, b.Close())
		}()
		wg.Wait()
	}
	flush(t, a)
	assert.Equal(t, int32(rounds), destroyed.Load())
}

func TestRetainOnReleasedHandleKeepsCount(t *testing.T) {
	s := newTestSession(t)
	destroys := 0
	h := s.NewHandle(HandleTexture, 2, func(uint32) { destroys++ })
	h.Release()

	assert.Panics(t, func() { h.Retain() })
	assert.Equal(t, int32(0), h.state.refs.Load())
	assert.Panics(t, func() { h.Release() })
	assert.Equal(t, int32(0), h.state.refs.Load())

	flush(t, s)
	assert.Equal(t, 1, destroys)
}

func TestFinalizeAfterObjectSpaceIsGone(t *testing.T) {
	s, err := New(window.NewHeadlessFactory(), testFormat())
	require.NoError(t, err)
	h := s.NewHandle(HandleBuffer, 1, func(uint32) { t.Error("destroy ran without a context") })
	require.NoError(t, s.Close())
	assert.NotPanics(t, h.Release)
}

func TestRunTearsDownOnError(t *testing.T) {
	boom := errors.New("boom")
	var captured Session
	err := Run(window.NewHeadlessFactory(), testFormat(), func(s Session) error {
		captured = s
		return RunShared(s, testFormat(), func(child Session) error {
			assert.Equal(t, 2, child.Registry().Len())
			return boom
		})
	})

	assert.ErrorIs(t, err, boom)
	require.NotNil(t, captured)
	assert.ErrorIs(t, captured.DoSync(func() error { return nil }), common.ErrSessionClosed)
	assert.Equal(t, 0, captured.Registry().Len())
}

func TestRunTearsDownOnPanic(t *testing.T) {
	var captured Session
	assert.Panics(t, func() {
		_ = Run(window.NewHeadlessFactory(), testFormat(), func(s Session) error {
			captured = s
			panic("body failed")
		})
	})
	require.NotNil(t, captured)
	assert.False(t, captured.Window().IsRunning())
}

func TestRunToleratesBodyClosingSession(t *testing.T) {
	err := Run(window.NewHeadlessFactory(), testFormat(), func(s Session) error {
		return s.Close()
	})
	assert.NoError(t, err)
}

func TestRunPropagatesCreationFailure(t *testing.T) {
	err := Run(failingFactory{err: errors.New("no gpu")}, testFormat(), func(Session) error {
		t.Error("body ran without a session")
		return nil
	})
	assert.ErrorIs(t, err, common.ErrContextCreation)
}

func TestHandleKindString(t *testing.T) {
	assert.Equal(t, "buffer", HandleBuffer.String())
	assert.Equal(t, "texture", HandleTexture.String())
	assert.Equal(t, "renderbuffer", HandleRenderbuffer.String())
}
