package window

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// DefaultMaxColorAttachments is the color attachment limit reported by the headless device,
// matching the minimum OpenGL 3.3 guarantees.
const DefaultMaxColorAttachments = 8

// HeadlessFactory creates contexts without a display. Each context still owns a real render thread,
// so thread affinity and ordering behave exactly as with a windowed backend; GPU calls are recorded
// on a HeadlessDevice instead of reaching a driver.
type HeadlessFactory struct {
	maxColorAttachments int
	nextID              atomic.Uint64
}

var _ ContextFactory = &HeadlessFactory{}

// HeadlessOption is a functional option for configuring a HeadlessFactory.
type HeadlessOption func(f *HeadlessFactory)

// WithMaxColorAttachments overrides the color attachment limit reported by created devices.
//
// Parameters:
//   - n: the limit
//
// Returns:
//   - HeadlessOption: option function to apply
func WithMaxColorAttachments(n int) HeadlessOption {
	return func(f *HeadlessFactory) {
		f.maxColorAttachments = n
	}
}

// NewHeadlessFactory creates a HeadlessFactory with the specified options.
//
// Parameters:
//   - options: functional options to configure the factory
//
// Returns:
//   - *HeadlessFactory: the factory
func NewHeadlessFactory(options ...HeadlessOption) *HeadlessFactory {
	f := &HeadlessFactory{maxColorAttachments: DefaultMaxColorAttachments}
	for _, opt := range options {
		opt(f)
	}
	return f
}

func (f *HeadlessFactory) Create(format Format) (ContextHandle, error) {
	if format.Width <= 0 || format.Height <= 0 {
		return nil, fmt.Errorf("headless: invalid framebuffer size %dx%d", format.Width, format.Height)
	}
	id := f.nextID.Add(1)
	c := &headlessContext{
		factory: f,
		id:      id,
		width:   format.Width,
		height:  format.Height,
		device:  &HeadlessDevice{maxColorAttachments: f.maxColorAttachments},
		window:  &headlessWindow{running: true},
	}
	thread, err := NewRenderThread(fmt.Sprintf("headless-%d", id), nil, nil)
	if err != nil {
		return nil, err
	}
	c.thread = thread
	return c, nil
}

// headlessContext implements ContextHandle on top of a RenderThread.
type headlessContext struct {
	factory *HeadlessFactory
	id      uint64
	thread  RenderThread
	device  *HeadlessDevice
	window  *headlessWindow

	width, height int
	swaps         atomic.Int64
	deleted       atomic.Bool
}

var _ ContextHandle = &headlessContext{}

func (c *headlessContext) DoSync(action func() error) error { return c.thread.DoSync(action) }
func (c *headlessContext) DoAsync(action func())            { c.thread.DoAsync(action) }

func (c *headlessContext) Swap() error {
	c.swaps.Add(1)
	return nil
}

// Swaps returns how many times the back buffer has been presented.
func (c *headlessContext) Swaps() int64 {
	return c.swaps.Load()
}

func (c *headlessContext) FrameBufferSize() (int, int) {
	return c.width, c.height
}

func (c *headlessContext) CreateShared(format Format) (ContextHandle, error) {
	if c.deleted.Load() {
		return nil, fmt.Errorf("headless: cannot share with deleted context %d", c.id)
	}
	return c.factory.Create(format)
}

func (c *headlessContext) Device() Device { return c.device }
func (c *headlessContext) Window() Window { return c.window }

func (c *headlessContext) Delete() error {
	if !c.deleted.CompareAndSwap(false, true) {
		return fmt.Errorf("headless: context %d already deleted", c.id)
	}
	c.thread.Stop()
	c.window.RequestClose()
	return nil
}

// HeadlessDevice records the GPU calls issued against a headless context.
// Accessors are safe to call from any goroutine.
type HeadlessDevice struct {
	mu                  sync.Mutex
	maxColorAttachments int
	srgb                bool
	scissor             bool
	packAlignment       int
	unpackAlignment     int
	deletedVAOs         []uint32
	deletedFBOs         []uint32
}

var _ Device = &HeadlessDevice{}

func (d *HeadlessDevice) EnableSRGBFramebuffer() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.srgb = true
}

func (d *HeadlessDevice) EnableScissorTest() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scissor = true
}

func (d *HeadlessDevice) SetPixelAlignment(pack, unpack int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.packAlignment = pack
	d.unpackAlignment = unpack
}

func (d *HeadlessDevice) MaxColorAttachments() int {
	return d.maxColorAttachments
}

func (d *HeadlessDevice) DeleteVertexArray(name uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deletedVAOs = append(d.deletedVAOs, name)
}

func (d *HeadlessDevice) DeleteFramebuffer(name uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deletedFBOs = append(d.deletedFBOs, name)
}

// Defaults reports the fixed state a session applies at creation.
//
// Returns:
//   - srgb: whether sRGB framebuffer writes are enabled
//   - scissor: whether scissor testing is enabled
//   - pack: the pixel pack alignment
//   - unpack: the pixel unpack alignment
func (d *HeadlessDevice) Defaults() (srgb, scissor bool, pack, unpack int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.srgb, d.scissor, d.packAlignment, d.unpackAlignment
}

// DeletedVertexArrays returns a copy of every vertex array name deleted so far, in deletion order.
func (d *HeadlessDevice) DeletedVertexArrays() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint32(nil), d.deletedVAOs...)
}

// DeletedFramebuffers returns a copy of every framebuffer name deleted so far, in deletion order.
func (d *HeadlessDevice) DeletedFramebuffers() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint32(nil), d.deletedFBOs...)
}

// headlessWindow is a Window with no platform events.
type headlessWindow struct {
	mu       sync.Mutex
	running  bool
	onKey    func(keyCode uint32)
	onResize func(width, height int)
}

var _ Window = &headlessWindow{}

func (w *headlessWindow) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *headlessWindow) PollEvents() {}

func (w *headlessWindow) RequestClose() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false
}

func (w *headlessWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onKey = callback
}

func (w *headlessWindow) SetResizeCallback(callback func(width, height int)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onResize = callback
}
