// Package glfw_backend implements the window context contract with GLFW windows and OpenGL 3.3 core contexts.
//
// GLFW requires window creation, destruction and event polling on the main thread. NewFactory locks the
// calling goroutine to its OS thread; Create, CreateShared, Delete and Window.PollEvents must be called
// from that goroutine. All GL work runs on each context's own render thread.
package glfw_backend

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/window"
	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Factory creates GLFW-backed contexts. GLFW is initialized by NewFactory and terminated when the last
// context created through the factory is deleted.
type Factory struct {
	mu       sync.Mutex
	live     int
	nextID   int
	glInitMu sync.Mutex
}

var _ window.ContextFactory = &Factory{}

// NewFactory initializes GLFW on the calling goroutine's OS thread.
//
// GLFW reference: https://www.glfw.org/docs/latest/intro_guide.html#thread_safety
//
// Returns:
//   - *Factory: the factory
//   - error: error if GLFW could not be initialized
func NewFactory() (*Factory, error) {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GLFW: %v", err)
	}
	return &Factory{}, nil
}

func (f *Factory) Create(format window.Format) (window.ContextHandle, error) {
	return f.create(format, nil)
}

// create makes a window whose context optionally shares objects with share's context, then starts the
// render thread that owns the context.
func (f *Factory) create(format window.Format, share *glfw.Window) (*glfwContext, error) {
	applyHints(format)

	win, err := glfw.CreateWindow(format.Width, format.Height, format.Title, nil, share)
	if err != nil {
		return nil, fmt.Errorf("failed to create GLFW window: %v", err)
	}

	f.mu.Lock()
	f.live++
	f.nextID++
	id := f.nextID
	f.mu.Unlock()

	c := &glfwContext{
		factory: f,
		win:     win,
		device:  &glDevice{},
	}
	c.window = newGLFWWindow(c)

	// Store actual framebuffer size (may differ from requested on high-DPI).
	fbWidth, fbHeight := win.GetFramebufferSize()
	c.width.Store(int64(fbWidth))
	c.height.Store(int64(fbHeight))

	vsync := 0
	if format.VSync {
		vsync = 1
	}
	thread, err := window.NewRenderThread(fmt.Sprintf("glfw-%d", id), func() error {
		win.MakeContextCurrent()
		// gl.Init loads process-wide function pointers; serialize it across render threads.
		f.glInitMu.Lock()
		defer f.glInitMu.Unlock()
		if err := gl.Init(); err != nil {
			return fmt.Errorf("failed to load OpenGL functions: %w", err)
		}
		glfw.SwapInterval(vsync)
		return nil
	}, func() {
		glfw.DetachCurrentContext()
	})
	if err != nil {
		win.Destroy()
		f.release()
		return nil, err
	}
	c.thread = thread

	common.Logger().Info("glfw context created", "title", format.Title, "width", fbWidth, "height", fbHeight, "shared", share != nil)
	return c, nil
}

// release terminates GLFW once the last context is gone.
func (f *Factory) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live--
	if f.live == 0 {
		glfw.Terminate()
	}
}

// applyHints translates a Format into GLFW window hints for an OpenGL 3.3 core context.
//
// Reference: https://www.glfw.org/docs/latest/window_guide.html#window_hints
func applyHints(format window.Format) {
	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.ClientAPI, glfw.OpenGLAPI)
	glfw.WindowHint(glfw.ContextVersionMajor, 3)
	glfw.WindowHint(glfw.ContextVersionMinor, 3)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.SRGBCapable, boolHint(format.SRGB))
	glfw.WindowHint(glfw.DepthBits, format.DepthBits)
	glfw.WindowHint(glfw.StencilBits, format.StencilBits)
	glfw.WindowHint(glfw.Samples, format.Samples)
	glfw.WindowHint(glfw.Visible, boolHint(!format.Hidden))
}

func boolHint(b bool) int {
	if b {
		return glfw.True
	}
	return glfw.False
}

// glfwContext implements window.ContextHandle for one GLFW window and its GL context.
type glfwContext struct {
	factory *Factory
	win     *glfw.Window
	window  *glfwWindow
	thread  window.RenderThread
	device  *glDevice

	// width and height mirror the framebuffer size reported by the resize callback,
	// so the render thread never calls main-thread-only GLFW functions.
	width, height atomic.Int64

	deleted atomic.Bool
}

var _ window.ContextHandle = &glfwContext{}

func (c *glfwContext) DoSync(action func() error) error { return c.thread.DoSync(action) }
func (c *glfwContext) DoAsync(action func())            { c.thread.DoAsync(action) }

// Swap presents the back buffer. glfwSwapBuffers may be called from any thread with the context current.
func (c *glfwContext) Swap() error {
	c.win.SwapBuffers()
	return nil
}

func (c *glfwContext) FrameBufferSize() (int, int) {
	return int(c.width.Load()), int(c.height.Load())
}

func (c *glfwContext) CreateShared(format window.Format) (window.ContextHandle, error) {
	if c.deleted.Load() {
		return nil, fmt.Errorf("cannot share with a deleted context")
	}
	return c.factory.create(format, c.win)
}

func (c *glfwContext) Device() window.Device { return c.device }
func (c *glfwContext) Window() window.Window { return c.window }

// Delete drains the render thread, releases the context from it, then destroys the window.
func (c *glfwContext) Delete() error {
	if !c.deleted.CompareAndSwap(false, true) {
		return fmt.Errorf("context is already deleted")
	}
	c.thread.Stop()
	c.window.running.Store(false)
	c.win.Destroy()
	c.factory.release()
	return nil
}

// glDevice implements window.Device with OpenGL 3.3 core calls.
type glDevice struct {
	maxColorAttachments atomic.Int32
}

var _ window.Device = &glDevice{}

func (d *glDevice) EnableSRGBFramebuffer() {
	gl.Enable(gl.FRAMEBUFFER_SRGB)
}

func (d *glDevice) EnableScissorTest() {
	gl.Enable(gl.SCISSOR_TEST)
}

func (d *glDevice) SetPixelAlignment(pack, unpack int) {
	gl.PixelStorei(gl.PACK_ALIGNMENT, int32(pack))
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, int32(unpack))
}

func (d *glDevice) MaxColorAttachments() int {
	if n := d.maxColorAttachments.Load(); n > 0 {
		return int(n)
	}
	var n int32
	gl.GetIntegerv(gl.MAX_COLOR_ATTACHMENTS, &n)
	d.maxColorAttachments.Store(n)
	return int(n)
}

func (d *glDevice) DeleteVertexArray(name uint32) {
	gl.DeleteVertexArrays(1, &name)
}

func (d *glDevice) DeleteFramebuffer(name uint32) {
	gl.DeleteFramebuffers(1, &name)
}
