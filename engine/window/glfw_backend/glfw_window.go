package glfw_backend

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-frame/engine/window"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// glfwWindow holds the GLFW-specific window state and input callbacks.
type glfwWindow struct {
	ctx     *glfwContext
	running atomic.Bool

	mu        sync.Mutex
	onKeyDown func(keyCode uint32)
	onResize  func(width, height int)
}

var _ window.Window = &glfwWindow{}

// newGLFWWindow registers GLFW callbacks for input and framebuffer events on the context's window.
//
// go-gl/glfw: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw
func newGLFWWindow(c *glfwContext) *glfwWindow {
	gw := &glfwWindow{ctx: c}
	gw.running.Store(true)

	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetKeyCallback
	c.win.SetKeyCallback(func(win *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			gw.running.Store(false)
			win.SetShouldClose(true)
			return
		}
		if action != glfw.Press && action != glfw.Repeat {
			return
		}
		gw.mu.Lock()
		cb := gw.onKeyDown
		gw.mu.Unlock()
		if cb != nil {
			cb(uint32(key))
		}
	})

	// Use framebuffer size callback for pixel-accurate resize events.
	// On high-DPI displays (e.g., macOS Retina), framebuffer size differs from window size.
	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetFramebufferSizeCallback
	c.win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		c.width.Store(int64(width))
		c.height.Store(int64(height))
		gw.mu.Lock()
		cb := gw.onResize
		gw.mu.Unlock()
		if cb != nil {
			cb(width, height)
		}
	})

	return gw
}

// IsRunning returns false once the window is closed, escape was pressed, or GLFW reports ShouldClose.
func (w *glfwWindow) IsRunning() bool {
	return w.running.Load() && !w.ctx.win.ShouldClose()
}

// PollEvents polls GLFW for pending events without blocking. Main thread only.
//
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#PollEvents
func (w *glfwWindow) PollEvents() {
	glfw.PollEvents()
}

func (w *glfwWindow) RequestClose() {
	w.running.Store(false)
	if !w.ctx.deleted.Load() {
		w.ctx.win.SetShouldClose(true)
	}
}

func (w *glfwWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onKeyDown = callback
}

func (w *glfwWindow) SetResizeCallback(callback func(width, height int)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onResize = callback
}
