package window

// Format describes the window and default framebuffer a context is created with.
// Construct one with NewFormat and the With* options, or decode it with LoadFormat.
type Format struct {
	// Title is the window title displayed in the title bar.
	Title string `toml:"title"`

	// Width is the requested window client area width in pixels.
	Width int `toml:"width"`

	// Height is the requested window client area height in pixels.
	Height int `toml:"height"`

	// SRGB requests an sRGB-capable default framebuffer.
	SRGB bool `toml:"srgb"`

	// DepthBits is the depth buffer precision of the default framebuffer, 0 for none.
	DepthBits int `toml:"depth_bits"`

	// StencilBits is the stencil buffer precision of the default framebuffer, 0 for none.
	StencilBits int `toml:"stencil_bits"`

	// Samples is the MSAA sample count of the default framebuffer, 0 to disable.
	Samples int `toml:"samples"`

	// VSync makes buffer swaps wait for the vertical blank.
	VSync bool `toml:"vsync"`

	// Hidden creates the window without showing it, used for offscreen shared contexts.
	Hidden bool `toml:"hidden"`
}

// Window is the opaque window token owned by a ContextHandle.
// It carries event pumping and the few input hooks an application loop needs.
type Window interface {
	// IsRunning returns true until the window has been asked to close.
	//
	// Returns:
	//   - bool: true if the window is still open
	IsRunning() bool

	// PollEvents processes pending window events without blocking.
	// Backends that bind windows to the main thread require this to be called from it.
	PollEvents()

	// RequestClose flags the window to close on the next event poll.
	RequestClose()

	// SetKeyDownCallback sets the callback for key press events.
	//
	// Parameters:
	//   - callback: function receiving the backend key code
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))
}

// Device is the low-level GPU surface the engine needs from a backend.
// Every method must be called on the owning context's render thread.
type Device interface {
	// EnableSRGBFramebuffer turns on sRGB-correct writes to sRGB framebuffers.
	EnableSRGBFramebuffer()

	// EnableScissorTest turns on scissor testing.
	EnableScissorTest()

	// SetPixelAlignment sets the row alignment for pixel pack and unpack operations.
	//
	// Parameters:
	//   - pack: alignment in bytes for reads from the GPU
	//   - unpack: alignment in bytes for uploads to the GPU
	SetPixelAlignment(pack, unpack int)

	// MaxColorAttachments returns the number of color attachments a framebuffer may have.
	//
	// Returns:
	//   - int: the device limit
	MaxColorAttachments() int

	// DeleteVertexArray deletes a vertex array object owned by this context.
	//
	// Parameters:
	//   - name: the vertex array name
	DeleteVertexArray(name uint32)

	// DeleteFramebuffer deletes a framebuffer object owned by this context.
	//
	// Parameters:
	//   - name: the framebuffer name
	DeleteFramebuffer(name uint32)
}

// ContextHandle is one GPU context together with its window and its render thread.
// The render thread is the only thread that may touch the context; DoSync and DoAsync
// are the sanctioned crossings into it and execute in submission order.
type ContextHandle interface {
	// DoSync runs action on the render thread and blocks until it completes.
	// Safe to call from any goroutine except the render thread itself.
	//
	// Parameters:
	//   - action: the work to run
	//
	// Returns:
	//   - error: the action's error, a recovered panic, or common.ErrSessionClosed
	DoSync(action func() error) error

	// DoAsync schedules action on the render thread without waiting.
	// Panics inside action are recovered and logged, never propagated to the caller.
	//
	// Parameters:
	//   - action: the work to run
	DoAsync(action func())

	// Swap presents the back buffer. Must be called on the render thread; may block on vsync.
	//
	// Returns:
	//   - error: error if presentation fails
	Swap() error

	// FrameBufferSize returns the default framebuffer size in pixels. Must be called on the render thread.
	//
	// Returns:
	//   - int: width in pixels
	//   - int: height in pixels
	FrameBufferSize() (int, int)

	// CreateShared creates a new context sharing this context's object space.
	//
	// Parameters:
	//   - format: the format of the new context's window
	//
	// Returns:
	//   - ContextHandle: the new context
	//   - error: error if the backend could not create it
	CreateShared(format Format) (ContextHandle, error)

	// Device returns the low-level GPU surface of this context.
	//
	// Returns:
	//   - Device: the device bound to this context
	Device() Device

	// Window returns the window token owned by this context.
	//
	// Returns:
	//   - Window: the window
	Window() Window

	// Delete stops the render thread after draining queued work, then destroys the context and its window.
	//
	// Returns:
	//   - error: error if the context was already deleted
	Delete() error
}

// ContextFactory creates root contexts, each starting a new object space.
type ContextFactory interface {
	// Create creates a context and its window.
	//
	// Parameters:
	//   - format: the window and framebuffer format
	//
	// Returns:
	//   - ContextHandle: the new context
	//   - error: error if the backend could not create it
	Create(format Format) (ContextHandle, error)
}
