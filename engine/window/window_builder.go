package window

// FormatBuilderOption is a functional option for configuring a Format.
// Use the With* functions to create options.
type FormatBuilderOption func(f *Format)

// NewFormat creates a Format with the specified options.
// Applies default values first, then each option in order.
//
// Parameters:
//   - options: functional options to configure the format
//
// Returns:
//   - Format: the configured format
func NewFormat(options ...FormatBuilderOption) Format {
	f := Format{
		Title:  "Default Window Title",
		Width:  1280,
		Height: 720,
		SRGB:   true,
		VSync:  true,
	}
	for _, opt := range options {
		opt(&f)
	}
	return f
}

// WithTitle sets the window title displayed in the title bar.
//
// Parameters:
//   - title: the window title text
//
// Returns:
//   - FormatBuilderOption: option function to apply
func WithTitle(title string) FormatBuilderOption {
	return func(f *Format) {
		f.Title = title
	}
}

// WithWidth sets the initial window width.
//
// Parameters:
//   - width: initial width in pixels
//
// Returns:
//   - FormatBuilderOption: option function to apply
func WithWidth(width int) FormatBuilderOption {
	return func(f *Format) {
		f.Width = width
	}
}

// WithHeight sets the initial window height.
//
// Parameters:
//   - height: initial height in pixels
//
// Returns:
//   - FormatBuilderOption: option function to apply
func WithHeight(height int) FormatBuilderOption {
	return func(f *Format) {
		f.Height = height
	}
}

// WithSRGB toggles an sRGB-capable default framebuffer.
//
// Parameters:
//   - enabled: true to request sRGB
//
// Returns:
//   - FormatBuilderOption: option function to apply
func WithSRGB(enabled bool) FormatBuilderOption {
	return func(f *Format) {
		f.SRGB = enabled
	}
}

// WithDepthStencil sets the depth and stencil precision of the default framebuffer.
//
// Parameters:
//   - depthBits: depth bits, 0 for none
//   - stencilBits: stencil bits, 0 for none
//
// Returns:
//   - FormatBuilderOption: option function to apply
func WithDepthStencil(depthBits, stencilBits int) FormatBuilderOption {
	return func(f *Format) {
		f.DepthBits = depthBits
		f.StencilBits = stencilBits
	}
}

// WithSamples sets the MSAA sample count of the default framebuffer.
//
// Parameters:
//   - samples: sample count, 0 to disable
//
// Returns:
//   - FormatBuilderOption: option function to apply
func WithSamples(samples int) FormatBuilderOption {
	return func(f *Format) {
		f.Samples = samples
	}
}

// WithVSync toggles waiting for the vertical blank on buffer swap.
//
// Parameters:
//   - enabled: true to sync swaps to the display refresh
//
// Returns:
//   - FormatBuilderOption: option function to apply
func WithVSync(enabled bool) FormatBuilderOption {
	return func(f *Format) {
		f.VSync = enabled
	}
}

// WithHidden creates the window without showing it.
//
// Parameters:
//   - hidden: true to keep the window invisible
//
// Returns:
//   - FormatBuilderOption: option function to apply
func WithHidden(hidden bool) FormatBuilderOption {
	return func(f *Format) {
		f.Hidden = hidden
	}
}
