// Package window wraps the host OS window and its event pump behind a small
// interface: input callbacks, resize notification, a WebGPU surface
// descriptor, and fullscreen switching.
package window

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// Window provides platform windowing and input event handling.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is
	// resized, with the new size in pixels.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetKeyDownCallback sets the callback for key press events.
	//
	// Parameters:
	//   - callback: function receiving the key code
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetKeyUpCallback sets the callback for key release events.
	//
	// Parameters:
	//   - callback: function receiving the key code
	SetKeyUpCallback(callback func(keyCode uint32))

	// SetMinimizeCallback sets the callback for window minimize and restore
	// events.
	//
	// Parameters:
	//   - callback: function receiving true on minimize, false on restore
	SetMinimizeCallback(callback func(minimized bool))

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for
	// creating a WebGPU surface for this window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform surface descriptor, or nil
	//     if the window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// SetFullscreen moves the window onto the primary monitor (true) or back
	// to its windowed placement (false).
	//
	// Parameters:
	//   - fullscreen: the desired state
	SetFullscreen(fullscreen bool)

	// IsRunning reports whether the window is still open.
	//
	// Returns:
	//   - bool: true until the window is closed
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: an error if the close fails
	Close() error

	// ProcessMessages runs the message loop until the window closes, calling
	// the update callback each iteration.
	ProcessMessages()

	// Width returns the current framebuffer width in pixels.
	//
	// Returns:
	//   - int: the width
	Width() int

	// Height returns the current framebuffer height in pixels.
	//
	// Returns:
	//   - int: the height
	Height() int
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	title  string
	width  int
	height int

	onUpdate   func()
	onResize   func(width, height int)
	onKeyDown  func(keyCode uint32)
	onKeyUp    func(keyCode uint32)
	onMinimize func(minimized bool)

	internalWindow *glfwWindow
}

// BuilderOption is a functional option applied by NewWindow.
type BuilderOption func(*engineWindow)

// WithTitle sets the window title.
//
// Parameters:
//   - title: the title text
//
// Returns:
//   - BuilderOption: the option function
func WithTitle(title string) BuilderOption {
	return func(w *engineWindow) {
		w.title = title
	}
}

// WithSize sets the initial window size in screen coordinates.
//
// Parameters:
//   - width, height: the requested size
//
// Returns:
//   - BuilderOption: the option function
func WithSize(width, height int) BuilderOption {
	return func(w *engineWindow) {
		w.width = width
		w.height = height
	}
}

// NewWindow creates and shows the host window.
//
// Parameters:
//   - opts: variadic list of BuilderOption functions
//
// Returns:
//   - Window: the window
//   - error: an error if platform window creation fails
func NewWindow(opts ...BuilderOption) (Window, error) {
	w := &engineWindow{
		title:  "Forward+ Demo",
		width:  1024,
		height: 768,
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SetKeyUpCallback(callback func(keyCode uint32)) {
	w.onKeyUp = callback
}

func (w *engineWindow) SetMinimizeCallback(callback func(minimized bool)) {
	w.onMinimize = callback
}

func (w *engineWindow) Width() int  { return w.width }
func (w *engineWindow) Height() int { return w.height }
