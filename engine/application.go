package engine

import (
	"fmt"
	"time"

	"github.com/tiledforward/forwardplus/common"
	"github.com/tiledforward/forwardplus/engine/camera"
	"github.com/tiledforward/forwardplus/engine/renderer"
	"github.com/tiledforward/forwardplus/engine/window"
)

// dispatchInterval is the UI-thread event cadence, roughly 60 Hz.
const dispatchInterval = 16 * time.Millisecond

// cameraTickMillis is the fixed camera integration step in milliseconds.
const cameraTickMillis = 1000.0 / 60.0

// Application is the host shell: it owns the window and the camera input
// integrator on the UI thread and drives the render system through the event
// queue. The render thread owns the GPU backend and the scene; the
// application retains only the queue and the window.
type Application struct {
	log Logger

	title         string
	width, height int
	seed          int64
	profiling     bool
	fallbackGPU   bool

	win        window.Window
	rs         *RenderSystem
	controller *camera.Controller

	paused     bool
	fullscreen bool

	lastDispatch time.Time
}

// NewApplication creates the application shell with any provided options
// applied. Nothing is created until Run.
//
// Parameters:
//   - opts: variadic list of ApplicationBuilderOption functions
//
// Returns:
//   - *Application: the application
func NewApplication(opts ...ApplicationBuilderOption) *Application {
	a := &Application{
		log:    NewDefaultLogger("forwardplus", false),
		title:  "Forward+ Demo (WebGPU)",
		width:  1024,
		height: 768,
		seed:   1,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.controller = camera.NewController()
	return a
}

// Run creates the window, the GPU backend and the render system, starts the
// render thread and blocks in the UI message loop until the window closes.
//
// Returns:
//   - error: an error if startup fails
func (a *Application) Run() error {
	win, err := window.NewWindow(
		window.WithTitle(a.title),
		window.WithSize(a.width, a.height),
	)
	if err != nil {
		return fmt.Errorf("window creation: %w", err)
	}
	a.win = win
	defer win.Close()

	gpu, err := renderer.NewWGPURenderer(win.SurfaceDescriptor(), win.Width(), win.Height(),
		renderer.WithForceFallbackAdapter(a.fallbackGPU),
	)
	if err != nil {
		return fmt.Errorf("gpu backend: %w", err)
	}

	rs, err := NewRenderSystem(gpu, win.Width(), win.Height(),
		WithLogger(a.log),
		WithSeed(a.seed),
		WithProfiling(a.profiling),
	)
	if err != nil {
		return fmt.Errorf("render system: %w", err)
	}
	a.rs = rs

	win.SetKeyDownCallback(func(keyCode uint32) { a.handleKey(keyCode, true) })
	win.SetKeyUpCallback(func(keyCode uint32) { a.handleKey(keyCode, false) })
	win.SetResizeCallback(func(width, height int) {
		rs.ResizeWindow(uint32(width), uint32(height))
	})
	win.SetMinimizeCallback(func(minimized bool) {
		a.setPaused(minimized)
	})
	win.SetUpdateCallback(a.tick)

	rs.Start()
	a.lastDispatch = time.Now()

	win.ProcessMessages()

	rs.Shutdown()
	return nil
}

// tick runs once per message loop iteration: at the dispatch cadence it
// integrates camera input, enqueues the transform and publishes the queue.
func (a *Application) tick() {
	now := time.Now()
	if now.Sub(a.lastDispatch) < dispatchInterval {
		return
	}
	a.lastDispatch = now

	if !a.paused {
		update := a.controller.Update(cameraTickMillis)
		a.rs.UpdateCameraTransform(update)
	}
	a.rs.DispatchEvents()
}

// setPaused records the pause state and forwards it to the render thread.
func (a *Application) setPaused(paused bool) {
	a.paused = paused
	a.rs.SetPaused(paused)
}

// toggleFullscreen flips the window state and records it on the render
// thread; the swap-chain resize follows through the resize callback.
func (a *Application) toggleFullscreen() {
	a.fullscreen = !a.fullscreen
	a.win.SetFullscreen(a.fullscreen)
	a.rs.SetWindowFullscreenState(a.fullscreen)
}

// handleKey maps key events onto camera actions and toggles.
func (a *Application) handleKey(keyCode uint32, pressed bool) {
	switch keyCode {
	case common.KeyW:
		a.controller.SetAction(camera.ActionMoveForward, pressed)
	case common.KeyA:
		a.controller.SetAction(camera.ActionMoveLeft, pressed)
	case common.KeyS:
		a.controller.SetAction(camera.ActionMoveBack, pressed)
	case common.KeyD:
		a.controller.SetAction(camera.ActionMoveRight, pressed)
	case common.KeySpace:
		a.controller.SetAction(camera.ActionMoveUp, pressed)
	case common.KeyLeftControl:
		a.controller.SetAction(camera.ActionMoveDown, pressed)
	case common.KeyUp:
		a.controller.SetAction(camera.ActionRotatePitchCW, pressed)
	case common.KeyDown:
		a.controller.SetAction(camera.ActionRotatePitchCCW, pressed)
	case common.KeyLeft:
		a.controller.SetAction(camera.ActionRotateYawCW, pressed)
	case common.KeyRight:
		a.controller.SetAction(camera.ActionRotateYawCCW, pressed)
	case common.KeyV:
		if !pressed {
			a.rs.ToggleLightDebugRendering()
		}
	case common.KeyEnter:
		if !pressed {
			a.toggleFullscreen()
		}
	}
}
