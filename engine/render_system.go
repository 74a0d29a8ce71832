// Package engine wires the rendering core together: the render thread that
// drains the cross-thread event queue and runs the cull-then-draw frame
// sequence, and the application shell that owns the host window and feeds the
// queue from the UI thread.
package engine

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/tiledforward/forwardplus/engine/camera"
	"github.com/tiledforward/forwardplus/engine/cull"
	"github.com/tiledforward/forwardplus/engine/debugdraw"
	"github.com/tiledforward/forwardplus/engine/light"
	"github.com/tiledforward/forwardplus/engine/profiler"
	"github.com/tiledforward/forwardplus/engine/queue"
	"github.com/tiledforward/forwardplus/engine/renderer"
	"github.com/tiledforward/forwardplus/engine/scene"
	"github.com/tiledforward/forwardplus/engine/shader"
)

// demoLightPairs is the number of point/spot light pairs the demo scene
// generates.
const demoLightPairs = 10

// maxConsecutiveFrameFailures bounds how long the loop retries a failing
// swap chain before treating the device as lost.
const maxConsecutiveFrameFailures = 100

// RenderSystem owns the render thread and everything it touches: the GPU
// backend, the light registry, the culling pipeline, the scene draw pass and
// the debug overlay. The UI thread interacts with it exclusively through the
// event queue and fences.
type RenderSystem struct {
	log Logger
	gpu renderer.Renderer

	shaders    *shader.Library
	lights     *light.Registry
	pipeline   *cull.Pipeline
	sceneDraw  *scene.Draw
	debugLines *debugdraw.Renderer

	cameraState *camera.State
	projection  [16]float32

	events *queue.EventDoubleBuffer

	fencesMu   sync.Mutex
	fences     map[uint64]*queue.Fence
	nextFence  atomic.Uint64

	running atomic.Bool
	paused  bool
	wg      sync.WaitGroup

	prof      *profiler.Profiler
	profiling bool

	visible light.VisibleSet
	rng     *rand.Rand
}

// NewRenderSystem builds the full rendering core over the given backend:
// shader library, culling pipeline, scene draw pass, debug overlay, camera
// state and the demo light set. The render thread is not started; call Start.
//
// Parameters:
//   - gpu: the GPU backend (single-thread-owned by the render thread once
//     Start is called)
//   - width, height: the initial surface size in pixels
//   - opts: variadic list of RenderSystemBuilderOption functions
//
// Returns:
//   - *RenderSystem: the render system
//   - error: an error if any subsystem fails to initialize
func NewRenderSystem(gpu renderer.Renderer, width, height int, opts ...RenderSystemBuilderOption) (*RenderSystem, error) {
	rs := &RenderSystem{
		log:    NewNopLogger(),
		gpu:    gpu,
		events: queue.NewEventDoubleBuffer(),
		fences: make(map[uint64]*queue.Fence),
		rng:    rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(rs)
	}

	rs.shaders = shader.NewLibrary(shader.WithDebug(rs.log.DebugEnabled()))
	rs.lights = light.NewRegistry()
	rs.cameraState = camera.NewState()
	rs.projection = camera.Projection(width, height)

	var err error
	rs.pipeline, err = cull.NewPipeline(gpu, rs.shaders, cull.Config{
		Width:      width,
		Height:     height,
		ZNear:      camera.ZNear,
		ZFar:       camera.ZFar,
		Projection: rs.projection,
	})
	if err != nil {
		return nil, fmt.Errorf("culling pipeline: %w", err)
	}

	rs.sceneDraw, err = scene.NewDraw(gpu, rs.shaders)
	if err != nil {
		return nil, fmt.Errorf("scene draw: %w", err)
	}

	rs.debugLines, err = debugdraw.NewRenderer(gpu, rs.shaders)
	if err != nil {
		return nil, fmt.Errorf("debug overlay: %w", err)
	}

	rs.prof = profiler.NewProfiler(profiler.WithReporter(func(line string) {
		rs.log.Infof("[Profiler] %s", line)
	}))

	rs.generateLights()
	if err := rs.applyCameraTransform(camera.TransformUpdate{Position: [3]float32{0, 0, 1}}); err != nil {
		return nil, err
	}

	return rs, nil
}

// generateLights populates the demo scene: pairs of point and spot lights in
// lanes along the Z axis with randomized positions, colors and cone angles.
func (rs *RenderSystem) generateLights() {
	randFloat := func(lo, hi float32) float32 {
		return lo + rs.rng.Float32()*(hi-lo)
	}
	randColor := func() [3]float32 {
		red := 1.0 / (1.0 + float32(rs.rng.Intn(10)))
		green := 1.0 / (1.0 + float32(rs.rng.Intn(10)))
		blue := 1.0 / (1.0 + float32(rs.rng.Intn(10)))
		return [3]float32{red, green, max(1.0-red, blue)}
	}

	for i := 0; i < demoLightPairs; i++ {
		laneZ := float32(i)*10 - 50

		{
			diffuse := randColor()
			rs.lights.Add(light.NewLight(light.KindPoint,
				light.WithPosition(float32(rs.rng.Intn(10))*10-50, 5, laneZ),
				light.WithRange(25),
				light.WithDiffuse(diffuse[0], diffuse[1], diffuse[2]),
				light.WithAmbient(diffuse[0]*0.3, diffuse[1]*0.3, diffuse[2]*0.3),
			))
		}
		{
			diffuse := randColor()
			pitch := mgl32.DegToRad(randFloat(-120, -60))
			transform := mgl32.Translate3D(randFloat(-50, 50), 5, laneZ).
				Mul4(mgl32.HomogRotate3DX(pitch))
			outer := mgl32.DegToRad(randFloat(10, 45))

			rs.lights.Add(light.NewLight(light.KindSpot,
				light.WithTransform(transform),
				light.WithRange(20),
				light.WithCone(outer*0.25, outer),
				light.WithDiffuse(diffuse[0], diffuse[1], diffuse[2]),
				light.WithAmbient(diffuse[0]*0.3, diffuse[1]*0.3, diffuse[2]*0.3),
			))
		}
	}
}

// Start launches the render thread.
func (rs *RenderSystem) Start() {
	rs.running.Store(true)
	rs.wg.Add(1)
	go rs.renderLoop()
}

// Shutdown stops the render thread, joins it, and releases any fence waiters
// with the terminal state so the UI thread exits cleanly.
func (rs *RenderSystem) Shutdown() {
	rs.running.Store(false)
	rs.wg.Wait()
	rs.releaseFences()
}

func (rs *RenderSystem) releaseFences() {
	rs.fencesMu.Lock()
	defer rs.fencesMu.Unlock()
	for handle, fence := range rs.fences {
		fence.Signal(queue.FenceDone)
		delete(rs.fences, handle)
	}
}

// renderLoop is the render thread body: drain the event queue, then run one
// frame unless paused. A panic is logged and ends the loop rather than
// crashing the process.
func (rs *RenderSystem) renderLoop() {
	defer rs.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			rs.log.Errorf("render thread recovered from panic: %v", r)
			rs.running.Store(false)
		}
	}()

	frameFailures := 0
	for rs.running.Load() {
		rs.drainEvents()

		if rs.paused {
			runtime.Gosched()
			continue
		}

		if err := rs.frame(); err != nil {
			frameFailures++
			rs.log.Errorf("frame skipped: %v", err)
			if frameFailures >= maxConsecutiveFrameFailures {
				rs.log.Errorf("device appears lost after %d failed frames, stopping render thread", frameFailures)
				rs.running.Store(false)
			}
			continue
		}
		frameFailures = 0
	}

	rs.releaseFences()
}

// drainEvents applies every event of the pending read buffer in append order.
func (rs *RenderSystem) drainEvents() {
	readQueue := rs.events.ReadQueue()
	if readQueue == nil {
		return
	}

	for it := readQueue.Iterate(); it.Valid(); it.Advance() {
		switch RenderEventType(it.Header().EventID) {
		case EventUpdateCameraTransform:
			if err := rs.applyCameraTransform(decodeCameraTransform(it.Data())); err != nil {
				rs.log.Errorf("camera update: %v", err)
			}
		case EventFence:
			rs.applyFence(decodeFenceHandle(it.Data()))
		case EventPause:
			rs.paused = decodeBool(it.Data())
		case EventResizeWindow:
			width, height := decodeWindowSize(it.Data())
			rs.applyResize(int(width), int(height))
		case EventSetWindowFullscreenState:
			rs.log.Debugf("window fullscreen state: %v", decodeBool(it.Data()))
		case EventToggleLightDebugRendering:
			rs.debugLines.Toggle()
		default:
			rs.log.Warnf("unknown render event %d", it.Header().EventID)
		}
	}

	rs.events.FinishRead()
}

// applyCameraTransform updates the render-side camera state and re-uploads
// the draw pass camera constants.
func (rs *RenderSystem) applyCameraTransform(u camera.TransformUpdate) error {
	rs.cameraState.ApplyTransform(u)
	return rs.sceneDraw.UpdateCamera(
		rs.cameraState.Position(),
		rs.cameraState.View(),
		rs.cameraState.ViewProjection(rs.projection),
	)
}

// applyFence runs the render side of the rendezvous: signal the UI thread,
// then block until it finishes touching shared state.
func (rs *RenderSystem) applyFence(handle uint64) {
	rs.fencesMu.Lock()
	fence := rs.fences[handle]
	delete(rs.fences, handle)
	rs.fencesMu.Unlock()

	if fence == nil {
		rs.log.Warnf("fence event with unknown handle %d", handle)
		return
	}
	fence.Signal(queue.FenceWaitMain)
	fence.WaitUntil(queue.FenceDone)
}

// applyResize reconfigures the swap chain, rebuilds the projection and
// refreshes everything derived from it.
func (rs *RenderSystem) applyResize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	rs.gpu.Resize(width, height)
	rs.projection = camera.Projection(width, height)
	rs.pipeline.SetViewport(width, height, rs.projection)
	if err := rs.applyCameraTransform(camera.TransformUpdate{
		Position: positionArray(rs.cameraState.Position()),
		Rotation: rs.cameraState.Rotation(),
	}); err != nil {
		rs.log.Errorf("resize camera refresh: %v", err)
	}
}

// frame runs one render frame: CPU frustum cull, light-culling pipeline,
// scene draw, debug overlay, present.
func (rs *RenderSystem) frame() error {
	if err := rs.gpu.BeginFrame(); err != nil {
		return err
	}
	defer func() {
		rs.pipeline.FinishFrame()
		rs.gpu.EndFrame()
		rs.gpu.Present()
	}()

	frustum := rs.cameraState.Frustum(rs.projection)

	var collector light.Collector
	if rs.debugLines.Enabled() {
		collector = rs.debugLines
	}
	rs.lights.BuildVisibleSet(
		light.CameraView{Position: rs.cameraState.Position(), Front: rs.cameraState.Forward()},
		&frustum,
		camera.ZNear, camera.ZFar,
		collector,
		&rs.visible,
	)

	if err := rs.pipeline.Run(&rs.visible, rs.cullCameraState()); err != nil {
		// Frame is skipped: the clear still presents, the scene does not draw.
		return err
	}

	if _, err := rs.sceneDraw.DrawVisible(&frustum, rs.pipeline.DrawBindings()); err != nil {
		return err
	}

	if err := rs.debugLines.Render(rs.cameraState.ViewProjection(rs.projection)); err != nil {
		// Degrades the overlay for this frame only.
		rs.log.Warnf("debug overlay: %v", err)
	}

	if rs.profiling {
		rs.prof.Tick()
	}
	return nil
}

// cullCameraState snapshots the camera for the compute constants.
func (rs *RenderSystem) cullCameraState() cull.CameraState {
	pos := rs.cameraState.Position()
	front := rs.cameraState.Forward()
	return cull.CameraState{
		Position:       [4]float32{pos.X(), pos.Y(), pos.Z(), 1},
		Front:          [4]float32{front.X(), front.Y(), front.Z(), 0},
		View:           rs.cameraState.View(),
		ViewProjection: rs.cameraState.ViewProjection(rs.projection),
	}
}

// UI-thread API: every call below only touches the event queue or the fence
// table and is safe to call while the render thread runs.

// UpdateCameraTransform enqueues an absolute camera pose.
//
// Parameters:
//   - u: the camera pose
func (rs *RenderSystem) UpdateCameraTransform(u camera.TransformUpdate) {
	rs.events.WriteQueue().Push(uint32(EventUpdateCameraTransform), encodeCameraTransform(u))
}

// SetPaused enqueues a pause or resume request.
//
// Parameters:
//   - paused: true to pause the render loop
func (rs *RenderSystem) SetPaused(paused bool) {
	rs.events.WriteQueue().Push(uint32(EventPause), encodeBool(paused))
}

// ResizeWindow enqueues a swap-chain resize.
//
// Parameters:
//   - width, height: the new surface size in pixels
func (rs *RenderSystem) ResizeWindow(width, height uint32) {
	rs.events.WriteQueue().Push(uint32(EventResizeWindow), encodeWindowSize(width, height))
}

// SetWindowFullscreenState enqueues the window's new fullscreen state. The
// swap-chain resize itself arrives through the accompanying resize event.
//
// Parameters:
//   - fullscreen: the new state
func (rs *RenderSystem) SetWindowFullscreenState(fullscreen bool) {
	rs.events.WriteQueue().Push(uint32(EventSetWindowFullscreenState), encodeBool(fullscreen))
}

// ToggleLightDebugRendering enqueues a light overlay toggle.
func (rs *RenderSystem) ToggleLightDebugRendering() {
	rs.events.WriteQueue().Push(uint32(EventToggleLightDebugRendering), nil)
}

// CreateFence allocates a fence, enqueues its rendezvous event and returns
// it. The caller should DispatchEvents and then WaitUntil(FenceWaitMain),
// mutate shared state, and Signal(FenceDone).
//
// Returns:
//   - *queue.Fence: the fence, initialized to FenceWaitRenderer
func (rs *RenderSystem) CreateFence() *queue.Fence {
	fence := queue.NewFence(queue.FenceWaitRenderer)
	handle := rs.nextFence.Add(1)

	rs.fencesMu.Lock()
	rs.fences[handle] = fence
	rs.fencesMu.Unlock()

	rs.events.WriteQueue().Push(uint32(EventFence), encodeFenceHandle(handle))
	return fence
}

// DispatchEvents publishes the accumulated events to the render thread.
func (rs *RenderSystem) DispatchEvents() {
	rs.events.DispatchWrite()
}

// SetProfiling enables or disables the per-second frame statistics log.
//
// Parameters:
//   - enabled: true to report statistics
func (rs *RenderSystem) SetProfiling(enabled bool) {
	rs.profiling = enabled
}

// LightCount returns the number of registered lights.
//
// Returns:
//   - int: the light count
func (rs *RenderSystem) LightCount() int {
	return rs.lights.Count()
}

func positionArray(v mgl32.Vec3) [3]float32 {
	return [3]float32{v.X(), v.Y(), v.Z()}
}
