package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiledforward/forwardplus/engine/camera"
	"github.com/tiledforward/forwardplus/engine/cull"
	"github.com/tiledforward/forwardplus/engine/queue"
	"github.com/tiledforward/forwardplus/engine/renderer/renderertest"
)

func newTestSystem(t *testing.T, opts ...RenderSystemBuilderOption) (*RenderSystem, *renderertest.Recording) {
	t.Helper()
	gpu := renderertest.New()
	rs, err := NewRenderSystem(gpu, 1024, 768, append([]RenderSystemBuilderOption{WithSeed(7)}, opts...)...)
	require.NoError(t, err)
	return rs, gpu
}

func TestDemoLightsGenerated(t *testing.T) {
	rs, _ := newTestSystem(t)
	// Ten point/spot pairs.
	assert.Equal(t, 2*demoLightPairs, rs.LightCount())
}

func TestSeedDeterminism(t *testing.T) {
	a, _ := newTestSystem(t)
	b, _ := newTestSystem(t)

	// Same seed, same frame: identical visible sets.
	require.NoError(t, a.frame())
	require.NoError(t, b.frame())
	require.Equal(t, a.visible.TotalCount(), b.visible.TotalCount())
	assert.Equal(t, a.visible.Infos, b.visible.Infos)
}

func TestCameraEventAppliedInOrder(t *testing.T) {
	rs, _ := newTestSystem(t)

	rs.UpdateCameraTransform(camera.TransformUpdate{Position: [3]float32{1, 0, 0}})
	rs.UpdateCameraTransform(camera.TransformUpdate{Position: [3]float32{2, 0, 0}})
	rs.DispatchEvents()
	rs.drainEvents()

	// The later event wins.
	assert.Equal(t, float32(2), rs.cameraState.Position().X())
}

func TestPauseEvent(t *testing.T) {
	rs, _ := newTestSystem(t)

	rs.SetPaused(true)
	rs.DispatchEvents()
	rs.drainEvents()
	assert.True(t, rs.paused)

	rs.SetPaused(false)
	rs.DispatchEvents()
	rs.drainEvents()
	assert.False(t, rs.paused)
}

func TestResizeEventPropagates(t *testing.T) {
	rs, gpu := newTestSystem(t)

	rs.ResizeWindow(1600, 900)
	rs.DispatchEvents()
	rs.drainEvents()

	require.Equal(t, [][2]int{{1600, 900}}, gpu.Resizes)
	assert.Equal(t, [2]int32{1600, 900}, rs.pipeline.Parameters().Resolution)
}

func TestToggleDebugRenderingEvent(t *testing.T) {
	rs, _ := newTestSystem(t)

	rs.ToggleLightDebugRendering()
	rs.DispatchEvents()
	rs.drainEvents()
	assert.True(t, rs.debugLines.Enabled())
}

func TestFrameRunsCullAndDraw(t *testing.T) {
	rs, gpu := newTestSystem(t)

	// Back the camera up so the whole demo scene is in front of it.
	require.NoError(t, rs.applyCameraTransform(camera.TransformUpdate{Position: [3]float32{0, 1, -10}}))
	require.NoError(t, rs.frame())

	assert.Equal(t, 1, gpu.FramesBegun)
	assert.Equal(t, 1, gpu.FramesEnded)
	assert.Equal(t, 1, gpu.Presents)
	assert.Equal(t, cull.StateIdle, rs.pipeline.State())

	// The demo scene is in front of the moved camera: all three objects drawn.
	assert.Len(t, gpu.Draws, 3)

	// The compute stages ran: lights are spread across the scene, so at
	// least z-binning and tile stages dispatched.
	assert.NotEmpty(t, gpu.Dispatches)
}

func TestFrameSkippedOnBeginFailure(t *testing.T) {
	rs, gpu := newTestSystem(t)

	gpu.FailBeginFrame = true
	err := rs.frame()
	require.Error(t, err)
	assert.Zero(t, gpu.Presents)

	gpu.FailBeginFrame = false
	require.NoError(t, rs.frame())
}

func TestFenceRendezvousThroughQueue(t *testing.T) {
	rs, _ := newTestSystem(t)

	rs.UpdateCameraTransform(camera.TransformUpdate{Position: [3]float32{5, 0, 0}})
	fence := rs.CreateFence()
	rs.UpdateCameraTransform(camera.TransformUpdate{Position: [3]float32{9, 0, 0}})
	rs.DispatchEvents()

	done := make(chan struct{})
	go func() {
		defer close(done)
		rs.drainEvents()
	}()

	// The renderer applies e1, reaches the fence and blocks.
	fence.WaitUntil(queue.FenceWaitMain)
	assert.Equal(t, float32(5), rs.cameraState.Position().X())

	fence.Signal(queue.FenceDone)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("render side never resumed past the fence")
	}

	// e2 applied strictly after the fence released.
	assert.Equal(t, float32(9), rs.cameraState.Position().X())
}

func TestShutdownReleasesPendingFences(t *testing.T) {
	rs, _ := newTestSystem(t)

	fence := rs.CreateFence()
	// The fence event is never drained; Shutdown must release the waiter.
	rs.Shutdown()
	assert.Equal(t, queue.FenceDone, fence.Value())
}

func TestRenderLoopStartStop(t *testing.T) {
	rs, gpu := newTestSystem(t)

	rs.Start()
	time.Sleep(50 * time.Millisecond)
	rs.Shutdown()

	assert.Greater(t, gpu.Presents, 0, "render loop presented at least one frame")
}
