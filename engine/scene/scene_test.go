package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiledforward/forwardplus/common"
	"github.com/tiledforward/forwardplus/engine/renderer"
	"github.com/tiledforward/forwardplus/engine/renderer/renderertest"
	"github.com/tiledforward/forwardplus/engine/shader"
)

func newTestDraw(t *testing.T) (*Draw, *renderertest.Recording) {
	t.Helper()
	gpu := renderertest.New()
	d, err := NewDraw(gpu, shader.NewLibrary())
	require.NoError(t, err)
	return d, gpu
}

func TestGeometryCounts(t *testing.T) {
	vertices, info := generateGeometry()

	// Cube: 6 faces x 2 triangles; pyramid: base quad + 4 sides; plane: 32x32 quads.
	assert.Equal(t, uint32(36), info[ObjectCube].VertexCount)
	assert.Equal(t, uint32(18), info[ObjectPyramid].VertexCount)
	assert.Equal(t, uint32(planeResolution*planeResolution*6), info[ObjectPlane].VertexCount)

	total := info[ObjectPlane].VertexOffset + info[ObjectPlane].VertexCount
	assert.Equal(t, int(total), len(vertices))

	// Object ranges are contiguous and non-overlapping.
	assert.Equal(t, uint32(0), info[ObjectCube].VertexOffset)
	assert.Equal(t, info[ObjectCube].VertexCount, info[ObjectPyramid].VertexOffset)
	assert.Equal(t, info[ObjectPyramid].VertexOffset+info[ObjectPyramid].VertexCount, info[ObjectPlane].VertexOffset)
}

func TestCubeVerticesOnUnitBox(t *testing.T) {
	vertices, info := generateGeometry()
	for _, v := range vertices[:info[ObjectCube].VertexCount] {
		for axis := 0; axis < 3; axis++ {
			assert.InDelta(t, 0.5, abs32(v.Position[axis]), 1e-6)
		}
	}
}

func TestDemoObjectsPlaced(t *testing.T) {
	d, gpu := newTestDraw(t)

	require.Equal(t, 3, d.InstanceCount())

	// Each instance owns a written per-draw uniform.
	uniforms := 0
	for label := range gpu.Buffers {
		if len(label) > 8 && label[:8] == "PerDraw/" {
			uniforms++
		}
	}
	assert.Equal(t, 3, uniforms)

	// The shared vertex buffer holds all three meshes.
	vertices, info := generateGeometry()
	assert.Equal(t, uint64(len(vertices))*vertexSize, gpu.Buffers["SceneVertices"].BufSize)
	assert.Equal(t, uint32(36), info[ObjectCube].VertexCount)
}

func TestTransformBox(t *testing.T) {
	center, half := transformBox(mgl32.Translate3D(3, 1, -2), [3]float32{0.5, 0.5, 0.5})
	assert.Equal(t, [3]float32{3, 1, -2}, center)
	assert.Equal(t, [3]float32{0.5, 0.5, 0.5}, half)

	center, half = transformBox(mgl32.Scale3D(100, 1, 100), [3]float32{0.5, 0.001, 0.5})
	assert.Equal(t, [3]float32{0, 0, 0}, center)
	assert.InDelta(t, 50.0, half[0], 1e-4)
	assert.InDelta(t, 0.001, half[1], 1e-6)
	assert.InDelta(t, 50.0, half[2], 1e-4)
}

// testFrustum builds a camera frustum at pos looking along +Z.
func testFrustum(pos mgl32.Vec3) common.Frustum {
	var view, proj, vp [16]float32
	common.LookAt(view[:], pos.X(), pos.Y(), pos.Z(), pos.X(), pos.Y(), pos.Z()+1, 0, 1, 0)
	common.Perspective(proj[:], mgl32.DegToRad(70), 4.0/3.0, 0.1, 1000)
	common.Mul4(vp[:], proj[:], view[:])
	return common.ExtractFrustumFromMatrix(vp[:])
}

func TestDrawVisibleCullsBehindCamera(t *testing.T) {
	d, gpu := newTestDraw(t)

	// Camera far above and beyond the scene looking away: nothing visible.
	frustum := testFrustum(mgl32.Vec3{0, 500, 200})
	require.NoError(t, gpu.BeginFrame())
	drawn, err := d.DrawVisible(&frustum, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, drawn)
	assert.Empty(t, gpu.Draws)
}

func TestDrawVisibleDrawsScene(t *testing.T) {
	d, gpu := newTestDraw(t)

	cullBindings := []renderer.Binding{}
	frustum := testFrustum(mgl32.Vec3{0, 1, -10})

	require.NoError(t, gpu.BeginFrame())
	drawn, err := d.DrawVisible(&frustum, cullBindings)
	require.NoError(t, err)

	// Cube, pyramid and the huge plane are all in front of the camera.
	assert.Equal(t, 3, drawn)
	require.Len(t, gpu.Draws, 3)

	// Draws address the shared vertex buffer at the per-type offsets.
	_, info := generateGeometry()
	assert.Equal(t, "SceneVertices", gpu.Draws[0].VertexBuffer)
	assert.Equal(t, info[ObjectCube].VertexOffset, gpu.Draws[0].VertexOffset)
	assert.Equal(t, info[ObjectCube].VertexCount, gpu.Draws[0].VertexCount)
	assert.Equal(t, info[ObjectPlane].VertexOffset, gpu.Draws[2].VertexOffset)
}

func TestUpdateCameraWritesUniform(t *testing.T) {
	d, gpu := newTestDraw(t)

	var view, vp [16]float32
	common.Identity(view[:])
	common.Identity(vp[:])
	require.NoError(t, d.UpdateCamera(mgl32.Vec3{1, 2, 3}, view, vp))

	cam := gpu.Buffers["SceneCamera"]
	require.NotNil(t, cam)
	assert.Equal(t, uint64(cameraUniformSize), cam.BufSize)
}

func TestLitShaderRegistered(t *testing.T) {
	_, gpu := newTestDraw(t)

	mod, ok := gpu.RenderModules[litPipeline]
	require.True(t, ok)
	assert.Contains(t, mod.Source, "struct LightRecord")
	assert.Contains(t, mod.Source, "const LIGHT_BATCH_SIZE: u32 = 32u;")

	desc := gpu.RenderPipelines[litPipeline]
	assert.Equal(t, renderer.TopologyTriangleList, desc.Topology)
	assert.True(t, desc.DepthTest)
}
