package cull

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiledforward/forwardplus/common"
	"github.com/tiledforward/forwardplus/engine/light"
	"github.com/tiledforward/forwardplus/engine/renderer/renderertest"
	"github.com/tiledforward/forwardplus/engine/shader"
)

func testConfig() Config {
	var projection [16]float32
	common.Perspective(projection[:], mgl32.DegToRad(70), 1024.0/768.0, 0.1, 1000.0)
	return Config{
		Width:      1024,
		Height:     768,
		ZNear:      0.1,
		ZFar:       1000.0,
		Projection: projection,
	}
}

func newTestPipeline(t *testing.T) (*Pipeline, *renderertest.Recording) {
	t.Helper()
	gpu := renderertest.New()
	p, err := NewPipeline(gpu, shader.NewLibrary(), testConfig())
	require.NoError(t, err)
	return p, gpu
}

func testCameraState() CameraState {
	cam := CameraState{
		Position: [4]float32{0, 0, -10, 1},
		Front:    [4]float32{0, 0, 1, 0},
	}
	common.Identity(cam.View[:])
	common.Identity(cam.ViewProjection[:])
	return cam
}

func TestPipelineRegistersAllStages(t *testing.T) {
	_, gpu := newTestPipeline(t)

	for _, key := range []string{zBinningPipeline, spotTransformPipeline, tileSetupPipeline, tileCullingPipeline} {
		mod, ok := gpu.ComputeModules[key]
		require.True(t, ok, "pipeline %s not registered", key)
		assert.Contains(t, mod.Source, "struct LightInfo")
		assert.Contains(t, mod.Source, "struct FrameParameters")
		assert.Contains(t, mod.Source, "const TILE_X_DIM: u32 = 32u;")
	}
}

func TestResourceCapacities(t *testing.T) {
	_, gpu := newTestPipeline(t)

	assert.Equal(t, uint64(light.ZBinCount*4), gpu.Buffers["ZBins"].BufSize)
	assert.Equal(t, uint64(MaxLightCount*16), gpu.Buffers["LightInfo"].BufSize)
	assert.Equal(t, uint64(MaxLightCount*80), gpu.Buffers["LightData"].BufSize)
	assert.Equal(t, uint64(MaxLightCount*64), gpu.Buffers["SpotLightModels"].BufSize)
	assert.Equal(t, uint64(MaxLightCount*SpotLightCullingDataStride*16), gpu.Buffers["SpotLightCullingData"].BufSize)
	assert.Equal(t, uint64(MaxLightCount*SpotLightMaxTriangleCount*4*16), gpu.Buffers["TileCullingData"].BufSize)
	// 32 x 24 tiles, ceil(10000/32) = 313 words per tile.
	assert.Equal(t, uint64(TileXDim*TileYDim*313*4), gpu.Buffers["TileBitMasks"].BufSize)
}

func TestEmptySceneClearsAcceptanceStructures(t *testing.T) {
	p, gpu := newTestPipeline(t)

	var set light.VisibleSet
	require.NoError(t, p.Run(&set, testCameraState()))
	assert.Equal(t, StateBoundForDraw, p.State())

	// Every z-bin holds the empty sentinel.
	zbins := gpu.Buffers["ZBins"]
	for off := 0; off < int(zbins.BufSize); off += 4 {
		require.Equal(t, uint32(0xFFFFFFFF), zbins.Uint32At(off), "z-bin at %d", off/4)
	}

	// Every tile bit-mask word is zero.
	masks := gpu.Buffers["TileBitMasks"]
	for off := 0; off < int(masks.BufSize); off += 4 {
		require.Equal(t, uint32(0), masks.Uint32At(off), "mask at %d", off/4)
	}

	// No lights, no dispatches.
	assert.Empty(t, gpu.Dispatches)

	p.FinishFrame()
	assert.Equal(t, StateIdle, p.State())
}

// singlePointSet builds a visible set with one point light, z-range [5, 15].
func singlePointSet() light.VisibleSet {
	l := light.NewLight(light.KindPoint, light.WithPosition(0, 0, 0), light.WithRange(5))
	info := light.ShaderLightInfo{Kind: uint32(light.KindPoint), Index: 0, ZRange: light.PackZRange(5, 15)}
	return light.VisibleSet{
		Infos:   []light.ShaderLightInfo{info},
		Records: []light.ShaderLightRecord{light.NewShaderLightRecord(&l, info)},
		ZRanges: [][2]float32{{5, 15}},
		Counts:  [4]uint32{1, 0, 0, 0},
	}
}

func TestSingleLightDispatchGeometry(t *testing.T) {
	p, gpu := newTestPipeline(t)

	set := singlePointSet()
	require.NoError(t, p.Run(&set, testCameraState()))

	// One z-binning dispatch covering all 1024 bins in groups of 128.
	zbin := gpu.DispatchesFor(zBinningPipeline)
	require.Len(t, zbin, 1)
	assert.Equal(t, [3]uint32{8, 1, 1}, zbin[0].Workgroups)
	assert.Equal(t, "LightInfo", zbin[0].Bindings[0])
	assert.Equal(t, "ZBins", zbin[0].Bindings[1])

	// No spot lights: stage 2 skipped.
	assert.Empty(t, gpu.DispatchesFor(spotTransformPipeline))

	// Tile setup: one group of 128 threads.
	setup := gpu.DispatchesFor(tileSetupPipeline)
	require.Len(t, setup, 1)
	assert.Equal(t, [3]uint32{1, 1, 1}, setup[0].Workgroups)

	// Tile culling: X = ceil(1/32) = 1, Y = ceil(768/4) = 192.
	tiles := gpu.DispatchesFor(tileCullingPipeline)
	require.Len(t, tiles, 1)
	assert.Equal(t, [3]uint32{1, 192, 1}, tiles[0].Workgroups)
}

func TestLightBuffersUploaded(t *testing.T) {
	p, gpu := newTestPipeline(t)

	set := singlePointSet()
	require.NoError(t, p.Run(&set, testCameraState()))

	// LightInfo holds the packed z-range of the single light.
	info := gpu.Buffers["LightInfo"]
	assert.Equal(t, uint32(light.KindPoint), info.Uint32At(0))
	assert.Equal(t, light.PackZRange(5, 15), info.Uint32At(8))

	// LightData carries the record with the same metadata embedded.
	assert.Equal(t, light.PackZRange(5, 15), gpu.Buffers["LightData"].Uint32At(72))

	// Parameters carry the per-kind counts.
	params := gpu.Buffers["Parameters"]
	assert.Equal(t, uint32(1), params.Uint32At(80), "point count")
	assert.Equal(t, uint32(0), params.Uint32At(84), "spot count")
}

func TestZBinningInvocationLoop(t *testing.T) {
	p, gpu := newTestPipeline(t)

	// 300 lights: ceil(300/128) = 3 dispatches with invocation 0, 1, 2.
	var set light.VisibleSet
	for i := 0; i < 300; i++ {
		l := light.NewLight(light.KindPoint, light.WithPosition(0, 0, float32(i)), light.WithRange(1))
		info := light.ShaderLightInfo{Kind: uint32(light.KindPoint), Index: uint32(i)}
		set.Infos = append(set.Infos, info)
		set.Records = append(set.Records, light.NewShaderLightRecord(&l, info))
		set.ZRanges = append(set.ZRanges, [2]float32{float32(i), float32(i + 2)})
	}
	set.Counts[light.KindPoint] = 300

	require.NoError(t, p.Run(&set, testCameraState()))

	zbin := gpu.DispatchesFor(zBinningPipeline)
	require.Len(t, zbin, 3)
	for i, d := range zbin {
		snapshot := d.Snapshots["ZBinningConstants"]
		require.NotNil(t, snapshot)
		assert.Equal(t, uint32(i), binary.LittleEndian.Uint32(snapshot), "invocation of dispatch %d", i)
	}
}

func TestSpotStageDispatchedForSpots(t *testing.T) {
	p, gpu := newTestPipeline(t)

	l := light.NewLight(light.KindSpot,
		light.WithPosition(0, 5, 0),
		light.WithRange(20),
		light.WithCone(0.1, 0.5),
	)
	info := light.ShaderLightInfo{Kind: uint32(light.KindSpot), Index: 0, ZRange: light.PackZRange(0, 30)}
	set := light.VisibleSet{
		Infos:      []light.ShaderLightInfo{info},
		Records:    []light.ShaderLightRecord{light.NewShaderLightRecord(&l, info)},
		SpotModels: []mgl32.Mat4{l.ConeModelMatrix()},
		ZRanges:    [][2]float32{{0, 30}},
		Counts:     [4]uint32{0, 1, 0, 0},
	}

	require.NoError(t, p.Run(&set, testCameraState()))

	spot := gpu.DispatchesFor(spotTransformPipeline)
	require.Len(t, spot, 1)
	assert.Equal(t, [3]uint32{1, 1, 1}, spot[0].Workgroups)
	assert.Equal(t, "SpotLightModels", spot[0].Bindings[0])
	assert.Equal(t, "SpotLightCullingData", spot[0].Bindings[1])

	// The cone model matrix reached the GPU buffer.
	model := gpu.Buffers["SpotLightModels"]
	expected := l.ConeModelMatrix()
	got := math.Float32frombits(binary.LittleEndian.Uint32(model.Data[0:]))
	assert.Equal(t, expected[0], got)
}

func TestViewportResizeUpdatesParameters(t *testing.T) {
	p, gpu := newTestPipeline(t)

	var projection [16]float32
	common.Perspective(projection[:], mgl32.DegToRad(70), 1600.0/900.0, 0.1, 1000.0)
	p.SetViewport(1600, 900, projection)

	assert.Equal(t, [2]int32{1600, 900}, p.Parameters().Resolution)

	var set light.VisibleSet
	require.NoError(t, p.Run(&set, testCameraState()))

	params := gpu.Buffers["Parameters"]
	assert.Equal(t, uint32(1600), params.Uint32At(104))
	assert.Equal(t, uint32(900), params.Uint32At(108))
}

func TestRunFailureRevertsToIdle(t *testing.T) {
	p, gpu := newTestPipeline(t)

	gpu.FailWrites = true
	var set light.VisibleSet
	err := p.Run(&set, testCameraState())
	require.Error(t, err)
	assert.Equal(t, StateIdle, p.State())

	// Next frame retries cleanly once the fault clears.
	gpu.FailWrites = false
	require.NoError(t, p.Run(&set, testCameraState()))
	assert.Equal(t, StateBoundForDraw, p.State())
}

func TestDispatchFailureRevertsToIdle(t *testing.T) {
	p, gpu := newTestPipeline(t)

	gpu.FailDispatch = true
	set := singlePointSet()
	err := p.Run(&set, testCameraState())
	require.Error(t, err)
	assert.Equal(t, StateIdle, p.State())
}

func TestDrawBindings(t *testing.T) {
	p, _ := newTestPipeline(t)

	bindings := p.DrawBindings()
	require.Len(t, bindings, 4)
	assert.Equal(t, "ZBins", bindings[0].Buffer.Label())
	assert.Equal(t, "TileBitMasks", bindings[1].Buffer.Label())
	assert.Equal(t, "LightData", bindings[2].Buffer.Label())
	assert.Equal(t, "Parameters", bindings[3].Buffer.Label())
}

func TestConstantSizes(t *testing.T) {
	var params FrameParameters
	assert.Equal(t, 112, params.Size())
	assert.Len(t, params.Marshal(), 112)

	var constants CullingConstants
	assert.Equal(t, 176, constants.Size())
	assert.Len(t, constants.Marshal(), 176)

	var zb ZBinningConstants
	assert.Equal(t, 16, zb.Size())
	assert.Len(t, zb.Marshal(), 16)
}

func TestClipScaleFromProjection(t *testing.T) {
	p, _ := newTestPipeline(t)

	var projection [16]float32
	common.Perspective(projection[:], mgl32.DegToRad(70), 1024.0/768.0, 0.1, 1000.0)

	cs := p.constants.ClipScale
	assert.InDelta(t, projection[0], cs[0], 1e-5)
	assert.InDelta(t, -projection[5], cs[1], 1e-5)
	assert.InDelta(t, 1.0/projection[0], cs[2], 1e-5)
	assert.InDelta(t, 1.0/projection[5], cs[3], 1e-5)
}
