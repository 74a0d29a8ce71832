// Package cull implements the four-stage GPU light-culling pipeline of the
// tiled forward renderer: z-binning, spot-light frustum transform, per-light
// tile setup, and per-tile bit-mask generation. The pipeline owns the GPU
// resource tables, stages the visible light set each frame, and hands the
// resulting acceptance structures to the lit draw pass.
package cull

import (
	_ "embed"
	"fmt"

	"github.com/tiledforward/forwardplus/common"
	"github.com/tiledforward/forwardplus/engine/light"
	"github.com/tiledforward/forwardplus/engine/renderer"
	"github.com/tiledforward/forwardplus/engine/shader"
)

// zBinCount mirrors the light package constant for local arithmetic.
const zBinCount = light.ZBinCount

// emptyZBinWord is the cleared state of a z-bin: empty sentinel in both halves.
const emptyZBinWord = 0xFFFFFFFF

//go:embed assets/zbinning.wgsl
var zBinningSource string

//go:embed assets/spot_transform.wgsl
var spotTransformSource string

//go:embed assets/tile_setup.wgsl
var tileSetupSource string

//go:embed assets/tile_culling.wgsl
var tileCullingSource string

// Pipeline keys registered with the GPU backend.
const (
	zBinningPipeline      = "forwardplus/zbinning"
	spotTransformPipeline = "forwardplus/spot_transform"
	tileSetupPipeline     = "forwardplus/tile_setup"
	tileCullingPipeline   = "forwardplus/tile_culling"
)

// State tracks the pipeline through its per-frame sequence. Any transition
// failure drops back to StateIdle; the frame's scene content is skipped (the
// caller still presents the cleared surface) and the next frame retries.
type State int

const (
	// StateIdle is the between-frames rest state.
	StateIdle State = iota

	// StateUploading covers the light buffer and constant uploads.
	StateUploading

	// StateDispatchZBin covers the z-binning dispatch loop.
	StateDispatchZBin

	// StateDispatchSpot covers the spot-light transform dispatch.
	StateDispatchSpot

	// StateDispatchTileSetup covers the per-light tile setup dispatch.
	StateDispatchTileSetup

	// StateDispatchTileCull covers the per-tile bit-mask dispatch.
	StateDispatchTileCull

	// StateBoundForDraw means the acceptance structures are ready for the
	// lit draw pass.
	StateBoundForDraw
)

// CameraState is the camera snapshot the pipeline consumes each frame.
type CameraState struct {
	// Position is the world-space camera position (w unused).
	Position [4]float32

	// Front is the unit front vector (w unused).
	Front [4]float32

	// View is the view matrix, column-major.
	View [16]float32

	// ViewProjection is the combined view-projection matrix, column-major.
	ViewProjection [16]float32
}

// Config carries the viewport state the pipeline is initialized with.
type Config struct {
	// Width and Height are the surface size in pixels.
	Width, Height int

	// ZNear and ZFar bound the camera depth range quantized into z-bins.
	ZNear, ZFar float32

	// Projection is the camera projection matrix, column-major.
	Projection [16]float32
}

// Pipeline owns the GPU resources of the light-culling pass and runs the
// four compute stages each frame. Single-thread-owned by the render thread.
type Pipeline struct {
	gpu     renderer.Renderer
	shaders *shader.Library

	constantBuffers [constantBufferCount]renderer.Buffer
	resources       [shaderResourceCount]renderer.Buffer

	params    FrameParameters
	constants CullingConstants
	zBinning  ZBinningConstants

	state State
}

// NewPipeline compiles and registers the four compute shaders, allocates the
// constant buffer and shader resource tables at full capacity, and primes the
// viewport-dependent constants.
//
// Parameters:
//   - gpu: the GPU backend
//   - shaders: the shader library used to compile the compute stages
//   - cfg: initial viewport state
//
// Returns:
//   - *Pipeline: the ready pipeline
//   - error: an error if shader compilation or resource creation fails
func NewPipeline(gpu renderer.Renderer, shaders *shader.Library, cfg Config) (*Pipeline, error) {
	p := &Pipeline{
		gpu:     gpu,
		shaders: shaders,
	}

	if err := p.registerShaders(); err != nil {
		return nil, err
	}

	var err error
	for cb, spec := range [constantBufferCount]struct {
		label string
		size  uint64
	}{
		ConstantBufferParameters:    {"Parameters", uint64(p.params.Size())},
		ConstantBufferCullConstants: {"CullingConstants", uint64(p.constants.Size())},
		ConstantBufferZBinning:      {"ZBinningConstants", uint64(p.zBinning.Size())},
	} {
		p.constantBuffers[cb], err = gpu.CreateUniformBuffer(spec.label, spec.size)
		if err != nil {
			return nil, fmt.Errorf("constant buffer %s: %w", spec.label, err)
		}
	}

	p.resources, err = createResources(gpu)
	if err != nil {
		return nil, err
	}

	p.params.ZNear = cfg.ZNear
	p.params.ZFar = cfg.ZFar
	p.SetViewport(cfg.Width, cfg.Height, cfg.Projection)

	return p, nil
}

// registerShaders compiles each stage with its macro set and registers the
// compute pipelines with the backend.
func (p *Pipeline) registerShaders() error {
	defaultMacros := []shader.Macro{
		{Name: "TILE_X_DIM", Value: TileXDim},
		{Name: "TILE_Y_DIM", Value: TileYDim},
		{Name: "Z_BIN_COUNT", Value: zBinCount},
	}

	stages := []struct {
		key    string
		source string
		macros []shader.Macro
	}{
		{
			key:    zBinningPipeline,
			source: zBinningSource,
			macros: append(defaultMacros[:len(defaultMacros):len(defaultMacros)],
				shader.Macro{Name: "MAX_CS_THREAD_COUNT", Value: MaxCSThreadCount},
				shader.Macro{Name: "Z_BINNING_GROUP_SIZE", Value: ZBinningGroupSize},
			),
		},
		{
			key:    spotTransformPipeline,
			source: spotTransformSource,
			macros: append(defaultMacros[:len(defaultMacros):len(defaultMacros)],
				shader.Macro{Name: "MAX_CS_THREAD_COUNT", Value: MaxCSThreadCount},
				shader.Macro{Name: "SPOT_LIGHT_CULLING_STRIDE", Value: SpotLightCullingDataStride},
			),
		},
		{
			key:    tileSetupPipeline,
			source: tileSetupSource,
			macros: append(defaultMacros[:len(defaultMacros):len(defaultMacros)],
				shader.Macro{Name: "MAX_CS_THREAD_COUNT", Value: MaxCSThreadCount},
				shader.Macro{Name: "SPOT_LIGHT_CULLING_STRIDE", Value: SpotLightCullingDataStride},
				shader.Macro{Name: "SPOT_LIGHT_MAX_TRIANGLE_COUNT", Value: SpotLightMaxTriangleCount},
			),
		},
		{
			key:    tileCullingPipeline,
			source: tileCullingSource,
			macros: append(defaultMacros[:len(defaultMacros):len(defaultMacros)],
				shader.Macro{Name: "MAX_CS_THREAD_COUNT", Value: MaxCSThreadCount},
				shader.Macro{Name: "LIGHTS_PER_GROUP", Value: LightsPerGroup},
				shader.Macro{Name: "TILES_PER_GROUP", Value: TilesPerGroup},
				shader.Macro{Name: "SPOT_LIGHT_MAX_TRIANGLE_COUNT", Value: SpotLightMaxTriangleCount},
			),
		},
	}

	for _, stage := range stages {
		mod, err := p.shaders.Compile(stage.key, composeComputeSource(stage.source), "main", stage.macros)
		if err != nil {
			return err
		}
		if err := p.gpu.RegisterComputePipeline(stage.key, mod); err != nil {
			return err
		}
	}
	return nil
}

// composeComputeSource prepends the shared struct definitions to a stage body.
func composeComputeSource(stage string) string {
	return light.GPULightInfoSource + "\n" + light.GPULightRecordSource + "\n" + GPUCullingStructsSource + "\n" + stage
}

// State returns the current pipeline state.
//
// Returns:
//   - State: the state
func (p *Pipeline) State() State {
	return p.state
}

// Parameters returns the current frame parameters.
//
// Returns:
//   - FrameParameters: a copy of the parameter block
func (p *Pipeline) Parameters() FrameParameters {
	return p.params
}

// SetGlobalLight replaces the always-on global light record carried in the
// frame parameters. The global light is not subject to tile masking.
//
// Parameters:
//   - rec: the global light record
func (p *Pipeline) SetGlobalLight(rec light.ShaderLightRecord) {
	p.params.GlobalLight = rec
}

// SetViewport updates the resolution and the clip-scale constants after a
// swap-chain resize. The tile grid dimensions are unchanged; only the pixel
// extent of each tile moves.
//
// Parameters:
//   - width, height: the new surface size in pixels
//   - projection: the new projection matrix, column-major
func (p *Pipeline) SetViewport(width, height int, projection [16]float32) {
	p.params.Resolution = [2]int32{int32(width), int32(height)}

	var invProjection [16]float32
	common.Invert4(invProjection[:], projection[:])
	p.constants.ClipScale = [4]float32{
		projection[0],
		-projection[5],
		invProjection[0],
		invProjection[5],
	}
}

// Run executes the per-frame sequence: upload the sorted light buffers and
// constants, then dispatch the four compute stages in order. Every dispatch
// builds its bindings from scratch, so no stage observes the previous stage's
// views. On success the pipeline is left in StateBoundForDraw; on failure it
// reverts to StateIdle and the frame should be skipped.
//
// Parameters:
//   - visible: the sorted visible light set
//   - cam: the camera snapshot
//
// Returns:
//   - error: the stage error, or nil
func (p *Pipeline) Run(visible *light.VisibleSet, cam CameraState) error {
	if err := p.run(visible, cam); err != nil {
		p.state = StateIdle
		return err
	}
	p.state = StateBoundForDraw
	return nil
}

func (p *Pipeline) run(visible *light.VisibleSet, cam CameraState) error {
	total := visible.TotalCount()

	// Upload the sorted light buffers.
	p.state = StateUploading
	if total > 0 {
		if err := p.gpu.WriteBuffer(p.resources[ResourceLightInfo], common.SliceToBytes(visible.Infos)); err != nil {
			return fmt.Errorf("light info upload: %w", err)
		}
		if err := p.gpu.WriteBuffer(p.resources[ResourceLightData], common.SliceToBytes(visible.Records)); err != nil {
			return fmt.Errorf("light data upload: %w", err)
		}
	}
	if len(visible.SpotModels) > 0 {
		if err := p.gpu.WriteBuffer(p.resources[ResourceSpotLightModels], common.SliceToBytes(visible.SpotModels)); err != nil {
			return fmt.Errorf("spot model upload: %w", err)
		}
	}

	// Upload the constant buffers.
	p.params.LightCounts = visible.Counts
	if err := p.gpu.WriteBuffer(p.constantBuffers[ConstantBufferParameters], p.params.Marshal()); err != nil {
		return fmt.Errorf("parameters upload: %w", err)
	}

	p.constants.CameraPos = cam.Position
	p.constants.CameraFront = cam.Front
	p.constants.View = cam.View
	p.constants.ViewProjection = cam.ViewProjection
	if err := p.gpu.WriteBuffer(p.constantBuffers[ConstantBufferCullConstants], p.constants.Marshal()); err != nil {
		return fmt.Errorf("culling constants upload: %w", err)
	}

	if err := p.dispatchZBinning(total); err != nil {
		return fmt.Errorf("z-binning stage: %w", err)
	}
	if err := p.dispatchSpotTransform(visible.Counts[light.KindSpot]); err != nil {
		return fmt.Errorf("spot transform stage: %w", err)
	}
	if err := p.dispatchTileSetup(total); err != nil {
		return fmt.Errorf("tile setup stage: %w", err)
	}
	if err := p.dispatchTileCulling(total); err != nil {
		return fmt.Errorf("tile culling stage: %w", err)
	}
	return nil
}

// dispatchZBinning clears the z-bins to the empty sentinel and runs the
// dispatch loop: each dispatch covers ZBinningGroupSize sorted lights,
// selected by the invocation constant rebound between dispatches.
func (p *Pipeline) dispatchZBinning(total uint32) error {
	p.state = StateDispatchZBin

	if err := p.gpu.ClearBufferUint(p.resources[ResourceZBins], emptyZBinWord); err != nil {
		return fmt.Errorf("z-bin clear: %w", err)
	}

	bindings := []renderer.Binding{
		{Binding: 0, Buffer: p.resources[ResourceLightInfo]},
		{Binding: 1, Buffer: p.resources[ResourceZBins]},
		{Binding: 2, Buffer: p.constantBuffers[ConstantBufferParameters]},
		{Binding: 3, Buffer: p.constantBuffers[ConstantBufferZBinning]},
	}

	groupCount := ceilDiv(zBinCount, ZBinningGroupSize)
	dispatchCount := ceilDiv(total, ZBinningGroupSize)

	p.zBinning.Invocation = 0
	for i := uint32(0); i < dispatchCount; i++ {
		if err := p.gpu.WriteBuffer(p.constantBuffers[ConstantBufferZBinning], p.zBinning.Marshal()); err != nil {
			return err
		}
		if err := p.dispatch(zBinningPipeline, bindings, [3]uint32{groupCount, 1, 1}); err != nil {
			return err
		}
		p.zBinning.Invocation++
	}
	p.zBinning.Invocation = 0
	return nil
}

// dispatchSpotTransform runs stage 2 when any spot light is visible.
func (p *Pipeline) dispatchSpotTransform(spotCount uint32) error {
	p.state = StateDispatchSpot

	groups := ceilDiv(spotCount, MaxCSThreadCount)
	if groups == 0 {
		return nil
	}

	// The spot transform is the one stage with no use for the light metadata,
	// so LightInfo is not among its bindings.
	bindings := []renderer.Binding{
		{Binding: 0, Buffer: p.resources[ResourceSpotLightModels]},
		{Binding: 1, Buffer: p.resources[ResourceSpotLightCullingData]},
		{Binding: 2, Buffer: p.constantBuffers[ConstantBufferParameters]},
		{Binding: 3, Buffer: p.constantBuffers[ConstantBufferCullConstants]},
	}
	return p.dispatch(spotTransformPipeline, bindings, [3]uint32{groups, 1, 1})
}

// dispatchTileSetup runs stage 3: one thread per visible light.
func (p *Pipeline) dispatchTileSetup(total uint32) error {
	p.state = StateDispatchTileSetup

	groups := ceilDiv(total, MaxCSThreadCount)
	if groups == 0 {
		return nil
	}

	bindings := []renderer.Binding{
		{Binding: 0, Buffer: p.resources[ResourceLightInfo]},
		{Binding: 1, Buffer: p.resources[ResourceSpotLightCullingData]},
		{Binding: 2, Buffer: p.resources[ResourceLightData]},
		{Binding: 3, Buffer: p.resources[ResourceTileCullingData]},
		{Binding: 4, Buffer: p.constantBuffers[ConstantBufferParameters]},
		{Binding: 5, Buffer: p.constantBuffers[ConstantBufferCullConstants]},
	}
	return p.dispatch(tileSetupPipeline, bindings, [3]uint32{groups, 1, 1})
}

// dispatchTileCulling clears the tile bit-masks and runs stage 4 over the
// two-dimensional (light batches x tile chunks) grid. The clear keeps every
// mask word at zero when no light survives, so an empty scene reads as "no
// light touches any tile".
func (p *Pipeline) dispatchTileCulling(total uint32) error {
	p.state = StateDispatchTileCull

	if err := p.gpu.ClearBufferUint(p.resources[ResourceTileBitMasks], 0); err != nil {
		return fmt.Errorf("tile bit-mask clear: %w", err)
	}

	groupsX := ceilDiv(total, LightBatchSize)
	if groupsX == 0 {
		return nil
	}
	groupsY := ceilDiv(TileXDim*TileYDim, TilesPerGroup)

	bindings := []renderer.Binding{
		{Binding: 0, Buffer: p.resources[ResourceLightInfo]},
		{Binding: 1, Buffer: p.resources[ResourceTileCullingData]},
		{Binding: 2, Buffer: p.resources[ResourceTileBitMasks]},
		{Binding: 3, Buffer: p.constantBuffers[ConstantBufferParameters]},
		{Binding: 4, Buffer: p.constantBuffers[ConstantBufferCullConstants]},
	}
	return p.dispatch(tileCullingPipeline, bindings, [3]uint32{groupsX, groupsY, 1})
}

// dispatch submits one compute dispatch as its own command batch so constant
// buffer writes between dispatches land in order.
func (p *Pipeline) dispatch(key string, bindings []renderer.Binding, workgroups [3]uint32) error {
	if err := p.gpu.BeginComputeFrame(); err != nil {
		return err
	}
	err := p.gpu.DispatchCompute(key, bindings, workgroups)
	p.gpu.EndComputeFrame()
	return err
}

// DrawBindings returns the bind group the lit pixel shader consumes: the
// z-bins, tile bit-masks and sorted light data, plus the frame parameters.
//
// Returns:
//   - []renderer.Binding: the draw-stage resource bindings
func (p *Pipeline) DrawBindings() []renderer.Binding {
	return []renderer.Binding{
		{Binding: 0, Buffer: p.resources[ResourceZBins]},
		{Binding: 1, Buffer: p.resources[ResourceTileBitMasks]},
		{Binding: 2, Buffer: p.resources[ResourceLightData]},
		{Binding: 3, Buffer: p.constantBuffers[ConstantBufferParameters]},
	}
}

// FinishFrame returns the pipeline to StateIdle after the frame's draw pass
// has been submitted.
func (p *Pipeline) FinishFrame() {
	p.state = StateIdle
}

func ceilDiv(numerator, denominator uint32) uint32 {
	return (numerator + denominator - 1) / denominator
}
