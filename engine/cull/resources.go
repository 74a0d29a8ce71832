package cull

import (
	"fmt"

	"github.com/tiledforward/forwardplus/engine/renderer"
)

// Fixed dimensions of the tiled light culling pipeline. The spot-cone
// triangle budget is hard-coded; changing the hull requires updating the
// stage-2 output stride, the stage-3 output stride and the stage-4 inner loop
// together.
const (
	// TileXDim and TileYDim partition the screen into the tile grid.
	TileXDim = 32
	TileYDim = 24

	// MaxLightCount caps the lights the GPU buffers are sized for.
	MaxLightCount = 10000

	// LightBatchSize is the number of lights per tile bit-mask word.
	LightBatchSize = 32

	// MaxLightBatchCount is the bit-mask word count per tile at capacity.
	MaxLightBatchCount = (MaxLightCount + LightBatchSize - 1) / LightBatchSize

	// SpotLightCullingDataStride is the number of float4 records stage 2
	// emits per spot light: four pyramid side planes plus two auxiliary
	// vectors (apex/height and axis).
	SpotLightCullingDataStride = 6

	// SpotLightMaxTriangleCount is the triangle budget per spot light in the
	// stage-3 output.
	SpotLightMaxTriangleCount = 8

	// TileCullingRecordStride is the number of float4 records per triangle
	// slot in the stage-3 output.
	TileCullingRecordStride = 4

	// MaxCSThreadCount is the one-dimensional compute thread group size of
	// the spot-transform and tile-setup stages.
	MaxCSThreadCount = 128

	// ZBinningGroupSize is the thread group size of the z-binning stage, and
	// the light chunk size each z-binning dispatch covers.
	ZBinningGroupSize = 128

	// TilesPerGroup and LightsPerGroup shape the two-dimensional tile-culling
	// work group: each group covers TilesPerGroup tiles of LightsPerGroup
	// lights.
	TilesPerGroup  = 4
	LightsPerGroup = LightBatchSize
)

// ConstantBuffer identifies one of the pipeline's constant buffers.
type ConstantBuffer int

const (
	// ConstantBufferParameters is the FrameParameters buffer, also bound to
	// the lit pixel shader.
	ConstantBufferParameters ConstantBuffer = iota

	// ConstantBufferCullConstants is the CullingConstants camera buffer.
	ConstantBufferCullConstants

	// ConstantBufferZBinning is the per-dispatch z-binning invocation buffer.
	ConstantBufferZBinning

	constantBufferCount
)

// ShaderResource identifies one of the pipeline's structured buffers. The
// resource tables are fixed-size arrays indexed by this enum, so the hot path
// never hashes or allocates.
type ShaderResource int

const (
	// ResourceLightInfo holds the sorted per-light metadata, bound at slot 0
	// of every stage that reads light metadata.
	ResourceLightInfo ShaderResource = iota

	// ResourceZBins holds one packed [first, last] light index pair per depth
	// slice. Read-write.
	ResourceZBins

	// ResourceSpotLightModels holds the cone model matrices of visible spot
	// lights in per-kind order.
	ResourceSpotLightModels

	// ResourceSpotLightCullingData holds stage 2's view-space pyramid planes
	// and auxiliary vectors. Read-write.
	ResourceSpotLightCullingData

	// ResourceTileCullingData holds stage 3's per-light tile test records.
	// Read-write.
	ResourceTileCullingData

	// ResourceTileBitMasks holds the per-tile light acceptance bit vectors.
	// Read-write.
	ResourceTileBitMasks

	// ResourceLightData holds the sorted ShaderLightRecord array, also bound
	// to the lit pixel shader.
	ResourceLightData

	shaderResourceCount
)

// resourceSpec describes how one structured buffer is created.
type resourceSpec struct {
	label        string
	elementSize  uint64
	elementCount uint64
	readWrite    bool
}

// resourceSpecs returns the creation table for every shader resource,
// capacities fixed at init and driven by MaxLightCount.
func resourceSpecs() [shaderResourceCount]resourceSpec {
	return [shaderResourceCount]resourceSpec{
		ResourceLightInfo: {
			label:        "LightInfo",
			elementSize:  16,
			elementCount: MaxLightCount,
		},
		ResourceZBins: {
			label:        "ZBins",
			elementSize:  4,
			elementCount: zBinCount,
			readWrite:    true,
		},
		ResourceSpotLightModels: {
			label:        "SpotLightModels",
			elementSize:  64,
			elementCount: MaxLightCount,
		},
		ResourceSpotLightCullingData: {
			label:        "SpotLightCullingData",
			elementSize:  16,
			elementCount: MaxLightCount * SpotLightCullingDataStride,
			readWrite:    true,
		},
		ResourceTileCullingData: {
			label:        "TileCullingData",
			elementSize:  16,
			elementCount: MaxLightCount * SpotLightMaxTriangleCount * TileCullingRecordStride,
			readWrite:    true,
		},
		ResourceTileBitMasks: {
			label:        "TileBitMasks",
			elementSize:  4,
			elementCount: TileXDim * TileYDim * MaxLightBatchCount,
			readWrite:    true,
		},
		ResourceLightData: {
			label:        "LightData",
			elementSize:  80,
			elementCount: MaxLightCount,
		},
	}
}

// createResources allocates every structured buffer of the resource table.
func createResources(gpu renderer.Renderer) ([shaderResourceCount]renderer.Buffer, error) {
	var buffers [shaderResourceCount]renderer.Buffer
	specs := resourceSpecs()
	for res, spec := range specs {
		buf, err := gpu.CreateStorageBuffer(spec.label, spec.elementSize, spec.elementCount, spec.readWrite)
		if err != nil {
			return buffers, fmt.Errorf("resource %s: %w", spec.label, err)
		}
		buffers[res] = buf
	}
	return buffers, nil
}
