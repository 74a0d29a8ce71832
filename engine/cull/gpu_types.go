package cull

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/tiledforward/forwardplus/engine/light"
)

// GPUCullingStructsSource is the canonical WGSL definition of the culling
// pipeline's constant buffer structs (FrameParameters, CullingConstants,
// ZBinningConstants). Requires the light package struct sources to be
// included first.
//
//go:embed assets/culling_structs.wgsl
var GPUCullingStructsSource string

// FrameParameters is the per-frame global constant buffer shared by the
// compute stages and the lit pixel shader.
// Matches the WGSL FrameParameters struct layout exactly.
// Size: 112 bytes.
type FrameParameters struct {
	GlobalLight light.ShaderLightRecord // offset  0: always-on light, not tile-masked
	LightCounts [4]uint32               // offset 80: visible count per light kind
	ZNear       float32                 // offset 96
	ZFar        float32                 // offset 100
	Resolution  [2]int32                // offset 104: surface size in pixels
}

// Size returns the size of the FrameParameters struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (112)
func (p *FrameParameters) Size() int {
	return int(unsafe.Sizeof(*p))
}

// Marshal serializes FrameParameters into a little-endian byte buffer
// suitable for GPU upload.
//
// Returns:
//   - []byte: 112-byte buffer ready for GPU upload
func (p *FrameParameters) Marshal() []byte {
	buf := make([]byte, 112)
	copy(buf[0:80], p.GlobalLight.Marshal())
	for i, c := range p.LightCounts {
		binary.LittleEndian.PutUint32(buf[80+i*4:], c)
	}
	binary.LittleEndian.PutUint32(buf[96:], math.Float32bits(p.ZNear))
	binary.LittleEndian.PutUint32(buf[100:], math.Float32bits(p.ZFar))
	binary.LittleEndian.PutUint32(buf[104:], uint32(p.Resolution[0]))
	binary.LittleEndian.PutUint32(buf[108:], uint32(p.Resolution[1]))
	return buf
}

// TotalLightCount returns the visible light count across all kinds.
//
// Returns:
//   - uint32: the total count
func (p *FrameParameters) TotalLightCount() uint32 {
	var total uint32
	for _, c := range p.LightCounts {
		total += c
	}
	return total
}

// CullingConstants is the camera constant buffer consumed by the compute
// stages. Matches the WGSL CullingConstants struct layout exactly.
// Size: 176 bytes.
type CullingConstants struct {
	CameraPos   [4]float32 // offset  0: world-space camera position
	CameraFront [4]float32 // offset 16: unit front vector
	ClipScale   [4]float32 // offset 32: (p00, -p11, 1/p00, 1/p11)

	View           [16]float32 // offset  48: view matrix, column-major
	ViewProjection [16]float32 // offset 112: view-projection, column-major
}

// Size returns the size of the CullingConstants struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (176)
func (c *CullingConstants) Size() int {
	return int(unsafe.Sizeof(*c))
}

// Marshal serializes CullingConstants into a little-endian byte buffer
// suitable for GPU upload.
//
// Returns:
//   - []byte: 176-byte buffer ready for GPU upload
func (c *CullingConstants) Marshal() []byte {
	buf := make([]byte, 176)
	off := 0
	putVec4 := func(v [4]float32) {
		for _, f := range v {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
			off += 4
		}
	}
	putVec4(c.CameraPos)
	putVec4(c.CameraFront)
	putVec4(c.ClipScale)
	for _, f := range c.View {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
		off += 4
	}
	for _, f := range c.ViewProjection {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
		off += 4
	}
	return buf
}

// ZBinningConstants carries the per-dispatch invocation counter of the
// z-binning stage: which chunk of the sorted light list the dispatch covers.
// Matches the WGSL ZBinningConstants struct layout exactly.
// Size: 16 bytes.
type ZBinningConstants struct {
	Invocation uint32
	_pad       [3]uint32
}

// Size returns the size of the ZBinningConstants struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (z *ZBinningConstants) Size() int {
	return int(unsafe.Sizeof(*z))
}

// Marshal serializes ZBinningConstants into a little-endian byte buffer
// suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (z *ZBinningConstants) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], z.Invocation)
	return buf
}
