package light

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/chewxy/math32"
)

// ZBinCount is the number of depth slices the near-to-far camera range is
// partitioned into for coarse light rejection.
const ZBinCount = 1024

// EmptyZBin is the sentinel half-word marking a z-bin with no lights. A fully
// empty bin therefore reads 0xFFFFFFFF.
const EmptyZBin = 0xFFFF

// zBinMinMask extracts the min-light-index half of a packed z-bin word.
const zBinMinMask = (1 << 16) - 1

// GPULightInfoSource is the canonical WGSL definition of the LightInfo struct.
// Matches ShaderLightInfo layout exactly (16 bytes).
//
//go:embed assets/light_info.wgsl
var GPULightInfoSource string

// ShaderLightInfo is the GPU-aligned sort/cull metadata of a single light.
// Matches the WGSL LightInfo struct layout exactly (see GPULightInfoSource).
// Size: 16 bytes.
type ShaderLightInfo struct {
	Kind   uint32 // offset  0: light kind (point, spot)
	Index  uint32 // offset  4: index into the per-kind arrays (spot models, culling data)
	ZRange uint32 // offset  8: packed (min_bin | max_bin << 16) depth slice range
	_pad   uint32 // offset 12: padding to 16 bytes
}

// Size returns the size of the ShaderLightInfo struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (i *ShaderLightInfo) Size() int {
	return int(unsafe.Sizeof(*i))
}

// Marshal serializes the ShaderLightInfo into a little-endian byte buffer
// suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (i *ShaderLightInfo) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], i.Kind)
	binary.LittleEndian.PutUint32(buf[4:8], i.Index)
	binary.LittleEndian.PutUint32(buf[8:12], i.ZRange)
	binary.LittleEndian.PutUint32(buf[12:16], 0)
	return buf
}

// GPULightRecordSource is the canonical WGSL definition of the LightRecord
// struct. Matches ShaderLightRecord layout exactly (80 bytes). Requires
// GPULightInfoSource to be included first.
//
//go:embed assets/light_record.wgsl
var GPULightRecordSource string

// ShaderLightRecord is the GPU-aligned representation of a single light as
// consumed by the culling compute shaders and the lit pixel shader.
// Matches the WGSL LightRecord struct layout exactly (see GPULightRecordSource).
// Size: 80 bytes (16-byte aligned rows).
type ShaderLightRecord struct {
	Position [3]float32 // offset  0: world-space position
	InvRange float32    // offset 12: 1 / range

	Direction     [3]float32 // offset 16: spot axis (zero for point lights)
	CosOuterAngle float32    // offset 28: cos(outer half-angle)

	Diffuse          [3]float32 // offset 32: diffuse RGB
	InvCosInnerAngle float32    // offset 44: 1 / cos(inner half-angle)

	Ambient           [3]float32 // offset 48: ambient RGB
	LinearAttenuation float32    // offset 60: linear attenuation coefficient

	Info ShaderLightInfo // offset 64: sort/cull metadata
}

// Size returns the size of the ShaderLightRecord struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (r *ShaderLightRecord) Size() int {
	return int(unsafe.Sizeof(*r))
}

// Marshal serializes the ShaderLightRecord into a little-endian byte buffer
// suitable for GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload
func (r *ShaderLightRecord) Marshal() []byte {
	buf := make([]byte, 80)
	putVec3 := func(off int, v [3]float32) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v[0]))
		binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(v[1]))
		binary.LittleEndian.PutUint32(buf[off+8:], math.Float32bits(v[2]))
	}
	putVec3(0, r.Position)
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(r.InvRange))
	putVec3(16, r.Direction)
	binary.LittleEndian.PutUint32(buf[28:], math.Float32bits(r.CosOuterAngle))
	putVec3(32, r.Diffuse)
	binary.LittleEndian.PutUint32(buf[44:], math.Float32bits(r.InvCosInnerAngle))
	putVec3(48, r.Ambient)
	binary.LittleEndian.PutUint32(buf[60:], math.Float32bits(r.LinearAttenuation))
	copy(buf[64:80], r.Info.Marshal())
	return buf
}

// NewShaderLightRecord converts a Light into its GPU record form with the
// provided sort/cull metadata embedded.
//
// Parameters:
//   - l: the light to convert
//   - info: the sort/cull metadata to embed
//
// Returns:
//   - ShaderLightRecord: the GPU-aligned representation
func NewShaderLightRecord(l *Light, info ShaderLightInfo) ShaderLightRecord {
	rec := ShaderLightRecord{
		InvRange:          1.0 / l.lightRange,
		CosOuterAngle:     math32.Cos(l.outerAngle),
		Diffuse:           l.diffuse,
		InvCosInnerAngle:  1.0 / math32.Cos(l.innerAngle),
		Ambient:           l.ambient,
		LinearAttenuation: l.linearAttenuation,
		Info:              info,
	}
	pos := l.Position()
	rec.Position = [3]float32{pos.X(), pos.Y(), pos.Z()}
	if l.kind == KindSpot {
		dir := l.Direction()
		rec.Direction = [3]float32{dir.X(), dir.Y(), dir.Z()}
	}
	return rec
}

// PackZRange packs a closed [min, max] z-bin index pair into one 32-bit word:
// (min & 0xFFFF) | (max << 16).
//
// Parameters:
//   - minBin: the first bin the light overlaps (< 2^16)
//   - maxBin: the last bin the light overlaps (< 2^16)
//
// Returns:
//   - uint32: the packed word
func PackZRange(minBin, maxBin uint32) uint32 {
	return (minBin & zBinMinMask) | (maxBin << 16)
}

// UnpackZRange splits a packed z-bin word back into its [min, max] pair.
//
// Parameters:
//   - packed: the packed word
//
// Returns:
//   - uint32: the min bin index
//   - uint32: the max bin index
func UnpackZRange(packed uint32) (minBin, maxBin uint32) {
	return packed & zBinMinMask, packed >> 16
}

// ZBinRange quantizes a view-space Z interval into clamped z-bin indices.
//
// Parameters:
//   - zRange: the [min, max] view-space Z interval
//   - zStep: the depth covered by one bin, (zFar - zNear) / ZBinCount
//
// Returns:
//   - [2]uint32: the clamped [min, max] bin index pair
func ZBinRange(zRange [2]float32, zStep float32) [2]uint32 {
	return [2]uint32{
		clampBin(int(zRange[0] / zStep)),
		clampBin(int(zRange[1] / zStep)),
	}
}

func clampBin(bin int) uint32 {
	if bin < 0 {
		return 0
	}
	if bin > ZBinCount-1 {
		return ZBinCount - 1
	}
	return uint32(bin)
}
