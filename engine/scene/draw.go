package scene

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/tiledforward/forwardplus/common"
	"github.com/tiledforward/forwardplus/engine/cull"
	"github.com/tiledforward/forwardplus/engine/light"
	"github.com/tiledforward/forwardplus/engine/renderer"
	"github.com/tiledforward/forwardplus/engine/shader"
)

//go:embed assets/main.wgsl
var mainShaderSource string

// litPipeline is the backend key of the lit triangle pipeline.
const litPipeline = "scene/lit"

// Material is the per-object material constant block.
// Size: 32 bytes.
type Material struct {
	Diffuse [4]float32
	Ambient [4]float32
}

// PerDrawData is the per-object constant block consumed by the lit shader.
// Matches the WGSL PerDrawData struct layout exactly.
// Size: 160 bytes.
type PerDrawData struct {
	Model    [16]float32
	InvModel [16]float32
	Material Material
}

// Size returns the size of the PerDrawData struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (160)
func (d *PerDrawData) Size() int {
	return int(unsafe.Sizeof(*d))
}

// Marshal serializes PerDrawData into a little-endian byte buffer suitable
// for GPU upload.
//
// Returns:
//   - []byte: 160-byte buffer ready for GPU upload
func (d *PerDrawData) Marshal() []byte {
	buf := make([]byte, 160)
	off := 0
	putF32 := func(f float32) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
		off += 4
	}
	for _, f := range d.Model {
		putF32(f)
	}
	for _, f := range d.InvModel {
		putF32(f)
	}
	for _, f := range d.Material.Diffuse {
		putF32(f)
	}
	for _, f := range d.Material.Ambient {
		putF32(f)
	}
	return buf
}

// cameraUniformSize is world position + view + view-projection.
const cameraUniformSize = 16 + 64 + 64

// Instance is one placed object: its mesh type, world-space bounding box,
// constants, and the dedicated GPU uniform holding them.
type Instance struct {
	ID   uuid.UUID
	Type ObjectType

	BoundingCenter     [3]float32
	BoundingHalfExtent [3]float32

	PerDraw PerDrawData

	uniform renderer.Buffer
}

// Draw owns the static demo vertex buffer and the instance table, runs the
// per-object frustum cull and issues the lit draw calls.
type Draw struct {
	gpu renderer.Renderer

	vertexBuffer renderer.Buffer
	objectInfo   [objectTypeCount]ObjectInfo

	cameraBuffer renderer.Buffer
	instances    []Instance
}

// NewDraw builds the demo geometry, registers the lit pipeline, creates the
// camera constant buffer, and places the demo objects (cube, pyramid, ground
// plane) with their per-object uniforms.
//
// Parameters:
//   - gpu: the GPU backend
//   - shaders: the shader library
//
// Returns:
//   - *Draw: the draw pass
//   - error: an error if shader compilation or buffer creation fails
func NewDraw(gpu renderer.Renderer, shaders *shader.Library) (*Draw, error) {
	d := &Draw{gpu: gpu}

	vertices, info := generateGeometry()
	d.objectInfo = info

	var err error
	d.vertexBuffer, err = gpu.CreateVertexBuffer("SceneVertices", common.SliceToBytes(vertices), 0)
	if err != nil {
		return nil, err
	}

	source := light.GPULightInfoSource + "\n" + light.GPULightRecordSource + "\n" +
		cull.GPUCullingStructsSource + "\n" + mainShaderSource
	mod, err := shaders.Compile(litPipeline, source, "vs_main", []shader.Macro{
		{Name: "TILE_X_DIM", Value: cull.TileXDim},
		{Name: "TILE_Y_DIM", Value: cull.TileYDim},
		{Name: "Z_BIN_COUNT", Value: light.ZBinCount},
		{Name: "LIGHT_BATCH_SIZE", Value: cull.LightBatchSize},
	})
	if err != nil {
		return nil, err
	}

	err = gpu.RegisterRenderPipeline(litPipeline, mod, renderer.RenderPipelineDescriptor{
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
		Topology:      renderer.TopologyTriangleList,
		VertexStride:  vertexSize,
		VertexAttributes: []renderer.VertexAttribute{
			{Location: 0, Offset: 0, Format: renderer.VertexFormatFloat32x4},
			{Location: 1, Offset: 16, Format: renderer.VertexFormatFloat32x4},
		},
		DepthTest: true,
	})
	if err != nil {
		return nil, err
	}

	d.cameraBuffer, err = gpu.CreateUniformBuffer("SceneCamera", cameraUniformSize)
	if err != nil {
		return nil, err
	}

	if err := d.placeDemoObjects(); err != nil {
		return nil, err
	}
	return d, nil
}

// placeDemoObjects creates the three demo instances of the original scene.
func (d *Draw) placeDemoObjects() error {
	unitBox := [3]float32{0.5, 0.5, 0.5}
	// Tiny Y extent so the plane still has a volume to cull against.
	planeBox := [3]float32{0.5, 0.001, 0.5}

	cases := []struct {
		objType ObjectType
		model   mgl32.Mat4
		box     [3]float32
		mat     Material
	}{
		{
			objType: ObjectCube,
			model:   mgl32.Translate3D(1, 0.5, 0),
			box:     unitBox,
			mat: Material{
				Diffuse: [4]float32{1, 0, 1, 1},
				Ambient: [4]float32{1, 1, 1, 1},
			},
		},
		{
			objType: ObjectPyramid,
			model:   mgl32.Translate3D(-1, 0.5, 0),
			box:     unitBox,
			mat: Material{
				Diffuse: [4]float32{0, 1, 1, 1},
				Ambient: [4]float32{1, 1, 1, 1},
			},
		},
		{
			objType: ObjectPlane,
			model:   mgl32.Scale3D(100, 1, 100),
			box:     planeBox,
			mat: Material{
				Diffuse: [4]float32{1, 1, 0, 1},
				Ambient: [4]float32{1, 1, 1, 1},
			},
		},
	}

	for _, c := range cases {
		if _, err := d.AddInstance(c.objType, c.model, c.box, c.mat); err != nil {
			return err
		}
	}
	return nil
}

// AddInstance places one object with the given model matrix and material,
// creating and filling its per-draw uniform. The bounding box is the unit box
// of the given half extent transformed by the model matrix.
//
// Parameters:
//   - objType: the mesh type
//   - model: the model matrix
//   - halfExtent: the untransformed bounding half extent
//   - mat: the material constants
//
// Returns:
//   - uuid.UUID: the instance handle
//   - error: an error if the uniform could not be created or written
func (d *Draw) AddInstance(objType ObjectType, model mgl32.Mat4, halfExtent [3]float32, mat Material) (uuid.UUID, error) {
	inv := model.Inv()

	instance := Instance{
		ID:   uuid.New(),
		Type: objType,
		PerDraw: PerDrawData{
			Model:    [16]float32(model),
			InvModel: [16]float32(inv),
			Material: mat,
		},
	}
	instance.BoundingCenter, instance.BoundingHalfExtent = transformBox(model, halfExtent)

	uniform, err := d.gpu.CreateUniformBuffer(fmt.Sprintf("PerDraw/%s", instance.ID), uint64(instance.PerDraw.Size()))
	if err != nil {
		return uuid.Nil, err
	}
	if err := d.gpu.WriteBuffer(uniform, instance.PerDraw.Marshal()); err != nil {
		return uuid.Nil, err
	}
	instance.uniform = uniform

	d.instances = append(d.instances, instance)
	return instance.ID, nil
}

// InstanceCount returns the number of placed instances.
//
// Returns:
//   - int: the instance count
func (d *Draw) InstanceCount() int {
	return len(d.instances)
}

// ObjectInfo returns the vertex range of one object type.
//
// Parameters:
//   - objType: the mesh type
//
// Returns:
//   - ObjectInfo: the vertex offset and count
func (d *Draw) ObjectInfo(objType ObjectType) ObjectInfo {
	return d.objectInfo[objType]
}

// UpdateCamera uploads the camera constant block. Called when a camera
// transform event is applied, not per frame.
//
// Parameters:
//   - position: the world-space camera position
//   - view: the view matrix, column-major
//   - viewProjection: the combined view-projection, column-major
//
// Returns:
//   - error: an error if the upload fails
func (d *Draw) UpdateCamera(position mgl32.Vec3, view, viewProjection [16]float32) error {
	buf := make([]byte, cameraUniformSize)
	off := 0
	putF32 := func(f float32) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
		off += 4
	}
	putF32(position.X())
	putF32(position.Y())
	putF32(position.Z())
	putF32(1)
	for _, f := range view {
		putF32(f)
	}
	for _, f := range viewProjection {
		putF32(f)
	}
	return d.gpu.WriteBuffer(d.cameraBuffer, buf)
}

// DrawVisible frustum-tests each instance's bounding box and issues a draw
// for every survivor, binding the light-culling acceptance structures as
// group 0 and the camera plus per-object constants as group 1.
//
// Parameters:
//   - frustum: the world-space camera frustum
//   - cullBindings: the acceptance structure bindings for group 0
//
// Returns:
//   - int: the number of instances drawn
//   - error: the first draw error, if any
func (d *Draw) DrawVisible(frustum *common.Frustum, cullBindings []renderer.Binding) (int, error) {
	drawn := 0
	for i := range d.instances {
		instance := &d.instances[i]
		if !frustum.IntersectsBox(instance.BoundingCenter, instance.BoundingHalfExtent) {
			continue
		}

		info := d.objectInfo[instance.Type]
		err := d.gpu.Draw(litPipeline, d.vertexBuffer, info.VertexCount, info.VertexOffset,
			cullBindings,
			[]renderer.Binding{
				{Binding: 0, Buffer: d.cameraBuffer},
				{Binding: 1, Buffer: instance.uniform},
			},
		)
		if err != nil {
			return drawn, err
		}
		drawn++
	}
	return drawn, nil
}

// transformBox transforms an origin-centered axis-aligned box by an affine
// matrix and returns the enclosing axis-aligned box.
func transformBox(m mgl32.Mat4, halfExtent [3]float32) (center, half [3]float32) {
	c := m.Col(3).Vec3()
	center = [3]float32{c.X(), c.Y(), c.Z()}

	for row := 0; row < 3; row++ {
		var sum float32
		for col := 0; col < 3; col++ {
			sum += abs32(m.At(row, col)) * halfExtent[col]
		}
		half[row] = sum
	}
	return center, half
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
