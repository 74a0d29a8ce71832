// Package debugdraw renders an optional line overlay visualising the volumes
// of visible lights: range circles for point lights and the cone-hull pyramid
// edges for spot lights.
package debugdraw

import (
	_ "embed"
	"fmt"
	"unsafe"

	"github.com/chewxy/math32"

	"github.com/tiledforward/forwardplus/common"
	"github.com/tiledforward/forwardplus/engine/light"
	"github.com/tiledforward/forwardplus/engine/renderer"
	"github.com/tiledforward/forwardplus/engine/shader"
)

//go:embed assets/lines.wgsl
var linesSource string

// linesPipeline is the backend key of the overlay's line-list pipeline.
const linesPipeline = "debug/lines"

// circleResolution is the segment count of each point-light range circle.
const circleResolution = 36

// Vertex is one overlay line vertex: position and color, both vec4.
type Vertex struct {
	Position [4]float32
	Color    [4]float32
}

// vertexSize is the byte stride of a Vertex.
var vertexSize = uint64(unsafe.Sizeof(Vertex{}))

// Renderer accumulates line-list vertices for visible lights and draws them
// after the lit pass. Disabled by default; toggled from the UI thread via the
// render event queue.
type Renderer struct {
	gpu     renderer.Renderer
	enabled bool

	vertices []Vertex

	vertexBuffer renderer.Buffer
	capacity     int // vertices the GPU buffer can hold

	cameraBuffer renderer.Buffer
}

// NewRenderer compiles the overlay shader, registers its line-list pipeline
// and creates the camera constant buffer. The vertex buffer is allocated
// lazily on first use and grown to the largest observed frame.
//
// Parameters:
//   - gpu: the GPU backend
//   - shaders: the shader library
//
// Returns:
//   - *Renderer: the overlay renderer
//   - error: an error if shader compilation or buffer creation fails
func NewRenderer(gpu renderer.Renderer, shaders *shader.Library) (*Renderer, error) {
	mod, err := shaders.Compile(linesPipeline, linesSource, "vs_main", nil)
	if err != nil {
		return nil, err
	}

	err = gpu.RegisterRenderPipeline(linesPipeline, mod, renderer.RenderPipelineDescriptor{
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
		Topology:      renderer.TopologyLineList,
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

	cameraBuffer, err := gpu.CreateUniformBuffer("DebugLineCamera", 64)
	if err != nil {
		return nil, err
	}

	return &Renderer{
		gpu:          gpu,
		cameraBuffer: cameraBuffer,
	}, nil
}

// Enabled reports whether the overlay is active.
//
// Returns:
//   - bool: true if the overlay renders
func (r *Renderer) Enabled() bool {
	return r.enabled
}

// Toggle flips the overlay on or off.
func (r *Renderer) Toggle() {
	r.enabled = !r.enabled
}

// AddVisibleLight implements light.Collector: accumulate the overlay geometry
// of one visible light.
//
// Parameters:
//   - l: the visible light
func (r *Renderer) AddVisibleLight(l *light.Light) {
	diffuse := l.Diffuse()
	color := [4]float32{diffuse[0], diffuse[1], diffuse[2], 1}

	switch l.Kind() {
	case light.KindPoint:
		pos := l.Position()
		center := [3]float32{pos.X(), pos.Y(), pos.Z()}
		// Horizontal circle in the XZ plane, vertical circle in the XY plane.
		r.addCircle(center, l.Range(), color, false)
		r.addCircle(center, l.Range(), color, true)
	case light.KindSpot:
		verts := l.ConeVertices()
		var hull [5][4]float32
		for i, v := range verts {
			hull[i] = [4]float32{v.X(), v.Y(), v.Z(), 1}
		}
		// Four edges from the apex plus the base loop.
		edges := [8][2]int{
			{0, 1}, {0, 2}, {0, 3}, {0, 4},
			{1, 2}, {2, 3}, {3, 4}, {4, 1},
		}
		for _, e := range edges {
			r.vertices = append(r.vertices,
				Vertex{Position: hull[e[0]], Color: color},
				Vertex{Position: hull[e[1]], Color: color},
			)
		}
	}
}

// addCircle appends one 36-segment great circle of the given radius around
// center, in the XZ plane or, when vertical, the XY plane.
func (r *Renderer) addCircle(center [3]float32, radius float32, color [4]float32, vertical bool) {
	const angleStep = 2 * math32.Pi / circleResolution

	pointAt := func(angle float32) Vertex {
		v := Vertex{
			Position: [4]float32{center[0] + radius*math32.Cos(angle), center[1], center[2], 1},
			Color:    color,
		}
		if vertical {
			v.Position[1] += radius * math32.Sin(angle)
		} else {
			v.Position[2] += radius * math32.Sin(angle)
		}
		return v
	}

	for i := 0; i < circleResolution; i++ {
		r.vertices = append(r.vertices, pointAt(float32(i)*angleStep), pointAt(float32(i+1)*angleStep))
	}
}

// VertexCount returns the number of accumulated overlay vertices.
//
// Returns:
//   - int: the vertex count
func (r *Renderer) VertexCount() int {
	return len(r.vertices)
}

// Render uploads the camera matrix and the accumulated vertices and draws the
// overlay, then clears the accumulation for the next frame. Failure to grow
// the vertex buffer degrades the overlay for this frame only.
//
// Parameters:
//   - viewProjection: the camera view-projection matrix, column-major
//
// Returns:
//   - error: a non-fatal error if the overlay could not be drawn
func (r *Renderer) Render(viewProjection [16]float32) error {
	if !r.enabled || len(r.vertices) == 0 {
		r.vertices = r.vertices[:0]
		return nil
	}

	vertexCount := len(r.vertices)
	defer func() { r.vertices = r.vertices[:0] }()

	if err := r.gpu.WriteBuffer(r.cameraBuffer, common.SliceToBytes(viewProjection[:])); err != nil {
		return fmt.Errorf("debug camera upload: %w", err)
	}

	data := common.SliceToBytes(r.vertices)
	if vertexCount > r.capacity {
		buf, err := r.gpu.CreateVertexBuffer("DebugLineVertices", data, 0)
		if err != nil {
			return fmt.Errorf("debug vertex buffer grow: %w", err)
		}
		r.vertexBuffer = buf
		r.capacity = vertexCount
	} else {
		if err := r.gpu.WriteBuffer(r.vertexBuffer, data); err != nil {
			return fmt.Errorf("debug vertex upload: %w", err)
		}
	}

	return r.gpu.Draw(linesPipeline, r.vertexBuffer, uint32(vertexCount), 0,
		[]renderer.Binding{{Binding: 0, Buffer: r.cameraBuffer}},
	)
}
