// Package renderer is the single abstraction over the GPU driver the core
// depends on: device and swap-chain ownership, buffer creation and upload,
// pipeline registration, compute dispatch, and the per-frame render pass.
// The interface is implemented by the WebGPU backend; tests substitute a
// recording fake.
package renderer

import (
	"github.com/tiledforward/forwardplus/engine/shader"
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeUncapped presents frames immediately without waiting for
	// vertical blank. May tear; lowest latency. This is the default, matching
	// a swap-chain Present(0, 0).
	PresentModeUncapped PresentMode = iota

	// PresentModeVSync waits for the next vertical blank before presenting,
	// capping frame rate to the monitor's refresh rate.
	PresentModeVSync
)

// Topology selects the primitive topology of a render pipeline.
type Topology int

const (
	// TopologyTriangleList draws independent triangles.
	TopologyTriangleList Topology = iota

	// TopologyLineList draws independent line segments.
	TopologyLineList
)

// VertexFormat identifies the format of one vertex attribute.
type VertexFormat int

const (
	// VertexFormatFloat32x3 is three 32-bit floats.
	VertexFormatFloat32x3 VertexFormat = iota

	// VertexFormatFloat32x4 is four 32-bit floats.
	VertexFormatFloat32x4
)

// VertexAttribute describes one attribute within a vertex buffer.
type VertexAttribute struct {
	// Location is the shader location the attribute binds to.
	Location uint32

	// Offset is the byte offset of the attribute within a vertex.
	Offset uint64

	// Format is the attribute's data format.
	Format VertexFormat
}

// RenderPipelineDescriptor configures a render pipeline registration.
type RenderPipelineDescriptor struct {
	// VertexEntry and FragmentEntry name the entry points in the module.
	VertexEntry   string
	FragmentEntry string

	// Topology selects triangles or lines.
	Topology Topology

	// VertexStride is the byte stride between vertices.
	VertexStride uint64

	// VertexAttributes lays out the vertex buffer.
	VertexAttributes []VertexAttribute

	// DepthTest enables LESS depth testing with depth writes. Stencil stays
	// disabled either way.
	DepthTest bool
}

// Buffer is an opaque handle to a GPU buffer created by the Renderer.
type Buffer interface {
	// Label returns the debug label the buffer was created with.
	//
	// Returns:
	//   - string: the buffer label
	Label() string

	// Size returns the buffer size in bytes.
	//
	// Returns:
	//   - uint64: the size in bytes
	Size() uint64
}

// Binding attaches a buffer to a shader binding slot. A fresh bind group is
// built from the bindings of every dispatch and draw, so each pipeline stage
// sees exactly the resources it was given and nothing left over from the
// previous stage.
type Binding struct {
	// Binding is the shader binding index within the group.
	Binding uint32

	// Buffer is the bound buffer.
	Buffer Buffer
}

// Renderer is the capability set the rendering core requires from the GPU
// driver. The device and immediate context are single-thread-owned: all
// methods must be called from the render thread.
type Renderer interface {
	// RegisterComputePipeline creates a compute pipeline from a validated
	// shader module and caches it under key. Registering an existing key is
	// a no-op.
	//
	// Parameters:
	//   - key: the unique pipeline identifier
	//   - mod: the validated compute shader module
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterComputePipeline(key string, mod shader.Module) error

	// RegisterRenderPipeline creates a render pipeline from a validated
	// shader module and caches it under key. Registering an existing key is
	// a no-op.
	//
	// Parameters:
	//   - key: the unique pipeline identifier
	//   - mod: the validated shader module holding both entry points
	//   - desc: topology, vertex layout, and depth state
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterRenderPipeline(key string, mod shader.Module, desc RenderPipelineDescriptor) error

	// CreateUniformBuffer creates a uniform buffer writable via WriteBuffer.
	//
	// Parameters:
	//   - label: debug label
	//   - size: size in bytes
	//
	// Returns:
	//   - Buffer: the buffer handle
	//   - error: an error if allocation fails
	CreateUniformBuffer(label string, size uint64) (Buffer, error)

	// CreateStorageBuffer creates a structured storage buffer with the given
	// element size and count. Read-write buffers are additionally writable
	// from compute shaders (the unordered-access case).
	//
	// Parameters:
	//   - label: debug label
	//   - elementSize: size of one element in bytes
	//   - elementCount: number of elements
	//   - readWrite: true if compute shaders write the buffer
	//
	// Returns:
	//   - Buffer: the buffer handle
	//   - error: an error if allocation fails
	CreateStorageBuffer(label string, elementSize, elementCount uint64, readWrite bool) (Buffer, error)

	// CreateVertexBuffer creates a vertex buffer initialized with data.
	//
	// Parameters:
	//   - label: debug label
	//   - data: initial contents (may be nil for a writable dynamic buffer,
	//     in which case size gives the capacity in bytes)
	//   - size: capacity in bytes when data is nil; ignored otherwise
	//
	// Returns:
	//   - Buffer: the buffer handle
	//   - error: an error if allocation fails
	CreateVertexBuffer(label string, data []byte, size uint64) (Buffer, error)

	// WriteBuffer replaces the head of the buffer contents with data, the
	// discard-map upload path. The write is ordered before any subsequently
	// submitted GPU work.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - data: the bytes to upload (must fit in the buffer)
	//
	// Returns:
	//   - error: an error if the upload fails
	WriteBuffer(buf Buffer, data []byte) error

	// ClearBufferUint fills the whole buffer with a repeated 32-bit value.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - value: the 32-bit fill value
	//
	// Returns:
	//   - error: an error if the clear fails
	ClearBufferUint(buf Buffer, value uint32) error

	// BeginComputeFrame opens a command encoder for a batch of compute
	// dispatches. Must be paired with EndComputeFrame.
	//
	// Returns:
	//   - error: an error if the encoder could not be created
	BeginComputeFrame() error

	// DispatchCompute encodes one compute dispatch within the current batch.
	// The bindings become bind group 0 of the pipeline; previous dispatches'
	// bindings do not carry over.
	//
	// Parameters:
	//   - key: the registered compute pipeline
	//   - bindings: the buffers for bind group 0
	//   - workgroups: the dispatch dimensions
	//
	// Returns:
	//   - error: an error if the pipeline is unknown or encoding fails
	DispatchCompute(key string, bindings []Binding, workgroups [3]uint32) error

	// EndComputeFrame finishes the batch and submits it to the GPU queue.
	EndComputeFrame()

	// BeginFrame acquires the swap-chain image and opens the main render
	// pass, clearing color to opaque blue {0, 0, 1, 1} and depth to 1.0.
	//
	// Returns:
	//   - error: an error if the swap-chain image could not be acquired
	BeginFrame() error

	// Draw encodes one non-indexed draw within the current render pass.
	//
	// Parameters:
	//   - key: the registered render pipeline
	//   - vertices: the vertex buffer
	//   - vertexCount: number of vertices to draw
	//   - vertexOffset: first vertex index
	//   - groups: bind groups, outermost slice indexed by group number
	//
	// Returns:
	//   - error: an error if the pipeline is unknown or encoding fails
	Draw(key string, vertices Buffer, vertexCount, vertexOffset uint32, groups ...[]Binding) error

	// EndFrame closes the render pass and submits the frame's command buffer.
	EndFrame()

	// Present presents the swap-chain image. Must follow EndFrame.
	Present()

	// Resize reconfigures the swap chain for a new surface size, preserving
	// format and flags, and recreates the depth buffer.
	//
	// Parameters:
	//   - width, height: the new surface size in pixels
	Resize(width, height int)

	// SetPresentMode changes how frames are delivered to the display. Takes
	// effect at the next Resize.
	//
	// Parameters:
	//   - mode: the present mode
	SetPresentMode(mode PresentMode)
}
