// Package renderertest provides a recording in-memory implementation of the
// renderer.Renderer interface for tests: buffer contents live in host memory
// and every dispatch, draw and frame transition is captured for assertions.
package renderertest

import (
	"encoding/binary"
	"fmt"

	"github.com/tiledforward/forwardplus/engine/renderer"
	"github.com/tiledforward/forwardplus/engine/shader"
)

// Buffer is a recording buffer whose contents live in host memory.
type Buffer struct {
	BufLabel string
	BufSize  uint64
	Data     []byte
}

// Label returns the buffer's debug label.
//
// Returns:
//   - string: the label
func (b *Buffer) Label() string { return b.BufLabel }

// Size returns the buffer's size in bytes.
//
// Returns:
//   - uint64: the size
func (b *Buffer) Size() uint64 { return b.BufSize }

// Uint32At reads a little-endian uint32 at the given byte offset.
//
// Parameters:
//   - offset: the byte offset
//
// Returns:
//   - uint32: the value
func (b *Buffer) Uint32At(offset int) uint32 {
	return binary.LittleEndian.Uint32(b.Data[offset:])
}

// Dispatch captures one compute dispatch, including a snapshot of every bound
// buffer's contents at dispatch time.
type Dispatch struct {
	Key        string
	Workgroups [3]uint32
	Bindings   map[uint32]string
	Snapshots  map[string][]byte
}

// Draw captures one draw call.
type Draw struct {
	Key          string
	VertexBuffer string
	VertexCount  uint32
	VertexOffset uint32
	Groups       [][]renderer.Binding
}

// Recording implements renderer.Renderer over host memory.
type Recording struct {
	Buffers         map[string]*Buffer
	ComputeModules  map[string]shader.Module
	RenderModules   map[string]shader.Module
	RenderPipelines map[string]renderer.RenderPipelineDescriptor

	Dispatches []Dispatch
	Draws      []Draw

	FramesBegun int
	FramesEnded int
	Presents    int
	Resizes     [][2]int

	FailWrites     bool
	FailDispatch   bool
	FailBeginFrame bool

	inComputeFrame bool
	inFrame        bool
}

var _ renderer.Renderer = &Recording{}

// New creates an empty recording backend.
//
// Returns:
//   - *Recording: the backend
func New() *Recording {
	return &Recording{
		Buffers:         make(map[string]*Buffer),
		ComputeModules:  make(map[string]shader.Module),
		RenderModules:   make(map[string]shader.Module),
		RenderPipelines: make(map[string]renderer.RenderPipelineDescriptor),
	}
}

func (r *Recording) RegisterComputePipeline(key string, mod shader.Module) error {
	r.ComputeModules[key] = mod
	return nil
}

func (r *Recording) RegisterRenderPipeline(key string, mod shader.Module, desc renderer.RenderPipelineDescriptor) error {
	r.RenderModules[key] = mod
	r.RenderPipelines[key] = desc
	return nil
}

func (r *Recording) createBuffer(label string, size uint64) *Buffer {
	b := &Buffer{BufLabel: label, BufSize: size, Data: make([]byte, size)}
	r.Buffers[label] = b
	return b
}

func (r *Recording) CreateUniformBuffer(label string, size uint64) (renderer.Buffer, error) {
	return r.createBuffer(label, size), nil
}

func (r *Recording) CreateStorageBuffer(label string, elementSize, elementCount uint64, readWrite bool) (renderer.Buffer, error) {
	return r.createBuffer(label, elementSize*elementCount), nil
}

func (r *Recording) CreateVertexBuffer(label string, data []byte, size uint64) (renderer.Buffer, error) {
	if data != nil {
		size = uint64(len(data))
	}
	b := r.createBuffer(label, size)
	copy(b.Data, data)
	return b, nil
}

func (r *Recording) WriteBuffer(buf renderer.Buffer, data []byte) error {
	if r.FailWrites {
		return fmt.Errorf("injected write failure")
	}
	b := buf.(*Buffer)
	if uint64(len(data)) > b.BufSize {
		return fmt.Errorf("write of %d bytes exceeds buffer %q size %d", len(data), b.BufLabel, b.BufSize)
	}
	copy(b.Data, data)
	return nil
}

func (r *Recording) ClearBufferUint(buf renderer.Buffer, value uint32) error {
	b := buf.(*Buffer)
	for i := uint64(0); i+4 <= b.BufSize; i += 4 {
		binary.LittleEndian.PutUint32(b.Data[i:], value)
	}
	return nil
}

func (r *Recording) BeginComputeFrame() error {
	r.inComputeFrame = true
	return nil
}

func (r *Recording) DispatchCompute(key string, bindings []renderer.Binding, workgroups [3]uint32) error {
	if r.FailDispatch {
		return fmt.Errorf("injected dispatch failure")
	}
	if !r.inComputeFrame {
		return fmt.Errorf("dispatch outside compute frame")
	}
	if _, ok := r.ComputeModules[key]; !ok {
		return fmt.Errorf("compute pipeline %q not registered", key)
	}

	d := Dispatch{
		Key:        key,
		Workgroups: workgroups,
		Bindings:   make(map[uint32]string),
		Snapshots:  make(map[string][]byte),
	}
	for _, binding := range bindings {
		b := binding.Buffer.(*Buffer)
		d.Bindings[binding.Binding] = b.BufLabel
		snapshot := make([]byte, len(b.Data))
		copy(snapshot, b.Data)
		d.Snapshots[b.BufLabel] = snapshot
	}
	r.Dispatches = append(r.Dispatches, d)
	return nil
}

func (r *Recording) EndComputeFrame() {
	r.inComputeFrame = false
}

func (r *Recording) BeginFrame() error {
	if r.FailBeginFrame {
		return fmt.Errorf("injected begin-frame failure")
	}
	r.FramesBegun++
	r.inFrame = true
	return nil
}

func (r *Recording) Draw(key string, vertices renderer.Buffer, vertexCount, vertexOffset uint32, groups ...[]renderer.Binding) error {
	if !r.inFrame {
		return fmt.Errorf("draw outside frame")
	}
	if _, ok := r.RenderModules[key]; !ok {
		return fmt.Errorf("render pipeline %q not registered", key)
	}
	r.Draws = append(r.Draws, Draw{
		Key:          key,
		VertexBuffer: vertices.Label(),
		VertexCount:  vertexCount,
		VertexOffset: vertexOffset,
		Groups:       groups,
	})
	return nil
}

func (r *Recording) EndFrame() {
	r.FramesEnded++
	r.inFrame = false
}

func (r *Recording) Present() {
	r.Presents++
}

func (r *Recording) Resize(width, height int) {
	r.Resizes = append(r.Resizes, [2]int{width, height})
}

func (r *Recording) SetPresentMode(mode renderer.PresentMode) {}

// DispatchesFor filters the recorded dispatches by pipeline key.
//
// Parameters:
//   - key: the pipeline key
//
// Returns:
//   - []Dispatch: the matching dispatches in submission order
func (r *Recording) DispatchesFor(key string) []Dispatch {
	var out []Dispatch
	for _, d := range r.Dispatches {
		if d.Key == key {
			out = append(out, d)
		}
	}
	return out
}
