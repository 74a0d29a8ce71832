package renderer

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/tiledforward/forwardplus/engine/shader"
)

// depthFormat is the depth-stencil buffer format: 24-bit depth, 8-bit stencil.
const depthFormat = wgpu.TextureFormatDepth24PlusStencil8

// wgpuBuffer implements Buffer for the WebGPU backend.
type wgpuBuffer struct {
	label  string
	size   uint64
	buffer *wgpu.Buffer
}

func (b *wgpuBuffer) Label() string { return b.label }
func (b *wgpuBuffer) Size() uint64  { return b.size }

// pipelineEntry caches one registered pipeline; exactly one of the two
// pointers is set.
type pipelineEntry struct {
	compute *wgpu.ComputePipeline
	render  *wgpu.RenderPipeline
}

// wgpuRenderer is the WebGPU implementation of the Renderer interface.
type wgpuRenderer struct {
	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode
	width, height int

	depthTextureView     *wgpu.TextureView
	renderPassDescriptor *wgpu.RenderPassDescriptor

	pipelines map[string]pipelineEntry

	computeEncoder *wgpu.CommandEncoder

	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
}

var _ Renderer = &wgpuRenderer{}

// NewWGPURenderer creates the WebGPU device, queue and swap chain for the
// given surface. Must be called from the OS thread that owns the window; the
// thread is locked for the lifetime of the renderer.
//
// Parameters:
//   - surfaceDescriptor: the platform surface to render into
//   - width, height: the initial surface size in pixels
//   - opts: variadic list of WGPUBuilderOption functions
//
// Returns:
//   - Renderer: the backend
//   - error: an error if device or swap-chain creation fails
func NewWGPURenderer(surfaceDescriptor *wgpu.SurfaceDescriptor, width, height int, opts ...WGPUBuilderOption) (Renderer, error) {
	runtime.LockOSThread()

	r := &wgpuRenderer{
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		pipelines:   make(map[string]pipelineEntry),
	}

	cfg := wgpuConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	r.surface = r.instance.CreateSurface(surfaceDescriptor)

	adapter, err := r.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface:    r.surface,
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
		PowerPreference:      wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("adapter request failed: %w", err)
	}
	r.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Forward+ Device",
	})
	if err != nil {
		return nil, fmt.Errorf("device creation failed: %w", err)
	}
	r.device = device
	r.queue = device.GetQueue()

	r.configureSurface(width, height)
	return r, nil
}

// configureSurface (re)configures the swap chain and recreates the depth
// buffer and cached render pass descriptor for the given size.
func (r *wgpuRenderer) configureSurface(width, height int) {
	capabilities := r.surface.GetCapabilities(r.adapter)
	r.surfaceFormat = capabilities.Formats[0]
	r.width, r.height = width, height

	r.surface.Configure(r.adapter, r.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      r.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: r.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	depthTexture, err := r.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Texture",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        depthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		panic(err)
	}
	r.depthTextureView, err = depthTexture.CreateView(nil)
	if err != nil {
		panic(err)
	}

	r.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    nil, // set per frame to the swap-chain view
				LoadOp:  wgpu.LoadOpClear,
				StoreOp: wgpu.StoreOpStore,
				ClearValue: wgpu.Color{
					R: 0.0, G: 0.0, B: 1.0, A: 1.0,
				},
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:              r.depthTextureView,
			DepthLoadOp:       wgpu.LoadOpClear,
			DepthStoreOp:      wgpu.StoreOpStore,
			DepthClearValue:   1.0,
			StencilLoadOp:     wgpu.LoadOpClear,
			StencilStoreOp:    wgpu.StoreOpDiscard,
			StencilClearValue: 0,
		},
	}
}

func (r *wgpuRenderer) Resize(width, height int) {
	r.configureSurface(width, height)
}

func (r *wgpuRenderer) SetPresentMode(mode PresentMode) {
	switch mode {
	case PresentModeVSync:
		r.presentMode = wgpu.PresentModeFifo
	default:
		r.presentMode = wgpu.PresentModeImmediate
	}
}

func (r *wgpuRenderer) RegisterComputePipeline(key string, mod shader.Module) error {
	if _, exists := r.pipelines[key]; exists {
		return nil
	}

	module, err := r.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          mod.Name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: mod.Source},
	})
	if err != nil {
		return fmt.Errorf("shader module %q: %w", mod.Name, err)
	}
	defer module.Release()

	pipeline, err := r.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: key,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: mod.EntryPoint,
		},
	})
	if err != nil {
		return fmt.Errorf("compute pipeline %q: %w", key, err)
	}

	r.pipelines[key] = pipelineEntry{compute: pipeline}
	return nil
}

func (r *wgpuRenderer) RegisterRenderPipeline(key string, mod shader.Module, desc RenderPipelineDescriptor) error {
	if _, exists := r.pipelines[key]; exists {
		return nil
	}

	module, err := r.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          mod.Name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: mod.Source},
	})
	if err != nil {
		return fmt.Errorf("shader module %q: %w", mod.Name, err)
	}
	defer module.Release()

	attributes := make([]wgpu.VertexAttribute, len(desc.VertexAttributes))
	for i, a := range desc.VertexAttributes {
		attributes[i] = wgpu.VertexAttribute{
			ShaderLocation: a.Location,
			Offset:         a.Offset,
			Format:         toWGPUVertexFormat(a.Format),
		}
	}

	topology := wgpu.PrimitiveTopologyTriangleList
	if desc.Topology == TopologyLineList {
		topology = wgpu.PrimitiveTopologyLineList
	}

	var depthStencil *wgpu.DepthStencilState
	if desc.DepthTest {
		stencilFace := wgpu.StencilFaceState{
			Compare:     wgpu.CompareFunctionAlways,
			FailOp:      wgpu.StencilOperationKeep,
			DepthFailOp: wgpu.StencilOperationKeep,
			PassOp:      wgpu.StencilOperationKeep,
		}
		depthStencil = &wgpu.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront:      stencilFace,
			StencilBack:       stencilFace,
			StencilReadMask:   0xFFFFFFFF,
			StencilWriteMask:  0xFFFFFFFF,
		}
	}

	pipeline, err := r.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: key,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: desc.VertexEntry,
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: desc.VertexStride,
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes:  attributes,
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: desc.FragmentEntry,
			Targets: []wgpu.ColorTargetState{
				{
					Format:    r.surfaceFormat,
					Blend:     nil,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		DepthStencil: depthStencil,
		Multisample: wgpu.MultisampleState{
			Count:                  1,
			Mask:                   0xFFFFFFFF,
			AlphaToCoverageEnabled: false,
		},
	})
	if err != nil {
		return fmt.Errorf("render pipeline %q: %w", key, err)
	}

	r.pipelines[key] = pipelineEntry{render: pipeline}
	return nil
}

func toWGPUVertexFormat(f VertexFormat) wgpu.VertexFormat {
	switch f {
	case VertexFormatFloat32x3:
		return wgpu.VertexFormatFloat32x3
	default:
		return wgpu.VertexFormatFloat32x4
	}
}

func (r *wgpuRenderer) CreateUniformBuffer(label string, size uint64) (Buffer, error) {
	buf, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("uniform buffer %q: %w", label, err)
	}
	return &wgpuBuffer{label: label, size: size, buffer: buf}, nil
}

func (r *wgpuRenderer) CreateStorageBuffer(label string, elementSize, elementCount uint64, readWrite bool) (Buffer, error) {
	size := elementSize * elementCount
	buf, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("storage buffer %q: %w", label, err)
	}
	return &wgpuBuffer{label: label, size: size, buffer: buf}, nil
}

func (r *wgpuRenderer) CreateVertexBuffer(label string, data []byte, size uint64) (Buffer, error) {
	if data != nil {
		buf, err := r.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label:    label,
			Contents: data,
			Usage:    wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, fmt.Errorf("vertex buffer %q: %w", label, err)
		}
		return &wgpuBuffer{label: label, size: uint64(len(data)), buffer: buf}, nil
	}

	buf, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("vertex buffer %q: %w", label, err)
	}
	return &wgpuBuffer{label: label, size: size, buffer: buf}, nil
}

func (r *wgpuRenderer) WriteBuffer(buf Buffer, data []byte) error {
	wb, ok := buf.(*wgpuBuffer)
	if !ok {
		return fmt.Errorf("buffer %q was not created by this backend", buf.Label())
	}
	if uint64(len(data)) > wb.size {
		return fmt.Errorf("write of %d bytes exceeds buffer %q size %d", len(data), wb.label, wb.size)
	}
	return r.queue.WriteBuffer(wb.buffer, 0, data)
}

func (r *wgpuRenderer) ClearBufferUint(buf Buffer, value uint32) error {
	wb, ok := buf.(*wgpuBuffer)
	if !ok {
		return fmt.Errorf("buffer %q was not created by this backend", buf.Label())
	}
	fill := make([]byte, wb.size)
	for i := uint64(0); i+4 <= wb.size; i += 4 {
		fill[i] = byte(value)
		fill[i+1] = byte(value >> 8)
		fill[i+2] = byte(value >> 16)
		fill[i+3] = byte(value >> 24)
	}
	return r.queue.WriteBuffer(wb.buffer, 0, fill)
}

func (r *wgpuRenderer) BeginComputeFrame() error {
	encoder, err := r.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	r.computeEncoder = encoder
	return nil
}

func (r *wgpuRenderer) DispatchCompute(key string, bindings []Binding, workgroups [3]uint32) error {
	entry, ok := r.pipelines[key]
	if !ok || entry.compute == nil {
		return fmt.Errorf("compute pipeline %q not registered", key)
	}
	if r.computeEncoder == nil {
		return fmt.Errorf("DispatchCompute called outside BeginComputeFrame")
	}

	bindGroup, err := r.buildBindGroup(entry.compute.GetBindGroupLayout(0), bindings)
	if err != nil {
		return err
	}
	defer bindGroup.Release()

	pass := r.computeEncoder.BeginComputePass(nil)
	pass.SetPipeline(entry.compute)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(workgroups[0], workgroups[1], workgroups[2])
	pass.End()
	return nil
}

func (r *wgpuRenderer) EndComputeFrame() {
	if r.computeEncoder == nil {
		return
	}
	commandBuffer, err := r.computeEncoder.Finish(nil)
	if err == nil {
		r.queue.Submit(commandBuffer)
		commandBuffer.Release()
	}
	r.computeEncoder.Release()
	r.computeEncoder = nil
}

func (r *wgpuRenderer) BeginFrame() error {
	if r.frameSurface != nil {
		return fmt.Errorf("previous frame surface not yet presented")
	}

	surfaceTexture, err := r.surface.GetCurrentTexture()
	if err != nil {
		return err
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}

	encoder, err := r.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	r.renderPassDescriptor.ColorAttachments[0].View = view
	pass := encoder.BeginRenderPass(r.renderPassDescriptor)

	r.frameEncoder = encoder
	r.framePass = pass
	r.frameSurface = surfaceTexture
	r.frameView = view
	return nil
}

func (r *wgpuRenderer) Draw(key string, vertices Buffer, vertexCount, vertexOffset uint32, groups ...[]Binding) error {
	entry, ok := r.pipelines[key]
	if !ok || entry.render == nil {
		return fmt.Errorf("render pipeline %q not registered", key)
	}
	if r.framePass == nil {
		return fmt.Errorf("Draw called outside BeginFrame")
	}

	vb, ok := vertices.(*wgpuBuffer)
	if !ok {
		return fmt.Errorf("vertex buffer %q was not created by this backend", vertices.Label())
	}

	r.framePass.SetPipeline(entry.render)
	for i, bindings := range groups {
		bindGroup, err := r.buildBindGroup(entry.render.GetBindGroupLayout(uint32(i)), bindings)
		if err != nil {
			return err
		}
		r.framePass.SetBindGroup(uint32(i), bindGroup, nil)
		bindGroup.Release()
	}

	r.framePass.SetVertexBuffer(0, vb.buffer, 0, wgpu.WholeSize)
	r.framePass.Draw(vertexCount, 1, vertexOffset, 0)
	return nil
}

func (r *wgpuRenderer) EndFrame() {
	if r.framePass == nil {
		return
	}
	r.framePass.End()

	commandBuffer, err := r.frameEncoder.Finish(nil)
	if err == nil {
		r.queue.Submit(commandBuffer)
		commandBuffer.Release()
	}
	r.frameEncoder.Release()
	r.frameEncoder = nil
	r.framePass = nil
}

func (r *wgpuRenderer) Present() {
	if r.frameSurface == nil {
		return
	}
	r.surface.Present()

	r.frameView.Release()
	r.frameView = nil
	r.frameSurface.Release()
	r.frameSurface = nil
}

// buildBindGroup creates a transient bind group for one dispatch or draw.
func (r *wgpuRenderer) buildBindGroup(layout *wgpu.BindGroupLayout, bindings []Binding) (*wgpu.BindGroup, error) {
	entries := make([]wgpu.BindGroupEntry, len(bindings))
	for i, b := range bindings {
		wb, ok := b.Buffer.(*wgpuBuffer)
		if !ok {
			return nil, fmt.Errorf("buffer %q was not created by this backend", b.Buffer.Label())
		}
		entries[i] = wgpu.BindGroupEntry{
			Binding: b.Binding,
			Buffer:  wb.buffer,
			Size:    wgpu.WholeSize,
		}
	}
	return r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout:  layout,
		Entries: entries,
	})
}
