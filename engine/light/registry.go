package light

import (
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/tiledforward/forwardplus/common"
)

// cullChunkSize is the number of lights one worker task culls. Small enough to
// load-balance across the pool, large enough to amortize task dispatch.
const cullChunkSize = 64

// CameraView is the camera basis the visible-set build needs: the world-space
// position and the unit front vector used to project lights onto the view Z
// axis.
type CameraView struct {
	Position mgl32.Vec3
	Front    mgl32.Vec3
}

// Collector receives each light that survives the frustum cull, in original
// registry order. Used by the debug line renderer to gather overlay geometry
// without a second pass over the light list.
type Collector interface {
	// AddVisibleLight is called once per visible light during the visible-set build.
	//
	// Parameters:
	//   - l: the visible light (valid only for the duration of the call)
	AddVisibleLight(l *Light)
}

// VisibleSet is the per-frame output of the registry: the lights that passed
// the camera frustum test, partitioned by kind and sorted by the midpoint of
// their view-space Z range. The sort is the prerequisite for z-binning to emit
// contiguous [min, max] index ranges per depth slice.
type VisibleSet struct {
	// Infos holds the sorted per-light metadata, z-bin ranges packed.
	Infos []ShaderLightInfo

	// Records holds the sorted GPU light records, parallel to Infos.
	Records []ShaderLightRecord

	// SpotModels holds the cone model matrices of visible spot lights in
	// per-kind (unsorted) order; Records index into it via Info.Index.
	SpotModels []mgl32.Mat4

	// ZRanges holds the view-space Z intervals in sorted order.
	ZRanges [][2]float32

	// Counts holds the number of visible lights per kind.
	Counts [4]uint32
}

// Reset clears the set for reuse without releasing capacity.
func (s *VisibleSet) Reset() {
	s.Infos = s.Infos[:0]
	s.Records = s.Records[:0]
	s.SpotModels = s.SpotModels[:0]
	s.ZRanges = s.ZRanges[:0]
	s.Counts = [4]uint32{}
}

// TotalCount returns the number of visible lights across all kinds.
//
// Returns:
//   - uint32: the visible light count
func (s *VisibleSet) TotalCount() uint32 {
	return uint32(len(s.Infos))
}

// Registry owns the authoritative CPU light list. It is single-thread-owned
// by the render thread; mutation requests from other threads must flow through
// the render event queue.
type Registry struct {
	lights  []Light
	handles map[uuid.UUID]int

	// cullPool runs the per-frame frustum cull chunks. Workers persist across
	// frames, avoiding per-frame goroutine spawn/teardown overhead.
	cullPool    worker.DynamicWorkerPool
	cullWorkers int

	// Scratch reused each frame.
	visible []bool
	zRanges [][2]float32
}

// NewRegistry creates an empty light registry with any provided options
// applied.
//
// Parameters:
//   - opts: variadic list of RegistryBuilderOption functions
//
// Returns:
//   - *Registry: the new registry
func NewRegistry(opts ...RegistryBuilderOption) *Registry {
	r := &Registry{
		handles:     make(map[uuid.UUID]int),
		cullWorkers: defaultCullWorkers(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cullPool = worker.NewDynamicWorkerPool(r.cullWorkers, 256, time.Second)
	return r
}

// Add inserts a light into the registry and returns a stable handle for it.
//
// Parameters:
//   - l: the light to add
//
// Returns:
//   - uuid.UUID: the handle identifying the light
func (r *Registry) Add(l Light) uuid.UUID {
	id := uuid.New()
	r.handles[id] = len(r.lights)
	r.lights = append(r.lights, l)
	return id
}

// Light returns a pointer to the light identified by the handle, or nil if
// the handle is unknown. The pointer stays valid until the next Add.
//
// Parameters:
//   - id: the handle returned by Add
//
// Returns:
//   - *Light: the light, or nil
func (r *Registry) Light(id uuid.UUID) *Light {
	idx, ok := r.handles[id]
	if !ok {
		return nil
	}
	return &r.lights[idx]
}

// Count returns the number of registered lights.
//
// Returns:
//   - int: the light count
func (r *Registry) Count() int {
	return len(r.lights)
}

// BuildVisibleSet culls the light list against the camera frustum, computes
// view-space Z ranges, partitions survivors by kind and sorts them by the
// midpoint of their Z range, emitting the packed z-bin range per light.
//
// The frustum cull and Z-range computation run on the worker pool; the gather
// and sort are serial. The sort runs over all kinds at once, so kinds are
// interleaved in the output; each record carries its kind and per-kind index.
//
// Parameters:
//   - view: the camera position and front vector
//   - frustum: the world-space camera frustum
//   - zNear, zFar: the camera depth range used to quantize z-bins
//   - collector: optional sink for visible lights (may be nil)
//   - out: the visible set to fill (reset first)
func (r *Registry) BuildVisibleSet(view CameraView, frustum *common.Frustum, zNear, zFar float32, collector Collector, out *VisibleSet) {
	out.Reset()

	total := len(r.lights)
	if total == 0 {
		return
	}

	if cap(r.visible) < total {
		r.visible = make([]bool, total)
		r.zRanges = make([][2]float32, total)
	}
	r.visible = r.visible[:total]
	r.zRanges = r.zRanges[:total]

	// Parallel phase: each chunk owns a disjoint index range, so the scratch
	// slices need no locking. A WaitGroup provides the per-frame barrier.
	var wg sync.WaitGroup
	taskID := 0
	for start := 0; start < total; start += cullChunkSize {
		end := min(start+cullChunkSize, total)
		wg.Add(1)
		chunkStart, chunkEnd := start, end
		id := taskID
		taskID++
		r.cullPool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				for i := chunkStart; i < chunkEnd; i++ {
					l := &r.lights[i]
					center, radius := l.BoundingSphere()
					if !frustum.IntersectsSphere(center, radius) {
						r.visible[i] = false
						continue
					}
					r.visible[i] = true
					r.zRanges[i] = l.viewZRange(view)
				}
				return nil, nil
			},
		})
	}
	wg.Wait()

	// Gather survivors in registry order, partitioned by kind.
	var recordsByKind [KindCount][]ShaderLightRecord
	var gatheredInfos []ShaderLightInfo
	var gatheredZ [][2]float32
	for i := range r.lights {
		if !r.visible[i] {
			continue
		}
		l := &r.lights[i]

		info := ShaderLightInfo{
			Kind:  uint32(l.kind),
			Index: out.Counts[l.kind],
		}
		out.Counts[l.kind]++

		gatheredInfos = append(gatheredInfos, info)
		gatheredZ = append(gatheredZ, r.zRanges[i])
		recordsByKind[l.kind] = append(recordsByKind[l.kind], NewShaderLightRecord(l, info))

		if l.kind == KindSpot {
			out.SpotModels = append(out.SpotModels, l.ConeModelMatrix())
		}

		if collector != nil {
			collector.AddVisibleLight(l)
		}
	}

	// Sort by the midpoint of the view-space Z range. Stable so lights with
	// equal midpoints keep their per-kind order.
	order := make([]int, len(gatheredInfos))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		za := gatheredZ[order[a]]
		zb := gatheredZ[order[b]]
		return za[0]+za[1] < zb[0]+zb[1]
	})

	zStep := (zFar - zNear) / float32(ZBinCount)
	for _, src := range order {
		info := gatheredInfos[src]
		binRange := ZBinRange(gatheredZ[src], zStep)
		info.ZRange = PackZRange(binRange[0], binRange[1])

		rec := recordsByKind[info.Kind][info.Index]
		rec.Info = info

		out.Infos = append(out.Infos, info)
		out.Records = append(out.Records, rec)
		out.ZRanges = append(out.ZRanges, gatheredZ[src])
	}
}

// viewZRange computes the view-space Z interval of the light: for point
// lights the projected center plus/minus the range, for spot lights the
// min/max projection of the five cone hull vertices.
func (l *Light) viewZRange(view CameraView) [2]float32 {
	switch l.kind {
	case KindSpot:
		verts := l.ConeVertices()
		lo := float32(mgl32.MaxValue)
		hi := -lo
		for _, v := range verts {
			z := v.Sub(view.Position).Dot(view.Front)
			lo = min(lo, z)
			hi = max(hi, z)
		}
		return [2]float32{lo, hi}
	default:
		z := l.Position().Sub(view.Position).Dot(view.Front)
		return [2]float32{z - l.lightRange, z + l.lightRange}
	}
}
