package light

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiledforward/forwardplus/common"
)

const (
	testZNear = 0.1
	testZFar  = 1000.0
)

// testCamera builds the camera basis and world frustum for a camera at pos
// looking along front with a 70 degree vertical FOV.
func testCamera(pos, front mgl32.Vec3) (CameraView, common.Frustum) {
	target := pos.Add(front)

	var view, proj, viewProj [16]float32
	common.LookAt(view[:], pos.X(), pos.Y(), pos.Z(), target.X(), target.Y(), target.Z(), 0, 1, 0)
	common.Perspective(proj[:], mgl32.DegToRad(70), 1024.0/768.0, testZNear, testZFar)
	common.Mul4(viewProj[:], proj[:], view[:])

	return CameraView{Position: pos, Front: front}, common.ExtractFrustumFromMatrix(viewProj[:])
}

func TestSinglePointLightZBinRange(t *testing.T) {
	// Point light at the origin with range 5, camera at (0,0,-10) looking +Z:
	// view Z range is [5, 15] and with z_step = (1000-0.1)/1024 the bin range
	// is [5, 15].
	r := NewRegistry(WithCullWorkers(1))
	r.Add(NewLight(KindPoint, WithPosition(0, 0, 0), WithRange(5)))

	view, frustum := testCamera(mgl32.Vec3{0, 0, -10}, mgl32.Vec3{0, 0, 1})

	var set VisibleSet
	r.BuildVisibleSet(view, &frustum, testZNear, testZFar, nil, &set)

	require.Equal(t, uint32(1), set.TotalCount())
	require.Equal(t, uint32(1), set.Counts[KindPoint])

	assert.InDelta(t, 5.0, set.ZRanges[0][0], 1e-4)
	assert.InDelta(t, 15.0, set.ZRanges[0][1], 1e-4)

	minBin, maxBin := UnpackZRange(set.Infos[0].ZRange)
	assert.Equal(t, uint32(5), minBin)
	assert.Equal(t, uint32(15), maxBin)

	// The record mirrors the sorted info.
	assert.Equal(t, set.Infos[0], set.Records[0].Info)
}

func TestLightsSortedByViewZMidpoint(t *testing.T) {
	// Lights added in shuffled depth order come out sorted ascending.
	r := NewRegistry(WithCullWorkers(2))
	depths := []float32{40, 10, 70, 25, 55, 85, 5, 100, 65, 30}
	for _, z := range depths {
		r.Add(NewLight(KindPoint, WithPosition(0, 0, z), WithRange(2)))
	}

	view, frustum := testCamera(mgl32.Vec3{0, 0, -10}, mgl32.Vec3{0, 0, 1})

	var set VisibleSet
	r.BuildVisibleSet(view, &frustum, testZNear, testZFar, nil, &set)

	require.Equal(t, uint32(len(depths)), set.TotalCount())
	for i := 1; i < len(set.ZRanges); i++ {
		prev := set.ZRanges[i-1][0] + set.ZRanges[i-1][1]
		cur := set.ZRanges[i][0] + set.ZRanges[i][1]
		assert.LessOrEqual(t, prev, cur, "sorted order violated at %d", i)
	}

	// Bin ranges are monotone as well, which is what makes the z-bin encode
	// contiguous.
	for i := 1; i < len(set.Infos); i++ {
		prevMin, _ := UnpackZRange(set.Infos[i-1].ZRange)
		curMin, _ := UnpackZRange(set.Infos[i].ZRange)
		assert.LessOrEqual(t, prevMin, curMin)
	}
}

func TestLightBehindCameraCulled(t *testing.T) {
	r := NewRegistry(WithCullWorkers(1))
	r.Add(NewLight(KindSpot,
		WithPosition(0, 0, -30),
		WithRange(20),
		WithCone(0.1, 0.5),
	))

	view, frustum := testCamera(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 1})

	var set VisibleSet
	r.BuildVisibleSet(view, &frustum, testZNear, testZFar, nil, &set)

	assert.Equal(t, uint32(0), set.TotalCount())
	assert.Empty(t, set.SpotModels)
}

func TestKindPartitionAndSpotModels(t *testing.T) {
	r := NewRegistry(WithCullWorkers(2))
	r.Add(NewLight(KindPoint, WithPosition(0, 0, 10), WithRange(5)))
	r.Add(NewLight(KindSpot, WithPosition(2, 0, 20), WithRange(10), WithCone(0.1, 0.4)))
	r.Add(NewLight(KindPoint, WithPosition(-2, 0, 30), WithRange(5)))
	r.Add(NewLight(KindSpot, WithPosition(0, 2, 40), WithRange(10), WithCone(0.1, 0.4)))

	view, frustum := testCamera(mgl32.Vec3{0, 0, -10}, mgl32.Vec3{0, 0, 1})

	var set VisibleSet
	r.BuildVisibleSet(view, &frustum, testZNear, testZFar, nil, &set)

	require.Equal(t, uint32(4), set.TotalCount())
	assert.Equal(t, uint32(2), set.Counts[KindPoint])
	assert.Equal(t, uint32(2), set.Counts[KindSpot])
	assert.Len(t, set.SpotModels, 2)

	// Per-kind indices address the unsorted per-kind arrays.
	seen := map[uint32]bool{}
	for _, info := range set.Infos {
		if info.Kind == uint32(KindSpot) {
			require.Less(t, info.Index, uint32(len(set.SpotModels)))
			seen[info.Index] = true
		}
	}
	assert.Len(t, seen, 2)
}

type countingCollector struct{ n int }

func (c *countingCollector) AddVisibleLight(*Light) { c.n++ }

func TestCollectorReceivesVisibleLightsOnly(t *testing.T) {
	r := NewRegistry(WithCullWorkers(1))
	r.Add(NewLight(KindPoint, WithPosition(0, 0, 10), WithRange(5)))
	r.Add(NewLight(KindPoint, WithPosition(0, 0, -500), WithRange(5)))

	view, frustum := testCamera(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 1})

	var c countingCollector
	var set VisibleSet
	r.BuildVisibleSet(view, &frustum, testZNear, testZFar, &c, &set)

	assert.Equal(t, 1, c.n)
}

func TestRegistryHandles(t *testing.T) {
	r := NewRegistry(WithCullWorkers(1))
	id := r.Add(NewLight(KindPoint, WithPosition(1, 2, 3), WithRange(4)))

	l := r.Light(id)
	require.NotNil(t, l)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, l.Position())
	assert.Equal(t, 1, r.Count())
}
