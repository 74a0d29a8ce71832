package light

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointLightBoundingSphere(t *testing.T) {
	l := NewLight(KindPoint, WithPosition(1, 2, 3), WithRange(25))

	center, radius := l.BoundingSphere()
	assert.Equal(t, [3]float32{1, 2, 3}, center)
	assert.Equal(t, float32(25), radius)
}

func TestBoundingSphereRefreshedOnChange(t *testing.T) {
	l := NewLight(KindPoint, WithPosition(0, 0, 0), WithRange(5))

	l.SetRange(10)
	_, radius := l.BoundingSphere()
	assert.Equal(t, float32(10), radius)

	l.SetTransform(mgl32.Translate3D(7, 0, 0))
	center, _ := l.BoundingSphere()
	assert.Equal(t, [3]float32{7, 0, 0}, center)
}

func TestSpotConeModelMatrix(t *testing.T) {
	outer := float32(math32.Pi / 4) // 45 degrees: tan = 1
	l := NewLight(KindSpot,
		WithPosition(0, 0, 0),
		WithRange(20),
		WithCone(outer/4, outer),
	)

	m := l.ConeModelMatrix()
	// Scale(range*tan(outer), range*tan(outer), range) * identity rotation.
	assert.InDelta(t, 20.0, m.Col(0).Vec3().Len(), 1e-4)
	assert.InDelta(t, 20.0, m.Col(1).Vec3().Len(), 1e-4)
	assert.InDelta(t, 20.0, m.Col(2).Vec3().Len(), 1e-4)
}

func TestSpotConeVertices(t *testing.T) {
	// Identity orientation: axis is -Z, so the base sits range units along -Z.
	l := NewLight(KindSpot,
		WithPosition(0, 0, 0),
		WithRange(10),
		WithCone(math32.Pi/16, math32.Pi/4),
	)

	verts := l.ConeVertices()
	apex := verts[0]
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, apex)

	for _, v := range verts[1:] {
		assert.InDelta(t, -10.0, v.Z(), 1e-4, "base corners lie on the base plane")
		assert.InDelta(t, 10.0, math32.Abs(v.X()), 1e-4)
		assert.InDelta(t, 10.0, math32.Abs(v.Y()), 1e-4)
	}
}

func TestSpotBoundingSphereEnclosesHull(t *testing.T) {
	l := NewLight(KindSpot,
		WithTransform(mgl32.Translate3D(3, -1, 4).Mul4(mgl32.HomogRotate3DX(0.7))),
		WithRange(15),
		WithCone(0.1, 0.6),
	)

	center, radius := l.BoundingSphere()
	c := mgl32.Vec3{center[0], center[1], center[2]}
	for i, v := range l.ConeVertices() {
		require.LessOrEqual(t, v.Sub(c).Len(), radius*(1+1e-4), "vertex %d outside bounding sphere", i)
	}
}

func TestSpotDirectionIsNegativeZColumn(t *testing.T) {
	// Pitch the light down by 90 degrees: -Z axis rotates onto -Y.
	l := NewLight(KindSpot,
		WithTransform(mgl32.HomogRotate3DX(-math32.Pi/2)),
		WithRange(5),
	)
	dir := l.Direction()
	assert.InDelta(t, 0.0, dir.X(), 1e-5)
	assert.InDelta(t, -1.0, dir.Y(), 1e-5)
	assert.InDelta(t, 0.0, dir.Z(), 1e-4)
}
