package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMul4Identity(t *testing.T) {
	var ident, m, out [16]float32
	Identity(ident[:])
	for i := range m {
		m[i] = float32(i) * 0.5
	}

	Mul4(out[:], ident[:], m[:])
	assert.Equal(t, m, out)

	Mul4(out[:], m[:], ident[:])
	assert.Equal(t, m, out)
}

func TestInvert4RoundTrip(t *testing.T) {
	var proj, inv, product, ident [16]float32
	Perspective(proj[:], 1.2217, 4.0/3.0, 0.1, 1000)
	Identity(ident[:])

	require.True(t, Invert4(inv[:], proj[:]))
	Mul4(product[:], proj[:], inv[:])
	for i := range product {
		assert.InDelta(t, ident[i], product[i], 1e-4, "element %d", i)
	}
}

func TestInvert4Singular(t *testing.T) {
	var zero, out [16]float32
	out[3] = 42
	assert.False(t, Invert4(out[:], zero[:]))
	assert.Equal(t, float32(42), out[3], "output untouched on singular input")
}

func TestPerspectiveClipSpace(t *testing.T) {
	var proj [16]float32
	Perspective(proj[:], 1.2217, 1.0, 0.1, 1000)

	// A point on the near plane maps to z = 0, far plane to z = 1 (after
	// the perspective divide).
	near := TransformPoint(proj[:], 0, 0, -0.1)
	w := -(-0.1) // -z
	assert.InDelta(t, 0.0, near[2]/w, 1e-4)

	far := TransformPoint(proj[:], 0, 0, -1000)
	w = 1000.0
	assert.InDelta(t, 1.0, far[2]/w, 1e-4)
}

func TestLookAtTransformsTarget(t *testing.T) {
	var view [16]float32
	LookAt(view[:], 0, 0, -10, 0, 0, 0, 0, 1, 0)

	// The target ends up 10 units down the view-space -Z axis.
	p := TransformPoint(view[:], 0, 0, 0)
	assert.InDelta(t, 0.0, p[0], 1e-4)
	assert.InDelta(t, 0.0, p[1], 1e-4)
	assert.InDelta(t, -10.0, p[2], 1e-4)
}

func TestFrustumSphereTests(t *testing.T) {
	var view, proj, vp [16]float32
	LookAt(view[:], 0, 0, -10, 0, 0, 0, 0, 1, 0)
	Perspective(proj[:], 1.2217, 4.0/3.0, 0.1, 1000)
	Mul4(vp[:], proj[:], view[:])

	f := ExtractFrustumFromMatrix(vp[:])

	assert.True(t, f.IntersectsSphere([3]float32{0, 0, 0}, 1), "sphere ahead")
	assert.False(t, f.IntersectsSphere([3]float32{0, 0, -50}, 1), "sphere behind")
	assert.True(t, f.IntersectsSphere([3]float32{0, 0, -10.5}, 2), "sphere straddling near plane")
	assert.False(t, f.IntersectsSphere([3]float32{500, 0, 10}, 1), "sphere far off axis")
}

func TestFrustumBoxTests(t *testing.T) {
	var view, proj, vp [16]float32
	LookAt(view[:], 0, 0, -10, 0, 0, 0, 0, 1, 0)
	Perspective(proj[:], 1.2217, 4.0/3.0, 0.1, 1000)
	Mul4(vp[:], proj[:], view[:])

	f := ExtractFrustumFromMatrix(vp[:])

	assert.True(t, f.IntersectsBox([3]float32{0, 0, 0}, [3]float32{0.5, 0.5, 0.5}))
	assert.False(t, f.IntersectsBox([3]float32{0, 0, -100}, [3]float32{0.5, 0.5, 0.5}))
	// A huge ground plane overlaps even when its center is outside.
	assert.True(t, f.IntersectsBox([3]float32{0, -200, 0}, [3]float32{500, 0.001, 500}))
}

func TestSliceToBytes(t *testing.T) {
	data := []uint32{1, 2, 3}
	bytes := SliceToBytes(data)
	require.Len(t, bytes, 12)
	assert.Equal(t, byte(1), bytes[0])
	assert.Equal(t, byte(2), bytes[4])
	assert.Nil(t, SliceToBytes([]uint32(nil)))
}
