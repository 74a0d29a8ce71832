package camera

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateForwardAtRest(t *testing.T) {
	s := NewState()
	f := s.Forward()
	assert.InDelta(t, 0.0, f.X(), 1e-5)
	assert.InDelta(t, 0.0, f.Y(), 1e-5)
	assert.InDelta(t, 1.0, f.Z(), 1e-5)
}

func TestStateYawTurnsForward(t *testing.T) {
	s := NewState()
	s.ApplyTransform(TransformUpdate{Rotation: [2]float32{0, math32.Pi / 2}})

	f := s.Forward()
	// Yaw of +90 degrees about Y turns +Z onto +X.
	assert.InDelta(t, 1.0, f.X(), 1e-5)
	assert.InDelta(t, 0.0, f.Z(), 1e-5)
}

func TestViewTransformsPointAhead(t *testing.T) {
	s := NewState()
	s.ApplyTransform(TransformUpdate{Position: [3]float32{0, 0, -10}})

	// A point 10 units ahead lands on the view-space -Z axis.
	view := s.View()
	p := mgl32.Mat4(view).Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 0.0, p.X(), 1e-4)
	assert.InDelta(t, 0.0, p.Y(), 1e-4)
	assert.InDelta(t, -10.0, p.Z(), 1e-4)
}

func TestProjectionParameters(t *testing.T) {
	proj := Projection(1024, 768)

	f := 1.0 / math32.Tan(mgl32.DegToRad(FovYDegrees)/2)
	assert.InDelta(t, f/(1024.0/768.0), proj[0], 1e-5)
	assert.InDelta(t, f, proj[5], 1e-5)
	assert.InDelta(t, -1.0, proj[11], 1e-6)
}

func TestFrustumContainsPointAhead(t *testing.T) {
	s := NewState()
	s.ApplyTransform(TransformUpdate{Position: [3]float32{0, 0, -10}})

	frustum := s.Frustum(Projection(1024, 768))
	assert.True(t, frustum.IntersectsSphere([3]float32{0, 0, 0}, 1))
	assert.False(t, frustum.IntersectsSphere([3]float32{0, 0, -50}, 1))
}

func TestControllerPitchClamped(t *testing.T) {
	c := NewController()
	c.SetAction(ActionRotatePitchCW, true)

	var update TransformUpdate
	// Integrate far past the clamp.
	for i := 0; i < 10000; i++ {
		update = c.Update(16)
	}
	assert.InDelta(t, math32.Pi/2, update.Rotation[0], 1e-5)
}

func TestControllerYawWraps(t *testing.T) {
	c := NewController()
	c.SetAction(ActionRotateYawCCW, true)

	var update TransformUpdate
	for i := 0; i < 10000; i++ {
		update = c.Update(16)
	}
	require.LessOrEqual(t, update.Rotation[1], math32.Pi)
	require.Greater(t, update.Rotation[1], -math32.Pi)
}

func TestControllerMoveForward(t *testing.T) {
	c := NewController()
	c.SetAction(ActionMoveForward, true)

	update := c.Update(16)
	// Default yaw: forward is +Z from the start position (0, 0, 1).
	assert.InDelta(t, 1.0+16*moveSpeed, update.Position[2], 1e-5)
	assert.InDelta(t, 0.0, update.Position[0], 1e-5)

	// Releasing the key stops further motion.
	c.SetAction(ActionMoveForward, false)
	next := c.Update(16)
	assert.Equal(t, update.Position, next.Position)
}

func TestControllerOppositeActionsPreferFirst(t *testing.T) {
	c := NewController()
	c.SetAction(ActionMoveForward, true)
	c.SetAction(ActionMoveBack, true)

	update := c.Update(16)
	// Forward wins over back when both are held.
	assert.Greater(t, update.Position[2], float32(1))
}
