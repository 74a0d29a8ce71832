package camera

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Action identifies one camera input action.
type Action int

const (
	// ActionMoveForward through ActionMoveDown translate the camera.
	ActionMoveForward Action = iota
	ActionMoveBack
	ActionMoveLeft
	ActionMoveRight
	ActionMoveUp
	ActionMoveDown

	// ActionRotatePitchCW through ActionRotateYawCCW turn the camera.
	ActionRotatePitchCW
	ActionRotatePitchCCW
	ActionRotateYawCW
	ActionRotateYawCCW

	actionCount
)

// Movement speeds, in units per millisecond of integrated delta time.
const (
	moveSpeed = 0.005
	turnSpeed = 0.001
)

// Controller integrates key-state input into camera transform updates on the
// UI thread. Mouse look is not implemented; the controller takes no mouse
// input.
type Controller struct {
	position mgl32.Vec3
	rotation [2]float32 // pitch, yaw

	velocity        mgl32.Vec3
	angularVelocity [2]float32

	actions [actionCount]bool
}

// NewController creates a controller at the demo's starting pose.
//
// Returns:
//   - *Controller: the controller
func NewController() *Controller {
	return &Controller{
		position: mgl32.Vec3{0, 0, 1},
	}
}

// SetAction records the pressed state of one input action.
//
// Parameters:
//   - action: the action
//   - pressed: true while the key is held
func (c *Controller) SetAction(action Action, pressed bool) {
	if action >= 0 && action < actionCount {
		c.actions[action] = pressed
	}
}

// Update integrates one tick of input and returns the resulting absolute
// transform. Pitch is clamped to +/- pi/2; yaw wraps. Velocities are derived
// from the held actions and reset after integration.
//
// Parameters:
//   - dt: the tick duration in milliseconds
//
// Returns:
//   - TransformUpdate: the new camera pose
func (c *Controller) Update(dt float32) TransformUpdate {
	c.updateInputs()

	pitch := c.rotation[0] + dt*c.angularVelocity[0]*turnSpeed
	if pitch > math32.Pi/2 {
		pitch = math32.Pi / 2
	} else if pitch < -math32.Pi/2 {
		pitch = -math32.Pi / 2
	}
	c.rotation[0] = pitch

	c.rotation[1] = wrapAngle(c.rotation[1] + dt*c.angularVelocity[1]*turnSpeed)

	rot := rotationMatrix(c.rotation[0], c.rotation[1])
	right := rot.Mul4x1(defaultRight.Vec4(0)).Vec3()
	moveForward := mgl32.HomogRotate3DY(c.rotation[1]).Mul4x1(defaultForward.Vec4(0)).Vec3()

	c.position = c.position.
		Add(right.Mul(c.velocity.X() * dt * moveSpeed)).
		Add(defaultUp.Mul(c.velocity.Y() * dt * moveSpeed)).
		Add(moveForward.Mul(c.velocity.Z() * dt * moveSpeed))

	c.velocity = mgl32.Vec3{}
	c.angularVelocity = [2]float32{}

	return TransformUpdate{
		Position: [3]float32{c.position.X(), c.position.Y(), c.position.Z()},
		Rotation: c.rotation,
	}
}

// updateInputs converts the held actions into this tick's velocities.
func (c *Controller) updateInputs() {
	if c.actions[ActionMoveForward] {
		c.velocity[2] = 1
	} else if c.actions[ActionMoveBack] {
		c.velocity[2] = -1
	}

	if c.actions[ActionMoveLeft] {
		c.velocity[0] = -1
	} else if c.actions[ActionMoveRight] {
		c.velocity[0] = 1
	}

	if c.actions[ActionMoveUp] {
		c.velocity[1] = 1
	} else if c.actions[ActionMoveDown] {
		c.velocity[1] = -1
	}

	if c.actions[ActionRotatePitchCW] {
		c.angularVelocity[0] = 1
	} else if c.actions[ActionRotatePitchCCW] {
		c.angularVelocity[0] = -1
	}

	if c.actions[ActionRotateYawCW] {
		c.angularVelocity[1] = -1
	} else if c.actions[ActionRotateYawCCW] {
		c.angularVelocity[1] = 1
	}
}

// wrapAngle wraps an angle into (-pi, pi].
func wrapAngle(angle float32) float32 {
	for angle > math32.Pi {
		angle -= 2 * math32.Pi
	}
	for angle <= -math32.Pi {
		angle += 2 * math32.Pi
	}
	return angle
}
