// Package camera holds the render-side camera state and the UI-side input
// integrator. The UI thread integrates input into camera transform updates;
// the render thread applies them to its local state and derives the view and
// culling matrices.
package camera

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/tiledforward/forwardplus/common"
)

// Fixed projection parameters of the demo camera.
const (
	// FovYDegrees is the vertical field of view.
	FovYDegrees = 70.0

	// ZNear and ZFar bound the camera depth range.
	ZNear = 0.1
	ZFar  = 1000.0
)

// Camera basis vectors before rotation.
var (
	defaultForward = mgl32.Vec3{0, 0, 1}
	defaultRight   = mgl32.Vec3{1, 0, 0}
	defaultUp      = mgl32.Vec3{0, 1, 0}
)

// TransformUpdate is the camera delta carried through the render event queue:
// an absolute position and pitch/yaw pair.
type TransformUpdate struct {
	Position [3]float32
	Rotation [2]float32 // pitch, yaw in radians
}

// State is the render thread's camera: position, pitch/yaw rotation, and the
// derived forward vector and view matrix.
type State struct {
	position mgl32.Vec3
	rotation [2]float32
	forward  mgl32.Vec3
	view     [16]float32
}

// NewState creates a camera at the demo's starting pose.
//
// Returns:
//   - *State: the camera state
func NewState() *State {
	s := &State{}
	s.ApplyTransform(TransformUpdate{Position: [3]float32{0, 0, 1}})
	return s
}

// ApplyTransform replaces the camera pose and rebuilds the derived state.
//
// Parameters:
//   - u: the new absolute position and rotation
func (s *State) ApplyTransform(u TransformUpdate) {
	s.position = mgl32.Vec3{u.Position[0], u.Position[1], u.Position[2]}
	s.rotation = u.Rotation

	rot := rotationMatrix(u.Rotation[0], u.Rotation[1])
	s.forward = rot.Mul4x1(defaultForward.Vec4(0)).Vec3()
	up := rot.Mul4x1(defaultUp.Vec4(0)).Vec3()

	target := s.position.Add(s.forward)
	common.LookAt(s.view[:],
		s.position.X(), s.position.Y(), s.position.Z(),
		target.X(), target.Y(), target.Z(),
		up.X(), up.Y(), up.Z(),
	)
}

// Position returns the world-space camera position.
//
// Returns:
//   - mgl32.Vec3: the position
func (s *State) Position() mgl32.Vec3 { return s.position }

// Rotation returns the pitch and yaw in radians.
//
// Returns:
//   - [2]float32: pitch, yaw
func (s *State) Rotation() [2]float32 { return s.rotation }

// Forward returns the unit front vector.
//
// Returns:
//   - mgl32.Vec3: the front vector
func (s *State) Forward() mgl32.Vec3 { return s.forward }

// View returns the view matrix, column-major.
//
// Returns:
//   - [16]float32: the view matrix
func (s *State) View() [16]float32 { return s.view }

// ViewProjection combines the view with the given projection.
//
// Parameters:
//   - projection: the projection matrix, column-major
//
// Returns:
//   - [16]float32: projection * view
func (s *State) ViewProjection(projection [16]float32) [16]float32 {
	var vp [16]float32
	common.Mul4(vp[:], projection[:], s.view[:])
	return vp
}

// Frustum extracts the world-space camera frustum for the given projection.
//
// Parameters:
//   - projection: the projection matrix, column-major
//
// Returns:
//   - common.Frustum: the six-plane frustum
func (s *State) Frustum(projection [16]float32) common.Frustum {
	vp := s.ViewProjection(projection)
	return common.ExtractFrustumFromMatrix(vp[:])
}

// Projection builds the demo projection matrix for a surface size: 70 degree
// vertical FOV, near 0.1, far 1000.
//
// Parameters:
//   - width, height: the surface size in pixels
//
// Returns:
//   - [16]float32: the projection matrix, column-major
func Projection(width, height int) [16]float32 {
	var out [16]float32
	common.Perspective(out[:], mgl32.DegToRad(FovYDegrees), float32(width)/float32(height), ZNear, ZFar)
	return out
}

// rotationMatrix builds the pitch/yaw rotation: yaw about Y applied after
// pitch about X, roll fixed at zero.
func rotationMatrix(pitch, yaw float32) mgl32.Mat4 {
	return mgl32.HomogRotate3DY(yaw).Mul4(mgl32.HomogRotate3DX(pitch))
}
