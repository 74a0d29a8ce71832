// Package light holds the CPU-side light registry for the tiled forward
// renderer: the authoritative light list, per-light bounding volumes, and the
// per-frame visible-set build (frustum cull, view-Z ranges, kind partition,
// depth sort) that feeds the GPU culling pipeline.
package light

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Kind identifies the kind of light source.
type Kind uint32

const (
	// KindPoint represents a light that emits in all directions from a position.
	// Attenuates with distance up to a configurable range.
	KindPoint Kind = iota

	// KindSpot represents a light that emits in a cone from a position along a
	// direction. The cone is bounded by inner and outer half-angles.
	KindSpot

	// KindDirectional is reserved for the global light. Directional lights are
	// not culled per-tile; the shading pass treats the global light as always on.
	KindDirectional

	// KindCount is the number of light kinds, including reserved ones.
	KindCount
)

// Light is a single light source. Lights are plain tagged values rather than
// an interface so the per-frame sort and encode loops stay free of dynamic
// dispatch.
//
// The world transform is a 4x4 affine matrix: column 3 is the light position
// and negative column 2 is the spot axis. The bounding sphere and the spot
// cone model matrix are derived state, refreshed whenever a geometric
// attribute changes.
type Light struct {
	kind      Kind
	transform mgl32.Mat4

	lightRange float32
	outerAngle float32 // radians, spot only; 0 < inner < outer < pi/2
	innerAngle float32

	diffuse           [3]float32
	ambient           [3]float32
	linearAttenuation float32

	boundingCenter [3]float32
	boundingRadius float32
	coneModel      mgl32.Mat4
}

// NewLight creates a light of the given kind with defaults and any provided
// options applied. Derived state (bounding sphere, cone model matrix) is
// computed before returning.
//
// Parameters:
//   - kind: the kind of light to create
//   - opts: variadic list of BuilderOption functions to configure the light
//
// Returns:
//   - Light: the configured light
func NewLight(kind Kind, opts ...BuilderOption) Light {
	l := Light{
		kind:       kind,
		transform:  mgl32.Ident4(),
		lightRange: 10.0,
		outerAngle: math32.Pi / 6,
		innerAngle: math32.Pi / 24,
		diffuse:    [3]float32{1, 1, 1},
	}
	for _, opt := range opts {
		opt(&l)
	}
	l.updateBounds()
	return l
}

// Kind returns the kind of the light.
//
// Returns:
//   - Kind: the light kind
func (l *Light) Kind() Kind { return l.kind }

// Transform returns the world transform of the light.
//
// Returns:
//   - mgl32.Mat4: the 4x4 affine world transform
func (l *Light) Transform() mgl32.Mat4 { return l.transform }

// Position returns the world-space position of the light (column 3 of the
// world transform).
//
// Returns:
//   - mgl32.Vec3: the position
func (l *Light) Position() mgl32.Vec3 {
	return l.transform.Col(3).Vec3()
}

// Direction returns the spot axis: the negative Z basis vector of the world
// transform. Meaningless for point lights.
//
// Returns:
//   - mgl32.Vec3: the axis the cone points along
func (l *Light) Direction() mgl32.Vec3 {
	return l.transform.Col(2).Vec3().Mul(-1)
}

// Range returns the maximum attenuation distance.
//
// Returns:
//   - float32: the range in world units
func (l *Light) Range() float32 { return l.lightRange }

// Angles returns the spot cone half-angles in radians.
//
// Returns:
//   - float32: the inner half-angle
//   - float32: the outer half-angle
func (l *Light) Angles() (inner, outer float32) { return l.innerAngle, l.outerAngle }

// Diffuse returns the diffuse RGB color. HDR values up to 10 are permitted.
//
// Returns:
//   - [3]float32: the diffuse color
func (l *Light) Diffuse() [3]float32 { return l.diffuse }

// Ambient returns the ambient RGB color.
//
// Returns:
//   - [3]float32: the ambient color
func (l *Light) Ambient() [3]float32 { return l.ambient }

// LinearAttenuation returns the linear attenuation coefficient.
//
// Returns:
//   - float32: the non-negative attenuation coefficient
func (l *Light) LinearAttenuation() float32 { return l.linearAttenuation }

// BoundingSphere returns the derived world-space bounding sphere: for point
// lights the (position, range) sphere, for spot lights the minimal sphere
// enclosing the five-vertex pyramid hull of the cone.
//
// Returns:
//   - [3]float32: the sphere center
//   - float32: the sphere radius
func (l *Light) BoundingSphere() (center [3]float32, radius float32) {
	return l.boundingCenter, l.boundingRadius
}

// SetTransform replaces the world transform and refreshes derived state.
//
// Parameters:
//   - transform: the new 4x4 affine world transform
func (l *Light) SetTransform(transform mgl32.Mat4) {
	l.transform = transform
	l.updateBounds()
}

// SetRange replaces the attenuation range and refreshes derived state.
//
// Parameters:
//   - lightRange: the new range (must be positive)
func (l *Light) SetRange(lightRange float32) {
	l.lightRange = lightRange
	l.updateBounds()
}

// SetCone replaces the spot cone half-angles and refreshes derived state.
//
// Parameters:
//   - inner: the inner half-angle in radians
//   - outer: the outer half-angle in radians
func (l *Light) SetCone(inner, outer float32) {
	l.innerAngle = inner
	l.outerAngle = outer
	l.updateBounds()
}

// ConeModelMatrix returns the cached spot cone model matrix:
// Scale(range*tan(outer), range*tan(outer), range) composed with the world
// transform. Only meaningful for spot lights.
//
// Returns:
//   - mgl32.Mat4: the cone model matrix
func (l *Light) ConeModelMatrix() mgl32.Mat4 {
	return l.coneModel
}

// ConeVertices returns the five vertices of the pyramid hull that envelops the
// spot cone: the apex followed by the four base corners.
//
// Returns:
//   - [5]mgl32.Vec3: apex and base corners in world space
func (l *Light) ConeVertices() [5]mgl32.Vec3 {
	apex := l.coneModel.Col(3).Vec3()
	xOffset := l.coneModel.Col(0).Vec3()
	yOffset := l.coneModel.Col(1).Vec3()
	baseCenter := apex.Sub(l.coneModel.Col(2).Vec3())

	return [5]mgl32.Vec3{
		apex,
		baseCenter.Add(xOffset).Add(yOffset),
		baseCenter.Sub(xOffset).Add(yOffset),
		baseCenter.Sub(xOffset).Sub(yOffset),
		baseCenter.Add(xOffset).Sub(yOffset),
	}
}

// buildConeModelMatrix derives the cone model matrix from the current
// transform, range and outer angle.
func (l *Light) buildConeModelMatrix() mgl32.Mat4 {
	// The cone is range units tall; the base half-extent is range*tan(outer).
	xyRange := math32.Tan(l.outerAngle) * l.lightRange
	scale := mgl32.Scale3D(xyRange, xyRange, l.lightRange)
	return l.transform.Mul4(scale)
}

// updateBounds refreshes the bounding sphere (and, for spots, the cone model
// matrix). Called from every setter that changes geometry.
func (l *Light) updateBounds() {
	switch l.kind {
	case KindPoint:
		pos := l.Position()
		l.boundingCenter = [3]float32{pos.X(), pos.Y(), pos.Z()}
		l.boundingRadius = l.lightRange
	case KindSpot:
		l.coneModel = l.buildConeModelMatrix()
		verts := l.ConeVertices()
		center, radius := sphereFromPoints(verts[:])
		l.boundingCenter = [3]float32{center.X(), center.Y(), center.Z()}
		l.boundingRadius = radius
	}
}

// sphereFromPoints computes a tight enclosing sphere for a point set using
// Ritter's two-pass algorithm: pick the most distant pair along an axis sweep
// for the initial sphere, then grow it to cover outliers.
func sphereFromPoints(points []mgl32.Vec3) (mgl32.Vec3, float32) {
	if len(points) == 0 {
		return mgl32.Vec3{}, 0
	}

	// Most separated point pair on the x, y, z axes.
	minIdx := [3]int{}
	maxIdx := [3]int{}
	for i, p := range points {
		for axis := 0; axis < 3; axis++ {
			if p[axis] < points[minIdx[axis]][axis] {
				minIdx[axis] = i
			}
			if p[axis] > points[maxIdx[axis]][axis] {
				maxIdx[axis] = i
			}
		}
	}

	bestAxis := 0
	bestDist := float32(-1)
	for axis := 0; axis < 3; axis++ {
		d := points[maxIdx[axis]].Sub(points[minIdx[axis]]).LenSqr()
		if d > bestDist {
			bestDist = d
			bestAxis = axis
		}
	}

	a := points[minIdx[bestAxis]]
	b := points[maxIdx[bestAxis]]
	center := a.Add(b).Mul(0.5)
	radius := b.Sub(a).Len() * 0.5

	// Grow to include any point outside the current sphere.
	for _, p := range points {
		d := p.Sub(center).Len()
		if d > radius {
			newRadius := (radius + d) * 0.5
			center = center.Add(p.Sub(center).Mul((newRadius - radius) / d))
			radius = newRadius
		}
	}
	return center, radius
}
