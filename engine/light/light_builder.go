package light

import "github.com/go-gl/mathgl/mgl32"

// BuilderOption is a functional option applied by NewLight during construction.
type BuilderOption func(*Light)

// WithTransform sets the world transform of the light.
//
// Parameters:
//   - transform: the 4x4 affine world transform
//
// Returns:
//   - BuilderOption: the option function
func WithTransform(transform mgl32.Mat4) BuilderOption {
	return func(l *Light) {
		l.transform = transform
	}
}

// WithPosition sets the world transform to a pure translation.
//
// Parameters:
//   - x, y, z: the light position
//
// Returns:
//   - BuilderOption: the option function
func WithPosition(x, y, z float32) BuilderOption {
	return func(l *Light) {
		l.transform = mgl32.Translate3D(x, y, z)
	}
}

// WithRange sets the maximum attenuation distance.
//
// Parameters:
//   - lightRange: the range in world units (must be positive)
//
// Returns:
//   - BuilderOption: the option function
func WithRange(lightRange float32) BuilderOption {
	return func(l *Light) {
		l.lightRange = lightRange
	}
}

// WithCone sets the spot cone half-angles in radians.
//
// Parameters:
//   - inner: inner half-angle (full intensity inside)
//   - outer: outer half-angle (zero spot falloff outside)
//
// Returns:
//   - BuilderOption: the option function
func WithCone(inner, outer float32) BuilderOption {
	return func(l *Light) {
		l.innerAngle = inner
		l.outerAngle = outer
	}
}

// WithDiffuse sets the diffuse RGB color.
//
// Parameters:
//   - r, g, b: color components in [0, 10]
//
// Returns:
//   - BuilderOption: the option function
func WithDiffuse(r, g, b float32) BuilderOption {
	return func(l *Light) {
		l.diffuse = [3]float32{r, g, b}
	}
}

// WithAmbient sets the ambient RGB color.
//
// Parameters:
//   - r, g, b: color components in [0, 10]
//
// Returns:
//   - BuilderOption: the option function
func WithAmbient(r, g, b float32) BuilderOption {
	return func(l *Light) {
		l.ambient = [3]float32{r, g, b}
	}
}

// WithLinearAttenuation sets the linear attenuation coefficient.
//
// Parameters:
//   - attenuation: non-negative coefficient
//
// Returns:
//   - BuilderOption: the option function
func WithLinearAttenuation(attenuation float32) BuilderOption {
	return func(l *Light) {
		l.linearAttenuation = attenuation
	}
}
