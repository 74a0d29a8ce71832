package engine

import "math/rand"

// RenderSystemBuilderOption is a functional option applied by NewRenderSystem.
type RenderSystemBuilderOption func(*RenderSystem)

// WithLogger sets the logger the render system reports through.
//
// Parameters:
//   - log: the logger (nil keeps the no-op default)
//
// Returns:
//   - RenderSystemBuilderOption: the option function
func WithLogger(log Logger) RenderSystemBuilderOption {
	return func(rs *RenderSystem) {
		if log != nil {
			rs.log = log
		}
	}
}

// WithSeed sets the seed of the demo light generator. The seed is plumbed
// explicitly; there is no implicit global randomness.
//
// Parameters:
//   - seed: the RNG seed
//
// Returns:
//   - RenderSystemBuilderOption: the option function
func WithSeed(seed int64) RenderSystemBuilderOption {
	return func(rs *RenderSystem) {
		rs.rng = rand.New(rand.NewSource(seed))
	}
}

// WithProfiling enables the per-second frame statistics log from the start.
//
// Parameters:
//   - enabled: true to report statistics
//
// Returns:
//   - RenderSystemBuilderOption: the option function
func WithProfiling(enabled bool) RenderSystemBuilderOption {
	return func(rs *RenderSystem) {
		rs.profiling = enabled
	}
}
