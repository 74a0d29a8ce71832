package light

import "runtime"

// RegistryBuilderOption is a functional option applied by NewRegistry.
type RegistryBuilderOption func(*Registry)

// WithCullWorkers sets the number of worker goroutines used by the parallel
// frustum cull. Values below 1 fall back to the default.
//
// Parameters:
//   - workers: the worker count
//
// Returns:
//   - RegistryBuilderOption: the option function
func WithCullWorkers(workers int) RegistryBuilderOption {
	return func(r *Registry) {
		if workers >= 1 {
			r.cullWorkers = workers
		}
	}
}

// defaultCullWorkers leaves one CPU for the render loop itself.
func defaultCullWorkers() int {
	return max(runtime.NumCPU()-1, 1)
}
