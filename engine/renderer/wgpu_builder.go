package renderer

// wgpuConfig collects pre-creation options for the WebGPU backend.
type wgpuConfig struct {
	forceFallbackAdapter bool
}

// WGPUBuilderOption is a functional option applied by NewWGPURenderer.
type WGPUBuilderOption func(*wgpuConfig)

// WithForceFallbackAdapter requests the software fallback adapter instead of
// a hardware GPU. Useful on headless machines.
//
// Parameters:
//   - force: true to force the fallback adapter
//
// Returns:
//   - WGPUBuilderOption: the option function
func WithForceFallbackAdapter(force bool) WGPUBuilderOption {
	return func(c *wgpuConfig) {
		c.forceFallbackAdapter = force
	}
}
