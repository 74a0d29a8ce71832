package shader

// LibraryBuilderOption is a functional option applied by NewLibrary.
type LibraryBuilderOption func(*Library)

// WithDebug controls whether the library injects the DEBUG constant into
// every compiled shader.
//
// Parameters:
//   - debug: true to inject DEBUG = 1
//
// Returns:
//   - LibraryBuilderOption: the option function
func WithDebug(debug bool) LibraryBuilderOption {
	return func(l *Library) {
		l.debug = debug
	}
}
