// Package shader compiles and caches the renderer's WGSL shaders. Sources are
// specialized with an injected constant block (the macro set), validated with
// the naga compiler front end at startup, and cached by name and macro set.
// Shaders are compiled once; there is no runtime reload.
package shader

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gogpu/naga"
)

// Macro is a named integer constant injected into a shader source before
// compilation, the WGSL analogue of a preprocessor define.
type Macro struct {
	Name  string
	Value uint32
}

// Module is a validated shader source ready to hand to the GPU backend.
type Module struct {
	// Name identifies the shader for diagnostics and pipeline keys.
	Name string

	// Source is the full specialized WGSL source, macro block included.
	Source string

	// EntryPoint is the entry function name within Source.
	EntryPoint string
}

// CompileError carries the compiler's diagnostic log for a failed shader.
type CompileError struct {
	// Name is the shader that failed.
	Name string

	// Log is the compiler diagnostic output.
	Log string
}

// Error implements the error interface.
//
// Returns:
//   - string: the shader name and diagnostic log
func (e *CompileError) Error() string {
	return fmt.Sprintf("shader %q failed to compile: %s", e.Name, e.Log)
}

// Library validates and caches shader modules.
type Library struct {
	mu    sync.Mutex
	cache map[string]Module
	debug bool
}

// NewLibrary creates an empty shader library with any provided options
// applied.
//
// Parameters:
//   - opts: variadic list of LibraryBuilderOption functions
//
// Returns:
//   - *Library: the new library
func NewLibrary(opts ...LibraryBuilderOption) *Library {
	l := &Library{
		cache: make(map[string]Module),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Compile specializes source with the macro constant block, validates the
// result, and caches it. A second call with the same name and macro set
// returns the cached module without re-validating.
//
// Parameters:
//   - name: the shader name, used for diagnostics and cache keys
//   - source: the raw WGSL source
//   - entryPoint: the entry function name
//   - macros: integer constants to inject ahead of the source
//
// Returns:
//   - Module: the validated module
//   - error: a *CompileError carrying the compiler log on failure
func (l *Library) Compile(name, source, entryPoint string, macros []Macro) (Module, error) {
	key := cacheKey(name, macros)

	l.mu.Lock()
	if m, ok := l.cache[key]; ok {
		l.mu.Unlock()
		return m, nil
	}
	l.mu.Unlock()

	specialized := l.specialize(source, macros)

	if err := validate(specialized); err != nil {
		return Module{}, &CompileError{Name: name, Log: err.Error()}
	}

	m := Module{
		Name:       name,
		Source:     specialized,
		EntryPoint: entryPoint,
	}

	l.mu.Lock()
	l.cache[key] = m
	l.mu.Unlock()

	return m, nil
}

// specialize prepends the macro constant block (and the DEBUG constant when
// the library was built in debug mode) to the shader source.
func (l *Library) specialize(source string, macros []Macro) string {
	var sb strings.Builder
	if l.debug {
		sb.WriteString("const DEBUG: u32 = 1u;\n")
	}
	for _, m := range macros {
		fmt.Fprintf(&sb, "const %s: u32 = %du;\n", m.Name, m.Value)
	}
	sb.WriteString(source)
	return sb.String()
}

// validate runs the naga front end over the specialized source: parse, lower
// to IR, and IR validation. Code generation is left to the GPU driver.
func validate(source string) error {
	ast, err := naga.Parse(source)
	if err != nil {
		return err
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return err
	}
	validationErrors, err := naga.Validate(module)
	if err != nil {
		return err
	}
	if len(validationErrors) > 0 {
		return &validationErrors[0]
	}
	return nil
}

// cacheKey builds a deterministic key from the shader name and macro set.
// Macros are sorted so the caller's ordering does not split the cache.
func cacheKey(name string, macros []Macro) string {
	sorted := make([]Macro, len(macros))
	copy(sorted, macros)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].Name < sorted[b].Name })

	var sb strings.Builder
	sb.WriteString(name)
	for _, m := range sorted {
		fmt.Fprintf(&sb, "|%s=%d", m.Name, m.Value)
	}
	return sb.String()
}
