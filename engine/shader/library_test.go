package shader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testComputeSource = `
@group(0) @binding(0) var<storage, read_write> out: array<u32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    if (gid.x < GROUP_SIZE) {
        out[gid.x] = TILE_X_DIM;
    }
}
`

func TestCompileInjectsMacros(t *testing.T) {
	lib := NewLibrary()

	m, err := lib.Compile("test", testComputeSource, "main", []Macro{
		{Name: "TILE_X_DIM", Value: 32},
		{Name: "GROUP_SIZE", Value: 64},
	})
	require.NoError(t, err)

	assert.Contains(t, m.Source, "const TILE_X_DIM: u32 = 32u;")
	assert.Contains(t, m.Source, "const GROUP_SIZE: u32 = 64u;")
	assert.NotContains(t, m.Source, "DEBUG")
	assert.Equal(t, "main", m.EntryPoint)
}

func TestCompileDebugConstant(t *testing.T) {
	lib := NewLibrary(WithDebug(true))

	m, err := lib.Compile("test", testComputeSource, "main", []Macro{
		{Name: "TILE_X_DIM", Value: 32},
		{Name: "GROUP_SIZE", Value: 64},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(m.Source, "const DEBUG: u32 = 1u;"))
}

func TestCompileCachesByNameAndMacros(t *testing.T) {
	lib := NewLibrary()
	macros := []Macro{
		{Name: "TILE_X_DIM", Value: 32},
		{Name: "GROUP_SIZE", Value: 64},
	}

	first, err := lib.Compile("test", testComputeSource, "main", macros)
	require.NoError(t, err)

	// Same name and macros in a different order: cache hit.
	again, err := lib.Compile("test", testComputeSource, "main", []Macro{macros[1], macros[0]})
	require.NoError(t, err)
	assert.Equal(t, first, again)

	// Different macro value: distinct module.
	other, err := lib.Compile("test", testComputeSource, "main", []Macro{
		{Name: "TILE_X_DIM", Value: 16},
		{Name: "GROUP_SIZE", Value: 64},
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.Source, other.Source)
}

func TestCompileErrorCarriesDiagnostics(t *testing.T) {
	lib := NewLibrary()

	_, err := lib.Compile("broken", "fn main( {", "main", nil)
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "broken", ce.Name)
	assert.NotEmpty(t, ce.Log)
}
