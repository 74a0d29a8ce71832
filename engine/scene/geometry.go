// Package scene owns the demo geometry and the lit draw pass: the static
// vertex buffer, the per-object instance table with model matrices and
// materials, the per-object frustum cull, and the draw dispatch that consumes
// the light-culling acceptance structures.
package scene

import (
	"unsafe"
)

// ObjectType identifies one of the demo's object meshes.
type ObjectType int

const (
	// ObjectCube is a unit cube.
	ObjectCube ObjectType = iota

	// ObjectPyramid is a unit-base pyramid.
	ObjectPyramid

	// ObjectPlane is a subdivided unit plane.
	ObjectPlane

	objectTypeCount
)

// planeResolution is the per-axis quad count of the ground plane mesh.
const planeResolution = 32

// Vertex is one mesh vertex: position and normal, both vec4.
type Vertex struct {
	Position [4]float32
	Normal   [4]float32
}

// vertexSize is the byte stride of a Vertex.
var vertexSize = uint64(unsafe.Sizeof(Vertex{}))

// ObjectInfo locates one object type's vertices within the shared buffer.
type ObjectInfo struct {
	VertexOffset uint32
	VertexCount  uint32
}

// Coordinates are X,Z horizontal and Y vertical.
var cubePositions = [8][3]float32{
	{0.5, -0.5, 0.5},
	{-0.5, -0.5, 0.5},
	{-0.5, -0.5, -0.5},
	{0.5, -0.5, -0.5},
	{0.5, 0.5, 0.5},
	{-0.5, 0.5, 0.5},
	{-0.5, 0.5, -0.5},
	{0.5, 0.5, -0.5},
}

var cubeNormals = [6][3]float32{
	{0, -1, 0},
	{1, 0, 0},
	{0, 0, 1},
	{-1, 0, 0},
	{0, 0, -1},
	{0, 1, 0},
}

var pyramidPositions = [5][3]float32{
	{0.5, -0.5, 0.5},
	{-0.5, -0.5, 0.5},
	{-0.5, -0.5, -0.5},
	{0.5, -0.5, -0.5},
	{0, 0.5, 0},
}

var pyramidNormals = [5][3]float32{
	{0, -1, 0},
	{0.5, 0.5, 0},
	{0, 0.5, 0.5},
	{-0.5, 0.5, 0},
	{0, 0.5, -0.5},
}

func vertexAt(pos [3]float32, normal [3]float32) Vertex {
	return Vertex{
		Position: [4]float32{pos[0], pos[1], pos[2], 1},
		Normal:   [4]float32{normal[0], normal[1], normal[2], 0},
	}
}

// generateGeometry builds the shared vertex list for all object types and the
// per-type offset table.
func generateGeometry() ([]Vertex, [objectTypeCount]ObjectInfo) {
	var vertices []Vertex
	var info [objectTypeCount]ObjectInfo

	info[ObjectCube] = generateCube(&vertices)
	info[ObjectPyramid] = generatePyramid(&vertices)
	info[ObjectPlane] = generatePlane(&vertices)

	return vertices, info
}

func generateCube(vertices *[]Vertex) ObjectInfo {
	offset := uint32(len(*vertices))

	quad := func(corners [4]int, normal [3]float32) {
		var face [4]Vertex
		for i, c := range corners {
			face[i] = vertexAt(cubePositions[c], normal)
		}
		*vertices = append(*vertices, face[0], face[1], face[2], face[0], face[2], face[3])
	}

	quad([4]int{0, 1, 2, 3}, cubeNormals[0]) // bottom
	quad([4]int{7, 4, 0, 3}, cubeNormals[1]) // right
	quad([4]int{4, 5, 1, 0}, cubeNormals[2]) // back
	quad([4]int{5, 6, 2, 1}, cubeNormals[3]) // left
	quad([4]int{6, 7, 3, 2}, cubeNormals[4]) // front
	quad([4]int{5, 4, 7, 6}, cubeNormals[5]) // top

	return ObjectInfo{VertexOffset: offset, VertexCount: uint32(len(*vertices)) - offset}
}

func generatePyramid(vertices *[]Vertex) ObjectInfo {
	offset := uint32(len(*vertices))

	// Base quad.
	var base [4]Vertex
	for i := 0; i < 4; i++ {
		base[i] = vertexAt(pyramidPositions[i], pyramidNormals[0])
	}
	*vertices = append(*vertices, base[0], base[1], base[2], base[0], base[2], base[3])

	side := func(corners [3]int, normal [3]float32) {
		for _, c := range corners {
			*vertices = append(*vertices, vertexAt(pyramidPositions[c], normal))
		}
	}
	side([3]int{0, 3, 4}, pyramidNormals[1]) // right
	side([3]int{1, 0, 4}, pyramidNormals[2]) // back
	side([3]int{2, 1, 4}, pyramidNormals[3]) // left
	side([3]int{3, 2, 4}, pyramidNormals[4]) // front

	return ObjectInfo{VertexOffset: offset, VertexCount: uint32(len(*vertices)) - offset}
}

func generatePlane(vertices *[]Vertex) ObjectInfo {
	offset := uint32(len(*vertices))

	const step = 1.0 / float32(planeResolution)
	normal := [3]float32{0, 1, 0}

	zOffset := float32(0.5)
	for z := 0; z < planeResolution; z++ {
		xOffset := float32(-0.5)
		for x := 0; x < planeResolution; x++ {
			topLeft := [3]float32{xOffset, 0, zOffset}
			topRight := [3]float32{xOffset + step, 0, zOffset}
			bottomLeft := [3]float32{xOffset, 0, zOffset - step}
			bottomRight := [3]float32{xOffset + step, 0, zOffset - step}

			*vertices = append(*vertices,
				vertexAt(topLeft, normal), vertexAt(topRight, normal), vertexAt(bottomLeft, normal),
				vertexAt(topRight, normal), vertexAt(bottomRight, normal), vertexAt(bottomLeft, normal),
			)

			xOffset += step
		}
		zOffset -= step
	}

	return ObjectInfo{VertexOffset: offset, VertexCount: uint32(len(*vertices)) - offset}
}
