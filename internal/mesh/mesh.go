// Package mesh holds the vertex layout and the load-time deduplication of
// triangle soups into an indexed mesh.
package mesh

import (
	"unsafe"

	"github.com/vkngwrapper/core/v3/core1_0"
	vkngmath "github.com/vkngwrapper/math"
)

// Vertex is the per-vertex input of the graphics pipeline. Two vertices are
// the same vertex iff every field compares equal, so Vertex is used directly
// as a map key.
type Vertex struct {
	Position vkngmath.Vec3[float32]
	Color    vkngmath.Vec3[float32]
	TexCoord vkngmath.Vec2[float32]
}

// Key is the vertex as a flat tuple of its eight components.
func (v Vertex) Key() [8]float32 {
	return [8]float32{
		v.Position.X, v.Position.Y, v.Position.Z,
		v.Color.X, v.Color.Y, v.Color.Z,
		v.TexCoord.X, v.TexCoord.Y,
	}
}

// Corner is one corner of an input triangle as supplied by the mesh loader.
type Corner struct {
	Position vkngmath.Vec3[float32]
	TexCoord vkngmath.Vec2[float32]
}

// White is the colour assigned to every loaded vertex.
var White = vkngmath.Vec3[float32]{X: 1, Y: 1, Z: 1}

// Mesh is an immutable indexed triangle list.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// Build deduplicates a flat corner list (three corners per triangle) into an
// indexed mesh. Unique vertices keep the order in which they were first seen.
func Build(corners []Corner) Mesh {
	uniqueVertices := make(map[Vertex]uint32, len(corners))
	m := Mesh{
		Indices: make([]uint32, 0, len(corners)),
	}

	for _, corner := range corners {
		vert := Vertex{
			Position: corner.Position,
			Color:    White,
			TexCoord: corner.TexCoord,
		}

		index, exists := uniqueVertices[vert]
		if !exists {
			index = uint32(len(m.Vertices))
			m.Vertices = append(m.Vertices, vert)
			uniqueVertices[vert] = index
		}

		m.Indices = append(m.Indices, index)
	}

	return m
}

// Triangles expands the index list back into one vertex per corner.
func (m Mesh) Triangles() []Vertex {
	out := make([]Vertex, len(m.Indices))
	for i, index := range m.Indices {
		out[i] = m.Vertices[index]
	}
	return out
}

func (m Mesh) IndexCount() int {
	return len(m.Indices)
}

func VertexBindingDescriptions() []core1_0.VertexInputBindingDescription {
	v := Vertex{}
	return []core1_0.VertexInputBindingDescription{
		{
			Binding:   0,
			Stride:    int(unsafe.Sizeof(v)),
			InputRate: core1_0.VertexInputRateVertex,
		},
	}
}

func VertexAttributeDescriptions() []core1_0.VertexInputAttributeDescription {
	v := Vertex{}
	return []core1_0.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Position)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Color)),
		},
		{
			Binding:  0,
			Location: 2,
			Format:   core1_0.FormatR32G32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.TexCoord)),
		},
	}
}
