package domain

import "math"

// Vec3 is a 3-component vector used for mesh positions and normals.
type Vec3 [3]float64

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

// Cross returns the cross product v x o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

// Length returns the Euclidean norm.
func (v Vec3) Length() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Normalized returns the unit vector in the direction of v. The zero vector
// is returned unchanged so degenerate accumulators stay zero.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return Vec3{v[0] / l, v[1] / l, v[2] / l}
}

// Color is an RGBA vertex color with components in [0, 1].
type Color [4]float64

// Mesh is an indexed triangle mesh handed to an external exporter. Positions
// keep the row-major ordering of the source heightmap; Normals and Colors
// run parallel to Positions. Ownership transfers to the caller.
type Mesh struct {
	Positions []Vec3
	Indices   []uint32
	Normals   []Vec3
	Colors    []Color
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}
