package domain

// Point is one elevation sample of a heightmap: a planar position in
// lon/lat degrees with an elevation in meters.
type Point struct {
	ID        int64
	X         float64 // Longitude
	Y         float64 // Latitude
	Elevation float64 // Meters above sea level
}

// HeightMap is a Width x Height grid of elevation points in row-major order:
// rows are the outer index (y), columns the inner index (x). Produced by a
// raster driver, consumed once by mesh triangulation, never mutated.
type HeightMap struct {
	Width  int
	Height int
	Points []Point
}

// IsEmpty returns true if the grid holds no points.
func (h *HeightMap) IsEmpty() bool {
	return h == nil || h.Width == 0 || h.Height == 0 || len(h.Points) == 0
}

// At returns the point at grid cell (x, y). It panics if the cell is out of
// bounds, matching slice indexing semantics.
func (h *HeightMap) At(x, y int) Point {
	return h.Points[y*h.Width+x]
}

// IDSequence allocates point identifiers. Each batch owns its own sequence,
// so identifier assignment stays deterministic across parallel runs. Not
// safe for concurrent use; hand each worker its own sequence.
type IDSequence struct {
	next int64
}

// NewIDSequence creates a sequence starting at start.
func NewIDSequence(start int64) *IDSequence {
	return &IDSequence{next: start}
}

// Next returns the next identifier.
func (s *IDSequence) Next() int64 {
	id := s.next
	s.next++
	return id
}
