// Package domain contains the core business entities and value objects.
package domain

import "fmt"

// BoundingBox is an axis-aligned rectangle in longitude/latitude degrees.
// X spans longitude, Y spans latitude. Invariant: XMin <= XMax, YMin <= YMax.
type BoundingBox struct {
	XMin float64 `json:"xMin"`
	XMax float64 `json:"xMax"`
	YMin float64 `json:"yMin"`
	YMax float64 `json:"yMax"`
}

// NewBoundingBox creates a bounding box, swapping bounds where necessary so
// the min/max invariant holds.
func NewBoundingBox(xMin, xMax, yMin, yMax float64) BoundingBox {
	if xMin > xMax {
		xMin, xMax = xMax, xMin
	}
	if yMin > yMax {
		yMin, yMax = yMax, yMin
	}
	return BoundingBox{XMin: xMin, XMax: xMax, YMin: yMin, YMax: yMax}
}

// Intersects reports whether the two boxes overlap. Bounds are inclusive on
// all sides, so boxes that merely touch still intersect. Symmetric in its
// arguments.
func (b BoundingBox) Intersects(o BoundingBox) bool {
	return b.XMax >= o.XMin && b.XMin <= o.XMax &&
		b.YMax >= o.YMin && b.YMin <= o.YMax
}

// Contains reports whether the point (lat, lon) lies inside the box,
// boundary included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return b.XMin <= lon && lon <= b.XMax &&
		b.YMin <= lat && lat <= b.YMax
}

// Width returns the longitudinal extent in degrees.
func (b BoundingBox) Width() float64 {
	return b.XMax - b.XMin
}

// Height returns the latitudinal extent in degrees.
func (b BoundingBox) Height() float64 {
	return b.YMax - b.YMin
}

// IsZero returns true if the box is unset.
func (b BoundingBox) IsZero() bool {
	return b.XMin == 0 && b.XMax == 0 && b.YMin == 0 && b.YMax == 0
}

// Validate checks the min/max invariant and WGS84 bounds.
func (b BoundingBox) Validate() error {
	if b.XMin > b.XMax {
		return &ValidationError{
			Field:      "xMin",
			Value:      b.XMin,
			Constraint: "xMin <= xMax",
			Message:    "inverted longitude bounds",
		}
	}
	if b.YMin > b.YMax {
		return &ValidationError{
			Field:      "yMin",
			Value:      b.YMin,
			Constraint: "yMin <= yMax",
			Message:    "inverted latitude bounds",
		}
	}
	if b.XMin < -180 || b.XMax > 180 {
		return &ValidationError{
			Field:      "x",
			Value:      b.XMin,
			Constraint: "[-180, 180]",
			Message:    "longitude out of range",
		}
	}
	if b.YMin < -90 || b.YMax > 90 {
		return &ValidationError{
			Field:      "y",
			Value:      b.YMin,
			Constraint: "[-90, 90]",
			Message:    "latitude out of range",
		}
	}
	return nil
}

// String returns a compact representation of the box.
func (b BoundingBox) String() string {
	return fmt.Sprintf("BBOX(%f %f, %f %f)", b.XMin, b.YMin, b.XMax, b.YMax)
}
