package domain

import (
	"fmt"
	"math"
)

// Geocode derives the one-degree tile code for a point, e.g. "N47E008" for
// 47.3N 8.5E. The code is computed at most once; computed tracks whether
// code holds a value.
type Geocode struct {
	lat, lon float64
	code     string
	computed bool
}

// NewGeocode creates a geocode for the given point.
func NewGeocode(lat, lon float64) *Geocode {
	return &Geocode{lat: lat, lon: lon}
}

// Code returns the tile code, computing it on first use.
func (g *Geocode) Code() string {
	if !g.computed {
		g.code = TileCode(g.lat, g.lon)
		g.computed = true
	}
	return g.code
}

// TileCode returns the one-degree tile code covering (lat, lon). Tiles are
// named after their south-west corner, SRTM style.
func TileCode(lat, lon float64) string {
	latDeg := int(math.Floor(lat))
	lonDeg := int(math.Floor(lon))

	ns := "N"
	if latDeg < 0 {
		ns = "S"
		latDeg = -latDeg
	}
	ew := "E"
	if lonDeg < 0 {
		ew = "W"
		lonDeg = -lonDeg
	}
	return fmt.Sprintf("%s%02d%s%03d", ns, latDeg, ew, lonDeg)
}
