// Package raster provides the raster format drivers.
package raster

import (
	"fmt"

	"github.com/reliefmap/demgrid/internal/domain"
	"github.com/reliefmap/demgrid/internal/ports/output"
)

// ForFormat resolves the driver for a raster format. This is the single
// dispatch point over the closed format set; an unhandled format here is an
// unsupported-format error, never a silent fallback.
func ForFormat(format domain.RasterFormat) (output.RasterDriver, error) {
	switch format {
	case domain.FormatGeoTIFF:
		return &GeoTIFFDriver{}, nil
	case domain.FormatHGT:
		return &HGTDriver{}, nil
	default:
		return nil, fmt.Errorf("format %q: %w", format, domain.ErrUnsupportedFormat)
	}
}
