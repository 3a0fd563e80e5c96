package domain

import "fmt"

// RasterFormat identifies a supported DEM raster file format. The set is
// closed: format dispatch happens through a single switch so an unhandled
// format is caught at compile time rather than by string comparison.
type RasterFormat int

// Supported raster formats.
const (
	FormatUnknown RasterFormat = iota
	FormatGeoTIFF              // tagged-image elevation format (.tif)
	FormatHGT                  // compact elevation grid (.hgt, SRTM style)
)

// String returns the format tag used in configuration and manifests.
func (f RasterFormat) String() string {
	switch f {
	case FormatGeoTIFF:
		return "geotiff"
	case FormatHGT:
		return "hgt"
	default:
		return "unknown"
	}
}

// ParseRasterFormat parses a format tag. An unrecognized tag is a fatal
// configuration error.
func ParseRasterFormat(tag string) (RasterFormat, error) {
	switch tag {
	case "geotiff":
		return FormatGeoTIFF, nil
	case "hgt":
		return FormatHGT, nil
	default:
		return FormatUnknown, fmt.Errorf("format %q: %w", tag, ErrUnsupportedFormat)
	}
}

// MarshalText implements encoding.TextMarshaler so the format round-trips
// through JSON manifests and YAML dataset definitions.
func (f RasterFormat) MarshalText() ([]byte, error) {
	if f == FormatUnknown {
		return nil, fmt.Errorf("format %d: %w", int(f), ErrUnsupportedFormat)
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *RasterFormat) UnmarshalText(text []byte) error {
	parsed, err := ParseRasterFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Dataset is the immutable identity of a DEM source collection. It is
// created at configuration time and read-only afterward.
type Dataset struct {
	Name       string       // Directory name under the catalog root
	Format     RasterFormat // Raster file format
	Extension  string       // Raster file extension, including the dot
	Resolution float64      // Nominal resolution in arc seconds
}

// Validate checks the dataset definition.
func (d Dataset) Validate() error {
	if d.Name == "" {
		return &ValidationError{
			Field:      "name",
			Value:      d.Name,
			Constraint: "non-empty",
			Message:    "dataset name is required",
		}
	}
	if d.Format == FormatUnknown {
		return fmt.Errorf("dataset %s: %w", d.Name, ErrUnsupportedFormat)
	}
	if d.Extension == "" || d.Extension[0] != '.' {
		return &ValidationError{
			Field:      "extension",
			Value:      d.Extension,
			Constraint: "leading dot",
			Message:    "file extension must start with a dot",
		}
	}
	return nil
}
