package raster

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/reliefmap/demgrid/internal/domain"
	"github.com/reliefmap/demgrid/internal/ports/output"
)

// voidSample marks data voids in SRTM tiles.
const voidSample = -32768

// HGTDriver handles the compact elevation grid format (.hgt): a headerless
// square grid of big-endian int16 samples, one-degree tiles named by their
// south-west corner.
type HGTDriver struct{}

// Format implements output.RasterDriver.
func (d *HGTDriver) Format() domain.RasterFormat {
	return domain.FormatHGT
}

// Open implements output.RasterDriver.
func (d *HGTDriver) Open(_ context.Context, path string) (output.RasterHandle, error) {
	f, err := os.Open(path) //#nosec G304 -- path comes from catalog configuration
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, domain.ErrSourceMissing)
		}
		return nil, err
	}
	return &hgtHandle{file: f, path: path}, nil
}

type hgtHandle struct {
	file *os.File
	path string
}

// Metadata parses the tile dimensions from the file size and the bounding
// box from the tile name. The format has no header, so the grid must be
// square: anything else is a parse failure.
func (h *hgtHandle) Metadata(_ context.Context) (*domain.FileMetadata, error) {
	info, err := h.file.Stat()
	if err != nil {
		return nil, &domain.ParseError{Path: h.path, Err: err}
	}

	samples := info.Size() / 2
	dim := int(math.Sqrt(float64(samples)))
	if info.Size()%2 != 0 || int64(dim)*int64(dim) != samples || dim < 2 {
		return nil, &domain.ParseError{
			Path: h.path,
			Err:  fmt.Errorf("size %d is not a square int16 grid", info.Size()),
		}
	}

	bounds, err := tileBounds(h.path)
	if err != nil {
		return nil, &domain.ParseError{Path: h.path, Err: err}
	}

	// Tiles share their edge rows, so dim samples span one degree.
	step := 1.0 / float64(dim-1)

	return &domain.FileMetadata{
		Filename:  h.path,
		Format:    domain.FormatHGT,
		Version:   domain.ManifestVersion,
		Width:     dim,
		Height:    dim,
		PixelSize: domain.PixelSize{X: step, Y: step},
		Bounds:    bounds,
	}, nil
}

// HeightMap reads the full sample grid. Samples are stored north to south;
// the returned grid keeps that row order, so row y maps to latitude
// yMax - y*step. Data voids are read as sea level.
func (h *hgtHandle) HeightMap(_ context.Context, md *domain.FileMetadata, seq *domain.IDSequence) (*domain.HeightMap, error) {
	if _, err := h.file.Seek(0, io.SeekStart); err != nil {
		return nil, &domain.ParseError{Path: h.path, Err: err}
	}

	raw := make([]byte, md.Width*md.Height*2)
	if _, err := io.ReadFull(h.file, raw); err != nil {
		return nil, &domain.ParseError{Path: h.path, Err: err}
	}

	points := make([]domain.Point, 0, md.Width*md.Height)
	for y := 0; y < md.Height; y++ {
		lat := md.Bounds.YMax - float64(y)*md.PixelSize.Y
		for x := 0; x < md.Width; x++ {
			off := (y*md.Width + x) * 2
			sample := int16(binary.BigEndian.Uint16(raw[off : off+2]))
			if sample == voidSample {
				sample = 0
			}
			points = append(points, domain.Point{
				ID:        seq.Next(),
				X:         md.Bounds.XMin + float64(x)*md.PixelSize.X,
				Y:         lat,
				Elevation: float64(sample),
			})
		}
	}

	return &domain.HeightMap{
		Width:  md.Width,
		Height: md.Height,
		Points: points,
	}, nil
}

// Close implements output.RasterHandle.
func (h *hgtHandle) Close() error {
	return h.file.Close()
}

// tileBounds derives the one-degree bounding box from a tile file name such
// as N47E008.hgt. Tiles are named by their south-west corner.
func tileBounds(path string) (domain.BoundingBox, error) {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	var ns, ew string
	var lat, lon int
	if _, err := fmt.Sscanf(name, "%1s%2d%1s%3d", &ns, &lat, &ew, &lon); err != nil {
		return domain.BoundingBox{}, fmt.Errorf("tile name %q: %w", name, err)
	}
	if ns == "S" {
		lat = -lat
	} else if ns != "N" {
		return domain.BoundingBox{}, fmt.Errorf("tile name %q: bad hemisphere %q", name, ns)
	}
	if ew == "W" {
		lon = -lon
	} else if ew != "E" {
		return domain.BoundingBox{}, fmt.Errorf("tile name %q: bad hemisphere %q", name, ew)
	}

	return domain.BoundingBox{
		XMin: float64(lon),
		XMax: float64(lon) + 1,
		YMin: float64(lat),
		YMax: float64(lat) + 1,
	}, nil
}
