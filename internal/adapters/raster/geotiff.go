package raster

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"golang.org/x/image/tiff"

	"github.com/reliefmap/demgrid/internal/domain"
	"github.com/reliefmap/demgrid/internal/ports/output"
)

// TIFF tags needed for georeferencing.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
)

// TIFF field types.
const (
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
)

// GeoTIFFDriver handles the tagged-image elevation format (.tif). The
// georeferencing tags are read with a minimal IFD scan; the pixel grid is
// decoded through golang.org/x/image/tiff.
type GeoTIFFDriver struct{}

// Format implements output.RasterDriver.
func (d *GeoTIFFDriver) Format() domain.RasterFormat {
	return domain.FormatGeoTIFF
}

// Open implements output.RasterDriver.
func (d *GeoTIFFDriver) Open(_ context.Context, path string) (output.RasterHandle, error) {
	f, err := os.Open(path) //#nosec G304 -- path comes from catalog configuration
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, domain.ErrSourceMissing)
		}
		return nil, err
	}
	return &geoTIFFHandle{file: f, path: path}, nil
}

type geoTIFFHandle struct {
	file *os.File
	path string
}

// Metadata scans the first IFD for image dimensions, the model pixel scale
// and the model tiepoint, and derives the bounding box from them. Rasters
// are assumed north-up with the tiepoint anchored at pixel (0, 0).
func (h *geoTIFFHandle) Metadata(_ context.Context) (*domain.FileMetadata, error) {
	ifd, err := scanIFD(h.file)
	if err != nil {
		return nil, &domain.ParseError{Path: h.path, Err: err}
	}

	width := int(ifd.uintValue(tagImageWidth))
	height := int(ifd.uintValue(tagImageLength))
	if width < 1 || height < 1 {
		return nil, &domain.ParseError{
			Path: h.path,
			Err:  fmt.Errorf("missing or invalid dimensions %dx%d", width, height),
		}
	}

	scale := ifd.doubleValues(tagModelPixelScale)
	tie := ifd.doubleValues(tagModelTiepoint)
	if len(scale) < 2 || len(tie) < 5 {
		return nil, &domain.ParseError{
			Path: h.path,
			Err:  fmt.Errorf("missing georeferencing tags"),
		}
	}

	originX := tie[3]
	originY := tie[4]
	bounds := domain.BoundingBox{
		XMin: originX,
		XMax: originX + float64(width-1)*scale[0],
		YMin: originY - float64(height-1)*scale[1],
		YMax: originY,
	}

	return &domain.FileMetadata{
		Filename:  h.path,
		Format:    domain.FormatGeoTIFF,
		Version:   domain.ManifestVersion,
		Width:     width,
		Height:    height,
		PixelSize: domain.PixelSize{X: scale[0], Y: scale[1]},
		Bounds:    bounds,
	}, nil
}

// HeightMap decodes the pixel grid and maps each sample to a point. Rows
// run north to south, matching the raster layout.
func (h *geoTIFFHandle) HeightMap(_ context.Context, md *domain.FileMetadata, seq *domain.IDSequence) (*domain.HeightMap, error) {
	if _, err := h.file.Seek(0, io.SeekStart); err != nil {
		return nil, &domain.ParseError{Path: h.path, Err: err}
	}

	img, err := tiff.Decode(h.file)
	if err != nil {
		return nil, &domain.ParseError{Path: h.path, Err: err}
	}

	b := img.Bounds()
	if b.Dx() != md.Width || b.Dy() != md.Height {
		return nil, &domain.ParseError{
			Path: h.path,
			Err: fmt.Errorf("pixel grid %dx%d does not match metadata %dx%d",
				b.Dx(), b.Dy(), md.Width, md.Height),
		}
	}

	points := make([]domain.Point, 0, md.Width*md.Height)
	for y := 0; y < md.Height; y++ {
		lat := md.Bounds.YMax - float64(y)*md.PixelSize.Y
		for x := 0; x < md.Width; x++ {
			// 16-bit sample value is the elevation in meters.
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			points = append(points, domain.Point{
				ID:        seq.Next(),
				X:         md.Bounds.XMin + float64(x)*md.PixelSize.X,
				Y:         lat,
				Elevation: float64(r),
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
func (h *geoTIFFHandle) Close() error {
	return h.file.Close()
}

// ifd holds the decoded entries of the first image file directory.
type ifd struct {
	order   binary.ByteOrder
	uints   map[uint16]uint64
	doubles map[uint16][]float64
}

func (i *ifd) uintValue(tag uint16) uint64 {
	return i.uints[tag]
}

func (i *ifd) doubleValues(tag uint16) []float64 {
	return i.doubles[tag]
}

// scanIFD reads the TIFF header and the entries of the first IFD that carry
// dimension or georeferencing data. Everything else is skipped.
func scanIFD(r io.ReadSeeker) (*ifd, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	var order binary.ByteOrder
	switch string(header[0:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("not a TIFF file")
	}
	if order.Uint16(header[2:4]) != 42 {
		return nil, fmt.Errorf("bad TIFF magic")
	}

	ifdOffset := order.Uint32(header[4:8])
	if _, err := r.Seek(int64(ifdOffset), io.SeekStart); err != nil {
		return nil, err
	}

	var countBuf [2]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, err
	}
	count := int(order.Uint16(countBuf[:]))

	entries := make([]byte, count*12)
	if _, err := io.ReadFull(r, entries); err != nil {
		return nil, err
	}

	out := &ifd{
		order:   order,
		uints:   make(map[uint16]uint64),
		doubles: make(map[uint16][]float64),
	}

	for i := 0; i < count; i++ {
		e := entries[i*12 : i*12+12]
		tag := order.Uint16(e[0:2])
		fieldType := order.Uint16(e[2:4])
		valueCount := order.Uint32(e[4:8])

		switch tag {
		case tagImageWidth, tagImageLength:
			switch fieldType {
			case typeShort:
				out.uints[tag] = uint64(order.Uint16(e[8:10]))
			case typeLong:
				out.uints[tag] = uint64(order.Uint32(e[8:12]))
			}

		case tagModelPixelScale, tagModelTiepoint:
			if fieldType != typeDouble {
				continue
			}
			// Doubles never fit the inline value field; e[8:12] is an offset.
			offset := order.Uint32(e[8:12])
			if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
				return nil, err
			}
			raw := make([]byte, valueCount*8)
			if _, err := io.ReadFull(r, raw); err != nil {
				return nil, err
			}
			values := make([]float64, valueCount)
			for j := range values {
				bits := order.Uint64(raw[j*8 : j*8+8])
				values[j] = math.Float64frombits(bits)
			}
			out.doubles[tag] = values
		}
	}

	return out, nil
}
