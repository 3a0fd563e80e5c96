// Package output defines the secondary/driven ports of the application.
package output

import (
	"context"

	"github.com/reliefmap/demgrid/internal/domain"
)

// RasterDriver is the capability interface consumed from raster files. One
// implementation exists per member of the closed domain.RasterFormat set;
// the core never touches pixel encodings itself.
type RasterDriver interface {
	// Format returns the raster format this driver handles.
	Format() domain.RasterFormat

	// Open opens a raster file. The returned handle must be closed on every
	// exit path.
	Open(ctx context.Context, path string) (RasterHandle, error)
}

// RasterHandle is an open raster file.
type RasterHandle interface {
	// Metadata parses the file headers into a metadata record. The filename
	// field holds the absolute path as opened; callers rewrite it relative
	// to their root before persisting.
	Metadata(ctx context.Context) (*domain.FileMetadata, error)

	// HeightMap extracts the elevation grid described by the metadata.
	// Point identifiers are drawn from seq.
	HeightMap(ctx context.Context, md *domain.FileMetadata, seq *domain.IDSequence) (*domain.HeightMap, error)

	// Close releases the underlying file.
	Close() error
}
