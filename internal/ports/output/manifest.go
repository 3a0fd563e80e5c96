package output

import (
	"context"

	"github.com/reliefmap/demgrid/internal/domain"
)

// ManifestRepository defines the secondary port for manifest persistence.
// Records live as JSON files in a manifest directory beside the raster
// files they describe.
type ManifestRepository interface {
	// Parse opens a raster file through its driver and returns its metadata
	// record with the filename rewritten relative to the catalog root.
	Parse(ctx context.Context, driver RasterDriver, path string) (*domain.FileMetadata, error)

	// PathFor returns the manifest file path for a raster file.
	PathFor(rasterPath string) string

	// SidecarFor returns the preview image path accompanying a manifest.
	SidecarFor(rasterPath string) string

	// Write persists a record atomically.
	Write(md *domain.FileMetadata, manifestPath string) error

	// Load reads a record, migrating and rewriting it when its persisted
	// schema version is stale. The second return reports whether a
	// migration ran.
	Load(manifestPath string) (*domain.FileMetadata, bool, error)

	// Exists reports whether a manifest record is present.
	Exists(manifestPath string) bool
}
