package output

import (
	"context"

	"github.com/reliefmap/demgrid/internal/domain"
)

// SourceCatalog defines the secondary port for the externally supplied
// source list: the enumeration of candidate raster files for a dataset,
// with their coverage and remote identity. The core consumes it pre-built
// and never performs the listing itself.
type SourceCatalog interface {
	// Sources returns the source entries for a dataset.
	Sources(ctx context.Context, dataset string) ([]domain.SourceEntry, error)
}
