// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	"github.com/reliefmap/demgrid/internal/domain"
)

// Catalog defines the primary port for catalog access.
type Catalog interface {
	// Datasets returns the configured datasets.
	Datasets() []domain.Dataset

	// LoadManifest returns the cached metadata records for a dataset,
	// populating the cache on first access.
	LoadManifest(ctx context.Context, dataset string, force bool) ([]*domain.FileMetadata, error)

	// GenerateReport joins the source list of a dataset against local state,
	// restricted to entries intersecting filter when it is non-nil.
	GenerateReport(ctx context.Context, dataset string, filter *domain.BoundingBox) (domain.Report, error)

	// GenerateReportForLocation is GenerateReport with a point filter.
	GenerateReportForLocation(ctx context.Context, dataset string, lat, lon float64) (domain.Report, error)
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy         bool              // Overall health status
	Ready           bool              // Ready to accept requests
	DatasetsCached  int               // Datasets with a populated manifest cache
	ManifestsCached int               // Total cached metadata records
	Components      map[string]string // Component statuses
}
