package application

import (
	"context"

	"github.com/reliefmap/demgrid/internal/ports/input"
)

// HealthService provides health check functionality.
type HealthService struct {
	catalog *CatalogService
}

// NewHealthService creates a new health service.
func NewHealthService(catalog *CatalogService) *HealthService {
	return &HealthService{
		catalog: catalog,
	}
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return true // Basic health check
}

// IsReady returns true if the service is ready to accept requests. The
// catalog is lazy, so readiness only requires the dataset configuration to
// be present.
func (s *HealthService) IsReady(_ context.Context) bool {
	return s.catalog != nil
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	datasets, manifests := s.catalog.CacheStats()

	components := map[string]string{
		"catalog": "ok",
	}

	return input.HealthDetails{
		Healthy:         s.IsHealthy(ctx),
		Ready:           s.IsReady(ctx),
		DatasetsCached:  datasets,
		ManifestsCached: manifests,
		Components:      components,
	}
}
