// Package application contains the application services.
package application

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/reliefmap/demgrid/internal/domain"
	"github.com/reliefmap/demgrid/internal/ports/output"
)

// DriverResolver resolves a raster format to its driver. An unrecognized
// format is a fatal configuration error surfaced by the resolver.
type DriverResolver func(domain.RasterFormat) (output.RasterDriver, error)

// CatalogService owns the in-memory metadata cache and produces reports
// joining catalog state with the external source list. The cache is keyed
// by dataset local path, populated lazily on first access and invalidated
// only by an explicit force flag.
type CatalogService struct {
	datasets map[string]domain.Dataset
	order    []domain.Dataset
	root     string
	store    output.ManifestRepository
	sources  output.SourceCatalog
	metrics  output.MetricsCollector
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]*cacheEntry

	// Source-list adapter state, rebuilt only when the requested dataset
	// differs from the cached one.
	srcDataset string
	srcList    []domain.SourceEntry
}

// cacheEntry is one in-flight or completed manifest load. Concurrent loads
// for the same dataset wait on ready instead of scanning twice.
type cacheEntry struct {
	ready   chan struct{}
	records []*domain.FileMetadata
	err     error
}

// NewCatalogService creates a catalog service over the given datasets.
func NewCatalogService(
	datasets []domain.Dataset,
	root string,
	store output.ManifestRepository,
	sources output.SourceCatalog,
	metrics output.MetricsCollector,
	logger *slog.Logger,
) *CatalogService {
	byName := make(map[string]domain.Dataset, len(datasets))
	for _, ds := range datasets {
		byName[ds.Name] = ds
	}
	return &CatalogService{
		datasets: byName,
		order:    datasets,
		root:     root,
		store:    store,
		sources:  sources,
		metrics:  metrics,
		logger:   logger,
		cache:    make(map[string]*cacheEntry),
	}
}

// Datasets returns the configured datasets.
func (s *CatalogService) Datasets() []domain.Dataset {
	return s.order
}

// Dataset returns a dataset definition by name.
func (s *CatalogService) Dataset(name string) (domain.Dataset, error) {
	ds, ok := s.datasets[name]
	if !ok {
		return domain.Dataset{}, domain.ErrDatasetNotFound
	}
	return ds, nil
}

// ResolveLocalPath returns the local directory of a dataset. Pure function
// of the dataset name and the configured root.
func (s *CatalogService) ResolveLocalPath(dataset string) string {
	return filepath.Join(s.root, dataset)
}

// LoadManifest returns the cached metadata records for a dataset. On first
// access it recursively discovers every manifest directory under the
// dataset root, loads every record, and migrates stale ones in place. The
// returned slice is shared across calls until the next force invalidation;
// callers must treat it as read-only.
func (s *CatalogService) LoadManifest(ctx context.Context, dataset string, force bool) ([]*domain.FileMetadata, error) {
	if _, ok := s.datasets[dataset]; !ok {
		return nil, domain.ErrDatasetNotFound
	}
	localPath := s.ResolveLocalPath(dataset)

	s.mu.Lock()
	if force {
		delete(s.cache, localPath)
	}
	if entry, ok := s.cache[localPath]; ok {
		s.mu.Unlock()
		select {
		case <-entry.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return entry.records, entry.err
	}

	entry := &cacheEntry{ready: make(chan struct{})}
	s.cache[localPath] = entry
	s.mu.Unlock()

	entry.records, entry.err = s.scanManifests(localPath)
	close(entry.ready)

	if entry.err != nil {
		// Failed loads are not cached; the next call retries.
		s.mu.Lock()
		if s.cache[localPath] == entry {
			delete(s.cache, localPath)
		}
		s.mu.Unlock()
		return nil, entry.err
	}

	s.logger.Info("manifest cache populated",
		"dataset", dataset,
		"records", len(entry.records),
	)
	s.updateMetrics()

	return entry.records, nil
}

// scanManifests walks the dataset root and loads every manifest record. A
// missing root yields an empty list, not an error.
func (s *CatalogService) scanManifests(localPath string) ([]*domain.FileMetadata, error) {
	if _, err := os.Stat(localPath); os.IsNotExist(err) {
		s.logger.Warn("dataset root missing", "path", localPath)
		return []*domain.FileMetadata{}, nil
	}

	records := make([]*domain.FileMetadata, 0)
	err := filepath.Walk(localPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) != domain.ManifestDirName {
			return nil
		}

		md, migrated, err := s.store.Load(path)
		if err != nil {
			var migErr *domain.MigrationError
			if errors.As(err, &migErr) {
				s.metrics.IncMigrationCount(false)
			}
			return err
		}
		if migrated {
			s.metrics.IncMigrationCount(true)
		}
		records = append(records, md)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Invalidate evicts the cached records of a dataset, if any.
func (s *CatalogService) Invalidate(dataset string) {
	localPath := s.ResolveLocalPath(dataset)

	s.mu.Lock()
	_, ok := s.cache[localPath]
	delete(s.cache, localPath)
	s.mu.Unlock()

	if ok {
		s.logger.Debug("manifest cache invalidated", "dataset", dataset)
		s.updateMetrics()
	}
}

// InvalidatePath evicts the cache of whichever dataset contains path. Used
// by the file watcher.
func (s *CatalogService) InvalidatePath(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	for name := range s.datasets {
		root, err := filepath.Abs(s.ResolveLocalPath(name))
		if err != nil {
			continue
		}
		if rel, err := filepath.Rel(root, abs); err == nil && !strings.HasPrefix(rel, "..") {
			s.Invalidate(name)
			return
		}
	}
}

// GenerateReport joins the source list of a dataset against local state.
// When filter is non-nil only entries whose bounds intersect it are
// reported.
func (s *CatalogService) GenerateReport(ctx context.Context, dataset string, filter *domain.BoundingBox) (domain.Report, error) {
	return s.report(ctx, dataset, func(b domain.BoundingBox) bool {
		return filter == nil || b.Intersects(*filter)
	})
}

// GenerateReportForLocation is GenerateReport with a point filter.
func (s *CatalogService) GenerateReportForLocation(ctx context.Context, dataset string, lat, lon float64) (domain.Report, error) {
	return s.report(ctx, dataset, func(b domain.BoundingBox) bool {
		return b.Contains(lat, lon)
	})
}

func (s *CatalogService) report(ctx context.Context, dataset string, match func(domain.BoundingBox) bool) (domain.Report, error) {
	records, err := s.LoadManifest(ctx, dataset, false)
	if err != nil {
		return nil, err
	}

	indexed := make(map[string]struct{}, len(records))
	for _, md := range records {
		indexed[md.Filename] = struct{}{}
	}

	entries, err := s.sourcesFor(ctx, dataset)
	if err != nil {
		return nil, err
	}

	localRoot := s.ResolveLocalPath(dataset)
	report := make(domain.Report)
	for _, entry := range entries {
		if !match(entry.Bounds) {
			continue
		}

		localPath := filepath.Join(localRoot, filepath.FromSlash(entry.LocalFileName))
		_, statErr := os.Stat(localPath)
		rel := filepath.ToSlash(filepath.Join(dataset, filepath.FromSlash(entry.LocalFileName)))
		_, hasMeta := indexed[rel]

		report[entry.RemoteURL] = domain.FileReport{
			ExistsLocally: statErr == nil,
			HasMetadata:   hasMeta,
			LocalPath:     localPath,
			SourceURL:     entry.RemoteURL,
		}
	}

	return report, nil
}

// sourcesFor returns the source list for a dataset, reusing the previously
// fetched list while the dataset identity matches.
func (s *CatalogService) sourcesFor(ctx context.Context, dataset string) ([]domain.SourceEntry, error) {
	s.mu.Lock()
	if s.srcDataset == dataset && s.srcList != nil {
		list := s.srcList
		s.mu.Unlock()
		return list, nil
	}
	s.mu.Unlock()

	list, err := s.sources.Sources(ctx, dataset)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.srcDataset = dataset
	s.srcList = list
	s.mu.Unlock()

	return list, nil
}

// CacheStats reports the cache population for health and metrics.
func (s *CatalogService) CacheStats() (datasets, manifests int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.cache {
		select {
		case <-entry.ready:
		default:
			continue
		}
		if entry.err == nil {
			datasets++
			manifests += len(entry.records)
		}
	}
	return datasets, manifests
}

func (s *CatalogService) updateMetrics() {
	datasets, manifests := s.CacheStats()
	s.metrics.SetDatasetsCached(datasets)
	s.metrics.SetManifestsCached(manifests)
}
