package application

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/reliefmap/demgrid/internal/domain"
	"github.com/reliefmap/demgrid/internal/ports/output"
)

// GenerateStats summarizes one generation run.
type GenerateStats struct {
	Generated int `json:"generated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Deleted   int `json:"deleted"`
}

// GenerateService populates manifests for every raster file of a dataset.
// Files are processed by an unordered parallel fan-out; each unit of work
// touches only its own file and its own manifest directory.
type GenerateService struct {
	catalog *CatalogService
	store   output.ManifestRepository
	drivers DriverResolver
	metrics output.MetricsCollector
	logger  *slog.Logger
	workers int
}

// NewGenerateService creates a generation service. workers <= 0 selects one
// worker per CPU.
func NewGenerateService(
	catalog *CatalogService,
	store output.ManifestRepository,
	drivers DriverResolver,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	workers int,
) *GenerateService {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &GenerateService{
		catalog: catalog,
		store:   store,
		drivers: drivers,
		metrics: metrics,
		logger:  logger,
		workers: workers,
	}
}

// Generate creates manifests for every raster file under the dataset root.
// A parse failure on one file is logged and skipped; the batch continues
// and returns a usable result. With deleteOnError the offending manifest
// and raster file are removed, and a failure during that cleanup aborts
// the batch.
func (s *GenerateService) Generate(ctx context.Context, dataset string, force, deleteOnError bool) (GenerateStats, error) {
	ds, err := s.catalog.Dataset(dataset)
	if err != nil {
		return GenerateStats{}, err
	}

	driver, err := s.drivers(ds.Format)
	if err != nil {
		return GenerateStats{}, err
	}

	root := s.catalog.ResolveLocalPath(dataset)
	files, err := s.listRasterFiles(root, ds.Extension)
	if err != nil {
		return GenerateStats{}, err
	}

	s.logger.Info("generating manifests",
		"dataset", dataset,
		"files", len(files),
		"workers", s.workers,
		"force", force,
	)
	start := time.Now()

	var (
		mu       sync.Mutex
		stats    GenerateStats
		fatalErr error
	)
	work := make(chan string)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range work {
				outcome, err := s.generateOne(ctx, driver, ds.Name, path, force, deleteOnError)

				mu.Lock()
				switch outcome {
				case outcomeGenerated:
					stats.Generated++
				case outcomeSkipped:
					stats.Skipped++
				case outcomeFailed:
					stats.Failed++
				case outcomeDeleted:
					stats.Failed++
					stats.Deleted++
				}
				if err != nil && fatalErr == nil {
					fatalErr = err
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, path := range files {
		select {
		case <-ctx.Done():
			break feed
		case work <- path:
		}
	}
	close(work)
	wg.Wait()

	s.metrics.ObserveGenerateDuration(dataset, time.Since(start))

	if fatalErr != nil {
		return stats, fatalErr
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	s.logger.Info("generation complete",
		"dataset", dataset,
		"generated", stats.Generated,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return stats, nil
}

// GenerateAll runs Generate over every configured dataset.
func (s *GenerateService) GenerateAll(ctx context.Context, force, deleteOnError bool) (map[string]GenerateStats, error) {
	results := make(map[string]GenerateStats)
	for _, ds := range s.catalog.Datasets() {
		stats, err := s.Generate(ctx, ds.Name, force, deleteOnError)
		results[ds.Name] = stats
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

type generateOutcome int

const (
	outcomeGenerated generateOutcome = iota
	outcomeSkipped
	outcomeFailed
	outcomeDeleted
)

// generateOne processes a single raster file. The returned error is only
// non-nil for fatal conditions; per-file failures are reported through the
// outcome alone.
func (s *GenerateService) generateOne(ctx context.Context, driver output.RasterDriver, dataset, path string, force, deleteOnError bool) (generateOutcome, error) {
	manifestPath := s.store.PathFor(path)
	sidecarPath := s.store.SidecarFor(path)

	if s.store.Exists(manifestPath) {
		if !force {
			return outcomeSkipped, nil
		}
		for _, stale := range []string{manifestPath, sidecarPath} {
			if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
				s.logger.Error("failed to remove stale manifest", "path", stale, "error", err)
				return outcomeFailed, nil
			}
		}
	}

	md, err := s.store.Parse(ctx, driver, path)
	if err != nil {
		return s.handleFileError(dataset, path, manifestPath, err, deleteOnError)
	}

	if err := s.store.Write(md, manifestPath); err != nil {
		return s.handleFileError(dataset, path, manifestPath, err, deleteOnError)
	}

	s.metrics.IncManifestGenerated(dataset, true)
	s.logger.Debug("manifest written", "path", manifestPath)
	return outcomeGenerated, nil
}

// handleFileError applies the per-file failure policy: log and continue,
// and with deleteOnError remove the offending manifest and raster file.
// Cleanup failures escalate; silent partial cleanup would leave the
// catalog inconsistent.
func (s *GenerateService) handleFileError(dataset, path, manifestPath string, cause error, deleteOnError bool) (generateOutcome, error) {
	s.metrics.IncManifestGenerated(dataset, false)
	s.logger.Error("failed to generate manifest", "file", path, "error", cause)

	if !deleteOnError {
		return outcomeFailed, nil
	}

	for _, target := range []string{manifestPath, path} {
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return outcomeFailed, &domain.CleanupError{Path: target, Err: err}
		}
	}
	s.logger.Warn("deleted corrupt raster and manifest", "file", path)
	return outcomeDeleted, nil
}

// listRasterFiles enumerates raster files under root, recursively, skipping
// manifest directories. A missing root yields an empty list.
func (s *GenerateService) listRasterFiles(root, ext string) ([]string, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		s.logger.Warn("dataset root missing", "path", root)
		return nil, nil
	}

	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == domain.ManifestDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
