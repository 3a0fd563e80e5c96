package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/reliefmap/demgrid/internal/adapters/manifest"
	"github.com/reliefmap/demgrid/internal/domain"
	"github.com/reliefmap/demgrid/internal/ports/output"
)

func newTestSync(t *testing.T, root string, sources *mockSources, storage *mockStorage) *SyncService {
	t.Helper()
	logger := testLogger()
	store := manifest.NewStore(root, logger)
	catalog := newTestCatalog(t, root, sources)
	driver := &mockDriver{format: domain.FormatHGT}
	resolver := func(domain.RasterFormat) (output.RasterDriver, error) {
		return driver, nil
	}
	generate := NewGenerateService(catalog, store, resolver, &output.NoOpMetrics{}, logger, 1)
	return NewSyncService(catalog, generate, sources, storage, &output.NoOpMetrics{}, time.Hour, logger)
}

func TestTriggerSyncDownloadsMissing(t *testing.T) {
	root := t.TempDir()

	// One tile already present, one missing remotely available.
	writeRaster(t, root, "N47E008.hgt")

	sources := &mockSources{entries: map[string][]domain.SourceEntry{
		"srtm": {
			{Bounds: domain.NewBoundingBox(8, 9, 47, 48), LocalFileName: "N47E008.hgt", RemoteURL: "https://dem.example.com/a"},
			{Bounds: domain.NewBoundingBox(9, 10, 47, 48), LocalFileName: "N47E009.hgt", RemoteURL: "https://dem.example.com/b"},
		},
	}}
	storage := &mockStorage{files: map[string]string{
		"srtm/N47E009.hgt": "stub",
	}}

	svc := newTestSync(t, root, sources, storage)

	result, err := svc.TriggerSync(context.Background())
	if err != nil {
		t.Fatalf("TriggerSync failed: %v", err)
	}
	if result.FilesDownloaded != 1 {
		t.Errorf("FilesDownloaded = %d, want 1", result.FilesDownloaded)
	}
	if len(storage.downloads) != 1 || storage.downloads[0] != "srtm/N47E009.hgt" {
		t.Errorf("downloads = %v, want [srtm/N47E009.hgt]", storage.downloads)
	}
	if _, err := os.Stat(filepath.Join(root, "srtm", "N47E009.hgt")); err != nil {
		t.Errorf("downloaded raster missing: %v", err)
	}
}

func TestTriggerSyncRateLimited(t *testing.T) {
	root := t.TempDir()
	sources := &mockSources{}
	svc := newTestSync(t, root, sources, &mockStorage{})

	if _, err := svc.TriggerSync(context.Background()); err != nil {
		t.Fatalf("first TriggerSync failed: %v", err)
	}

	_, err := svc.TriggerSync(context.Background())
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}

func TestTriggerSyncSkipsFailedDownloads(t *testing.T) {
	root := t.TempDir()

	sources := &mockSources{entries: map[string][]domain.SourceEntry{
		"srtm": {
			{Bounds: domain.NewBoundingBox(8, 9, 47, 48), LocalFileName: "N47E008.hgt", RemoteURL: "https://dem.example.com/a"},
		},
	}}
	storage := &mockStorage{downloadErr: errors.New("connection reset")}

	svc := newTestSync(t, root, sources, storage)

	result, err := svc.TriggerSync(context.Background())
	if err != nil {
		t.Fatalf("TriggerSync failed: %v, want download failures isolated", err)
	}
	if result.FilesFailed != 1 {
		t.Errorf("FilesFailed = %d, want 1", result.FilesFailed)
	}
	if result.FilesDownloaded != 0 {
		t.Errorf("FilesDownloaded = %d, want 0", result.FilesDownloaded)
	}
}
