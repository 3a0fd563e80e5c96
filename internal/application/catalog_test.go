package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/reliefmap/demgrid/internal/adapters/manifest"
	"github.com/reliefmap/demgrid/internal/domain"
	"github.com/reliefmap/demgrid/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestCatalog(t *testing.T, root string, sources output.SourceCatalog) *CatalogService {
	t.Helper()
	if sources == nil {
		sources = &mockSources{}
	}
	datasets := []domain.Dataset{
		{Name: "srtm", Format: domain.FormatHGT, Extension: ".hgt", Resolution: 3},
	}
	logger := testLogger()
	return NewCatalogService(
		datasets,
		root,
		manifest.NewStore(root, logger),
		sources,
		&output.NoOpMetrics{},
		logger,
	)
}

// writeManifest persists a raw record under <root>/srtm/manifest/.
func writeManifest(t *testing.T, root, title string, record map[string]interface{}) string {
	t.Helper()
	dir := filepath.Join(root, "srtm", domain.ManifestDirName)
	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	path := filepath.Join(dir, title+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func currentRecord(filename string) map[string]interface{} {
	return map[string]interface{}{
		"filename":  filename,
		"format":    "hgt",
		"version":   domain.ManifestVersion,
		"width":     3,
		"height":    3,
		"pixelSize": map[string]float64{"x": 0.5, "y": 0.5},
		"bounds":    map[string]float64{"xMin": 8, "xMax": 9, "yMin": 47, "yMax": 48},
	}
}

func TestLoadManifestCachesSlice(t *testing.T) {
	root, err := os.MkdirTemp("", "catalog-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	defer func() { _ = os.RemoveAll(root) }()

	writeManifest(t, root, "N47E008", currentRecord("srtm/N47E008.hgt"))

	catalog := newTestCatalog(t, root, nil)
	ctx := context.Background()

	first, err := catalog.LoadManifest(ctx, "srtm", false)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(first))
	}

	second, err := catalog.LoadManifest(ctx, "srtm", false)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if first[0] != second[0] {
		t.Error("repeated loads returned different records, want the cached slice")
	}

	forced, err := catalog.LoadManifest(ctx, "srtm", true)
	if err != nil {
		t.Fatalf("LoadManifest(force) failed: %v", err)
	}
	if len(forced) != 1 {
		t.Errorf("len(records) after force = %d, want 1", len(forced))
	}
}

func TestLoadManifestMigratesOnce(t *testing.T) {
	root, err := os.MkdirTemp("", "catalog-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	defer func() { _ = os.RemoveAll(root) }()

	// A version 1 record with a backslash filename and no Y pixel size.
	record := currentRecord(`srtm\N47E008.hgt`)
	record["version"] = 1
	record["pixelSize"] = map[string]float64{"x": 0.5}
	path := writeManifest(t, root, "N47E008", record)

	catalog := newTestCatalog(t, root, nil)
	ctx := context.Background()

	records, err := catalog.LoadManifest(ctx, "srtm", false)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}

	md := records[0]
	if md.Version != domain.ManifestVersion {
		t.Errorf("Version = %d, want %d", md.Version, domain.ManifestVersion)
	}
	if md.Filename != "srtm/N47E008.hgt" {
		t.Errorf("Filename = %q, want forward slashes", md.Filename)
	}
	if md.PixelSize.Y != md.PixelSize.X {
		t.Errorf("PixelSize.Y = %g, want %g", md.PixelSize.Y, md.PixelSize.X)
	}

	// The on-disk record must reflect the migration.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var onDisk domain.FileMetadata
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if onDisk.Version != domain.ManifestVersion {
		t.Errorf("on-disk Version = %d, want %d", onDisk.Version, domain.ManifestVersion)
	}

	// Loading again performs no further migration.
	before, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if _, err := catalog.LoadManifest(ctx, "srtm", true); err != nil {
		t.Fatalf("LoadManifest(force) failed: %v", err)
	}
	after, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("manifest rewritten on second load, want no further migration")
	}
}

func TestLoadManifestMissingRoot(t *testing.T) {
	root, err := os.MkdirTemp("", "catalog-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	defer func() { _ = os.RemoveAll(root) }()

	// The srtm subdirectory does not exist.
	catalog := newTestCatalog(t, root, nil)

	records, err := catalog.LoadManifest(context.Background(), "srtm", false)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0", len(records))
	}
}

func TestLoadManifestUnknownDataset(t *testing.T) {
	catalog := newTestCatalog(t, t.TempDir(), nil)

	_, err := catalog.LoadManifest(context.Background(), "nope", false)
	if !errors.Is(err, domain.ErrDatasetNotFound) {
		t.Errorf("err = %v, want ErrDatasetNotFound", err)
	}
}

func TestGenerateReport(t *testing.T) {
	root, err := os.MkdirTemp("", "catalog-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	defer func() { _ = os.RemoveAll(root) }()

	// One raster present locally with a manifest, one absent.
	rasterPath := filepath.Join(root, "srtm", "N47E008.hgt")
	if err := os.MkdirAll(filepath.Dir(rasterPath), 0750); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(rasterPath, []byte("stub"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	writeManifest(t, root, "N47E008", currentRecord("srtm/N47E008.hgt"))

	sources := &mockSources{entries: map[string][]domain.SourceEntry{
		"srtm": {
			{
				Bounds:        domain.NewBoundingBox(8, 9, 47, 48),
				LocalFileName: "N47E008.hgt",
				RemoteURL:     "https://dem.example.com/N47E008.hgt.zip",
			},
			{
				Bounds:        domain.NewBoundingBox(9, 10, 47, 48),
				LocalFileName: "N47E009.hgt",
				RemoteURL:     "https://dem.example.com/N47E009.hgt.zip",
			},
		},
	}}

	catalog := newTestCatalog(t, root, sources)
	ctx := context.Background()

	report, err := catalog.GenerateReport(ctx, "srtm", nil)
	if err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}
	if len(report) != 2 {
		t.Fatalf("len(report) = %d, want 2", len(report))
	}

	present := report["https://dem.example.com/N47E008.hgt.zip"]
	if !present.ExistsLocally || !present.HasMetadata {
		t.Errorf("present = %+v, want ExistsLocally and HasMetadata", present)
	}
	absent := report["https://dem.example.com/N47E009.hgt.zip"]
	if absent.ExistsLocally || absent.HasMetadata {
		t.Errorf("absent = %+v, want neither flag", absent)
	}
	if report.MissingCount() != 1 {
		t.Errorf("MissingCount() = %d, want 1", report.MissingCount())
	}

	// A rectangle covering only the western tile.
	box := domain.NewBoundingBox(8.2, 8.8, 47.2, 47.8)
	filtered, err := catalog.GenerateReport(ctx, "srtm", &box)
	if err != nil {
		t.Fatalf("GenerateReport(filter) failed: %v", err)
	}
	if len(filtered) != 1 {
		t.Errorf("len(filtered) = %d, want 1", len(filtered))
	}

	// Point containment filter.
	point, err := catalog.GenerateReportForLocation(ctx, "srtm", 47.5, 9.5)
	if err != nil {
		t.Fatalf("GenerateReportForLocation failed: %v", err)
	}
	if len(point) != 1 {
		t.Fatalf("len(point report) = %d, want 1", len(point))
	}
	if _, ok := point["https://dem.example.com/N47E009.hgt.zip"]; !ok {
		t.Error("point report misses the containing tile")
	}

	// The source list is fetched once per dataset identity.
	if sources.calls != 1 {
		t.Errorf("source list fetched %d times, want 1", sources.calls)
	}
}
