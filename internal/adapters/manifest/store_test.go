package manifest

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/reliefmap/demgrid/internal/domain"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(root, logger), root
}

func currentRecord(filename string) *domain.FileMetadata {
	return &domain.FileMetadata{
		Filename:  filename,
		Format:    domain.FormatHGT,
		Version:   domain.ManifestVersion,
		Width:     3,
		Height:    3,
		PixelSize: domain.PixelSize{X: 0.5, Y: 0.5},
		Bounds:    domain.NewBoundingBox(8, 9, 47, 48),
	}
}

func TestPathFor(t *testing.T) {
	got := PathFor(filepath.Join("data", "srtm", "N47E008.hgt"))
	want := filepath.Join("data", "srtm", domain.ManifestDirName, "N47E008.json")
	if got != want {
		t.Errorf("PathFor() = %q, want %q", got, want)
	}
}

func TestSidecarFor(t *testing.T) {
	got := SidecarFor(filepath.Join("data", "srtm", "N47E008.hgt"))
	want := filepath.Join("data", "srtm", domain.ManifestDirName, "N47E008"+SidecarExt)
	if got != want {
		t.Errorf("SidecarFor() = %q, want %q", got, want)
	}
}

func TestWriteThenRead(t *testing.T) {
	store, root := testStore(t)
	manifestPath := PathFor(filepath.Join(root, "srtm", "N47E008.hgt"))

	md := currentRecord("srtm/N47E008.hgt")
	if err := store.Write(md, manifestPath); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	got, err := store.Read(manifestPath)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if *got != *md {
		t.Errorf("Read() = %+v, want %+v", got, md)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	store, root := testStore(t)
	manifestPath := PathFor(filepath.Join(root, "srtm", "N47E008.hgt"))

	if err := store.Write(currentRecord("srtm/N47E008.hgt"), manifestPath); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(manifestPath))
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("manifest dir holds %v, want only the record", names)
	}
}

func TestReadMissing(t *testing.T) {
	store, root := testStore(t)

	_, err := store.Read(filepath.Join(root, "missing.json"))
	if !errors.Is(err, domain.ErrManifestNotFound) {
		t.Errorf("Read() error = %v, want ErrManifestNotFound", err)
	}
}

func TestReadCorrupt(t *testing.T) {
	store, root := testStore(t)
	bad := filepath.Join(root, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := store.Read(bad)
	var parseErr *domain.ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("Read() error = %v, want ParseError", err)
	}
}

func TestLoadMigratesAndRewrites(t *testing.T) {
	store, root := testStore(t)
	manifestPath := filepath.Join(root, "srtm", domain.ManifestDirName, "N47E008.json")
	if err := os.MkdirAll(filepath.Dir(manifestPath), 0750); err != nil {
		t.Fatal(err)
	}

	legacy := map[string]any{
		"filename":  `srtm\N47E008.hgt`,
		"format":    "hgt",
		"version":   1,
		"width":     3,
		"height":    3,
		"pixelSize": map[string]any{"x": 0.5},
	}
	data, err := json.Marshal(legacy)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(manifestPath, data, 0600); err != nil {
		t.Fatal(err)
	}

	md, migrated, err := store.Load(manifestPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !migrated {
		t.Fatal("Load() migrated = false, want true")
	}
	if md.Version != domain.ManifestVersion {
		t.Errorf("Version = %d, want %d", md.Version, domain.ManifestVersion)
	}
	if md.Filename != "srtm/N47E008.hgt" {
		t.Errorf("Filename = %q, want forward slashes", md.Filename)
	}

	// The stale record must be rewritten, so a second load is a no-op.
	reloaded, migrated, err := store.Load(manifestPath)
	if err != nil {
		t.Fatalf("second Load() error: %v", err)
	}
	if migrated {
		t.Error("second Load() migrated = true, want false")
	}
	if reloaded.Version != domain.ManifestVersion {
		t.Errorf("reloaded Version = %d, want %d", reloaded.Version, domain.ManifestVersion)
	}
}

func TestLoadFutureVersionFails(t *testing.T) {
	store, root := testStore(t)
	manifestPath := filepath.Join(root, "future.json")

	future := currentRecord("srtm/N47E008.hgt")
	future.Version = domain.ManifestVersion + 1
	if err := store.Write(future, manifestPath); err != nil {
		t.Fatal(err)
	}

	_, _, err := store.Load(manifestPath)
	var migErr *domain.MigrationError
	if !errors.As(err, &migErr) {
		t.Fatalf("Load() error = %v, want MigrationError", err)
	}

	// The record on disk must be untouched.
	got, err := store.Read(manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != domain.ManifestVersion+1 {
		t.Errorf("on-disk Version = %d, want %d", got.Version, domain.ManifestVersion+1)
	}
}

func TestExists(t *testing.T) {
	store, root := testStore(t)
	manifestPath := filepath.Join(root, "rec.json")

	if store.Exists(manifestPath) {
		t.Error("Exists() = true before write")
	}
	if err := store.Write(currentRecord("rec.hgt"), manifestPath); err != nil {
		t.Fatal(err)
	}
	if !store.Exists(manifestPath) {
		t.Error("Exists() = false after write")
	}
}
