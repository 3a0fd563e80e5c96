// Package manifest persists per-raster metadata records as JSON files in a
// manifest subdirectory colocated with the raster files.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/reliefmap/demgrid/internal/domain"
	"github.com/reliefmap/demgrid/internal/ports/output"
)

// SidecarExt is the extension of the optional preview image stored beside a
// manifest record.
const SidecarExt = ".bmp"

// Store parses raster metadata and reads/writes manifest records.
type Store struct {
	root   string // Catalog root; persisted filenames are relative to it
	logger *slog.Logger
}

// NewStore creates a manifest store rooted at root.
func NewStore(root string, logger *slog.Logger) *Store {
	return &Store{root: root, logger: logger}
}

// Parse opens a raster file through its driver and returns its metadata
// record with the filename rewritten relative to the store root, forward-
// slash normalized. The record is never written here; persistence happens
// only after a complete, successful parse.
func (s *Store) Parse(ctx context.Context, driver output.RasterDriver, path string) (*domain.FileMetadata, error) {
	handle, err := driver.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = handle.Close() }()

	md, err := handle.Metadata(ctx)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(md.Filename)
	if err != nil {
		return nil, &domain.ParseError{Path: path, Err: err}
	}
	absRoot, err := filepath.Abs(s.root)
	if err != nil {
		return nil, &domain.ParseError{Path: path, Err: err}
	}
	rel, err := filepath.Rel(absRoot, abs)
	if err != nil {
		return nil, &domain.ParseError{Path: path, Err: err}
	}
	md.Filename = filepath.ToSlash(rel)

	return md, nil
}

// PathFor returns the manifest file path for a raster file: a JSON record
// named after the file title inside a manifest directory next to it.
func PathFor(rasterPath string) string {
	dir := filepath.Dir(rasterPath)
	base := filepath.Base(rasterPath)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, domain.ManifestDirName, title+".json")
}

// SidecarFor returns the preview image path accompanying a manifest record.
func SidecarFor(rasterPath string) string {
	p := PathFor(rasterPath)
	return strings.TrimSuffix(p, ".json") + SidecarExt
}

// PathFor implements the repository port.
func (s *Store) PathFor(rasterPath string) string { return PathFor(rasterPath) }

// SidecarFor implements the repository port.
func (s *Store) SidecarFor(rasterPath string) string { return SidecarFor(rasterPath) }

// Write persists a record. The manifest directory is created lazily and the
// write is atomic: the record is encoded to a temporary file in the same
// directory and renamed into place, so a failure never leaves a partial
// manifest behind.
func (s *Store) Write(md *domain.FileMetadata, manifestPath string) error {
	if err := os.MkdirAll(filepath.Dir(manifestPath), 0750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(manifestPath), ".manifest-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(md); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, manifestPath)
}

// Read loads one manifest record without migrating it.
func (s *Store) Read(manifestPath string) (*domain.FileMetadata, error) {
	data, err := os.ReadFile(manifestPath) //#nosec G304 -- path derives from the catalog root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", manifestPath, domain.ErrManifestNotFound)
		}
		return nil, err
	}

	var md domain.FileMetadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, &domain.ParseError{Path: manifestPath, Err: err}
	}
	return &md, nil
}

// Load reads a record and, when its persisted schema version is stale,
// migrates it and rewrites the file before returning. The rewrite reuses
// the atomic Write path, so migration either completes fully or leaves the
// original record untouched.
func (s *Store) Load(manifestPath string) (*domain.FileMetadata, bool, error) {
	md, err := s.Read(manifestPath)
	if err != nil {
		return nil, false, err
	}

	changed, err := Migrate(md)
	if err != nil {
		return nil, false, &domain.MigrationError{
			Path:        manifestPath,
			FromVersion: md.Version,
			Err:         err,
		}
	}
	if !changed {
		return md, false, nil
	}

	if err := s.Write(md, manifestPath); err != nil {
		return nil, false, &domain.MigrationError{
			Path:        manifestPath,
			FromVersion: md.Version,
			Err:         err,
		}
	}
	s.logger.Info("migrated manifest", "path", manifestPath, "version", md.Version)
	return md, true, nil
}

// Exists reports whether a manifest record is present.
func (s *Store) Exists(manifestPath string) bool {
	_, err := os.Stat(manifestPath)
	return err == nil
}
