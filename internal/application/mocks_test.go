package application

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/reliefmap/demgrid/internal/domain"
	"github.com/reliefmap/demgrid/internal/ports/output"
)

// mockDriver implements output.RasterDriver for testing. Grids are derived
// from the file name; paths listed in failPaths fail to parse.
type mockDriver struct {
	format    domain.RasterFormat
	failPaths map[string]bool
	openErr   error
	grid      *domain.HeightMap
}

func (m *mockDriver) Format() domain.RasterFormat {
	return m.format
}

func (m *mockDriver) Open(_ context.Context, path string) (output.RasterHandle, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	if _, err := os.Stat(path); err != nil {
		return nil, domain.ErrSourceMissing
	}
	return &mockHandle{driver: m, path: path}, nil
}

type mockHandle struct {
	driver *mockDriver
	path   string
}

func (m *mockHandle) Metadata(_ context.Context) (*domain.FileMetadata, error) {
	if m.driver.failPaths[filepath.Base(m.path)] {
		return nil, &domain.ParseError{Path: m.path, Err: domain.ErrInvalidInput}
	}
	return &domain.FileMetadata{
		Filename:  m.path,
		Format:    m.driver.format,
		Version:   domain.ManifestVersion,
		Width:     3,
		Height:    3,
		PixelSize: domain.PixelSize{X: 0.5, Y: 0.5},
		Bounds:    domain.NewBoundingBox(8, 9, 47, 48),
	}, nil
}

func (m *mockHandle) HeightMap(_ context.Context, md *domain.FileMetadata, seq *domain.IDSequence) (*domain.HeightMap, error) {
	if m.driver.grid != nil {
		return m.driver.grid, nil
	}
	return flatGrid(md.Width, md.Height, seq), nil
}

func (m *mockHandle) Close() error {
	return nil
}

// flatGrid builds a W x H heightmap at zero elevation over a one-degree tile.
func flatGrid(w, h int, seq *domain.IDSequence) *domain.HeightMap {
	points := make([]domain.Point, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			points = append(points, domain.Point{
				ID: seq.Next(),
				X:  8 + float64(x)/float64(w-1),
				Y:  48 - float64(y)/float64(h-1),
			})
		}
	}
	return &domain.HeightMap{Width: w, Height: h, Points: points}
}

// mockSources implements output.SourceCatalog for testing.
type mockSources struct {
	entries map[string][]domain.SourceEntry
	err     error
	calls   int
}

func (m *mockSources) Sources(_ context.Context, dataset string) ([]domain.SourceEntry, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.entries[dataset], nil
}

// mockStorage implements output.ObjectStorage for testing.
type mockStorage struct {
	objects     []output.StorageObject
	files       map[string]string // key -> content
	downloads   []string
	downloadErr error
}

func (m *mockStorage) List(_ context.Context) ([]output.StorageObject, error) {
	return m.objects, nil
}

func (m *mockStorage) Download(_ context.Context, key, dest string) error {
	if m.downloadErr != nil {
		return m.downloadErr
	}
	m.downloads = append(m.downloads, key)
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte(m.files[key]), 0600)
}

func (m *mockStorage) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	content, ok := m.files[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (m *mockStorage) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.files[key]
	return ok, nil
}
