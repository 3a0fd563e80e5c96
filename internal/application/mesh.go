package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/reliefmap/demgrid/internal/domain"
	"github.com/reliefmap/demgrid/internal/ports/output"
)

// defaultVertexColor is the placeholder per-vertex color applied to every
// mesh until a real shading source exists.
var defaultVertexColor = domain.Color{1, 1, 1, 1}

// MeshService converts elevation grids into indexed triangle meshes and
// drives the export path from a raster file to a serialized mesh.
type MeshService struct {
	catalog  *CatalogService
	drivers  DriverResolver
	exporter output.MeshExporter
	metrics  output.MetricsCollector
	logger   *slog.Logger
}

// NewMeshService creates a mesh service.
func NewMeshService(
	catalog *CatalogService,
	drivers DriverResolver,
	exporter output.MeshExporter,
	metrics output.MetricsCollector,
	logger *slog.Logger,
) *MeshService {
	return &MeshService{
		catalog:  catalog,
		drivers:  drivers,
		exporter: exporter,
		metrics:  metrics,
		logger:   logger,
	}
}

// Triangulate converts a heightmap into an indexed triangle mesh with
// smooth per-vertex normals. An empty or absent grid produces no mesh and
// no error. Each interior quad yields two triangles wound counter-clockwise
// as seen from above; the face normal is normalized before accumulation, so
// vertex normals are an unweighted directional average over adjacent faces.
// Isolated vertices keep a zero normal.
func (s *MeshService) Triangulate(hm *domain.HeightMap) *domain.Mesh {
	if hm.IsEmpty() {
		s.logger.Warn("empty heightmap, no mesh produced")
		return nil
	}
	start := time.Now()

	w, h := hm.Width, hm.Height

	positions := make([]domain.Vec3, len(hm.Points))
	for i, p := range hm.Points {
		positions[i] = domain.Vec3{p.X, p.Y, p.Elevation}
	}

	// Two triangles per quad, three indices each. Rows run north to south,
	// so (i, i+w, i+1) and (i+1, i+w, i+w+1) face upward.
	indices := make([]uint32, 0, 6*(w-1)*(h-1))
	for y := 0; y < h-1; y++ {
		for x := 0; x < w-1; x++ {
			i := uint32(y*w + x)
			indices = append(indices, i, i+uint32(w), i+1)
			indices = append(indices, i+1, i+uint32(w), i+uint32(w)+1)
		}
	}

	normals := make([]domain.Vec3, len(positions))
	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := indices[t], indices[t+1], indices[t+2]
		e1 := positions[b].Sub(positions[a])
		e2 := positions[c].Sub(positions[a])
		face := e1.Cross(e2).Normalized()
		normals[a] = normals[a].Add(face)
		normals[b] = normals[b].Add(face)
		normals[c] = normals[c].Add(face)
	}
	for i := range normals {
		normals[i] = normals[i].Normalized()
	}

	colors := make([]domain.Color, len(positions))
	for i := range colors {
		colors[i] = defaultVertexColor
	}

	s.metrics.ObserveMeshBuild(time.Since(start))

	return &domain.Mesh{
		Positions: positions,
		Indices:   indices,
		Normals:   normals,
		Colors:    colors,
	}
}

// BuildForLocation builds a mesh from the raster file of a dataset that
// covers the given point.
func (s *MeshService) BuildForLocation(ctx context.Context, dataset string, lat, lon float64) (*domain.Mesh, error) {
	md, err := s.findCovering(ctx, dataset, lat, lon)
	if err != nil {
		return nil, err
	}
	return s.buildFromMetadata(ctx, md)
}

// Export serializes a mesh through the configured exporter.
func (s *MeshService) Export(ctx context.Context, m *domain.Mesh, w io.Writer) error {
	return s.exporter.Export(ctx, m, w)
}

// findCovering returns the catalog record whose bounds contain the point.
func (s *MeshService) findCovering(ctx context.Context, dataset string, lat, lon float64) (*domain.FileMetadata, error) {
	records, err := s.catalog.LoadManifest(ctx, dataset, false)
	if err != nil {
		return nil, err
	}
	for _, md := range records {
		if md.Bounds.Contains(lat, lon) {
			return md, nil
		}
	}
	return nil, fmt.Errorf("no raster covers %s: %w", domain.TileCode(lat, lon), domain.ErrSourceMissing)
}

// buildFromMetadata opens the raster behind a catalog record and
// triangulates its heightmap.
func (s *MeshService) buildFromMetadata(ctx context.Context, md *domain.FileMetadata) (*domain.Mesh, error) {
	driver, err := s.drivers(md.Format)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(s.catalog.root, filepath.FromSlash(md.Filename))
	handle, err := driver.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = handle.Close() }()

	seq := domain.NewIDSequence(1)
	hm, err := handle.HeightMap(ctx, md, seq)
	if err != nil {
		return nil, err
	}

	s.logger.Info("building mesh",
		"file", md.Filename,
		"width", hm.Width,
		"height", hm.Height,
	)
	return s.Triangulate(hm), nil
}
