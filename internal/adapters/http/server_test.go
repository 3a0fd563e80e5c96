package http

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/reliefmap/demgrid/internal/adapters/gltf"
	"github.com/reliefmap/demgrid/internal/adapters/manifest"
	"github.com/reliefmap/demgrid/internal/adapters/raster"
	"github.com/reliefmap/demgrid/internal/application"
	"github.com/reliefmap/demgrid/internal/config"
	"github.com/reliefmap/demgrid/internal/domain"
	"github.com/reliefmap/demgrid/internal/ports/output"
)

type stubSources struct {
	entries []domain.SourceEntry
}

func (s *stubSources) Sources(_ context.Context, _ string) ([]domain.SourceEntry, error) {
	return s.entries, nil
}

// newTestServer wires a server over a temp catalog holding one 3x3 tile
// with a current manifest record.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// One-degree tile N47E008 as a 3x3 grid of int16 samples.
	raw := make([]byte, 18)
	for i := 0; i < 9; i++ {
		binary.BigEndian.PutUint16(raw[i*2:], uint16(100+i))
	}
	tilePath := filepath.Join(root, "srtm", "N47E008.hgt")
	if err := os.MkdirAll(filepath.Dir(tilePath), 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tilePath, raw, 0600); err != nil {
		t.Fatal(err)
	}

	store := manifest.NewStore(root, logger)
	md := &domain.FileMetadata{
		Filename:  "srtm/N47E008.hgt",
		Format:    domain.FormatHGT,
		Version:   domain.ManifestVersion,
		Width:     3,
		Height:    3,
		PixelSize: domain.PixelSize{X: 0.5, Y: 0.5},
		Bounds:    domain.NewBoundingBox(8, 9, 47, 48),
	}
	if err := store.Write(md, manifest.PathFor(tilePath)); err != nil {
		t.Fatal(err)
	}

	datasets := []domain.Dataset{{Name: "srtm", Format: domain.FormatHGT, Extension: ".hgt", Resolution: 3}}
	sources := &stubSources{entries: []domain.SourceEntry{{
		Bounds:        domain.NewBoundingBox(8, 9, 47, 48),
		LocalFileName: "N47E008.hgt",
		RemoteURL:     "https://dem.example.com/N47E008.hgt",
	}}}

	metrics := &output.NoOpMetrics{}
	catalog := application.NewCatalogService(datasets, root, store, sources, metrics, logger)
	mesh := application.NewMeshService(catalog, raster.ForFormat, gltf.NewWriter(), metrics, logger)
	health := application.NewHealthService(catalog)

	cfg := config.ServerConfig{Host: "127.0.0.1", Port: 8080}
	return NewServer(cfg, catalog, mesh, health, nil, logger)
}

func doRequest(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return body
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}

	for _, target := range []string{"/health/live", "/health/ready"} {
		if rec := doRequest(t, s, http.MethodGet, target); rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", target, rec.Code)
		}
	}
}

func TestHandleListDatasets(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/datasets")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}
}

func TestHandleListManifests(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/datasets/srtm/manifests")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/datasets/nope/manifests")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown dataset status = %d, want 404", rec.Code)
	}
}

func TestHandleReport(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/datasets/srtm/report")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}
	if body["missing"] != float64(0) {
		t.Errorf("missing = %v, want 0", body["missing"])
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/datasets/srtm/report?lat=47.5&lon=8.5")
	if rec.Code != http.StatusOK {
		t.Errorf("point report status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/datasets/srtm/report?bbox=8,47,9,48")
	if rec.Code != http.StatusOK {
		t.Errorf("bbox report status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/datasets/srtm/report?bbox=8,47,9")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("short bbox status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/datasets/srtm/report?lat=abc&lon=8.5")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad lat status = %d, want 400", rec.Code)
	}
}

func TestHandleMesh(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/datasets/srtm/mesh?lat=47.5&lon=8.5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "model/gltf-binary" {
		t.Errorf("Content-Type = %q, want model/gltf-binary", ct)
	}
	if got := rec.Body.Bytes(); len(got) < 4 || string(got[:4]) != "glTF" {
		t.Error("body does not start with the glTF magic")
	}
}

func TestHandleMeshErrors(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/datasets/srtm/mesh")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing params status = %d, want 400", rec.Code)
	}

	// No tile covers the southern hemisphere.
	rec = doRequest(t, s, http.MethodGet, "/api/v1/datasets/srtm/mesh?lat=-10&lon=8.5")
	if rec.Code != http.StatusNotFound {
		t.Errorf("uncovered point status = %d, want 404", rec.Code)
	}
}

func TestSyncRouteAbsentWithoutService(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/sync")
	if rec.Code == http.StatusOK {
		t.Error("sync route served without a sync service")
	}
}
