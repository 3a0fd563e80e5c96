package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/reliefmap/demgrid/internal/application"
	"github.com/reliefmap/demgrid/internal/domain"
)

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":           boolToStatus(details.Healthy),
		"ready":            details.Ready,
		"datasets_cached":  details.DatasetsCached,
		"manifests_cached": details.ManifestsCached,
		"components":       details.Components,
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// handleListDatasets returns all configured datasets.
func (s *Server) handleListDatasets(w http.ResponseWriter, _ *http.Request) {
	datasets := s.catalog.Datasets()

	response := make([]map[string]interface{}, len(datasets))
	for i, ds := range datasets {
		response[i] = map[string]interface{}{
			"name":       ds.Name,
			"format":     ds.Format.String(),
			"extension":  ds.Extension,
			"resolution": ds.Resolution,
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasets": response,
		"count":    len(datasets),
	})
}

// handleListManifests returns the cached metadata records for a dataset.
// The force query parameter invalidates the cache first.
func (s *Server) handleListManifests(w http.ResponseWriter, r *http.Request) {
	dataset := mux.Vars(r)["dataset"]
	force := r.URL.Query().Get("force") == "true"

	records, err := s.catalog.LoadManifest(r.Context(), dataset, force)
	if err != nil {
		s.handleCatalogError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"dataset":   dataset,
		"manifests": records,
		"count":     len(records),
	})
}

// handleReport joins the dataset source list against local state. With lat
// and lon set the report covers the single containing point; with bbox set
// it covers the intersecting rectangle; otherwise every source entry.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	dataset := mux.Vars(r)["dataset"]
	q := r.URL.Query()

	var (
		report domain.Report
		err    error
	)
	switch {
	case q.Get("lat") != "" || q.Get("lon") != "":
		lat, lon, perr := parsePoint(q.Get("lat"), q.Get("lon"))
		if perr != nil {
			s.writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		report, err = s.catalog.GenerateReportForLocation(r.Context(), dataset, lat, lon)

	case q.Get("bbox") != "":
		box, perr := parseBBox(q.Get("bbox"))
		if perr != nil {
			s.writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		report, err = s.catalog.GenerateReport(r.Context(), dataset, &box)

	default:
		report, err = s.catalog.GenerateReport(r.Context(), dataset, nil)
	}
	if err != nil {
		s.handleCatalogError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"dataset":   dataset,
		"report":    report,
		"count":     len(report),
		"missing":   report.MissingCount(),
		"unindexed": report.UnindexedCount(),
	})
}

// handleMesh builds and streams a binary glTF mesh for the raster covering
// the requested point.
func (s *Server) handleMesh(w http.ResponseWriter, r *http.Request) {
	dataset := mux.Vars(r)["dataset"]
	q := r.URL.Query()

	lat, lon, err := parsePoint(q.Get("lat"), q.Get("lon"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mesh, err := s.mesh.BuildForLocation(r.Context(), dataset, lat, lon)
	if err != nil {
		s.handleCatalogError(w, err)
		return
	}
	if mesh == nil {
		s.writeError(w, http.StatusUnprocessableEntity, "Raster holds no elevation data")
		return
	}

	w.Header().Set("Content-Type", "model/gltf-binary")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", domain.TileCode(lat, lon)+".glb"))
	if err := s.mesh.Export(r.Context(), mesh, w); err != nil {
		s.logger.Error("mesh export failed", "error", err)
	}
}

// handleSync handles the sync trigger endpoint.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.syncService.TriggerSync(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrRateLimited) {
			w.Header().Set("Retry-After", "30")
			s.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again in 30 seconds.")
			return
		}
		s.logger.Error("sync failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Sync failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// parsePoint parses lat/lon query parameters.
func parsePoint(latStr, lonStr string) (lat, lon float64, err error) {
	if latStr == "" || lonStr == "" {
		return 0, 0, errors.New("lat and lon parameters are required")
	}
	lat, err = strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, errors.New("invalid lat parameter")
	}
	lon, err = strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return 0, 0, errors.New("invalid lon parameter")
	}
	return lat, lon, nil
}

// parseBBox parses a bbox parameter in xmin,ymin,xmax,ymax order.
func parseBBox(value string) (domain.BoundingBox, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return domain.BoundingBox{}, errors.New("bbox must be xmin,ymin,xmax,ymax")
	}
	coords := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.BoundingBox{}, errors.New("invalid bbox parameter")
		}
		coords[i] = v
	}
	return domain.NewBoundingBox(coords[0], coords[2], coords[1], coords[3]), nil
}

// handleCatalogError maps catalog errors onto HTTP status codes.
func (s *Server) handleCatalogError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		s.writeError(w, http.StatusBadRequest, validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrDatasetNotFound):
		s.writeError(w, http.StatusNotFound, "Dataset not found")
	case errors.Is(err, domain.ErrSourceMissing):
		s.writeError(w, http.StatusNotFound, "No raster covers the requested location")
	case errors.Is(err, domain.ErrUnsupportedFormat):
		s.writeError(w, http.StatusBadRequest, "Unsupported raster format")
	default:
		s.logger.Error("catalog error", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Catalog operation failed")
	}
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}
