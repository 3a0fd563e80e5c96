// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the MetricsCollector port using Prometheus.
type Collector struct {
	manifestsGenerated  *prometheus.CounterVec
	generateDuration    *prometheus.HistogramVec
	datasetsCached      prometheus.Gauge
	manifestsCached     prometheus.Gauge
	migrationsTotal     *prometheus.CounterVec
	storageOperations   *prometheus.CounterVec
	meshBuildDuration   prometheus.Histogram
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a new Prometheus metrics collector.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "demgrid"
	}

	return &Collector{
		manifestsGenerated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "manifests_generated_total",
				Help:      "Total number of manifest generation attempts",
			},
			[]string{"dataset", "status"},
		),

		generateDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generate_duration_seconds",
				Help:      "Dataset generation run duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"dataset"},
		),

		datasetsCached: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "datasets_cached",
				Help:      "Number of datasets with a populated manifest cache",
			},
		),

		manifestsCached: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "manifests_cached",
				Help:      "Total number of cached metadata records",
			},
		),

		migrationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "manifest_migrations_total",
				Help:      "Total number of manifest version migrations",
			},
			[]string{"status"},
		),

		storageOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_operations_total",
				Help:      "Total number of storage operations",
			},
			[]string{"operation", "status"},
		),

		meshBuildDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "mesh_build_duration_seconds",
				Help:      "Mesh triangulation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// IncManifestGenerated increments the per-file generation counter.
func (c *Collector) IncManifestGenerated(dataset string, success bool) {
	c.manifestsGenerated.WithLabelValues(dataset, statusLabel(success)).Inc()
}

// ObserveGenerateDuration records the duration of a dataset generation run.
func (c *Collector) ObserveGenerateDuration(dataset string, duration time.Duration) {
	c.generateDuration.WithLabelValues(dataset).Observe(duration.Seconds())
}

// SetDatasetsCached sets the number of datasets with a populated cache.
func (c *Collector) SetDatasetsCached(count int) {
	c.datasetsCached.Set(float64(count))
}

// SetManifestsCached sets the total number of cached metadata records.
func (c *Collector) SetManifestsCached(count int) {
	c.manifestsCached.Set(float64(count))
}

// IncMigrationCount increments the manifest migration counter.
func (c *Collector) IncMigrationCount(success bool) {
	c.migrationsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// IncStorageOperations increments storage operation counter.
func (c *Collector) IncStorageOperations(operation string, success bool) {
	c.storageOperations.WithLabelValues(operation, statusLabel(success)).Inc()
}

// ObserveMeshBuild records the duration of a mesh triangulation.
func (c *Collector) ObserveMeshBuild(duration time.Duration) {
	c.meshBuildDuration.Observe(duration.Seconds())
}

// IncHTTPRequests increments the HTTP request counter.
func (c *Collector) IncHTTPRequests(method, path, status string) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// ObserveHTTPDuration records HTTP request duration.
func (c *Collector) ObserveHTTPDuration(method, path string, duration time.Duration) {
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns HTTP middleware for metrics collection.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		path := normalizePath(r.URL.Path)
		status := statusToString(wrapped.statusCode)

		c.IncHTTPRequests(r.Method, path, status)
		c.ObserveHTTPDuration(r.Method, path, duration)
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes the URL path for metrics.
func normalizePath(path string) string {
	// Replace dynamic segments with placeholders
	// This prevents high cardinality metrics
	switch {
	case len(path) > 20:
		return path[:20] + "..."
	default:
		return path
	}
}

// statusToString converts HTTP status code to string category.
func statusToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
