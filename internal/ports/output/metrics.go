package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncManifestGenerated increments the per-file generation counter.
	IncManifestGenerated(dataset string, success bool)

	// ObserveGenerateDuration records the duration of a dataset generation run.
	ObserveGenerateDuration(dataset string, duration time.Duration)

	// SetDatasetsCached sets the number of datasets with a populated cache.
	SetDatasetsCached(count int)

	// SetManifestsCached sets the total number of cached metadata records.
	SetManifestsCached(count int)

	// IncMigrationCount increments the manifest migration counter.
	IncMigrationCount(success bool)

	// IncStorageOperations increments the storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveMeshBuild records the duration of a mesh triangulation.
	ObserveMeshBuild(duration time.Duration)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncManifestGenerated implements MetricsCollector.
func (n *NoOpMetrics) IncManifestGenerated(_ string, _ bool) {}

// ObserveGenerateDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveGenerateDuration(_ string, _ time.Duration) {}

// SetDatasetsCached implements MetricsCollector.
func (n *NoOpMetrics) SetDatasetsCached(_ int) {}

// SetManifestsCached implements MetricsCollector.
func (n *NoOpMetrics) SetManifestsCached(_ int) {}

// IncMigrationCount implements MetricsCollector.
func (n *NoOpMetrics) IncMigrationCount(_ bool) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveMeshBuild implements MetricsCollector.
func (n *NoOpMetrics) ObserveMeshBuild(_ time.Duration) {}
