package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncRunCount increments the densification run counter.
	IncRunCount(source string, success bool)

	// ObserveRunDuration records the duration of a run.
	ObserveRunDuration(source string, duration time.Duration)

	// AddFeatures records processed features by outcome (written, failed).
	AddFeatures(outcome string, count int)

	// AddPointsInserted records inserted vertices.
	AddPointsInserted(count int)

	// SetPackagesLoaded sets the number of loaded packages.
	SetPackagesLoaded(count int)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncRunCount implements MetricsCollector.
func (n *NoOpMetrics) IncRunCount(_ string, _ bool) {}

// ObserveRunDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveRunDuration(_ string, _ time.Duration) {}

// AddFeatures implements MetricsCollector.
func (n *NoOpMetrics) AddFeatures(_ string, _ int) {}

// AddPointsInserted implements MetricsCollector.
func (n *NoOpMetrics) AddPointsInserted(_ int) {}

// SetPackagesLoaded implements MetricsCollector.
func (n *NoOpMetrics) SetPackagesLoaded(_ int) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}
