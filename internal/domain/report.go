package domain

import "time"

// DensifyRequest is the run-level configuration of one densification run.
type DensifyRequest struct {
	Ellipsoid Ellipsoid
	Policy    Policy
}

// Validate checks the run configuration before any feature is processed.
func (r DensifyRequest) Validate() error {
	if err := r.Ellipsoid.Validate(); err != nil {
		return err
	}
	return r.Policy.Validate()
}

// LayerReport summarizes the densification of one layer.
type LayerReport struct {
	Layer       string       // Input layer name
	OutputLayer string       // Output layer name
	Kind        GeometryType // Geometry kind of the layer
	Features    int          // Features read
	Written     int          // Features written to the output
	Failed      int          // Features skipped because they could not be densified
	PointsAdded int          // Intermediate vertices inserted
	Skipped     string       // Reason the layer was not processed, if any
	Duration    time.Duration
}

// RunReport summarizes a densification run.
type RunReport struct {
	PackageID  string        // Input package (empty for in-memory runs)
	OutputPath string        // Output GeoPackage path (empty for in-memory runs)
	Ellipsoid  string        // Ellipsoid name
	Policy     string        // Policy label
	Layers     []LayerReport // Per-layer reports
	Duration   time.Duration // Total processing time
}

// AddLayer appends a layer report.
func (r *RunReport) AddLayer(l LayerReport) {
	r.Layers = append(r.Layers, l)
}

// Features returns the total number of features read.
func (r *RunReport) Features() int {
	n := 0
	for _, l := range r.Layers {
		n += l.Features
	}
	return n
}

// Failed returns the total number of features that failed.
func (r *RunReport) Failed() int {
	n := 0
	for _, l := range r.Layers {
		n += l.Failed
	}
	return n
}

// PointsAdded returns the total number of inserted vertices.
func (r *RunReport) PointsAdded() int {
	n := 0
	for _, l := range r.Layers {
		n += l.PointsAdded
	}
	return n
}

// HasFailures returns true if at least one feature was skipped.
func (r *RunReport) HasFailures() bool {
	return r.Failed() > 0
}

// EdgeResult is the densified form of a single geodesic edge.
type EdgeResult struct {
	From     GeoPoint   // Start point
	To       GeoPoint   // End point
	Distance float64    // Geodesic length in meters
	Azimuth  float64    // Initial azimuth in degrees
	Segments int        // Number of segments the edge was split into
	Points   []GeoPoint // Intermediate points, excluding both endpoints
}

// FeatureSet is an in-memory layer to densify.
type FeatureSet struct {
	SRID     int       // Reference frame of the feature coordinates
	Features []Feature // Features in layer order
	// PointSequence treats the point features as the ordered vertices of one
	// polyline. Otherwise point geometries are rejected.
	PointSequence bool
}
