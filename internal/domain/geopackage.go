package domain

import "time"

// GeoPackage represents a registered input GeoPackage file.
type GeoPackage struct {
	ID          string     // Unique identifier (derived from filename)
	Name        string     // Display name
	Path        string     // File path
	Size        int64      // File size in bytes
	Layers      []Layer    // Feature layers
	LoadedAt    time.Time  // Load timestamp
	DensifiedAt time.Time  // Completion time of the last densification run
	LastReport  *RunReport // Report of the last densification run
}

// LayerCount returns the number of feature layers.
func (g *GeoPackage) LayerCount() int {
	return len(g.Layers)
}

// GetLayer returns a layer by name.
func (g *GeoPackage) GetLayer(name string) (*Layer, bool) {
	for i := range g.Layers {
		if g.Layers[i].Name == name {
			return &g.Layers[i], true
		}
	}
	return nil, false
}

// Layer represents a feature layer within a GeoPackage.
type Layer struct {
	Name           string       // Layer name from gpkg_contents.table_name
	Description    string       // Layer description
	IDColumn       string       // Integer primary key column (usually fid)
	GeometryColumn string       // Name of the geometry column
	GeometryType   GeometryType // Geometry type (POINT, POLYGON, etc.)
	SRID           int          // Spatial Reference ID
	Fields         []Field      // Attribute columns, excluding fid and geometry
	FeatureCount   int64        // Number of features
}

// HasReferenceFrame reports whether the layer's coordinates can be interpreted geographically.
func (l *Layer) HasReferenceFrame() bool {
	return HasReferenceFrame(l.SRID)
}

// FieldNames returns the attribute column names in order.
func (l *Layer) FieldNames() []string {
	names := make([]string, len(l.Fields))
	for i, f := range l.Fields {
		names[i] = f.Name
	}
	return names
}

// Field is an attribute column of a feature layer.
type Field struct {
	Name string // Column name
	Type string // Declared SQLite type (TEXT, INTEGER, REAL, ...)
}

// GeoPackageStatus represents the status of a GeoPackage.
type GeoPackageStatus string

const (
	StatusLoading    GeoPackageStatus = "loading"
	StatusReady      GeoPackageStatus = "ready"
	StatusDensifying GeoPackageStatus = "densifying"
	StatusDensified  GeoPackageStatus = "densified"
	StatusError      GeoPackageStatus = "error"
	StatusUnloading  GeoPackageStatus = "unloading"
)
