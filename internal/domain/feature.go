package domain

import (
	"strings"

	"github.com/paulmach/orb"
)

// Feature represents a geo feature with geometry and properties.
type Feature struct {
	ID         int64                  // Feature ID (fid)
	Geometry   orb.Geometry           // Geometry in the layer's reference frame
	Properties map[string]interface{} // Attribute data
}

// GetProperty returns a property value by key.
func (f *Feature) GetProperty(key string) (interface{}, bool) {
	if f.Properties == nil {
		return nil, false
	}
	v, ok := f.Properties[key]
	return v, ok
}

// CloneProperties returns a shallow copy of the feature's properties.
func (f *Feature) CloneProperties() map[string]interface{} {
	props := make(map[string]interface{}, len(f.Properties)+1)
	for k, v := range f.Properties {
		props[k] = v
	}
	return props
}

// Kind returns the geometry kind of the feature.
func (f *Feature) Kind() GeometryType {
	return KindOf(f.Geometry)
}

// GeometryType represents the type of a geometry.
type GeometryType string

// Geometry type constants.
const (
	GeomUnknown            GeometryType = "GEOMETRY"
	GeomPoint              GeometryType = "POINT"
	GeomLineString         GeometryType = "LINESTRING"
	GeomPolygon            GeometryType = "POLYGON"
	GeomMultiPoint         GeometryType = "MULTIPOINT"
	GeomMultiLineString    GeometryType = "MULTILINESTRING"
	GeomMultiPolygon       GeometryType = "MULTIPOLYGON"
	GeomGeometryCollection GeometryType = "GEOMETRYCOLLECTION"
)

// KindOf classifies an orb geometry.
func KindOf(g orb.Geometry) GeometryType {
	switch g.(type) {
	case orb.Point:
		return GeomPoint
	case orb.MultiPoint:
		return GeomMultiPoint
	case orb.LineString:
		return GeomLineString
	case orb.MultiLineString:
		return GeomMultiLineString
	case orb.Ring, orb.Polygon:
		return GeomPolygon
	case orb.MultiPolygon:
		return GeomMultiPolygon
	case orb.Collection:
		return GeomGeometryCollection
	}
	return GeomUnknown
}

// ParseGeometryType normalizes a geometry type name as stored in
// gpkg_geometry_columns (e.g. "LineString", "MULTIPOLYGON").
func ParseGeometryType(name string) GeometryType {
	switch t := GeometryType(strings.ToUpper(strings.TrimSpace(name))); t {
	case GeomPoint, GeomLineString, GeomPolygon, GeomMultiPoint,
		GeomMultiLineString, GeomMultiPolygon, GeomGeometryCollection:
		return t
	}
	return GeomUnknown
}

// IsPoint returns true for point kinds.
func (t GeometryType) IsPoint() bool {
	return t == GeomPoint || t == GeomMultiPoint
}

// IsLine returns true for line kinds.
func (t GeometryType) IsLine() bool {
	return t == GeomLineString || t == GeomMultiLineString
}

// IsPolygon returns true for polygon kinds.
func (t GeometryType) IsPolygon() bool {
	return t == GeomPolygon || t == GeomMultiPolygon
}

// Title returns the kind in the word form used for output layer names.
func (t GeometryType) Title() string {
	switch {
	case t.IsPoint():
		return "Point"
	case t.IsLine():
		return "Line"
	case t.IsPolygon():
		return "Polygon"
	}
	return "Geometry"
}
