package domain

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		geom orb.Geometry
		want GeometryType
	}{
		{orb.Point{1, 2}, GeomPoint},
		{orb.MultiPoint{{1, 2}}, GeomMultiPoint},
		{orb.LineString{{0, 0}, {1, 1}}, GeomLineString},
		{orb.MultiLineString{}, GeomMultiLineString},
		{orb.Ring{}, GeomPolygon},
		{orb.Polygon{}, GeomPolygon},
		{orb.MultiPolygon{}, GeomMultiPolygon},
		{orb.Collection{}, GeomGeometryCollection},
		{orb.Bound{}, GeomUnknown},
		{nil, GeomUnknown},
	}

	for _, tt := range tests {
		if got := KindOf(tt.geom); got != tt.want {
			t.Errorf("KindOf(%T) = %s, want %s", tt.geom, got, tt.want)
		}
	}
}

func TestParseGeometryType(t *testing.T) {
	tests := map[string]GeometryType{
		"LineString":      GeomLineString,
		"MULTIPOLYGON":    GeomMultiPolygon,
		" point ":         GeomPoint,
		"MultiLineString": GeomMultiLineString,
		"GEOMETRY":        GeomUnknown,
		"CURVEPOLYGON":    GeomUnknown,
	}
	for in, want := range tests {
		if got := ParseGeometryType(in); got != want {
			t.Errorf("ParseGeometryType(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestGeometryTypeTitle(t *testing.T) {
	tests := map[GeometryType]string{
		GeomMultiPoint:         "Point",
		GeomLineString:         "Line",
		GeomMultiPolygon:       "Polygon",
		GeomGeometryCollection: "Geometry",
	}
	for kind, want := range tests {
		if got := kind.Title(); got != want {
			t.Errorf("%s.Title() = %q, want %q", kind, got, want)
		}
	}
}

func TestFeatureProperties(t *testing.T) {
	f := &Feature{ID: 1, Geometry: orb.Point{1, 2}, Properties: map[string]interface{}{"name": "A"}}

	if v, ok := f.GetProperty("name"); !ok || v != "A" {
		t.Errorf("GetProperty(name) = %v, %v", v, ok)
	}
	if _, ok := f.GetProperty("missing"); ok {
		t.Error("GetProperty(missing) should not be found")
	}
	if _, ok := (&Feature{}).GetProperty("name"); ok {
		t.Error("GetProperty on nil properties should not be found")
	}

	clone := f.CloneProperties()
	clone["name"] = "B"
	if f.Properties["name"] != "A" {
		t.Error("CloneProperties should not share the map")
	}
	if f.Kind() != GeomPoint {
		t.Errorf("Kind() = %s, want POINT", f.Kind())
	}
}
