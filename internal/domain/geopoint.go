// Package domain contains the core business entities and value objects.
package domain

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// GeoPoint is a geographic position in degrees in the working frame (EPSG:4326).
// Lon may be unrolled past ±180 to keep a chain continuous across the antimeridian.
type GeoPoint struct {
	Lon float64
	Lat float64
}

// NewGeoPoint creates a GeoPoint from longitude and latitude.
func NewGeoPoint(lon, lat float64) GeoPoint {
	return GeoPoint{Lon: lon, Lat: lat}
}

// GeoPointFromOrb converts an orb point (x=lon, y=lat).
func GeoPointFromOrb(p orb.Point) GeoPoint {
	return GeoPoint{Lon: p[0], Lat: p[1]}
}

// Orb returns the point as an orb.Point.
func (p GeoPoint) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// IsFinite reports whether both components are finite numbers.
func (p GeoPoint) IsFinite() bool {
	return !math.IsNaN(p.Lon) && !math.IsInf(p.Lon, 0) &&
		!math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0)
}

// Validate checks that the point can be used as a geodesic endpoint.
func (p GeoPoint) Validate() error {
	if !p.IsFinite() {
		return &ValidationError{
			Field:      "coordinate",
			Value:      p,
			Constraint: "finite",
			Message:    "coordinate must be finite",
		}
	}
	if p.Lat < -90 || p.Lat > 90 {
		return &ValidationError{
			Field:      "latitude",
			Value:      p.Lat,
			Constraint: "[-90, 90]",
			Message:    "latitude must be between -90 and 90",
		}
	}
	return nil
}

// String returns a string representation of the point.
func (p GeoPoint) String() string {
	return fmt.Sprintf("POINT(%f %f)", p.Lon, p.Lat)
}

// Common SRID constants.
const (
	SRIDUndefinedCartesian  = -1    // GeoPackage undefined cartesian frame
	SRIDUndefinedGeographic = 0     // GeoPackage undefined geographic frame
	SRIDWGS84               = 4326  // WGS 84
	SRIDGDA94               = 4283  // GDA94
	SRIDWebMercator         = 3857  // Web Mercator
	SRIDETRS89UTM32N        = 25832 // ETRS89 / UTM zone 32N
	SRIDETRS89UTM33N        = 25833 // ETRS89 / UTM zone 33N
)

// HasReferenceFrame reports whether the SRID identifies a defined reference frame.
// The two GeoPackage "undefined" frames do not.
func HasReferenceFrame(srid int) bool {
	return srid > 0
}
