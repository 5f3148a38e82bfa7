// Package geodesic adapts the GeographicLib port to the GeodesicEngine port.
package geodesic

import (
	"fmt"
	"math"

	"github.com/tidwall/geodesic"

	"github.com/jobrunner/geodensify/internal/domain"
	"github.com/jobrunner/geodensify/internal/ports/output"
)

// Engine implements output.GeodesicEngine on one ellipsoid.
type Engine struct {
	ellipsoid domain.Ellipsoid
	geod      *geodesic.Ellipsoid
}

// New creates an engine for the given ellipsoid.
func New(e domain.Ellipsoid) (*Engine, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		ellipsoid: e,
		geod:      geodesic.NewEllipsoid(e.A, e.Flattening()),
	}, nil
}

// Factory creates engines for the application services.
func Factory(e domain.Ellipsoid) (output.GeodesicEngine, error) {
	engine, err := New(e)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// Ellipsoid returns the ellipsoid the engine computes on.
func (e *Engine) Ellipsoid() domain.Ellipsoid {
	return e.ellipsoid
}

// InverseLine solves the inverse problem between p1 and p2.
func (e *Engine) InverseLine(p1, p2 domain.GeoPoint) (output.GeodesicLine, error) {
	if err := p1.Validate(); err != nil {
		return nil, fmt.Errorf("%w: start: %w", domain.ErrInvalidCoordinate, err)
	}
	if err := p2.Validate(); err != nil {
		return nil, fmt.Errorf("%w: end: %w", domain.ErrInvalidCoordinate, err)
	}

	var s12, azi1 float64
	e.geod.Inverse(p1.Lat, p1.Lon, p2.Lat, p2.Lon, &s12, &azi1, nil)
	if math.IsNaN(s12) || math.IsNaN(azi1) {
		return nil, fmt.Errorf("%w: no solution between %s and %s", domain.ErrDegenerateEdge, p1, p2)
	}

	return &Line{
		geod:     e.geod,
		start:    p1,
		azimuth:  azi1,
		distance: s12,
	}, nil
}

// Line is the geodesic from a start point along an initial azimuth.
type Line struct {
	geod     *geodesic.Ellipsoid
	start    domain.GeoPoint
	azimuth  float64 // Initial azimuth in degrees, clockwise from north
	distance float64 // Arc length s13 in meters
}

// Distance returns the arc length in meters.
func (l *Line) Distance() float64 {
	return l.distance
}

// Azimuth returns the initial azimuth in degrees.
func (l *Line) Azimuth() float64 {
	return l.azimuth
}

// PositionAt returns the point at arc length s from the start.
func (l *Line) PositionAt(s float64, unroll bool) domain.GeoPoint {
	if s == 0 {
		return l.start
	}

	var lat, lon float64
	l.geod.Direct(l.start.Lat, l.start.Lon, l.azimuth, s, &lat, &lon, nil)

	if unroll {
		lon = l.start.Lon + angDiff(l.start.Lon, lon)
	}
	return domain.GeoPoint{Lon: lon, Lat: lat}
}

// angDiff returns y-x reduced to [-180, 180].
func angDiff(x, y float64) float64 {
	return math.Remainder(y-x, 360)
}
