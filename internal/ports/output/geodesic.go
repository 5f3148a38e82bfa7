package output

import "github.com/jobrunner/geodensify/internal/domain"

// GeodesicEngine defines the secondary port for ellipsoidal geodesic computations.
// An engine is bound to one ellipsoid and is safe for concurrent use.
type GeodesicEngine interface {
	// InverseLine solves the inverse problem between two points.
	// Coincident points yield a line of zero length.
	InverseLine(p1, p2 domain.GeoPoint) (GeodesicLine, error)

	// Ellipsoid returns the ellipsoid the engine computes on.
	Ellipsoid() domain.Ellipsoid
}

// GeodesicLine is the geodesic between two points, owned by a single caller.
type GeodesicLine interface {
	// Distance returns the arc length from start to end in meters.
	Distance() float64

	// Azimuth returns the initial azimuth in degrees clockwise from north.
	Azimuth() float64

	// PositionAt returns the point at arc length s from the start.
	// With unroll set the longitude is continuous with the start longitude.
	PositionAt(s float64, unroll bool) domain.GeoPoint
}

// GeodesicEngineFactory creates an engine for an ellipsoid.
type GeodesicEngineFactory func(e domain.Ellipsoid) (GeodesicEngine, error)
