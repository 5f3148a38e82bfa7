package densify

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/jobrunner/geodensify/internal/domain"
)

// DensifyGeometry densifies every part of a line or polygon geometry and
// returns a geometry of the same kind together with the number of inserted
// vertices. Polygon rings keep their closure and order. Point kinds and
// collections are rejected with a GeometryError.
func (d *Densifier) DensifyGeometry(g orb.Geometry) (orb.Geometry, int, error) {
	switch geom := g.(type) {
	case orb.LineString:
		return d.lineString(geom, domain.GeomLineString, 0)

	case orb.MultiLineString:
		out := make(orb.MultiLineString, 0, len(geom))
		added := 0
		for i, ls := range geom {
			dls, n, err := d.lineString(ls, domain.GeomMultiLineString, i)
			if err != nil {
				return nil, 0, err
			}
			out = append(out, dls)
			added += n
		}
		return out, added, nil

	case orb.Ring:
		return d.ring(geom, domain.GeomPolygon, 0)

	case orb.Polygon:
		return d.polygon(geom, domain.GeomPolygon, 0)

	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, 0, len(geom))
		added := 0
		part := 0
		for _, poly := range geom {
			dp, n, err := d.polygon(poly, domain.GeomMultiPolygon, part)
			if err != nil {
				return nil, 0, err
			}
			out = append(out, dp)
			added += n
			part += len(poly)
		}
		return out, added, nil
	}

	return nil, 0, &domain.GeometryError{
		Kind:   domain.KindOf(g),
		Part:   -1,
		Reason: fmt.Sprintf("cannot densify %T", g),
	}
}

func (d *Densifier) lineString(ls orb.LineString, kind domain.GeometryType, part int) (orb.LineString, int, error) {
	if len(ls) < 2 {
		return nil, 0, &domain.GeometryError{Kind: kind, Part: part, Reason: "line has fewer than 2 vertices"}
	}
	chain, err := d.DensifyChain(toGeoPoints(ls))
	if err != nil {
		return nil, 0, wrapPart(err, kind, part)
	}
	return orb.LineString(toOrbPoints(chain)), chain.Count(domain.TagDensified), nil
}

func (d *Densifier) ring(r orb.Ring, kind domain.GeometryType, part int) (orb.Ring, int, error) {
	if len(r) < 4 {
		return nil, 0, &domain.GeometryError{Kind: kind, Part: part, Reason: "ring has fewer than 4 vertices"}
	}
	if !r.Closed() {
		return nil, 0, &domain.GeometryError{Kind: kind, Part: part, Reason: "ring is not closed"}
	}
	chain, err := d.DensifyChain(toGeoPoints(r))
	if err != nil {
		return nil, 0, wrapPart(err, kind, part)
	}
	return orb.Ring(toOrbPoints(chain)), chain.Count(domain.TagDensified), nil
}

// polygon densifies the exterior ring and every interior ring. Ring parts
// are numbered from first, counting across the enclosing geometry.
func (d *Densifier) polygon(p orb.Polygon, kind domain.GeometryType, first int) (orb.Polygon, int, error) {
	if len(p) == 0 {
		return nil, 0, &domain.GeometryError{Kind: kind, Part: first, Reason: "polygon has no rings"}
	}
	out := make(orb.Polygon, 0, len(p))
	added := 0
	for i, r := range p {
		dr, n, err := d.ring(r, kind, first+i)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, dr)
		added += n
	}
	return out, added, nil
}

// wrapPart attaches geometry context to an edge failure.
func wrapPart(err error, kind domain.GeometryType, part int) error {
	return fmt.Errorf("%s part %d: %w", kind, part, err)
}

func toGeoPoints(pts []orb.Point) []domain.GeoPoint {
	out := make([]domain.GeoPoint, len(pts))
	for i, p := range pts {
		out[i] = domain.GeoPointFromOrb(p)
	}
	return out
}

func toOrbPoints(c domain.DensifiedChain) []orb.Point {
	out := make([]orb.Point, len(c))
	for i, tp := range c {
		out[i] = tp.Point.Orb()
	}
	return out
}
