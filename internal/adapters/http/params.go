package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/jobrunner/geodensify/internal/domain"
)

// parseDensifyRequest builds a densification request from query parameters.
// Parameters left out keep the value of defaults. Giving only spacing or only
// segments selects the matching mode.
func parseDensifyRequest(q url.Values, defaults domain.DensifyRequest) (domain.DensifyRequest, error) {
	req := defaults

	e, err := parseEllipsoid(q, defaults.Ellipsoid)
	if err != nil {
		return domain.DensifyRequest{}, err
	}
	req.Ellipsoid = e

	if v := q.Get("spacing"); v != "" {
		spacing, err := parseFloat("spacing", v)
		if err != nil {
			return domain.DensifyRequest{}, err
		}
		req.Policy.Spacing = spacing
		req.Policy.Mode = domain.ModeSpacing
	}
	if v := q.Get("segments"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return domain.DensifyRequest{}, invalidParam("segments", v, "integer")
		}
		req.Policy.Segments = n
		if q.Get("spacing") == "" {
			req.Policy.Mode = domain.ModeCount
		}
	}
	if v := q.Get("mode"); v != "" {
		mode, err := domain.ParseMode(v)
		if err != nil {
			return domain.DensifyRequest{}, err
		}
		req.Policy.Mode = mode
	}
	if v := q.Get("strategy"); v != "" {
		strategy, err := domain.ParseStrategy(v)
		if err != nil {
			return domain.DensifyRequest{}, err
		}
		req.Policy.Strategy = strategy
	}
	if v := q.Get("extra_segment"); v != "" {
		extra, err := strconv.ParseBool(v)
		if err != nil {
			return domain.DensifyRequest{}, invalidParam("extra_segment", v, "boolean")
		}
		req.Policy.ExtraSegment = extra
	}

	if err := req.Validate(); err != nil {
		return domain.DensifyRequest{}, err
	}
	return req, nil
}

// parseEllipsoid resolves the ellipsoid from either a preset name or the
// custom parameters a and inv_f, which must be given together.
func parseEllipsoid(q url.Values, def domain.Ellipsoid) (domain.Ellipsoid, error) {
	a, invF := q.Get("a"), q.Get("inv_f")
	name := q.Get("ellipsoid")

	switch {
	case a != "" || invF != "":
		if a == "" || invF == "" {
			return domain.Ellipsoid{}, &domain.ValidationError{
				Field:      "a",
				Value:      a,
				Constraint: "a and inv_f",
				Message:    "custom ellipsoids need both a and inv_f",
			}
		}
		if name != "" {
			return domain.Ellipsoid{}, &domain.ValidationError{
				Field:      "ellipsoid",
				Value:      name,
				Constraint: "preset or a/inv_f",
				Message:    "give either a preset name or custom parameters",
			}
		}
		av, err := parseFloat("a", a)
		if err != nil {
			return domain.Ellipsoid{}, err
		}
		fv, err := parseFloat("inv_f", invF)
		if err != nil {
			return domain.Ellipsoid{}, err
		}
		return domain.Ellipsoid{Name: "custom", A: av, InvFlattening: fv}, nil
	case name != "":
		e, ok := domain.LookupEllipsoid(name)
		if !ok {
			return domain.Ellipsoid{}, &domain.ValidationError{
				Field:      "ellipsoid",
				Value:      name,
				Constraint: "known preset",
				Message:    "unknown ellipsoid, see /api/v1/ellipsoids",
			}
		}
		return e, nil
	default:
		return def, nil
	}
}

// parseSRID returns the srid parameter, EPSG:4326 if absent.
func parseSRID(q url.Values) (int, error) {
	v := q.Get("srid")
	if v == "" {
		return domain.SRIDWGS84, nil
	}
	srid, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(v), "EPSG:"))
	if err != nil {
		return 0, invalidParam("srid", v, "integer EPSG code")
	}
	return srid, nil
}

// parseLatLon parses a lat/lon parameter pair into a point.
func parseLatLon(q url.Values, latKey, lonKey string) (domain.GeoPoint, error) {
	lat, err := requireFloat(q, latKey)
	if err != nil {
		return domain.GeoPoint{}, err
	}
	lon, err := requireFloat(q, lonKey)
	if err != nil {
		return domain.GeoPoint{}, err
	}
	p := domain.NewGeoPoint(lon, lat)
	if err := p.Validate(); err != nil {
		return domain.GeoPoint{}, err
	}
	return p, nil
}

func requireFloat(q url.Values, key string) (float64, error) {
	v := q.Get(key)
	if v == "" {
		return 0, &domain.ValidationError{Field: key, Constraint: "required", Message: fmt.Sprintf("missing %s parameter", key)}
	}
	return parseFloat(key, v)
}

func parseFloat(key, v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, invalidParam(key, v, "finite number")
	}
	return f, nil
}

func invalidParam(key, v, constraint string) error {
	return &domain.ValidationError{
		Field:      key,
		Value:      v,
		Constraint: constraint,
		Message:    fmt.Sprintf("invalid %s parameter", key),
	}
}
