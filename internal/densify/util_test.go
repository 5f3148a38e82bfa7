package densify

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/jobrunner/geodensify/internal/adapters/geodesic"
	"github.com/jobrunner/geodensify/internal/domain"
)

func diff(t *testing.T, want, got any, opts ...cmp.Option) {
	t.Helper()
	if d := cmp.Diff(want, got, opts...); d != "" {
		t.Error(d)
	}
}

// approx compares floats to within a micrometer or 1e-12 relative.
var approx = cmpopts.EquateApprox(1e-12, 1e-6)

func newDensifier(t *testing.T, e domain.Ellipsoid, p domain.Policy) *Densifier {
	t.Helper()
	engine, err := geodesic.New(e)
	if err != nil {
		t.Fatalf("geodesic.New failed: %v", err)
	}
	d, err := New(engine, p)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d
}

func distance(t *testing.T, e domain.Ellipsoid, p1, p2 domain.GeoPoint) float64 {
	t.Helper()
	engine, err := geodesic.New(e)
	if err != nil {
		t.Fatalf("geodesic.New failed: %v", err)
	}
	line, err := engine.InverseLine(p1, p2)
	if err != nil {
		t.Fatalf("InverseLine failed: %v", err)
	}
	return line.Distance()
}
