package densify

import (
	"errors"
	"math"
	"testing"

	"github.com/jobrunner/geodensify/internal/domain"
)

func TestOffsets(t *testing.T) {
	symmetrical := func(p domain.Policy) domain.Policy {
		p.Strategy = domain.StrategySymmetrical
		return p
	}

	tests := []struct {
		name   string
		policy domain.Policy
		total  float64
		want   []float64
	}{
		{"leading spacing", domain.SpacingPolicy(900), 2000, []float64{2000.0 / 3, 4000.0 / 3}},
		{"short edge", domain.SpacingPolicy(900), 400, nil},
		{"edge equal to spacing", domain.SpacingPolicy(900), 900, nil},
		{"exact multiple", domain.SpacingPolicy(900), 2700, []float64{900, 1800}},
		{"zero length", domain.SpacingPolicy(900), 0, nil},
		{"below degenerate length", domain.SpacingPolicy(900), 1e-12, nil},
		{"NaN length", domain.SpacingPolicy(900), math.NaN(), nil},
		{"count", domain.CountPolicy(4), 100, []float64{25, 50, 75}},
		{"count single segment", domain.CountPolicy(1), 100, nil},
		{"count ignores short edge rule", domain.CountPolicy(3), 400, []float64{400.0 / 3, 800.0 / 3}},
		{"count zero length", domain.CountPolicy(3), 0, nil},
		{"symmetrical spacing", symmetrical(domain.SpacingPolicy(900)), 2000, []float64{100, 1000, 1900}},
		{"symmetrical exact multiple", symmetrical(domain.SpacingPolicy(900)), 2700, []float64{900, 1800}},
		{"symmetrical short edge", symmetrical(domain.SpacingPolicy(900)), 850, nil},
		{"symmetrical count", symmetrical(domain.CountPolicy(4)), 100, []float64{25, 50, 75}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff(t, tt.want, Offsets(tt.policy, tt.total), approx)
		})
	}
}

func TestOffsetsExtraSegment(t *testing.T) {
	p := domain.SpacingPolicy(5000)
	p.ExtraSegment = true

	const total = 3120877.27
	got := Offsets(p, total)
	if len(got) != 625 {
		t.Fatalf("len(offsets) = %d, want 625", len(got))
	}
	if math.Abs(got[0]-total/626) > 1e-6 {
		t.Errorf("offsets[0] = %v, want %v", got[0], total/626)
	}
}

func TestOffsetsSpacingBound(t *testing.T) {
	for _, strategy := range []domain.Strategy{domain.StrategyLeading, domain.StrategySymmetrical} {
		p := domain.SpacingPolicy(900)
		p.Strategy = strategy

		for _, total := range []float64{901, 1799.5, 1800, 12345.678, 99999.9} {
			offsets := Offsets(p, total)
			prev := 0.0
			for _, s := range append(offsets, total) {
				if gap := s - prev; gap > p.Spacing+1e-9 || gap <= 0 {
					t.Errorf("%s total=%v: gap %v not in (0, %v]", strategy, total, gap, p.Spacing)
				}
				prev = s
			}
			if strategy == domain.StrategyLeading {
				if want := int(math.Ceil(total/p.Spacing)) - 1; len(offsets) != want {
					t.Errorf("leading total=%v: %d offsets, want %d", total, len(offsets), want)
				}
			} else {
				first := offsets[0]
				last := total - offsets[len(offsets)-1]
				if math.Abs(first-last) > 1e-6 {
					t.Errorf("symmetrical total=%v: end gaps %v and %v differ", total, first, last)
				}
			}
		}
	}
}

func TestNewValidatesPolicy(t *testing.T) {
	d := newDensifier(t, domain.EllipsoidWGS84, domain.DefaultPolicy())
	engine := d.engine

	if _, err := New(engine, domain.SpacingPolicy(0)); !errors.Is(err, domain.ErrInvalidPolicy) {
		t.Errorf("New(spacing 0) error = %v, want ErrInvalidPolicy", err)
	}
	if _, err := New(engine, domain.CountPolicy(0)); !errors.Is(err, domain.ErrInvalidPolicy) {
		t.Errorf("New(count 0) error = %v, want ErrInvalidPolicy", err)
	}
	if _, err := New(nil, domain.DefaultPolicy()); err == nil {
		t.Error("New(nil engine) succeeded")
	}
}

func TestDensifyEdgeCanberraDarwin(t *testing.T) {
	p := domain.SpacingPolicy(5000)
	p.ExtraSegment = true
	e := domain.EllipsoidGRS80Precise
	d := newDensifier(t, e, p)

	canberra := domain.NewGeoPoint(149.1, -35.183)
	darwin := domain.NewGeoPoint(130.8, -12.45)

	total := distance(t, e, canberra, darwin)
	if got := math.Round(total/100) * 100; got != 3120900 {
		t.Errorf("total = %.2f, want about 3120900", total)
	}

	points, err := d.DensifyEdge(canberra, darwin)
	if err != nil {
		t.Fatalf("DensifyEdge failed: %v", err)
	}

	n := int(math.Ceil(total/5000)) + 1
	if len(points) != n-1 {
		t.Fatalf("len(points) = %d, want %d", len(points), n-1)
	}
	if got := distance(t, e, canberra, points[0]); math.Abs(got-total/float64(n)) > 1e-3 {
		t.Errorf("first point at %v m, want %v m", got, total/float64(n))
	}
	if got := distance(t, e, points[len(points)-1], darwin); math.Abs(got-total/float64(n)) > 1e-3 {
		t.Errorf("last gap %v m, want %v m", got, total/float64(n))
	}
}

func TestDensifyEdgeShortEdge(t *testing.T) {
	d := newDensifier(t, domain.EllipsoidWGS84, domain.SpacingPolicy(900))

	// About 400 m along the equator.
	points, err := d.DensifyEdge(domain.NewGeoPoint(0, 0), domain.NewGeoPoint(0.0036, 0))
	if err != nil {
		t.Fatalf("DensifyEdge failed: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("len(points) = %d, want 0", len(points))
	}
}

func TestDensifyEdgeCoincident(t *testing.T) {
	d := newDensifier(t, domain.EllipsoidWGS84, domain.CountPolicy(5))
	p := domain.NewGeoPoint(10, 50)

	points, err := d.DensifyEdge(p, p)
	if err != nil {
		t.Fatalf("DensifyEdge failed: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("len(points) = %d, want 0", len(points))
	}
}

func TestDensifyEdgeCount(t *testing.T) {
	e := domain.EllipsoidWGS84
	d := newDensifier(t, e, domain.CountPolicy(4))
	p1 := domain.NewGeoPoint(8.68, 50.11)
	p2 := domain.NewGeoPoint(13.40, 52.52)

	points, err := d.DensifyEdge(p1, p2)
	if err != nil {
		t.Fatalf("DensifyEdge failed: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("len(points) = %d, want 3", len(points))
	}

	total := distance(t, e, p1, p2)
	prev := p1
	for i, p := range append(points, p2) {
		if got := distance(t, e, prev, p); math.Abs(got-total/4) > 1e-3 {
			t.Errorf("segment %d length = %v, want %v", i, got, total/4)
		}
		prev = p
	}
}

func TestDensifyEdgeAntimeridian(t *testing.T) {
	d := newDensifier(t, domain.EllipsoidWGS84, domain.CountPolicy(4))

	points, err := d.DensifyEdge(domain.NewGeoPoint(179, 0), domain.NewGeoPoint(-179, 0))
	if err != nil {
		t.Fatalf("DensifyEdge failed: %v", err)
	}
	got := make([]float64, len(points))
	for i, p := range points {
		got[i] = p.Lon
	}
	diff(t, []float64{179.5, 180, 180.5}, got, approx)
}

func TestDensifyEdgeInvalidCoordinate(t *testing.T) {
	d := newDensifier(t, domain.EllipsoidWGS84, domain.DefaultPolicy())

	_, err := d.DensifyEdge(domain.NewGeoPoint(0, 0), domain.NewGeoPoint(math.NaN(), 1))
	if !errors.Is(err, domain.ErrInvalidCoordinate) {
		t.Errorf("DensifyEdge error = %v, want ErrInvalidCoordinate", err)
	}
}

func TestDensifyChain(t *testing.T) {
	d := newDensifier(t, domain.EllipsoidWGS84, domain.CountPolicy(3))
	chain := []domain.GeoPoint{
		domain.NewGeoPoint(0, 0),
		domain.NewGeoPoint(1, 0),
		domain.NewGeoPoint(1, 1),
	}

	out, err := d.DensifyChain(chain)
	if err != nil {
		t.Fatalf("DensifyChain failed: %v", err)
	}

	wantTags := []domain.PointTag{
		domain.TagOriginal, domain.TagDensified, domain.TagDensified,
		domain.TagOriginal, domain.TagDensified, domain.TagDensified,
		domain.TagOriginal,
	}
	gotTags := make([]domain.PointTag, len(out))
	for i, tp := range out {
		gotTags[i] = tp.Tag
	}
	diff(t, wantTags, gotTags)
	diff(t, chain, out.Originals())
}

func TestDensifyChainTooShort(t *testing.T) {
	d := newDensifier(t, domain.EllipsoidWGS84, domain.DefaultPolicy())

	_, err := d.DensifyChain([]domain.GeoPoint{domain.NewGeoPoint(0, 0)})
	if !errors.Is(err, domain.ErrUnsupportedGeometry) {
		t.Errorf("DensifyChain error = %v, want ErrUnsupportedGeometry", err)
	}
}
