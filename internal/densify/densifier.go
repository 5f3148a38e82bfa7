// Package densify inserts vertices along the geodesics between consecutive
// vertices of lines, rings and point sequences.
package densify

import (
	"errors"
	"math"

	"github.com/jobrunner/geodensify/internal/domain"
	"github.com/jobrunner/geodensify/internal/ports/output"
)

const (
	// degenerateLength is the edge length in meters below which an edge is
	// treated as coincident endpoints.
	degenerateLength = 1e-9

	// residualTolerance is the leftover length in meters below which an edge
	// counts as an exact multiple of the spacing.
	residualTolerance = 1e-6
)

// Densifier densifies vertex chains on one ellipsoid with one policy.
// It holds no mutable state and is safe for concurrent use.
type Densifier struct {
	engine output.GeodesicEngine
	policy domain.Policy
}

// New creates a Densifier. The policy is validated once here.
func New(engine output.GeodesicEngine, policy domain.Policy) (*Densifier, error) {
	if engine == nil {
		return nil, errors.New("densify: geodesic engine is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Densifier{engine: engine, policy: policy}, nil
}

// Policy returns the densification policy.
func (d *Densifier) Policy() domain.Policy {
	return d.policy
}

// Ellipsoid returns the ellipsoid of the underlying engine.
func (d *Densifier) Ellipsoid() domain.Ellipsoid {
	return d.engine.Ellipsoid()
}

// DensifyEdge returns the intermediate points between p1 and p2, excluding both endpoints.
func (d *Densifier) DensifyEdge(p1, p2 domain.GeoPoint) ([]domain.GeoPoint, error) {
	line, err := d.engine.InverseLine(p1, p2)
	if err != nil {
		return nil, err
	}

	offsets := Offsets(d.policy, line.Distance())
	points := make([]domain.GeoPoint, len(offsets))
	for i, s := range offsets {
		points[i] = line.PositionAt(s, true)
	}
	return points, nil
}

// DensifyChain densifies a vertex chain. The input vertices are emitted
// unchanged and tagged Original, so a closed chain stays closed.
func (d *Densifier) DensifyChain(chain []domain.GeoPoint) (domain.DensifiedChain, error) {
	if len(chain) < 2 {
		return nil, &domain.GeometryError{Kind: domain.GeomLineString, Part: -1, Reason: "fewer than 2 vertices"}
	}

	out := make(domain.DensifiedChain, 0, len(chain))
	out = append(out, domain.TaggedPoint{Point: chain[0], Tag: domain.TagOriginal})
	for i := 1; i < len(chain); i++ {
		between, err := d.DensifyEdge(chain[i-1], chain[i])
		if err != nil {
			return nil, err
		}
		for _, p := range between {
			out = append(out, domain.TaggedPoint{Point: p, Tag: domain.TagDensified})
		}
		out = append(out, domain.TaggedPoint{Point: chain[i], Tag: domain.TagOriginal})
	}
	return out, nil
}

// Offsets returns the arc-length offsets, in meters from the edge start, of
// the intermediate points of an edge of the given length.
func Offsets(p domain.Policy, total float64) []float64 {
	if !(total > degenerateLength) {
		return nil
	}
	// Edges no longer than the spacing stay a single segment.
	if p.Mode == domain.ModeSpacing && total <= p.Spacing {
		return nil
	}
	if p.Strategy == domain.StrategySymmetrical {
		return symmetricalOffsets(p, total)
	}

	n := p.SegmentCount(total)
	if n <= 1 {
		return nil
	}
	seglen := total / float64(n)
	offsets := make([]float64, 0, n-1)
	for k := 1; k < n; k++ {
		offsets = append(offsets, seglen*float64(k))
	}
	return offsets
}

// symmetricalOffsets spaces points at the policy spacing and centres the
// pattern, so the first and last gaps are both half the leftover length.
func symmetricalOffsets(p domain.Policy, total float64) []float64 {
	spacing := p.Spacing
	if p.Mode == domain.ModeCount {
		spacing = total / float64(p.Segments)
	}

	residual := math.Mod(total, spacing)
	if residual < residualTolerance || spacing-residual < residualTolerance {
		n := int(math.Round(total / spacing))
		if n <= 1 {
			return nil
		}
		offsets := make([]float64, 0, n-1)
		for k := 1; k < n; k++ {
			offsets = append(offsets, spacing*float64(k))
		}
		return offsets
	}

	n := int(math.Ceil(total / spacing))
	offsets := make([]float64, 0, n)
	for k := 0; k < n; k++ {
		offsets = append(offsets, residual/2+spacing*float64(k))
	}
	return offsets
}
