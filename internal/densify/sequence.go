package densify

import (
	"github.com/jobrunner/geodensify/internal/domain"
)

// SequencePoint is one emitted point of a densified point sequence.
type SequencePoint struct {
	domain.TaggedPoint
	// Source is the index of the input point whose attributes the emitted
	// point carries. Inserted points carry the end vertex of their edge.
	Source int
}

// SequenceResult is the output of densifying an ordered point sequence.
type SequenceResult struct {
	Points []SequencePoint
	// Failed lists the indices of input points that were skipped.
	Failed []int
}

// Added returns the number of inserted points.
func (r *SequenceResult) Added() int {
	n := 0
	for _, p := range r.Points {
		if p.Tag == domain.TagDensified {
			n++
		}
	}
	return n
}

// DensifySequence treats consecutive points as the vertices of one open line.
// A point that cannot be used as an edge endpoint is recorded as failed and
// skipped; the next edge starts from the last accepted point.
func (d *Densifier) DensifySequence(points []domain.GeoPoint) *SequenceResult {
	res := &SequenceResult{Points: make([]SequencePoint, 0, len(points))}
	prev := -1

	for i, p := range points {
		if err := p.Validate(); err != nil {
			res.Failed = append(res.Failed, i)
			continue
		}
		if prev >= 0 {
			between, err := d.DensifyEdge(points[prev], p)
			if err != nil {
				res.Failed = append(res.Failed, i)
				continue
			}
			for _, q := range between {
				res.Points = append(res.Points, SequencePoint{
					TaggedPoint: domain.TaggedPoint{Point: q, Tag: domain.TagDensified},
					Source:      i,
				})
			}
		}
		res.Points = append(res.Points, SequencePoint{
			TaggedPoint: domain.TaggedPoint{Point: p, Tag: domain.TagOriginal},
			Source:      i,
		})
		prev = i
	}
	return res
}
