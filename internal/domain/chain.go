package domain

// PointTag marks whether an emitted point is an input vertex or an inserted one.
type PointTag string

// Point tags.
const (
	TagOriginal  PointTag = "Original"
	TagDensified PointTag = "Densified"
)

// TaggedPoint is a point of a densified chain.
type TaggedPoint struct {
	Point GeoPoint
	Tag   PointTag
}

// DensifiedChain is the ordered output of densifying one vertex chain.
type DensifiedChain []TaggedPoint

// Points returns the chain positions without tags.
func (c DensifiedChain) Points() []GeoPoint {
	points := make([]GeoPoint, len(c))
	for i, tp := range c {
		points[i] = tp.Point
	}
	return points
}

// Originals returns the points tagged Original, in order.
func (c DensifiedChain) Originals() []GeoPoint {
	var points []GeoPoint
	for _, tp := range c {
		if tp.Tag == TagOriginal {
			points = append(points, tp.Point)
		}
	}
	return points
}

// Count returns the number of points carrying the given tag.
func (c DensifiedChain) Count(tag PointTag) int {
	n := 0
	for _, tp := range c {
		if tp.Tag == tag {
			n++
		}
	}
	return n
}

// IsClosed reports whether the chain ends where it starts.
func (c DensifiedChain) IsClosed() bool {
	return len(c) > 1 && c[0].Point == c[len(c)-1].Point
}

// PointTagFieldCandidates are the attribute names tried, in order, for the
// tag column appended to densified point layers.
var PointTagFieldCandidates = []string{"pointType", "pntType", "pntTyp"}

// PointTagField returns the first candidate tag field not already used by the
// layer. It returns an empty string when every candidate is taken.
func PointTagField(existing []string) string {
	used := make(map[string]bool, len(existing))
	for _, name := range existing {
		used[name] = true
	}
	for _, candidate := range PointTagFieldCandidates {
		if !used[candidate] {
			return candidate
		}
	}
	return ""
}
