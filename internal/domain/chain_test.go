package domain

import "testing"

func TestDensifiedChain(t *testing.T) {
	a := NewGeoPoint(0, 0)
	b := NewGeoPoint(0.5, 0)
	c := NewGeoPoint(1, 0)

	chain := DensifiedChain{
		{Point: a, Tag: TagOriginal},
		{Point: b, Tag: TagDensified},
		{Point: c, Tag: TagOriginal},
	}

	if got := chain.Points(); len(got) != 3 || got[1] != b {
		t.Errorf("Points() = %v", got)
	}
	if got := chain.Originals(); len(got) != 2 || got[0] != a || got[1] != c {
		t.Errorf("Originals() = %v, want [%v %v]", got, a, c)
	}
	if n := chain.Count(TagDensified); n != 1 {
		t.Errorf("Count(Densified) = %d, want 1", n)
	}
	if chain.IsClosed() {
		t.Error("open chain reported as closed")
	}

	ring := append(chain, TaggedPoint{Point: a, Tag: TagOriginal})
	if !ring.IsClosed() {
		t.Error("ring not reported as closed")
	}
	if (DensifiedChain{{Point: a}}).IsClosed() {
		t.Error("single point reported as closed")
	}
}

func TestPointTagField(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		want     string
	}{
		{"no attributes", nil, "pointType"},
		{"unrelated attributes", []string{"name", "id"}, "pointType"},
		{"first taken", []string{"pointType"}, "pntType"},
		{"first two taken", []string{"pntType", "pointType"}, "pntTyp"},
		{"all taken", []string{"pointType", "pntType", "pntTyp"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PointTagField(tt.existing); got != tt.want {
				t.Errorf("PointTagField(%v) = %q, want %q", tt.existing, got, tt.want)
			}
		})
	}
}
