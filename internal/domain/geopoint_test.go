package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestGeoPointValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       GeoPoint
		wantErr bool
	}{
		{"origin", NewGeoPoint(0, 0), false},
		{"Canberra", NewGeoPoint(149.1, -35.183), false},
		{"north pole", NewGeoPoint(0, 90), false},
		{"unrolled longitude", NewGeoPoint(190, 10), false},
		{"latitude too large", NewGeoPoint(0, 90.5), true},
		{"latitude too small", NewGeoPoint(0, -91), true},
		{"NaN", NewGeoPoint(math.NaN(), 0), true},
		{"infinite", NewGeoPoint(0, math.Inf(-1)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestGeoPointOrb(t *testing.T) {
	p := NewGeoPoint(13.405, 52.52)
	if got := p.Orb(); got != (orb.Point{13.405, 52.52}) {
		t.Errorf("Orb() = %v", got)
	}
	if got := GeoPointFromOrb(orb.Point{13.405, 52.52}); got != p {
		t.Errorf("GeoPointFromOrb() = %v, want %v", got, p)
	}
}
