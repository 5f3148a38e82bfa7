package domain

import (
	"errors"
	"math"
	"testing"
)

func TestEllipsoidValidate(t *testing.T) {
	tests := []struct {
		name    string
		e       Ellipsoid
		wantErr bool
	}{
		{"WGS84", EllipsoidWGS84, false},
		{"sphere", Ellipsoid{A: 6371000}, false},
		{"precise GRS80", EllipsoidGRS80Precise, false},
		{"zero axis", Ellipsoid{A: 0, InvFlattening: 298}, true},
		{"negative axis", Ellipsoid{A: -1, InvFlattening: 298}, true},
		{"NaN axis", Ellipsoid{A: math.NaN()}, true},
		{"negative inverse flattening", Ellipsoid{A: 6378137, InvFlattening: -298}, true},
		{"inverse flattening of one", Ellipsoid{A: 6378137, InvFlattening: 1}, true},
		{"infinite inverse flattening", Ellipsoid{A: 6378137, InvFlattening: math.Inf(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.e.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if !errors.Is(err, ErrInvalidEllipsoid) {
				t.Errorf("expected ErrInvalidEllipsoid, got %v", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected a ValidationError, got %T", err)
			}
		})
	}
}

func TestEllipsoidFlattening(t *testing.T) {
	if f := (Ellipsoid{A: 6371000}).Flattening(); f != 0 {
		t.Errorf("sphere flattening = %v, want 0", f)
	}
	if f := EllipsoidIntl1924.Flattening(); math.Abs(f-1.0/297) > 1e-15 {
		t.Errorf("International 1924 flattening = %v, want 1/297", f)
	}
}

func TestLookupEllipsoid(t *testing.T) {
	tests := []struct {
		name   string
		want   Ellipsoid
		wantOK bool
	}{
		{"WGS84", EllipsoidWGS84, true},
		{"wgs84", EllipsoidWGS84, true},
		{" Clarke 1858 ", EllipsoidClarke1858, true},
		{"165", Ellipsoid165, true},
		{"international 1924", EllipsoidIntl1924, true},
		{"GRS80 (GDA94)", Ellipsoid{}, false},
		{"Bessel", Ellipsoid{}, false},
	}

	for _, tt := range tests {
		got, ok := LookupEllipsoid(tt.name)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("LookupEllipsoid(%q) = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestEllipsoidPresets(t *testing.T) {
	presets := EllipsoidPresets()
	if len(presets) != 7 {
		t.Fatalf("expected 7 presets, got %d", len(presets))
	}
	for i := 1; i < len(presets); i++ {
		if presets[i-1].Name >= presets[i].Name {
			t.Errorf("presets not sorted: %q before %q", presets[i-1].Name, presets[i].Name)
		}
	}
	for _, e := range presets {
		if err := e.Validate(); err != nil {
			t.Errorf("preset %s invalid: %v", e.Name, err)
		}
	}
}

func TestEllipsoidString(t *testing.T) {
	if s := EllipsoidGRS80.String(); s != "GRS80" {
		t.Errorf("String() = %q, want GRS80", s)
	}
	if s := (Ellipsoid{A: 1}).String(); s != "custom" {
		t.Errorf("String() = %q, want custom", s)
	}
}
