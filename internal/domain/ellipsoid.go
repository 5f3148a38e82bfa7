package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Ellipsoid describes a reference ellipsoid by semi-major axis and inverse flattening.
type Ellipsoid struct {
	Name          string  // Preset name (empty for custom ellipsoids)
	A             float64 // Semi-major axis in meters
	InvFlattening float64 // 1/f; zero means a sphere
}

// Flattening returns f. A zero inverse flattening yields a sphere.
func (e Ellipsoid) Flattening() float64 {
	if e.InvFlattening == 0 {
		return 0
	}
	return 1 / e.InvFlattening
}

// Validate rejects parameters that do not describe a usable ellipsoid.
func (e Ellipsoid) Validate() error {
	if math.IsNaN(e.A) || math.IsInf(e.A, 0) || e.A <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidEllipsoid, &ValidationError{
			Field:      "ellipsoid.a",
			Value:      e.A,
			Constraint: "> 0",
			Message:    "semi-major axis must be a positive finite number",
		})
	}
	invF := e.InvFlattening
	if math.IsNaN(invF) || math.IsInf(invF, 0) || invF < 0 || (invF > 0 && invF <= 1) {
		return fmt.Errorf("%w: %w", ErrInvalidEllipsoid, &ValidationError{
			Field:      "ellipsoid.inv_f",
			Value:      invF,
			Constraint: "0 or > 1",
			Message:    "inverse flattening must be zero (sphere) or greater than one",
		})
	}
	return nil
}

// String returns the preset name or a parameter summary.
func (e Ellipsoid) String() string {
	if e.Name != "" {
		return e.Name
	}
	return "custom"
}

// Ellipsoid presets offered to users.
var (
	Ellipsoid165          = Ellipsoid{Name: "165", A: 6378165.000, InvFlattening: 298.3}
	EllipsoidANS          = Ellipsoid{Name: "ANS", A: 6378160, InvFlattening: 298.25}
	EllipsoidClarke1858   = Ellipsoid{Name: "CLARKE 1858", A: 6378293.645, InvFlattening: 294.26}
	EllipsoidGRS80        = Ellipsoid{Name: "GRS80", A: 6378137, InvFlattening: 298.2572221}
	EllipsoidWGS72        = Ellipsoid{Name: "WGS72", A: 6378135, InvFlattening: 298.26}
	EllipsoidIntl1924     = Ellipsoid{Name: "International 1924", A: 6378388, InvFlattening: 297}
	EllipsoidWGS84        = Ellipsoid{Name: "WGS84", A: 6378137, InvFlattening: 298.2572236}
	DefaultEllipsoid      = EllipsoidWGS84
	EllipsoidGRS80Precise = Ellipsoid{Name: "GRS80 (GDA94)", A: 6378137.0, InvFlattening: 298.257222100882711243}
)

var ellipsoidPresets = map[string]Ellipsoid{
	"165":                Ellipsoid165,
	"ans":                EllipsoidANS,
	"clarke 1858":        EllipsoidClarke1858,
	"grs80":              EllipsoidGRS80,
	"wgs72":              EllipsoidWGS72,
	"international 1924": EllipsoidIntl1924,
	"wgs84":              EllipsoidWGS84,
}

// LookupEllipsoid returns the preset with the given name (case-insensitive).
func LookupEllipsoid(name string) (Ellipsoid, bool) {
	e, ok := ellipsoidPresets[strings.ToLower(strings.TrimSpace(name))]
	return e, ok
}

// EllipsoidPresets returns all presets sorted by name.
func EllipsoidPresets() []Ellipsoid {
	presets := make([]Ellipsoid, 0, len(ellipsoidPresets))
	for _, e := range ellipsoidPresets {
		presets = append(presets, e)
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].Name < presets[j].Name })
	return presets
}
