package domain

import (
	"fmt"
	"math"
	"strings"
)

// Mode selects how the number of segments per edge is derived.
type Mode string

// Densification modes.
const (
	ModeSpacing Mode = "spacing" // Segment count derived from a maximum spacing in meters
	ModeCount   Mode = "count"   // Fixed number of segments per edge
)

// Strategy selects where intermediate points are placed along an edge.
type Strategy string

// Placement strategies.
const (
	// StrategyLeading spaces points evenly at total/n starting from the edge start.
	StrategyLeading Strategy = "leading"
	// StrategySymmetrical places points at the requested spacing and splits the
	// leftover distance equally between both ends of the edge.
	StrategySymmetrical Strategy = "symmetrical"
)

// Default policy values.
const (
	DefaultSpacing  = 900.0
	DefaultSegments = 10
)

// Policy is the densification policy applied uniformly to every edge of a run.
type Policy struct {
	Mode     Mode
	Spacing  float64 // Maximum spacing in meters (spacing mode)
	Segments int     // Segments per edge (count mode)
	Strategy Strategy
	// ExtraSegment adds one segment to the spacing-derived count of the
	// leading strategy, as the standalone single-line tool does.
	ExtraSegment bool
}

// DefaultPolicy returns the spacing policy with a 900 m spacing.
func DefaultPolicy() Policy {
	return Policy{
		Mode:     ModeSpacing,
		Spacing:  DefaultSpacing,
		Segments: DefaultSegments,
		Strategy: StrategyLeading,
	}
}

// SpacingPolicy returns a leading-edge spacing policy.
func SpacingPolicy(spacing float64) Policy {
	return Policy{Mode: ModeSpacing, Spacing: spacing, Strategy: StrategyLeading}
}

// CountPolicy returns a leading-edge count policy.
func CountPolicy(segments int) Policy {
	return Policy{Mode: ModeCount, Segments: segments, Strategy: StrategyLeading}
}

// Validate checks the policy parameters.
func (p Policy) Validate() error {
	switch p.Mode {
	case ModeSpacing:
		if math.IsNaN(p.Spacing) || math.IsInf(p.Spacing, 0) || p.Spacing <= 0 {
			return fmt.Errorf("%w: spacing must be a positive number of meters, got %v", ErrInvalidPolicy, p.Spacing)
		}
	case ModeCount:
		if p.Segments < 1 {
			return fmt.Errorf("%w: segments must be at least 1, got %d", ErrInvalidPolicy, p.Segments)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidPolicy, p.Mode)
	}

	switch p.Strategy {
	case StrategyLeading, StrategySymmetrical:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidPolicy, p.Strategy)
	}
	return nil
}

// SegmentCount returns the number of segments an edge of the given length is
// split into. Edges of zero length have no segments.
func (p Policy) SegmentCount(total float64) int {
	if total <= 0 {
		return 0
	}
	if p.Mode == ModeCount {
		return p.Segments
	}

	n := int(math.Ceil(total / p.Spacing))
	if p.ExtraSegment && p.Strategy == StrategyLeading {
		n++
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Label returns a short description used in output layer names, e.g. "900m" or "10 segments".
func (p Policy) Label() string {
	if p.Mode == ModeCount {
		return fmt.Sprintf("%d segments", p.Segments)
	}
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.3f", p.Spacing), "0"), ".") + "m"
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSpacing:
		return ModeSpacing, nil
	case ModeCount:
		return ModeCount, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidPolicy, s)
}

// ParseStrategy parses a strategy name. An empty string selects the leading strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyLeading:
		return StrategyLeading, nil
	case StrategySymmetrical:
		return StrategySymmetrical, nil
	}
	return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidPolicy, s)
}
