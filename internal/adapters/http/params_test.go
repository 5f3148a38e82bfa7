package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jobrunner/geodensify/internal/domain"
)

func TestParseDensifyRequest(t *testing.T) {
	defaults := domain.DensifyRequest{Ellipsoid: domain.EllipsoidWGS84, Policy: domain.DefaultPolicy()}

	tests := []struct {
		name  string
		query string
		want  domain.DensifyRequest
	}{
		{
			name:  "defaults",
			query: "",
			want:  defaults,
		},
		{
			name:  "segments selects count mode",
			query: "segments=10",
			want: domain.DensifyRequest{
				Ellipsoid: domain.EllipsoidWGS84,
				Policy:    domain.Policy{Mode: domain.ModeCount, Spacing: domain.DefaultSpacing, Segments: 10, Strategy: domain.StrategyLeading},
			},
		},
		{
			name:  "explicit mode wins",
			query: "mode=count&spacing=100&segments=3",
			want: domain.DensifyRequest{
				Ellipsoid: domain.EllipsoidWGS84,
				Policy:    domain.Policy{Mode: domain.ModeCount, Spacing: 100, Segments: 3, Strategy: domain.StrategyLeading},
			},
		},
		{
			name:  "preset and strategy",
			query: "ellipsoid=Clarke%201858&spacing=250.5&strategy=symmetrical",
			want: domain.DensifyRequest{
				Ellipsoid: domain.EllipsoidClarke1858,
				Policy:    domain.Policy{Mode: domain.ModeSpacing, Spacing: 250.5, Segments: domain.DefaultSegments, Strategy: domain.StrategySymmetrical},
			},
		},
		{
			name:  "custom sphere with extra segment",
			query: "a=6371000&inv_f=0&extra_segment=true",
			want: domain.DensifyRequest{
				Ellipsoid: domain.Ellipsoid{Name: "custom", A: 6371000},
				Policy:    domain.Policy{Mode: domain.ModeSpacing, Spacing: domain.DefaultSpacing, Segments: domain.DefaultSegments, Strategy: domain.StrategyLeading, ExtraSegment: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			got, err := parseDensifyRequest(q, defaults)
			if err != nil {
				t.Fatalf("parseDensifyRequest() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("request mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseDensifyRequestErrors(t *testing.T) {
	defaults := domain.DensifyRequest{Ellipsoid: domain.EllipsoidWGS84, Policy: domain.DefaultPolicy()}

	for _, query := range []string{
		"spacing=0",
		"spacing=NaN",
		"spacing=abc",
		"segments=0",
		"segments=1.5",
		"mode=fast",
		"strategy=middle",
		"extra_segment=maybe",
		"ellipsoid=krassowsky-typo",
		"a=6378137",
		"a=6378137&inv_f=0.5",
		"ellipsoid=WGS84&a=6378137&inv_f=298",
	} {
		t.Run(query, func(t *testing.T) {
			q, _ := url.ParseQuery(query)
			_, err := parseDensifyRequest(q, defaults)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("parseDensifyRequest(%q) error = %v, want invalid input", query, err)
			}
		})
	}
}

func TestParseSRID(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", domain.SRIDWGS84, false},
		{"srid=3857", domain.SRIDWebMercator, false},
		{"srid=EPSG:25832", domain.SRIDETRS89UTM32N, false},
		{"srid=-1", domain.SRIDUndefinedCartesian, false},
		{"srid=wgs", 0, true},
	}

	for _, tt := range tests {
		q, _ := url.ParseQuery(tt.query)
		got, err := parseSRID(q)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSRID(%q) error = %v, wantErr %v", tt.query, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseSRID(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
