package domain

import (
	"errors"
	"testing"
)

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Field:      "latitude",
		Value:      95.0,
		Constraint: "[-90, 90]",
		Message:    "latitude must be between -90 and 90",
	}

	if err.Error() == "" {
		t.Error("Error() should not return empty string")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError should unwrap to ErrInvalidInput")
	}
}

func TestDensifyError(t *testing.T) {
	tests := []struct {
		name string
		err  *DensifyError
	}{
		{
			name: "with layer",
			err:  &DensifyError{PackageID: "roads", Layer: "highways", Err: errors.New("write failed")},
		},
		{
			name: "without layer",
			err:  &DensifyError{PackageID: "roads", Err: errors.New("write failed")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() == "" {
				t.Error("Error() should not return empty string")
			}
			if !errors.Is(tt.err, tt.err.Err) {
				t.Error("Unwrap should return the underlying error")
			}
		})
	}
}

func TestGeometryError(t *testing.T) {
	withPart := &GeometryError{Kind: GeomMultiLineString, Part: 2, Reason: "fewer than two vertices"}
	withoutPart := &GeometryError{Kind: GeomGeometryCollection, Part: -1, Reason: "not supported"}

	if withPart.Error() == withoutPart.Error() {
		t.Error("expected different messages")
	}
	for _, err := range []error{withPart, withoutPart} {
		if !errors.Is(err, ErrUnsupportedGeometry) || !errors.Is(err, ErrUnsupported) {
			t.Errorf("%v should unwrap to ErrUnsupportedGeometry", err)
		}
	}
}

func TestStorageError(t *testing.T) {
	underlying := errors.New("connection refused")
	for _, err := range []*StorageError{
		{Operation: "download", Key: "roads.gpkg", Err: underlying},
		{Operation: "list", Err: underlying},
	} {
		if err.Error() == "" {
			t.Error("Error() should not return empty string")
		}
		if !errors.Is(err, underlying) {
			t.Error("Unwrap should return the underlying error")
		}
	}
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Field: "densify.spacing", Message: "must be positive"}
	if err.Error() == "" {
		t.Error("Error() should not return empty string")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ConfigError should unwrap to ErrInvalidInput")
	}
}

func TestErrorHierarchy(t *testing.T) {
	tests := []struct {
		err    error
		target error
	}{
		{ErrPackageNotFound, ErrNotFound},
		{ErrLayerNotFound, ErrNotFound},
		{ErrInvalidCoordinate, ErrInvalidInput},
		{ErrInvalidPolicy, ErrInvalidInput},
		{ErrInvalidEllipsoid, ErrInvalidInput},
		{ErrMissingReferenceFrame, ErrInvalidInput},
		{ErrUnsupportedProjection, ErrUnsupported},
		{ErrNotReady, ErrUnavailable},
		{ErrStorageUnavailable, ErrUnavailable},
	}

	for _, tt := range tests {
		if !errors.Is(tt.err, tt.target) {
			t.Errorf("%v should wrap %v", tt.err, tt.target)
		}
	}
}
