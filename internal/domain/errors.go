package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
)

// Specific errors.
var (
	ErrPackageNotFound        = fmt.Errorf("geopackage: %w", ErrNotFound)
	ErrLayerNotFound          = fmt.Errorf("layer: %w", ErrNotFound)
	ErrInvalidCoordinate      = fmt.Errorf("coordinate: %w", ErrInvalidInput)
	ErrInvalidPolicy          = fmt.Errorf("densification policy: %w", ErrInvalidInput)
	ErrInvalidEllipsoid       = fmt.Errorf("ellipsoid: %w", ErrInvalidInput)
	ErrUnsupportedGeometry    = fmt.Errorf("geometry: %w", ErrUnsupported)
	ErrMissingReferenceFrame  = fmt.Errorf("reference frame not defined: %w", ErrInvalidInput)
	ErrUnsupportedProjection  = fmt.Errorf("projection: %w", ErrUnsupported)
	ErrDegenerateEdge         = errors.New("degenerate edge")
	ErrNotReady               = fmt.Errorf("service not ready: %w", ErrUnavailable)
	ErrStorageUnavailable     = fmt.Errorf("storage: %w", ErrUnavailable)
	ErrDensificationInProcess = errors.New("densification already running")
)

// ValidationError represents a detailed validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// DensifyError represents a run-level failure while densifying a layer.
type DensifyError struct {
	PackageID string // GeoPackage identifier
	Layer     string // Layer name
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *DensifyError) Error() string {
	if e.Layer != "" {
		return fmt.Sprintf("densify error in package %s, layer %s: %v",
			e.PackageID, e.Layer, e.Err)
	}
	return fmt.Sprintf("densify error in package %s: %v", e.PackageID, e.Err)
}

// Unwrap returns the underlying error.
func (e *DensifyError) Unwrap() error {
	return e.Err
}

// GeometryError describes why a single feature geometry could not be densified.
type GeometryError struct {
	Kind   GeometryType // Geometry kind of the feature
	Part   int          // Part index (-1 if not applicable)
	Reason string       // Short reason
}

// Error implements the error interface.
func (e *GeometryError) Error() string {
	if e.Part >= 0 {
		return fmt.Sprintf("unsupported %s geometry (part %d): %s", e.Kind, e.Part, e.Reason)
	}
	return fmt.Sprintf("unsupported %s geometry: %s", e.Kind, e.Reason)
}

// Unwrap returns ErrUnsupportedGeometry.
func (e *GeometryError) Unwrap() error {
	return ErrUnsupportedGeometry
}

// StorageError represents an error during storage operations.
type StorageError struct {
	Operation string // Operation that failed (download, list, etc.)
	Key       string // Object key
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error type.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}
