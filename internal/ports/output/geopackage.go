package output

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/jobrunner/geodensify/internal/domain"
)

// GeoPackageRepository defines the secondary port for reading input GeoPackages.
type GeoPackageRepository interface {
	// Open opens a GeoPackage file and returns its metadata.
	Open(ctx context.Context, path string) (*domain.GeoPackage, error)

	// Close closes a GeoPackage connection.
	Close(ctx context.Context, packageID string) error

	// GetLayers returns all feature layers in a GeoPackage.
	GetLayers(ctx context.Context, packageID string) ([]domain.Layer, error)

	// ReadFeatures returns all features of a layer in fid order.
	ReadFeatures(ctx context.Context, packageID string, layer string) ([]domain.Feature, error)
}

// LayerSpec describes an output layer to create.
type LayerSpec struct {
	Name           string
	Description    string
	GeometryColumn string
	GeometryType   domain.GeometryType
	SRID           int
	Fields         []domain.Field
}

// PackageWriter writes densified layers into one output GeoPackage.
type PackageWriter interface {
	// CreateLayer creates an empty feature layer.
	CreateLayer(ctx context.Context, spec LayerSpec) error

	// WriteFeatures appends features to a layer created with CreateLayer.
	WriteFeatures(ctx context.Context, layer string, features []domain.Feature) error

	// Path returns the file path of the output package.
	Path() string

	// Close finalizes the package.
	Close() error
}

// PackageWriterFactory creates output GeoPackages.
type PackageWriterFactory interface {
	// Create creates (or truncates) the GeoPackage at path.
	Create(ctx context.Context, path string) (PackageWriter, error)
}

// CoordinateTransformer defines the secondary port for coordinate transformations.
type CoordinateTransformer interface {
	// Transform converts a geometry from one SRID to another.
	Transform(ctx context.Context, geom orb.Geometry, sourceSRID, targetSRID int) (orb.Geometry, error)

	// IsSupported checks whether the SRID is known to the transformer.
	IsSupported(ctx context.Context, srid int) bool
}
