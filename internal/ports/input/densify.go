// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	"github.com/jobrunner/geodensify/internal/domain"
)

// DensifyService defines the primary port for densification runs.
type DensifyService interface {
	// DensifyPackage densifies every feature layer of a registered GeoPackage.
	DensifyPackage(ctx context.Context, packageID string, req domain.DensifyRequest) (*domain.RunReport, error)

	// DensifyLayer densifies one layer of a registered GeoPackage.
	DensifyLayer(ctx context.Context, packageID, layer string, req domain.DensifyRequest) (*domain.RunReport, error)

	// DensifyFeatures densifies in-memory features and returns them in the input frame.
	DensifyFeatures(ctx context.Context, set domain.FeatureSet, req domain.DensifyRequest) ([]domain.Feature, *domain.LayerReport, error)

	// DensifyEdge densifies a single geodesic edge given in EPSG:4326.
	DensifyEdge(ctx context.Context, from, to domain.GeoPoint, req domain.DensifyRequest) (*domain.EdgeResult, error)
}

// PackageRegistry defines the primary port for GeoPackage management.
type PackageRegistry interface {
	// ListPackages returns all registered GeoPackages.
	ListPackages(ctx context.Context) ([]domain.GeoPackage, error)

	// GetPackage returns a specific GeoPackage by ID.
	GetPackage(ctx context.Context, id string) (*domain.GeoPackage, error)

	// GetPackageStatus returns the status of a GeoPackage.
	GetPackageStatus(ctx context.Context, id string) (domain.GeoPackageStatus, error)
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy           bool              // Overall health status
	Ready             bool              // Ready to accept requests
	PackagesLoaded    int               // Number of loaded packages
	PackagesReady     int               // Number of packages ready or densified
	PackagesDensified int               // Number of packages with a completed run
	Components        map[string]string // Component statuses
}
