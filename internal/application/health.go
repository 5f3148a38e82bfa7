package application

import (
	"context"

	"github.com/jobrunner/geodensify/internal/domain"
	"github.com/jobrunner/geodensify/internal/ports/input"
)

// HealthService provides health check functionality.
type HealthService struct {
	registry *PackageRegistry
}

// NewHealthService creates a new health service.
func NewHealthService(registry *PackageRegistry) *HealthService {
	return &HealthService{
		registry: registry,
	}
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return true
}

// IsReady returns true if no package is still loading.
func (s *HealthService) IsReady(ctx context.Context) bool {
	for _, h := range s.GetPackageHealth(ctx) {
		if h.Status == domain.StatusLoading {
			return false
		}
	}
	return true
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	packages := s.GetPackageHealth(ctx)

	details := input.HealthDetails{
		Healthy:        s.IsHealthy(ctx),
		Ready:          s.IsReady(ctx),
		PackagesLoaded: len(packages),
		Components: map[string]string{
			"storage":   "ok",
			"densifier": "ok",
		},
	}
	for _, h := range packages {
		if h.Ready {
			details.PackagesReady++
		}
		if h.Status == domain.StatusDensified {
			details.PackagesDensified++
		}
		if h.Status == domain.StatusError {
			details.Components["densifier"] = "degraded"
		}
	}
	return details
}

// PackageHealth contains health info for a single package.
type PackageHealth struct {
	ID     string
	Status domain.GeoPackageStatus
	Ready  bool
}

// GetPackageHealth returns health info for all packages.
func (s *HealthService) GetPackageHealth(ctx context.Context) []PackageHealth {
	packages, _ := s.registry.ListPackages(ctx)

	health := make([]PackageHealth, len(packages))
	for i, pkg := range packages {
		status, _ := s.registry.GetPackageStatus(ctx, pkg.ID)
		health[i] = PackageHealth{
			ID:     pkg.ID,
			Status: status,
			Ready:  status == domain.StatusReady || status == domain.StatusDensified,
		}
	}
	return health
}
