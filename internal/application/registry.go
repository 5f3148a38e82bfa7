// Package application contains the application services.
package application

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jobrunner/geodensify/internal/domain"
	"github.com/jobrunner/geodensify/internal/ports/output"
)

// OutputSuffix is appended to the name of every densified package and layer.
const OutputSuffix = "_densified"

// PackageRegistry manages loaded input GeoPackages.
type PackageRegistry struct {
	mu        sync.RWMutex
	packages  map[string]*packageEntry
	repo      output.GeoPackageRepository
	storage   output.ObjectStorage
	metrics   output.MetricsCollector
	logger    *slog.Logger
	localPath string
}

type packageEntry struct {
	Package *domain.GeoPackage
	Status  domain.GeoPackageStatus
	Error   error
}

// NewPackageRegistry creates a new package registry.
func NewPackageRegistry(
	repo output.GeoPackageRepository,
	storage output.ObjectStorage,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	localPath string,
) *PackageRegistry {
	return &PackageRegistry{
		packages:  make(map[string]*packageEntry),
		repo:      repo,
		storage:   storage,
		metrics:   metrics,
		logger:    logger,
		localPath: localPath,
	}
}

// LoadPackage opens a GeoPackage and registers it as ready.
func (r *PackageRegistry) LoadPackage(ctx context.Context, path string) error {
	r.logger.Info("loading package", "path", path)

	pkg, err := r.repo.Open(ctx, path)
	if err != nil {
		r.logger.Error("failed to open package", "path", path, "error", err)
		return err
	}
	pkg.LoadedAt = time.Now()

	r.mu.Lock()
	r.packages[pkg.ID] = &packageEntry{Package: pkg, Status: domain.StatusReady}
	r.mu.Unlock()

	r.updateMetrics()
	r.logger.Info("package loaded", "id", pkg.ID, "layers", len(pkg.Layers))
	return nil
}

// UnloadPackage unloads a GeoPackage.
func (r *PackageRegistry) UnloadPackage(ctx context.Context, packageID string) error {
	r.logger.Info("unloading package", "id", packageID)

	r.mu.Lock()
	if entry, ok := r.packages[packageID]; ok {
		entry.Status = domain.StatusUnloading
	}
	r.mu.Unlock()

	if err := r.repo.Close(ctx, packageID); err != nil {
		r.logger.Error("failed to close package", "id", packageID, "error", err)
		return err
	}

	r.mu.Lock()
	delete(r.packages, packageID)
	r.mu.Unlock()

	r.updateMetrics()
	return nil
}

// ListPackages returns all registered GeoPackages ordered by ID.
func (r *PackageRegistry) ListPackages(_ context.Context) ([]domain.GeoPackage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	packages := make([]domain.GeoPackage, 0, len(r.packages))
	for _, entry := range r.packages {
		packages = append(packages, *entry.Package)
	}
	sort.Slice(packages, func(i, j int) bool { return packages[i].ID < packages[j].ID })
	return packages, nil
}

// GetPackage returns a specific GeoPackage by ID.
func (r *PackageRegistry) GetPackage(_ context.Context, id string) (*domain.GeoPackage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.packages[id]
	if !ok {
		return nil, domain.ErrPackageNotFound
	}
	return entry.Package, nil
}

// GetPackageStatus returns the status of a GeoPackage.
func (r *PackageRegistry) GetPackageStatus(_ context.Context, id string) (domain.GeoPackageStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.packages[id]
	if !ok {
		return "", domain.ErrPackageNotFound
	}
	return entry.Status, nil
}

// GetPackageError returns the error of the last failed run, if any.
func (r *PackageRegistry) GetPackageError(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.packages[id]; ok {
		return entry.Error
	}
	return nil
}

// BeginDensify marks a package as densifying. It fails if the package is
// unknown or a run is already in progress.
func (r *PackageRegistry) BeginDensify(packageID string) (*domain.GeoPackage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.packages[packageID]
	if !ok {
		return nil, domain.ErrPackageNotFound
	}
	switch entry.Status {
	case domain.StatusDensifying:
		return nil, domain.ErrDensificationInProcess
	case domain.StatusLoading, domain.StatusUnloading:
		return nil, domain.ErrNotReady
	}

	entry.Status = domain.StatusDensifying
	entry.Error = nil
	return entry.Package, nil
}

// FinishDensify records the outcome of a run started with BeginDensify.
func (r *PackageRegistry) FinishDensify(packageID string, report *domain.RunReport, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.packages[packageID]
	if !ok {
		return
	}
	if err != nil {
		entry.Status = domain.StatusError
		entry.Error = err
		return
	}
	entry.Status = domain.StatusDensified
	entry.Package.DensifiedAt = time.Now()
	entry.Package.LastReport = report
}

// ReadyPackageIDs returns IDs of all packages that can be densified.
func (r *PackageRegistry) ReadyPackageIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.packages))
	for id, entry := range r.packages {
		switch entry.Status {
		case domain.StatusReady, domain.StatusDensified, domain.StatusError:
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// updateMetrics updates the metrics collector with current package counts.
func (r *PackageRegistry) updateMetrics() {
	r.metrics.SetPackagesLoaded(r.PackageCount())
}

// LoadAll downloads and loads all GeoPackages from storage.
// It returns the IDs of the packages that were loaded.
func (r *PackageRegistry) LoadAll(ctx context.Context) ([]string, error) {
	r.logger.Info("loading all packages from storage")

	objects, err := r.storage.List(ctx)
	if err != nil {
		return nil, err
	}

	var loaded []string
	for _, obj := range objects {
		if IsOutputPackage(obj.Key) {
			continue
		}
		id, err := r.fetchAndLoad(ctx, obj.Key)
		if err != nil {
			continue
		}
		loaded = append(loaded, id)
	}
	return loaded, nil
}

// fetchAndLoad downloads an object into the local cache and loads it.
func (r *PackageRegistry) fetchAndLoad(ctx context.Context, key string) (string, error) {
	localPath := filepath.Join(r.localPath, key)
	if err := r.storage.Download(ctx, key, localPath); err != nil {
		r.logger.Error("failed to download package", "key", key, "error", err)
		return "", err
	}
	if err := r.LoadPackage(ctx, localPath); err != nil {
		return "", err
	}
	return derivePackageID(key), nil
}

// IsLoaded returns true if a package with the given ID is already loaded.
func (r *PackageRegistry) IsLoaded(packageID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.packages[packageID]
	return ok
}

// PackageCount returns the number of loaded packages.
func (r *PackageRegistry) PackageCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.packages)
}

// SyncStats contains statistics from a sync operation.
type SyncStats struct {
	Added    int
	Removed  int
	AddedIDs []string // IDs of newly loaded packages
}

// Sync synchronizes with remote storage, downloading new packages and removing
// packages that no longer exist in remote storage.
func (r *PackageRegistry) Sync(ctx context.Context) (SyncStats, error) {
	r.logger.Info("syncing packages from storage")

	objects, err := r.storage.List(ctx)
	if err != nil {
		return SyncStats{}, err
	}

	remotePackages := make(map[string]string) // packageID -> objectKey
	for _, obj := range objects {
		if IsOutputPackage(obj.Key) {
			continue
		}
		remotePackages[derivePackageID(obj.Key)] = obj.Key
	}

	stats := SyncStats{}

	keys := make([]string, 0, len(remotePackages))
	for id := range remotePackages {
		keys = append(keys, id)
	}
	sort.Strings(keys)

	for _, packageID := range keys {
		if r.IsLoaded(packageID) {
			r.logger.Debug("package already loaded, skipping", "id", packageID)
			continue
		}
		if _, err := r.fetchAndLoad(ctx, remotePackages[packageID]); err != nil {
			continue
		}
		stats.Added++
		stats.AddedIDs = append(stats.AddedIDs, packageID)
		r.logger.Info("new package synced", "id", packageID)
	}

	for _, packageID := range r.findPackagesToRemove(remotePackages) {
		r.logger.Info("removing package not in remote storage", "id", packageID)

		localPath := r.getPackagePath(packageID)
		if err := r.UnloadPackage(ctx, packageID); err != nil {
			r.logger.Error("failed to unload removed package", "id", packageID, "error", err)
			continue
		}

		if localPath != "" {
			if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
				r.logger.Warn("failed to delete local cache file", "path", localPath, "error", err)
			}
		}
		stats.Removed++
	}

	r.logger.Info("sync completed", "added", stats.Added, "removed", stats.Removed, "total", r.PackageCount())
	return stats, nil
}

// findPackagesToRemove returns package IDs that are loaded but not in remote storage.
func (r *PackageRegistry) findPackagesToRemove(remotePackages map[string]string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var toRemove []string
	for packageID, entry := range r.packages {
		if entry.Status == domain.StatusDensifying {
			continue
		}
		if _, exists := remotePackages[packageID]; !exists {
			toRemove = append(toRemove, packageID)
		}
	}
	sort.Strings(toRemove)
	return toRemove
}

// getPackagePath returns the local file path for a loaded package.
func (r *PackageRegistry) getPackagePath(packageID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.packages[packageID]; ok && entry.Package != nil {
		return entry.Package.Path
	}
	return ""
}

// IsOutputPackage reports whether a file name or object key names a
// densified output package.
func IsOutputPackage(path string) bool {
	return strings.HasSuffix(derivePackageID(path), OutputSuffix)
}

// derivePackageID extracts a package ID from a file path or object key.
func derivePackageID(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
