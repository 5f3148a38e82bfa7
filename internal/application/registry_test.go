package application

import (
	"context"
	"errors"
	"testing"

	"github.com/jobrunner/geodensify/internal/domain"
	"github.com/jobrunner/geodensify/internal/ports/output"
)

func newTestRegistry() *PackageRegistry {
	return NewPackageRegistry(
		&mockRepository{},
		&mockStorage{},
		&output.NoOpMetrics{},
		testLogger(),
		"/tmp",
	)
}

func TestPackageRegistryLoadUnload(t *testing.T) {
	repo := &mockRepository{
		packages: map[string]*domain.GeoPackage{
			"/data/test.gpkg": {
				ID:   "test",
				Name: "Test Package",
				Path: "/data/test.gpkg",
				Layers: []domain.Layer{
					{Name: "roads", GeometryType: domain.GeomLineString, SRID: 4326},
				},
			},
		},
	}

	registry := NewPackageRegistry(repo, &mockStorage{}, &output.NoOpMetrics{}, testLogger(), "/tmp")
	ctx := context.Background()

	if err := registry.LoadPackage(ctx, "/data/test.gpkg"); err != nil {
		t.Fatalf("LoadPackage failed: %v", err)
	}

	packages, err := registry.ListPackages(ctx)
	if err != nil {
		t.Fatalf("ListPackages failed: %v", err)
	}
	if len(packages) != 1 {
		t.Errorf("len(packages) = %d, want 1", len(packages))
	}

	pkg, err := registry.GetPackage(ctx, "test")
	if err != nil {
		t.Fatalf("GetPackage failed: %v", err)
	}
	if pkg.LoadedAt.IsZero() {
		t.Error("LoadedAt not set")
	}
	if status, _ := registry.GetPackageStatus(ctx, "test"); status != domain.StatusReady {
		t.Errorf("status = %s, want %s", status, domain.StatusReady)
	}

	if err := registry.UnloadPackage(ctx, "test"); err != nil {
		t.Fatalf("UnloadPackage failed: %v", err)
	}
	packages, _ = registry.ListPackages(ctx)
	if len(packages) != 0 {
		t.Errorf("len(packages) = %d, want 0", len(packages))
	}
}

func TestPackageRegistryLoadError(t *testing.T) {
	openErr := errors.New("corrupt file")
	registry := NewPackageRegistry(&mockRepository{openErr: openErr}, &mockStorage{}, &output.NoOpMetrics{}, testLogger(), "/tmp")

	if err := registry.LoadPackage(context.Background(), "/data/bad.gpkg"); !errors.Is(err, openErr) {
		t.Errorf("LoadPackage error = %v, want %v", err, openErr)
	}
	if registry.PackageCount() != 0 {
		t.Errorf("PackageCount() = %d, want 0", registry.PackageCount())
	}
}

func TestPackageRegistryGetPackageNotFound(t *testing.T) {
	registry := newTestRegistry()
	ctx := context.Background()

	if _, err := registry.GetPackage(ctx, "nonexistent"); err != domain.ErrPackageNotFound {
		t.Errorf("err = %v, want %v", err, domain.ErrPackageNotFound)
	}
	if _, err := registry.GetPackageStatus(ctx, "nonexistent"); err != domain.ErrPackageNotFound {
		t.Errorf("err = %v, want %v", err, domain.ErrPackageNotFound)
	}
}

func TestPackageRegistryDensifyLifecycle(t *testing.T) {
	registry := newTestRegistry()
	ctx := context.Background()

	registry.packages["roads"] = &packageEntry{
		Package: &domain.GeoPackage{ID: "roads"},
		Status:  domain.StatusReady,
	}

	if _, err := registry.BeginDensify("roads"); err != nil {
		t.Fatalf("BeginDensify failed: %v", err)
	}
	if status, _ := registry.GetPackageStatus(ctx, "roads"); status != domain.StatusDensifying {
		t.Errorf("status = %s, want %s", status, domain.StatusDensifying)
	}
	if _, err := registry.BeginDensify("roads"); err != domain.ErrDensificationInProcess {
		t.Errorf("second BeginDensify error = %v, want %v", err, domain.ErrDensificationInProcess)
	}

	report := &domain.RunReport{PackageID: "roads"}
	registry.FinishDensify("roads", report, nil)

	pkg, _ := registry.GetPackage(ctx, "roads")
	if status, _ := registry.GetPackageStatus(ctx, "roads"); status != domain.StatusDensified {
		t.Errorf("status = %s, want %s", status, domain.StatusDensified)
	}
	if pkg.LastReport != report || pkg.DensifiedAt.IsZero() {
		t.Error("run report not recorded")
	}

	runErr := errors.New("disk full")
	if _, err := registry.BeginDensify("roads"); err != nil {
		t.Fatalf("BeginDensify after completion failed: %v", err)
	}
	registry.FinishDensify("roads", nil, runErr)
	if status, _ := registry.GetPackageStatus(ctx, "roads"); status != domain.StatusError {
		t.Errorf("status = %s, want %s", status, domain.StatusError)
	}
	if registry.GetPackageError("roads") != runErr {
		t.Errorf("GetPackageError() = %v, want %v", registry.GetPackageError("roads"), runErr)
	}

	if _, err := registry.BeginDensify("missing"); err != domain.ErrPackageNotFound {
		t.Errorf("BeginDensify(missing) error = %v, want %v", err, domain.ErrPackageNotFound)
	}
}

func TestPackageRegistryReadyPackageIDs(t *testing.T) {
	registry := newTestRegistry()

	registry.packages["ready"] = &packageEntry{Package: &domain.GeoPackage{ID: "ready"}, Status: domain.StatusReady}
	registry.packages["done"] = &packageEntry{Package: &domain.GeoPackage{ID: "done"}, Status: domain.StatusDensified}
	registry.packages["busy"] = &packageEntry{Package: &domain.GeoPackage{ID: "busy"}, Status: domain.StatusDensifying}
	registry.packages["loading"] = &packageEntry{Package: &domain.GeoPackage{ID: "loading"}, Status: domain.StatusLoading}

	ids := registry.ReadyPackageIDs()
	if len(ids) != 2 || ids[0] != "done" || ids[1] != "ready" {
		t.Errorf("ReadyPackageIDs() = %v, want [done ready]", ids)
	}
}

func TestPackageRegistryLoadAllSkipsOutputs(t *testing.T) {
	storage := &mockStorage{
		objects: []output.StorageObject{
			{Key: "roads.gpkg"},
			{Key: "roads_densified.gpkg"},
			{Key: "coast.gpkg"},
		},
	}
	registry := NewPackageRegistry(&mockRepository{}, storage, &output.NoOpMetrics{}, testLogger(), "/tmp")

	ids, err := registry.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("loaded %v, want roads and coast", ids)
	}
	if registry.IsLoaded("roads_densified") {
		t.Error("output package was loaded as input")
	}
}

func TestIsOutputPackage(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"roads.gpkg", false},
		{"roads_densified.gpkg", true},
		{"/out/coast_densified.gpkg", true},
		{"densified_roads.gpkg", false},
	}
	for _, tt := range tests {
		if got := IsOutputPackage(tt.path); got != tt.want {
			t.Errorf("IsOutputPackage(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestPackageRegistryUnloadNonexistent(t *testing.T) {
	registry := newTestRegistry()

	if err := registry.UnloadPackage(context.Background(), "nonexistent"); err != nil {
		t.Errorf("UnloadPackage for nonexistent should not error, got: %v", err)
	}
}
