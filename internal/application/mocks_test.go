package application

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/jobrunner/geodensify/internal/adapters/geodesic"
	"github.com/jobrunner/geodensify/internal/domain"
	"github.com/jobrunner/geodensify/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testEngines(e domain.Ellipsoid) (output.GeodesicEngine, error) {
	return geodesic.New(e)
}

// mockRepository implements output.GeoPackageRepository for testing.
type mockRepository struct {
	packages map[string]*domain.GeoPackage // keyed by path
	features map[string][]domain.Feature   // keyed by "package:layer"
	openErr  error
	readErr  error
}

func (m *mockRepository) Open(_ context.Context, path string) (*domain.GeoPackage, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	if pkg, ok := m.packages[path]; ok {
		return pkg, nil
	}
	id := derivePackageID(path)
	return &domain.GeoPackage{ID: id, Name: id, Path: path}, nil
}

func (m *mockRepository) Close(_ context.Context, _ string) error {
	return nil
}

func (m *mockRepository) GetLayers(_ context.Context, packageID string) ([]domain.Layer, error) {
	for _, pkg := range m.packages {
		if pkg.ID == packageID {
			return pkg.Layers, nil
		}
	}
	return nil, domain.ErrPackageNotFound
}

func (m *mockRepository) ReadFeatures(_ context.Context, packageID, layer string) ([]domain.Feature, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.features[packageID+":"+layer], nil
}

// mockStorage implements output.ObjectStorage for testing.
type mockStorage struct {
	mu          sync.Mutex
	objects     []output.StorageObject
	downloadErr error
	listErr     error
	uploadErr   error
	uploads     []string
}

func (m *mockStorage) List(_ context.Context) ([]output.StorageObject, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.objects, nil
}

func (m *mockStorage) Download(_ context.Context, _, _ string) error {
	return m.downloadErr
}

func (m *mockStorage) Upload(_ context.Context, _ string, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return m.uploadErr
	}
	m.uploads = append(m.uploads, key)
	return nil
}

func (m *mockStorage) GetReader(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, nil
}

func (m *mockStorage) Exists(_ context.Context, _ string) (bool, error) {
	return true, nil
}

// mockTransformer implements output.CoordinateTransformer for testing.
// It converts between EPSG:4326 and Web Mercator.
type mockTransformer struct {
	shouldFail bool
}

func (m *mockTransformer) Transform(_ context.Context, g orb.Geometry, sourceSRID, targetSRID int) (orb.Geometry, error) {
	switch {
	case m.shouldFail:
		return nil, domain.ErrUnsupportedProjection
	case sourceSRID == targetSRID:
		return g, nil
	case sourceSRID == domain.SRIDWebMercator && targetSRID == domain.SRIDWGS84:
		return project.Geometry(orb.Clone(g), project.Mercator.ToWGS84), nil
	case sourceSRID == domain.SRIDWGS84 && targetSRID == domain.SRIDWebMercator:
		return project.Geometry(orb.Clone(g), project.WGS84.ToMercator), nil
	}
	return nil, domain.ErrUnsupportedProjection
}

func (m *mockTransformer) IsSupported(_ context.Context, srid int) bool {
	return !m.shouldFail && (srid == domain.SRIDWGS84 || srid == domain.SRIDWebMercator)
}

// mockWriterFactory implements output.PackageWriterFactory for testing.
type mockWriterFactory struct {
	createErr error
	writeErr  error
	touch     bool // create an empty file at the output path
	writers   []*mockWriter
}

func (m *mockWriterFactory) Create(_ context.Context, path string) (output.PackageWriter, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.touch {
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return nil, err
		}
	}
	w := &mockWriter{path: path, writeErr: m.writeErr, features: make(map[string][]domain.Feature)}
	m.writers = append(m.writers, w)
	return w, nil
}

// mockWriter implements output.PackageWriter for testing.
type mockWriter struct {
	path     string
	specs    []output.LayerSpec
	features map[string][]domain.Feature
	writeErr error
	closed   bool
}

func (m *mockWriter) CreateLayer(_ context.Context, spec output.LayerSpec) error {
	m.specs = append(m.specs, spec)
	return nil
}

func (m *mockWriter) WriteFeatures(_ context.Context, layer string, features []domain.Feature) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.features[layer] = append(m.features[layer], features...)
	return nil
}

func (m *mockWriter) Path() string {
	return m.path
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

// mockDensifier implements PackageDensifier for testing.
type mockDensifier struct {
	mu       sync.Mutex
	packages []string
	err      error
}

func (m *mockDensifier) DensifyPackage(_ context.Context, packageID string, _ domain.DensifyRequest) (*domain.RunReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packages = append(m.packages, packageID)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.RunReport{PackageID: packageID}, nil
}
