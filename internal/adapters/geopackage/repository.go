// Package geopackage provides the SpatiaLite-based GeoPackage reader, writer
// and coordinate transformer.
package geopackage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/jobrunner/geodensify/internal/domain"
)

// driverName is the database/sql driver with SpatiaLite loaded on connect.
const driverName = "sqlite3_with_extensions"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		Extensions: spatiaLiteLibraryPaths(),
	})
}

// spatiaLiteLibraryPaths returns the SpatiaLite module locations to try.
// SPATIALITE_LIBRARY_PATH wins over the platform defaults.
func spatiaLiteLibraryPaths() []string {
	if envPath := os.Getenv("SPATIALITE_LIBRARY_PATH"); envPath != "" {
		return []string{envPath}
	}

	return []string{
		"/usr/lib/mod_spatialite.so",                   // Alpine
		"/usr/lib/x86_64-linux-gnu/mod_spatialite.so",  // Debian/Ubuntu amd64
		"/usr/lib/aarch64-linux-gnu/mod_spatialite.so", // Debian/Ubuntu arm64
		"/usr/local/lib/mod_spatialite.dylib",          // Homebrew (Intel)
		"/opt/homebrew/lib/mod_spatialite.dylib",       // Homebrew (Apple Silicon)
		"mod_spatialite",                               // resolved via LD_LIBRARY_PATH
	}
}

// Repository implements the GeoPackageRepository port using SpatiaLite.
type Repository struct {
	mu          sync.RWMutex
	connections map[string]*sql.DB
	packages    map[string]*domain.GeoPackage
}

// NewRepository creates a new GeoPackage repository.
func NewRepository() *Repository {
	return &Repository{
		connections: make(map[string]*sql.DB),
		packages:    make(map[string]*domain.GeoPackage),
	}
}

// Open opens a GeoPackage file read-only and returns its metadata.
func (r *Repository) Open(ctx context.Context, path string) (*domain.GeoPackage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	packageID := DerivePackageID(path)
	if pkg, ok := r.packages[packageID]; ok {
		return pkg, nil
	}

	db, err := openDB(ctx, fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, &domain.StorageError{Operation: "open", Key: path, Err: err}
	}

	pkg := &domain.GeoPackage{ID: packageID, Name: packageID, Path: path}
	if info, err := os.Stat(path); err == nil {
		pkg.Size = info.Size()
	}

	pkg.Layers, err = readLayers(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	r.connections[packageID] = db
	r.packages[packageID] = pkg
	return pkg, nil
}

// Close closes a GeoPackage connection.
func (r *Repository) Close(_ context.Context, packageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	db, ok := r.connections[packageID]
	if !ok {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}

	delete(r.connections, packageID)
	delete(r.packages, packageID)
	return nil
}

// GetLayers returns all feature layers in a GeoPackage.
func (r *Repository) GetLayers(_ context.Context, packageID string) ([]domain.Layer, error) {
	r.mu.RLock()
	pkg, ok := r.packages[packageID]
	r.mu.RUnlock()

	if !ok {
		return nil, domain.ErrPackageNotFound
	}
	return pkg.Layers, nil
}

// ReadFeatures returns all features of a layer ordered by primary key.
// Features whose geometry is NULL or cannot be decoded carry a nil Geometry.
func (r *Repository) ReadFeatures(ctx context.Context, packageID, layerName string) ([]domain.Feature, error) {
	r.mu.RLock()
	db, ok := r.connections[packageID]
	pkg := r.packages[packageID]
	r.mu.RUnlock()

	if !ok {
		return nil, domain.ErrPackageNotFound
	}
	layer, found := pkg.GetLayer(layerName)
	if !found {
		return nil, domain.ErrLayerNotFound
	}

	rows, err := db.QueryContext(ctx, featureQuery(layer))
	if err != nil {
		return nil, fmt.Errorf("reading features of %s: %w", layer.Name, err)
	}
	defer func() { _ = rows.Close() }()

	var features []domain.Feature
	for rows.Next() {
		f, err := scanFeature(rows, layer)
		if err != nil {
			return nil, fmt.Errorf("scanning feature of %s: %w", layer.Name, err)
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

// featureQuery selects the primary key, the attribute columns and the
// geometry as WKB, in that order.
func featureQuery(layer *domain.Layer) string {
	cols := make([]string, 0, len(layer.Fields)+2)
	cols = append(cols, quoteIdent(layer.IDColumn))
	for _, f := range layer.Fields {
		cols = append(cols, quoteIdent(f.Name))
	}
	cols = append(cols, fmt.Sprintf("AsBinary(CastAutomagic(%s))", quoteIdent(layer.GeometryColumn)))

	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", //#nosec G201 -- identifiers from trusted gpkg metadata
		strings.Join(cols, ", "), quoteIdent(layer.Name), quoteIdent(layer.IDColumn))
}

func scanFeature(rows *sql.Rows, layer *domain.Layer) (domain.Feature, error) {
	values := make([]interface{}, len(layer.Fields)+2)
	ptrs := make([]interface{}, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return domain.Feature{}, err
	}

	f := domain.Feature{Properties: make(map[string]interface{}, len(layer.Fields))}
	if id, ok := values[0].(int64); ok {
		f.ID = id
	}
	for i, field := range layer.Fields {
		f.Properties[field.Name] = values[i+1]
	}
	if blob, ok := values[len(values)-1].([]byte); ok && len(blob) > 0 {
		f.Geometry = decodeGeometry(blob)
	}
	return f, nil
}

func decodeGeometry(blob []byte) orb.Geometry {
	g, err := wkb.Unmarshal(blob)
	if err != nil {
		return nil
	}
	return g
}

// readLayers reads feature layers from gpkg_contents.
func readLayers(ctx context.Context, db *sql.DB) ([]domain.Layer, error) {
	query := `
		SELECT
			c.table_name,
			COALESCE(c.description, ''),
			g.column_name,
			g.geometry_type_name,
			g.srs_id
		FROM gpkg_contents c
		JOIN gpkg_geometry_columns g ON c.table_name = g.table_name
		WHERE c.data_type = 'features'
		ORDER BY c.table_name
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("reading layers: %w", err)
	}

	var layers []domain.Layer
	for rows.Next() {
		var l domain.Layer
		var geomType string
		if err := rows.Scan(&l.Name, &l.Description, &l.GeometryColumn, &geomType, &l.SRID); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scanning layer: %w", err)
		}
		l.GeometryType = domain.ParseGeometryType(geomType)
		layers = append(layers, l)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for i := range layers {
		l := &layers[i]
		l.IDColumn, l.Fields, err = readColumns(ctx, db, l.Name, l.GeometryColumn)
		if err != nil {
			return nil, err
		}

		countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(l.Name)) //#nosec G201 -- table name from trusted database source
		if err := db.QueryRowContext(ctx, countQuery).Scan(&l.FeatureCount); err != nil {
			l.FeatureCount = 0
		}
	}
	return layers, nil
}

// readColumns returns the integer primary key and the attribute columns of a table.
func readColumns(ctx context.Context, db *sql.DB, table, geomColumn string) (string, []domain.Field, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table))) //#nosec G201
	if err != nil {
		return "", nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	idColumn := "fid"
	var fields []domain.Field
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return "", nil, err
		}
		switch {
		case pk == 1:
			idColumn = name
		case strings.EqualFold(name, geomColumn):
		default:
			fields = append(fields, domain.Field{Name: name, Type: colType})
		}
	}
	return idColumn, fields, rows.Err()
}

// openDB opens a SQLite database and verifies SpatiaLite is available.
func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	var version string
	if err := db.QueryRowContext(ctx, "SELECT spatialite_version()").Scan(&version); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("SpatiaLite extension not available: %w", err)
	}
	return db, nil
}

// DerivePackageID derives a package ID from the file path.
// It extracts the filename without extension as the package identifier.
func DerivePackageID(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext)
}

// quoteIdent quotes an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
