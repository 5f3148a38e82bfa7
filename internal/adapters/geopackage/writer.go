package geopackage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/paulmach/orb/encoding/wkb"

	"github.com/jobrunner/geodensify/internal/domain"
	"github.com/jobrunner/geodensify/internal/ports/output"
)

// GeoPackage application id ("GPKG") and version 1.2.
const (
	gpkgApplicationID = 0x47504B47
	gpkgUserVersion   = 10200
)

// WriterFactory creates output GeoPackages.
type WriterFactory struct{}

// NewWriterFactory creates a WriterFactory.
func NewWriterFactory() *WriterFactory {
	return &WriterFactory{}
}

// Create creates an empty GeoPackage at path, replacing any existing file.
func (f *WriterFactory) Create(ctx context.Context, path string) (output.PackageWriter, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &domain.StorageError{Operation: "create", Key: path, Err: err}
	}

	db, err := openDB(ctx, fmt.Sprintf("file:%s?mode=rwc", path))
	if err != nil {
		return nil, &domain.StorageError{Operation: "create", Key: path, Err: err}
	}
	// One connection keeps the write path serialized.
	db.SetMaxOpenConns(1)

	stmts := []string{
		fmt.Sprintf("PRAGMA application_id = %d", gpkgApplicationID),
		fmt.Sprintf("PRAGMA user_version = %d", gpkgUserVersion),
		"SELECT gpkgCreateBaseTables()",
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initializing %s: %w", path, err)
		}
	}

	return &Writer{db: db, path: path, layers: make(map[string]output.LayerSpec)}, nil
}

// Writer implements output.PackageWriter on one GeoPackage file.
type Writer struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	layers map[string]output.LayerSpec
}

// Path returns the file path of the package.
func (w *Writer) Path() string {
	return w.path
}

// CreateLayer creates a feature table and registers it in the GeoPackage metadata.
func (w *Writer) CreateLayer(ctx context.Context, spec output.LayerSpec) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.layers[spec.Name]; exists {
		return fmt.Errorf("layer %s already exists in %s", spec.Name, w.path)
	}
	if spec.GeometryColumn == "" {
		spec.GeometryColumn = "geom"
	}

	if err := w.ensureSRS(ctx, spec.SRID); err != nil {
		return err
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, createTableSQL(spec)); err != nil {
		return fmt.Errorf("creating table %s: %w", spec.Name, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO gpkg_contents (table_name, data_type, identifier, description, srs_id)
		VALUES (?, 'features', ?, ?, ?)`,
		spec.Name, spec.Name, spec.Description, spec.SRID)
	if err != nil {
		return fmt.Errorf("registering %s in gpkg_contents: %w", spec.Name, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO gpkg_geometry_columns (table_name, column_name, geometry_type_name, srs_id, z, m)
		VALUES (?, ?, ?, ?, 0, 0)`,
		spec.Name, spec.GeometryColumn, string(spec.GeometryType), spec.SRID)
	if err != nil {
		return fmt.Errorf("registering %s in gpkg_geometry_columns: %w", spec.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	w.layers[spec.Name] = spec
	return nil
}

// WriteFeatures inserts features into a layer in one transaction.
func (w *Writer) WriteFeatures(ctx context.Context, layer string, features []domain.Feature) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	spec, ok := w.layers[layer]
	if !ok {
		return domain.ErrLayerNotFound
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertSQL(spec))
	if err != nil {
		return fmt.Errorf("preparing insert into %s: %w", layer, err)
	}
	defer func() { _ = stmt.Close() }()

	args := make([]interface{}, len(spec.Fields)+2)
	for _, f := range features {
		blob, err := wkb.Marshal(f.Geometry)
		if err != nil {
			return fmt.Errorf("encoding feature %d: %w", f.ID, err)
		}
		args[0] = blob
		args[1] = spec.SRID
		for i, field := range spec.Fields {
			args[i+2] = f.Properties[field.Name]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting feature %d into %s: %w", f.ID, layer, err)
		}
	}

	return tx.Commit()
}

// Close updates the layer extents and closes the package.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	for name, spec := range w.layers {
		geom := fmt.Sprintf("CastAutomagic(%s)", quoteIdent(spec.GeometryColumn))
		query := fmt.Sprintf(`
			UPDATE gpkg_contents SET
				min_x = (SELECT MIN(MbrMinX(%[1]s)) FROM %[2]s),
				min_y = (SELECT MIN(MbrMinY(%[1]s)) FROM %[2]s),
				max_x = (SELECT MAX(MbrMaxX(%[1]s)) FROM %[2]s),
				max_y = (SELECT MAX(MbrMaxY(%[1]s)) FROM %[2]s)
			WHERE table_name = ?`, geom, quoteIdent(name)) //#nosec G201 -- identifiers created by this writer
		if _, err := w.db.Exec(query, name); err != nil {
			errs = append(errs, fmt.Errorf("updating extent of %s: %w", name, err))
		}
	}

	errs = append(errs, w.db.Close())
	return errors.Join(errs...)
}

// ensureSRS registers an EPSG reference system unless the package already knows it.
func (w *Writer) ensureSRS(ctx context.Context, srid int) error {
	var count int
	err := w.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM gpkg_spatial_ref_sys WHERE srs_id = ?", srid,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking SRID %d: %w", srid, err)
	}
	if count > 0 {
		return nil
	}

	var ok sql.NullInt64
	if err := w.db.QueryRowContext(ctx, "SELECT gpkgInsertEpsgSRID(?)", srid).Scan(&ok); err != nil {
		return fmt.Errorf("%w: SRID %d: %w", domain.ErrUnsupportedProjection, srid, err)
	}
	return nil
}

func createTableSQL(spec output.LayerSpec) string {
	cols := []string{
		`"fid" INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL`,
		fmt.Sprintf("%s %s", quoteIdent(spec.GeometryColumn), spec.GeometryType),
	}
	for _, f := range spec.Fields {
		typ := strings.TrimSpace(f.Type)
		if typ == "" {
			typ = "TEXT"
		}
		cols = append(cols, fmt.Sprintf("%s %s", quoteIdent(f.Name), typ))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(spec.Name), strings.Join(cols, ", "))
}

func insertSQL(spec output.LayerSpec) string {
	cols := []string{quoteIdent(spec.GeometryColumn)}
	vals := []string{"AsGPB(GeomFromWKB(?, ?))"}
	for _, f := range spec.Fields {
		cols = append(cols, quoteIdent(f.Name))
		vals = append(vals, "?")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", //#nosec G201 -- identifiers created by this writer
		quoteIdent(spec.Name), strings.Join(cols, ", "), strings.Join(vals, ", "))
}
