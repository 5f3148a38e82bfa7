package geopackage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/jobrunner/geodensify/internal/domain"
)

// Transformer implements coordinate transformation on an in-memory SpatiaLite
// database. GeoPackage files lack the spatial_ref_sys table ST_Transform needs.
type Transformer struct {
	db *sql.DB

	mu    sync.RWMutex
	known map[int]bool
}

// NewTransformer creates a transformer with full EPSG definitions loaded.
func NewTransformer(ctx context.Context) (*Transformer, error) {
	db, err := openDB(ctx, ":memory:")
	if err != nil {
		return nil, err
	}
	// Every pooled connection would get its own empty :memory: database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "SELECT InitSpatialMetaDataFull(1)"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing spatial metadata: %w", err)
	}

	return &Transformer{db: db, known: make(map[int]bool)}, nil
}

// Transform converts a geometry between two SRIDs.
func (t *Transformer) Transform(ctx context.Context, geom orb.Geometry, sourceSRID, targetSRID int) (orb.Geometry, error) {
	if sourceSRID == targetSRID {
		return geom, nil
	}

	blob, err := wkb.Marshal(geom)
	if err != nil {
		return nil, fmt.Errorf("encoding geometry: %w", err)
	}

	var out []byte
	err = t.db.QueryRowContext(ctx,
		"SELECT AsBinary(Transform(GeomFromWKB(?, ?), ?))",
		blob, sourceSRID, targetSRID,
	).Scan(&out)
	if err != nil {
		return nil, fmt.Errorf("transforming geometry from %d to %d: %w", sourceSRID, targetSRID, err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: no transformation from %d to %d", domain.ErrUnsupportedProjection, sourceSRID, targetSRID)
	}

	return wkb.Unmarshal(out)
}

// IsSupported reports whether the SRID has a definition in spatial_ref_sys.
func (t *Transformer) IsSupported(ctx context.Context, srid int) bool {
	if !domain.HasReferenceFrame(srid) {
		return false
	}

	t.mu.RLock()
	known, cached := t.known[srid]
	t.mu.RUnlock()
	if cached {
		return known
	}

	var count int
	err := t.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM spatial_ref_sys WHERE srid = ?", srid,
	).Scan(&count)
	if err != nil {
		return false
	}

	t.mu.Lock()
	t.known[srid] = count > 0
	t.mu.Unlock()
	return count > 0
}

// Close closes the transformer's database connection.
func (t *Transformer) Close() error {
	return t.db.Close()
}
