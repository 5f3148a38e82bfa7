package application

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/jobrunner/geodensify/internal/densify"
	"github.com/jobrunner/geodensify/internal/domain"
	"github.com/jobrunner/geodensify/internal/ports/output"
)

// Metric sources for run counters.
const (
	sourcePackage  = "package"
	sourceFeatures = "features"
	sourceEdge     = "edge"
)

// DensifyService runs densification over registered GeoPackages and in-memory features.
type DensifyService struct {
	registry    *PackageRegistry
	repo        output.GeoPackageRepository
	writers     output.PackageWriterFactory
	transformer output.CoordinateTransformer
	engines     output.GeodesicEngineFactory
	publisher   output.ObjectStorage
	metrics     output.MetricsCollector
	logger      *slog.Logger
	outputDir   string
	workers     int
}

// DensifyServiceConfig holds configuration for the densify service.
type DensifyServiceConfig struct {
	OutputDir string // Local directory for output packages
	Workers   int    // Features densified concurrently (0 = number of CPUs)
}

// NewDensifyService creates a new densify service. transformer and publisher
// may be nil: without a transformer only EPSG:4326 layers can be densified,
// without a publisher output packages stay in OutputDir.
func NewDensifyService(
	registry *PackageRegistry,
	repo output.GeoPackageRepository,
	writers output.PackageWriterFactory,
	transformer output.CoordinateTransformer,
	engines output.GeodesicEngineFactory,
	publisher output.ObjectStorage,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	cfg DensifyServiceConfig,
) *DensifyService {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}

	return &DensifyService{
		registry:    registry,
		repo:        repo,
		writers:     writers,
		transformer: transformer,
		engines:     engines,
		publisher:   publisher,
		metrics:     metrics,
		logger:      logger,
		outputDir:   cfg.OutputDir,
		workers:     cfg.Workers,
	}
}

// DensifyPackage densifies every feature layer of a registered GeoPackage.
// Layers without a usable reference frame are skipped and reported.
func (s *DensifyService) DensifyPackage(ctx context.Context, packageID string, req domain.DensifyRequest) (*domain.RunReport, error) {
	return s.run(ctx, packageID, "", req)
}

// DensifyLayer densifies one layer of a registered GeoPackage.
func (s *DensifyService) DensifyLayer(ctx context.Context, packageID, layer string, req domain.DensifyRequest) (*domain.RunReport, error) {
	if layer == "" {
		return nil, fmt.Errorf("%w: layer name is required", domain.ErrInvalidInput)
	}
	return s.run(ctx, packageID, layer, req)
}

func (s *DensifyService) run(ctx context.Context, packageID, layerName string, req domain.DensifyRequest) (report *domain.RunReport, err error) {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	d, err := s.newDensifier(req)
	if err != nil {
		return nil, err
	}

	pkg, err := s.registry.BeginDensify(packageID)
	if err != nil {
		return nil, err
	}
	defer func() {
		s.registry.FinishDensify(packageID, report, err)
		s.metrics.IncRunCount(sourcePackage, err == nil)
		s.metrics.ObserveRunDuration(sourcePackage, time.Since(start))
	}()

	report = &domain.RunReport{
		PackageID: pkg.ID,
		Ellipsoid: req.Ellipsoid.Name,
		Policy:    req.Policy.Label(),
	}

	layers, err := s.planLayers(ctx, pkg, layerName, report)
	if err != nil {
		return nil, &domain.DensifyError{PackageID: pkg.ID, Layer: layerName, Err: err}
	}

	outPath := filepath.Join(s.outputDir, pkg.ID+OutputSuffix+".gpkg")
	w, err := s.writers.Create(ctx, outPath)
	if err != nil {
		return nil, &domain.DensifyError{PackageID: pkg.ID, Err: err}
	}
	report.OutputPath = outPath

	s.logger.Info("densifying package",
		"package", pkg.ID,
		"layers", len(layers),
		"ellipsoid", req.Ellipsoid.Name,
		"policy", report.Policy,
		"strategy", req.Policy.Strategy,
	)

	for i := range layers {
		lr, err := s.densifyLayer(ctx, d, pkg.ID, &layers[i], w)
		if err != nil {
			_ = w.Close()
			s.discard(outPath)
			return nil, &domain.DensifyError{PackageID: pkg.ID, Layer: layers[i].Name, Err: err}
		}
		report.AddLayer(*lr)
	}

	if err := w.Close(); err != nil {
		s.discard(outPath)
		return nil, &domain.DensifyError{PackageID: pkg.ID, Err: err}
	}
	if err := s.publish(ctx, outPath); err != nil {
		return nil, &domain.DensifyError{PackageID: pkg.ID, Err: err}
	}

	report.Duration = time.Since(start)
	s.logger.Info("package densified",
		"package", pkg.ID,
		"output", outPath,
		"features", report.Features(),
		"failed", report.Failed(),
		"points_added", report.PointsAdded(),
		"duration", report.Duration,
	)
	return report, nil
}

// discard removes the partial output of a failed run.
func (s *DensifyService) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("failed to remove partial output", "path", path, "error", err)
	}
}

// planLayers selects the layers of a run. A named layer without a usable
// reference frame aborts the run; in a whole-package run such layers are
// recorded as skipped.
func (s *DensifyService) planLayers(ctx context.Context, pkg *domain.GeoPackage, layerName string, report *domain.RunReport) ([]domain.Layer, error) {
	if layerName != "" {
		layer, ok := pkg.GetLayer(layerName)
		if !ok {
			return nil, domain.ErrLayerNotFound
		}
		if err := s.checkReferenceFrame(ctx, layer.SRID); err != nil {
			return nil, err
		}
		return []domain.Layer{*layer}, nil
	}

	var (
		layers   []domain.Layer
		firstErr error
	)
	for _, layer := range pkg.Layers {
		if err := s.checkReferenceFrame(ctx, layer.SRID); err != nil {
			s.logger.Warn("skipping layer", "package", pkg.ID, "layer", layer.Name, "srid", layer.SRID, "error", err)
			report.AddLayer(domain.LayerReport{Layer: layer.Name, Kind: layer.GeometryType, Skipped: err.Error()})
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		layers = append(layers, layer)
	}

	if len(layers) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, fmt.Errorf("%w: package has no feature layers", domain.ErrLayerNotFound)
	}
	return layers, nil
}

// densifyLayer reads, densifies and writes one layer.
func (s *DensifyService) densifyLayer(ctx context.Context, d *densify.Densifier, packageID string, layer *domain.Layer, w output.PackageWriter) (*domain.LayerReport, error) {
	start := time.Now()

	features, err := s.repo.ReadFeatures(ctx, packageID, layer.Name)
	if err != nil {
		return nil, err
	}

	set := domain.FeatureSet{
		SRID:          layer.SRID,
		Features:      features,
		PointSequence: layer.GeometryType.IsPoint(),
	}

	spec := output.LayerSpec{
		Name:           layer.Name + OutputSuffix,
		GeometryColumn: layer.GeometryColumn,
		GeometryType:   layer.GeometryType,
		SRID:           layer.SRID,
		Fields:         layer.Fields,
	}

	var (
		out []domain.Feature
		lr  *domain.LayerReport
	)
	if set.PointSequence {
		tagField := domain.PointTagField(layer.FieldNames())
		if tagField == "" {
			return nil, fmt.Errorf("%w: point tag fields %v are all taken", domain.ErrInvalidInput, domain.PointTagFieldCandidates)
		}
		out, lr, err = s.densifyPoints(ctx, d, set, tagField)
		spec.GeometryType = domain.GeomPoint
		spec.Fields = append(append([]domain.Field(nil), layer.Fields...), domain.Field{Name: tagField, Type: "TEXT"})
	} else {
		out, lr, err = s.densifyShapes(ctx, d, set)
	}
	if err != nil {
		return nil, err
	}

	lr.Kind = layer.GeometryType
	spec.Description = OutputDescription(lr.Kind, d.Ellipsoid(), d.Policy())

	if err := w.CreateLayer(ctx, spec); err != nil {
		return nil, err
	}
	if err := w.WriteFeatures(ctx, spec.Name, out); err != nil {
		return nil, err
	}

	lr.Layer = layer.Name
	lr.OutputLayer = spec.Name
	lr.Written = len(out)
	lr.Duration = time.Since(start)
	s.recordLayer(lr)

	s.logger.Info("layer densified",
		"package", packageID,
		"layer", layer.Name,
		"output_layer", spec.Name,
		"features", lr.Features,
		"failed", lr.Failed,
		"points_added", lr.PointsAdded,
	)
	return lr, nil
}

// DensifyFeatures densifies in-memory features and returns them in the input frame.
func (s *DensifyService) DensifyFeatures(ctx context.Context, set domain.FeatureSet, req domain.DensifyRequest) (out []domain.Feature, lr *domain.LayerReport, err error) {
	start := time.Now()
	defer func() {
		s.metrics.IncRunCount(sourceFeatures, err == nil)
		s.metrics.ObserveRunDuration(sourceFeatures, time.Since(start))
	}()

	if err := req.Validate(); err != nil {
		return nil, nil, err
	}
	if err := s.checkReferenceFrame(ctx, set.SRID); err != nil {
		return nil, nil, err
	}
	d, err := s.newDensifier(req)
	if err != nil {
		return nil, nil, err
	}

	if set.PointSequence {
		tagField := domain.PointTagField(propertyNames(set.Features))
		if tagField == "" {
			return nil, nil, fmt.Errorf("%w: point tag fields %v are all taken", domain.ErrInvalidInput, domain.PointTagFieldCandidates)
		}
		out, lr, err = s.densifyPoints(ctx, d, set, tagField)
	} else {
		out, lr, err = s.densifyShapes(ctx, d, set)
		if err == nil && len(set.Features) > 0 {
			lr.Kind = set.Features[0].Kind()
		}
	}
	if err != nil {
		return nil, nil, err
	}

	lr.Written = len(out)
	lr.Duration = time.Since(start)
	s.recordLayer(lr)
	return out, lr, nil
}

// DensifyEdge densifies a single geodesic edge given in EPSG:4326.
func (s *DensifyService) DensifyEdge(_ context.Context, from, to domain.GeoPoint, req domain.DensifyRequest) (res *domain.EdgeResult, err error) {
	start := time.Now()
	defer func() {
		s.metrics.IncRunCount(sourceEdge, err == nil)
		s.metrics.ObserveRunDuration(sourceEdge, time.Since(start))
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	engine, err := s.engines(req.Ellipsoid)
	if err != nil {
		return nil, err
	}
	d, err := densify.New(engine, req.Policy)
	if err != nil {
		return nil, err
	}

	line, err := engine.InverseLine(from, to)
	if err != nil {
		return nil, err
	}
	points, err := d.DensifyEdge(from, to)
	if err != nil {
		return nil, err
	}

	res = &domain.EdgeResult{
		From:     from,
		To:       to,
		Distance: line.Distance(),
		Azimuth:  line.Azimuth(),
		Points:   points,
	}
	if len(points) > 0 || line.Distance() > 0 {
		res.Segments = len(points) + 1
	}
	s.metrics.AddPointsInserted(len(points))
	return res, nil
}

type shapeResult struct {
	feature domain.Feature
	added   int
	err     error
}

// densifyShapes densifies line and polygon features on a bounded worker pool.
// Output order follows input order; failed features are counted and dropped.
func (s *DensifyService) densifyShapes(ctx context.Context, d *densify.Densifier, set domain.FeatureSet) ([]domain.Feature, *domain.LayerReport, error) {
	results := make([]shapeResult, len(set.Features))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range set.Features {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.densifyShape(gctx, d, &set.Features[i], set.SRID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	lr := &domain.LayerReport{Kind: domain.GeomUnknown, Features: len(set.Features)}
	out := make([]domain.Feature, 0, len(results))
	for i, r := range results {
		if r.err != nil {
			lr.Failed++
			s.logger.Debug("feature skipped", "fid", set.Features[i].ID, "error", r.err)
			continue
		}
		out = append(out, r.feature)
		lr.PointsAdded += r.added
	}
	return out, lr, nil
}

func (s *DensifyService) densifyShape(ctx context.Context, d *densify.Densifier, f *domain.Feature, srid int) shapeResult {
	if f.Geometry == nil {
		return shapeResult{err: &domain.GeometryError{Kind: domain.GeomUnknown, Part: -1, Reason: "missing geometry"}}
	}

	geom, err := s.toWorkingFrame(ctx, f.Geometry, srid)
	if err != nil {
		return shapeResult{err: err}
	}
	dense, added, err := d.DensifyGeometry(geom)
	if err != nil {
		return shapeResult{err: err}
	}
	dense, err = s.fromWorkingFrame(ctx, dense, srid)
	if err != nil {
		return shapeResult{err: err}
	}

	return shapeResult{
		feature: domain.Feature{ID: f.ID, Geometry: dense, Properties: f.CloneProperties()},
		added:   added,
	}
}

// densifyPoints treats the point features as the vertices of one polyline in
// feature order. Emitted points carry the attributes of the feature that ends
// their edge plus the point tag.
func (s *DensifyService) densifyPoints(ctx context.Context, d *densify.Densifier, set domain.FeatureSet, tagField string) ([]domain.Feature, *domain.LayerReport, error) {
	lr := &domain.LayerReport{Kind: domain.GeomPoint, Features: len(set.Features)}

	var (
		sources []int // feature index of each accepted point
		points  orb.MultiPoint
	)
	for i, f := range set.Features {
		p, ok := pointOf(f.Geometry)
		if !ok {
			lr.Failed++
			s.logger.Debug("feature skipped", "fid", f.ID, "error", domain.ErrUnsupportedGeometry)
			continue
		}
		sources = append(sources, i)
		points = append(points, p)
	}
	if len(points) == 0 {
		return nil, lr, nil
	}

	working, err := s.transformPoints(ctx, points, set.SRID, domain.SRIDWGS84)
	if err != nil {
		return nil, nil, err
	}
	geo := make([]domain.GeoPoint, len(working))
	for i, p := range working {
		geo[i] = domain.GeoPointFromOrb(p)
	}

	res := d.DensifySequence(geo)
	lr.Failed += len(res.Failed)
	lr.PointsAdded = res.Added()

	// Original points are copied from the input; only inserted ones are
	// converted back to the layer frame.
	var inserted orb.MultiPoint
	for _, sp := range res.Points {
		if sp.Tag == domain.TagDensified {
			inserted = append(inserted, sp.Point.Orb())
		}
	}
	native, err := s.transformPoints(ctx, inserted, domain.SRIDWGS84, set.SRID)
	if err != nil {
		return nil, nil, err
	}

	out := make([]domain.Feature, len(res.Points))
	next := 0
	for i, sp := range res.Points {
		src := &set.Features[sources[sp.Source]]
		var geom orb.Geometry
		if sp.Tag == domain.TagOriginal {
			geom = points[sp.Source]
		} else {
			geom = native[next]
			next++
		}
		props := src.CloneProperties()
		props[tagField] = string(sp.Tag)
		out[i] = domain.Feature{ID: src.ID, Geometry: geom, Properties: props}
	}
	return out, lr, nil
}

func (s *DensifyService) transformPoints(ctx context.Context, points orb.MultiPoint, from, to int) (orb.MultiPoint, error) {
	if from == to || len(points) == 0 {
		return points, nil
	}
	g, err := s.transform(ctx, points, from, to)
	if err != nil {
		return nil, err
	}
	mp, ok := g.(orb.MultiPoint)
	if !ok || len(mp) != len(points) {
		return nil, fmt.Errorf("%w: transformed point sequence changed shape", domain.ErrInternal)
	}
	return mp, nil
}

// toWorkingFrame converts a geometry to EPSG:4326.
func (s *DensifyService) toWorkingFrame(ctx context.Context, g orb.Geometry, srid int) (orb.Geometry, error) {
	return s.transform(ctx, g, srid, domain.SRIDWGS84)
}

// fromWorkingFrame converts a geometry from EPSG:4326 back to the layer frame.
func (s *DensifyService) fromWorkingFrame(ctx context.Context, g orb.Geometry, srid int) (orb.Geometry, error) {
	return s.transform(ctx, g, domain.SRIDWGS84, srid)
}

func (s *DensifyService) transform(ctx context.Context, g orb.Geometry, from, to int) (orb.Geometry, error) {
	if from == to {
		return g, nil
	}
	if s.transformer == nil {
		return nil, fmt.Errorf("%w: no transformer for SRID %d to %d", domain.ErrUnsupportedProjection, from, to)
	}
	return s.transformer.Transform(ctx, g, from, to)
}

// checkReferenceFrame verifies that coordinates in srid can be converted to
// and from the geographic working frame.
func (s *DensifyService) checkReferenceFrame(ctx context.Context, srid int) error {
	if !domain.HasReferenceFrame(srid) {
		return fmt.Errorf("%w: SRID %d", domain.ErrMissingReferenceFrame, srid)
	}
	if srid == domain.SRIDWGS84 {
		return nil
	}
	if s.transformer == nil || !s.transformer.IsSupported(ctx, srid) {
		return fmt.Errorf("%w: SRID %d", domain.ErrUnsupportedProjection, srid)
	}
	return nil
}

func (s *DensifyService) newDensifier(req domain.DensifyRequest) (*densify.Densifier, error) {
	engine, err := s.engines(req.Ellipsoid)
	if err != nil {
		return nil, err
	}
	return densify.New(engine, req.Policy)
}

// publish uploads a finished output package when output storage is configured.
func (s *DensifyService) publish(ctx context.Context, path string) error {
	if s.publisher == nil {
		return nil
	}

	key := filepath.Base(path)
	start := time.Now()
	err := s.publisher.Upload(ctx, path, key)
	s.metrics.IncStorageOperations("upload", err == nil)
	s.metrics.ObserveStorageDuration("upload", time.Since(start))
	if err != nil {
		return err
	}

	s.logger.Info("output published", "key", key)
	return nil
}

func (s *DensifyService) recordLayer(lr *domain.LayerReport) {
	s.metrics.AddFeatures("written", lr.Written)
	s.metrics.AddFeatures("failed", lr.Failed)
	s.metrics.AddPointsInserted(lr.PointsAdded)
}

// OutputDescription returns the description of a densified output layer,
// e.g. "Densified Line WGS84 900m".
func OutputDescription(kind domain.GeometryType, e domain.Ellipsoid, p domain.Policy) string {
	return fmt.Sprintf("Densified %s %s %s", kind.Title(), e.Name, p.Label())
}

// pointOf returns the position of a point feature. Single-point multipoints are accepted.
func pointOf(g orb.Geometry) (orb.Point, bool) {
	switch p := g.(type) {
	case orb.Point:
		return p, true
	case orb.MultiPoint:
		if len(p) == 1 {
			return p[0], true
		}
	}
	return orb.Point{}, false
}

// propertyNames returns the sorted union of property keys.
func propertyNames(features []domain.Feature) []string {
	seen := make(map[string]bool)
	for _, f := range features {
		for k := range f.Properties {
			seen[k] = true
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
