package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/geodensify/internal/application"
	"github.com/jobrunner/geodensify/internal/domain"
)

// defaultMaxBodyBytes limits GeoJSON request bodies when the configuration leaves it unset.
const defaultMaxBodyBytes = 32 << 20

// handleEllipsoids lists the ellipsoid presets.
func (s *Server) handleEllipsoids(w http.ResponseWriter, _ *http.Request) {
	presets := domain.EllipsoidPresets()
	ellipsoids := make([]map[string]interface{}, len(presets))
	for i, e := range presets {
		ellipsoids[i] = formatEllipsoid(e)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ellipsoids": ellipsoids,
		"default":    s.defaults.Ellipsoid.String(),
		"count":      len(ellipsoids),
	})
}

// handleDensify densifies the features of a GeoJSON FeatureCollection.
func (s *Server) handleDensify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req, err := parseDensifyRequest(q, s.defaults)
	if err != nil {
		s.handleDensifyError(w, err)
		return
	}
	srid, err := parseSRID(q)
	if err != nil {
		s.handleDensifyError(w, err)
		return
	}

	limit := s.config.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Body must be a GeoJSON FeatureCollection")
		return
	}

	// Domain feature IDs index the collection so results map back to the
	// caller's IDs, which GeoJSON allows to be strings.
	set := domain.FeatureSet{
		SRID:          srid,
		Features:      make([]domain.Feature, len(fc.Features)),
		PointSequence: q.Get("points") == "sequence",
	}
	for i, f := range fc.Features {
		set.Features[i] = domain.Feature{
			ID:         int64(i),
			Geometry:   f.Geometry,
			Properties: map[string]interface{}(f.Properties),
		}
	}

	features, report, err := s.densifier.DensifyFeatures(r.Context(), set, req)
	if err != nil {
		s.handleDensifyError(w, err)
		return
	}

	out := geojson.NewFeatureCollection()
	for _, f := range features {
		gf := geojson.NewFeature(f.Geometry)
		gf.Properties = geojson.Properties(f.Properties)
		if gf.Properties == nil {
			gf.Properties = geojson.Properties{}
		}
		if f.ID >= 0 && f.ID < int64(len(fc.Features)) {
			gf.ID = fc.Features[f.ID].ID
		}
		out.Append(gf)
	}
	out.ExtraMembers = geojson.Properties{
		"report": map[string]interface{}{
			"ellipsoid": req.Ellipsoid.String(),
			"policy":    req.Policy.Label(),
			"strategy":  req.Policy.Strategy,
			"srid":      srid,
			"layer":     formatLayerReport(report),
		},
	}

	s.writeJSON(w, http.StatusOK, out)
}

// handleEdge densifies a single edge given by lat1/lon1 and lat2/lon2.
func (s *Server) handleEdge(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req, err := parseDensifyRequest(q, s.defaults)
	if err != nil {
		s.handleDensifyError(w, err)
		return
	}
	from, err := parseLatLon(q, "lat1", "lon1")
	if err != nil {
		s.handleDensifyError(w, err)
		return
	}
	to, err := parseLatLon(q, "lat2", "lon2")
	if err != nil {
		s.handleDensifyError(w, err)
		return
	}

	res, err := s.densifier.DensifyEdge(r.Context(), from, to, req)
	if err != nil {
		s.handleDensifyError(w, err)
		return
	}

	points := make([][2]float64, len(res.Points))
	line := make(orb.LineString, 0, len(res.Points)+2)
	line = append(line, res.From.Orb())
	for i, p := range res.Points {
		points[i] = [2]float64{p.Lon, p.Lat}
		line = append(line, p.Orb())
	}
	line = append(line, res.To.Orb())

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"from":        formatPoint(res.From),
		"to":          formatPoint(res.To),
		"ellipsoid":   req.Ellipsoid.String(),
		"policy":      req.Policy.Label(),
		"distance_m":  res.Distance,
		"azimuth_deg": res.Azimuth,
		"segments":    res.Segments,
		"points":      points,
		"geometry":    geojson.NewGeometry(line),
	})
}

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":             boolToStatus(details.Healthy),
		"ready":              details.Ready,
		"packages_loaded":    details.PackagesLoaded,
		"packages_ready":     details.PackagesReady,
		"packages_densified": details.PackagesDensified,
		"components":         details.Components,
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// handleListPackages returns all registered packages.
func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := s.registry.ListPackages(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list packages")
		return
	}

	response := make([]map[string]interface{}, len(packages))
	for i := range packages {
		response[i] = s.formatPackage(r, &packages[i])
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"packages": response,
		"count":    len(packages),
	})
}

// handleGetPackage returns a specific package.
func (s *Server) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := s.registry.GetPackage(r.Context(), mux.Vars(r)["packageId"])
	if err != nil {
		s.handleDensifyError(w, err)
		return
	}

	response := s.formatPackage(r, pkg)
	if pkg.LastReport != nil {
		response["last_report"] = formatRunReport(pkg.LastReport)
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleGetLayers returns layers for a specific package.
func (s *Server) handleGetLayers(w http.ResponseWriter, r *http.Request) {
	packageID := mux.Vars(r)["packageId"]

	pkg, err := s.registry.GetPackage(r.Context(), packageID)
	if err != nil {
		s.handleDensifyError(w, err)
		return
	}

	layers := make([]map[string]interface{}, len(pkg.Layers))
	for i := range pkg.Layers {
		l := &pkg.Layers[i]
		layers[i] = map[string]interface{}{
			"name":                l.Name,
			"description":         l.Description,
			"geometry_type":       l.GeometryType,
			"geometry_column":     l.GeometryColumn,
			"srid":                l.SRID,
			"has_reference_frame": l.HasReferenceFrame(),
			"fields":              l.FieldNames(),
			"feature_count":       l.FeatureCount,
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"package_id": packageID,
		"layers":     layers,
		"count":      len(layers),
	})
}

// handleDensifyPackage densifies a registered package, or one of its layers.
func (s *Server) handleDensifyPackage(w http.ResponseWriter, r *http.Request) {
	packageID := mux.Vars(r)["packageId"]
	q := r.URL.Query()

	req, err := parseDensifyRequest(q, s.defaults)
	if err != nil {
		s.handleDensifyError(w, err)
		return
	}

	var report *domain.RunReport
	if layer := q.Get("layer"); layer != "" {
		report, err = s.densifier.DensifyLayer(r.Context(), packageID, layer, req)
	} else {
		report, err = s.densifier.DensifyPackage(r.Context(), packageID, req)
	}
	if err != nil {
		s.handleDensifyError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, formatRunReport(report))
}

// handleOpenAPI returns the OpenAPI specification.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	spec, err := getOpenAPIJSON()
	if err != nil {
		s.logger.Error("failed to get OpenAPI spec", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load OpenAPI specification")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(spec)
}

// handleSync handles the sync trigger endpoint.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.syncer.TriggerSync(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrRateLimited) {
			w.Header().Set("Retry-After", "30")
			s.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again in 30 seconds.")
			return
		}
		s.logger.Error("sync failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Sync failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleDensifyError maps domain errors to HTTP status codes.
func (s *Server) handleDensifyError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrPackageNotFound):
		s.writeError(w, http.StatusNotFound, "Package not found")
	case errors.Is(err, domain.ErrLayerNotFound):
		s.writeError(w, http.StatusNotFound, "Layer not found")
	case errors.Is(err, domain.ErrDensificationInProcess):
		s.writeError(w, http.StatusConflict, "Densification already running for this package")
	case errors.Is(err, domain.ErrNotReady):
		s.writeError(w, http.StatusServiceUnavailable, "Package is not ready")
	case errors.As(err, &validationErr):
		s.writeError(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, domain.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnsupported):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("densify error", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Densification failed")
	}
}

// formatPackage formats a GeoPackage for JSON output.
func (s *Server) formatPackage(r *http.Request, pkg *domain.GeoPackage) map[string]interface{} {
	status, _ := s.registry.GetPackageStatus(r.Context(), pkg.ID)
	out := map[string]interface{}{
		"id":          pkg.ID,
		"name":        pkg.Name,
		"path":        pkg.Path,
		"size":        pkg.Size,
		"layer_count": pkg.LayerCount(),
		"status":      status,
		"loaded_at":   pkg.LoadedAt,
	}
	if !pkg.DensifiedAt.IsZero() {
		out["densified_at"] = pkg.DensifiedAt
	}
	return out
}

func formatRunReport(r *domain.RunReport) map[string]interface{} {
	layers := make([]map[string]interface{}, len(r.Layers))
	for i := range r.Layers {
		layers[i] = formatLayerReport(&r.Layers[i])
	}
	return map[string]interface{}{
		"package_id":         r.PackageID,
		"output_path":        r.OutputPath,
		"ellipsoid":          r.Ellipsoid,
		"policy":             r.Policy,
		"layers":             layers,
		"features":           r.Features(),
		"features_failed":    r.Failed(),
		"points_added":       r.PointsAdded(),
		"processing_time_ms": r.Duration.Milliseconds(),
	}
}

func formatLayerReport(l *domain.LayerReport) map[string]interface{} {
	out := map[string]interface{}{
		"layer":              l.Layer,
		"output_layer":       l.OutputLayer,
		"geometry_type":      l.Kind,
		"features":           l.Features,
		"features_written":   l.Written,
		"features_failed":    l.Failed,
		"points_added":       l.PointsAdded,
		"processing_time_ms": l.Duration.Milliseconds(),
	}
	if l.Skipped != "" {
		out["skipped"] = l.Skipped
	}
	return out
}

func formatEllipsoid(e domain.Ellipsoid) map[string]interface{} {
	return map[string]interface{}{
		"name":           e.Name,
		"a":              e.A,
		"inv_flattening": e.InvFlattening,
		"flattening":     e.Flattening(),
	}
}

func formatPoint(p domain.GeoPoint) map[string]float64 {
	return map[string]float64{"lat": p.Lat, "lon": p.Lon}
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}
