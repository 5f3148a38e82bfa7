package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/jobrunner/geodensify/internal/adapters/geodesic"
	"github.com/jobrunner/geodensify/internal/adapters/geopackage"
	"github.com/jobrunner/geodensify/internal/app"
	"github.com/jobrunner/geodensify/internal/application"
	"github.com/jobrunner/geodensify/internal/config"
	"github.com/jobrunner/geodensify/internal/domain"
	"github.com/jobrunner/geodensify/internal/ports/output"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Densify a local GeoPackage once",
	Long: `Densify every feature layer (or one layer) of a local GeoPackage and write
the result to a new GeoPackage next to the configured output directory.`,
	Example: `  geodensify run --input parcels.gpkg --spacing 500
  geodensify run --input roads.gpkg --layer highways --mode count --segments 8 --output roads_dense.gpkg`,
	RunE: runBatch,
}

var edgeCmd = &cobra.Command{
	Use:   "edge",
	Short: "Densify a single geodesic edge",
	Long: `Densify the geodesic between two points given as "lat,lon" in EPSG:4326
and print the intermediate points. Without points the Canberra to Darwin
edge is used.`,
	Example: `  geodensify edge --spacing 5000 --extra-segment --a 6378137 --inv-f 298.257222100882711243
  geodensify edge --from 52.52,13.405 --to 48.137,11.575 --mode count --segments 4 --geojson`,
	RunE: runEdge,
}

var ellipsoidsCmd = &cobra.Command{
	Use:   "ellipsoids",
	Short: "List ellipsoid presets",
	Run: func(cmd *cobra.Command, _ []string) {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tA (m)\t1/F")
		for _, e := range domain.EllipsoidPresets() {
			fmt.Fprintf(w, "%s\t%.3f\t%v\n", e.Name, e.A, e.InvFlattening)
		}
		_ = w.Flush()
	},
}

func init() {
	runCmd.Flags().String("input", "", "GeoPackage to densify")
	runCmd.Flags().String("layer", "", "densify only this layer")
	runCmd.Flags().String("output", "", "output GeoPackage (default: <output-dir>/<name>_densified.gpkg)")
	_ = runCmd.MarkFlagRequired("input")

	edgeCmd.Flags().String("from", "-35.183,149.1", "start point as lat,lon")
	edgeCmd.Flags().String("to", "-12.45,130.8", "end point as lat,lon")
	edgeCmd.Flags().Bool("geojson", false, "print the densified edge as a GeoJSON LineString feature")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	input, _ := cmd.Flags().GetString("input")
	layer, _ := cmd.Flags().GetString("layer")
	outPath, _ := cmd.Flags().GetString("output")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg.Storage = config.StorageConfig{Type: string(output.StorageTypeLocal), LocalPath: filepath.Dir(input)}
	cfg.Metrics.Enabled = false
	if outPath != "" {
		cfg.Output.Dir = filepath.Dir(outPath)
	}

	logger := setupLogger(cfg.Logging, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Core(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	defer func() { _ = a.Close(context.Background()) }()

	if err := a.Registry.LoadPackage(ctx, input); err != nil {
		return err
	}
	packageID := geopackage.DerivePackageID(input)

	var report *domain.RunReport
	if layer != "" {
		report, err = a.DensifyService.DensifyLayer(ctx, packageID, layer, a.Request)
	} else {
		report, err = a.DensifyService.DensifyPackage(ctx, packageID, a.Request)
	}
	if err != nil {
		return err
	}

	if outPath != "" && outPath != report.OutputPath {
		if err := os.Rename(report.OutputPath, outPath); err != nil {
			return fmt.Errorf("moving output: %w", err)
		}
		report.OutputPath = outPath
	}

	printReport(cmd.OutOrStdout(), report)
	return nil
}

func printReport(out io.Writer, r *domain.RunReport) {
	fmt.Fprintf(out, "%s -> %s (%s, %s, %s)\n\n", r.PackageID, r.OutputPath, r.Ellipsoid, r.Policy, r.Duration.Round(time.Millisecond))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LAYER\tKIND\tFEATURES\tWRITTEN\tFAILED\tPOINTS ADDED\tNOTE")
	for _, l := range r.Layers {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n", l.Layer, l.Kind, l.Features, l.Written, l.Failed, l.PointsAdded, l.Skipped)
	}
	fmt.Fprintf(w, "total\t\t%d\t\t%d\t%d\t\n", r.Features(), r.Failed(), r.PointsAdded())
	_ = w.Flush()
}

func runEdge(cmd *cobra.Command, _ []string) error {
	fromFlag, _ := cmd.Flags().GetString("from")
	toFlag, _ := cmd.Flags().GetString("to")
	asGeoJSON, _ := cmd.Flags().GetBool("geojson")

	from, err := parseLatLon(fromFlag)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	to, err := parseLatLon(toFlag)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	req, err := cfg.Densify.Request()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stderr)
	svc := application.NewDensifyService(nil, nil, nil, nil, geodesic.Factory, nil, &output.NoOpMetrics{}, logger, application.DensifyServiceConfig{})

	res, err := svc.DensifyEdge(cmd.Context(), from, to, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asGeoJSON {
		line := orb.LineString{res.From.Orb()}
		for _, p := range res.Points {
			line = append(line, p.Orb())
		}
		line = append(line, res.To.Orb())

		f := geojson.NewFeature(line)
		f.Properties["ellipsoid"] = req.Ellipsoid.String()
		f.Properties["policy"] = req.Policy.Label()
		f.Properties["distance_m"] = res.Distance
		f.Properties["segments"] = res.Segments

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	}

	fmt.Fprintf(out, "ellipsoid: %s (a=%.3f, 1/f=%v)\n", req.Ellipsoid, req.Ellipsoid.A, req.Ellipsoid.InvFlattening)
	fmt.Fprintf(out, "policy:    %s, %s\n", req.Policy.Label(), req.Policy.Strategy)
	fmt.Fprintf(out, "distance:  %.3f m\n", res.Distance)
	fmt.Fprintf(out, "azimuth:   %.6f°\n", res.Azimuth)
	fmt.Fprintf(out, "segments:  %d\n\n", res.Segments)
	for _, p := range res.Points {
		fmt.Fprintf(out, "%.8f,%.8f\n", p.Lat, p.Lon)
	}
	return nil
}

// parseLatLon parses "lat,lon".
func parseLatLon(s string) (domain.GeoPoint, error) {
	latS, lonS, ok := strings.Cut(s, ",")
	if !ok {
		return domain.GeoPoint{}, fmt.Errorf("%w: expected lat,lon, got %q", domain.ErrInvalidCoordinate, s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("%w: latitude %q", domain.ErrInvalidCoordinate, latS)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonS), 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("%w: longitude %q", domain.ErrInvalidCoordinate, lonS)
	}
	p := domain.NewGeoPoint(lon, lat)
	return p, p.Validate()
}
