// Package main provides the entry point for the geodensify service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jobrunner/geodensify/internal/app"
	"github.com/jobrunner/geodensify/internal/config"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "geodensify",
	Short: "geodensify - geodesic densification service",
	Long: `geodensify inserts intermediate vertices along the ellipsoidal geodesic
of every edge of lines, polygons and point sequences.

Features:
  - Spacing (maximum segment length) and count (segments per edge) policies
  - Leading and symmetrical point placement
  - Ellipsoid presets and custom ellipsoids
  - GeoPackage batch runs with coordinate transformation (SRID support)
  - GeoJSON and single-edge REST API
  - Multiple storage backends (local, AWS S3, Azure, HTTP)
  - Hot folder with automatic densification
  - TLS with automatic certificate management
  - Prometheus metrics`,
	RunE:         runServer,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service (default)",
	RunE:  runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("geodensify %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Build Date: %s\n", buildDate)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "json", "log format (json, text)")

	// Densification flags, shared by all commands
	pf.String("ellipsoid", "WGS84", "ellipsoid preset (see 'geodensify ellipsoids')")
	pf.Float64("a", 0, "semi-major axis of a custom ellipsoid in meters")
	pf.Float64("inv-f", 0, "inverse flattening of a custom ellipsoid (0 = sphere)")
	pf.String("mode", "spacing", "densification mode (spacing, count)")
	pf.Float64("spacing", 900, "maximum spacing between points in meters")
	pf.Int("segments", 10, "segments per edge in count mode")
	pf.String("strategy", "leading", "point placement (leading, symmetrical)")
	pf.Bool("extra-segment", false, "add one segment to the spacing-derived count")
	pf.Int("workers", 0, "features densified concurrently (0 = number of CPUs)")

	// Server flags
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		f := cmd.Flags()
		f.String("host", "0.0.0.0", "server host")
		f.Int("port", 8080, "server port")
		f.Bool("tls", false, "enable TLS")
		f.StringSlice("tls-domains", nil, "TLS domains")
		f.String("tls-email", "", "TLS email for Let's Encrypt")
		f.String("storage-type", "local", "storage type (local, s3, azure, http)")
		f.String("storage-path", "./data", "local storage path")
		f.String("output-dir", "./output", "directory for densified GeoPackages")
		f.StringSlice("cors", nil, "allowed CORS origins (e.g., https://example.com,*.sub.domain.tld)")
		f.Bool("sync", false, "periodically sync packages from storage")
		f.Bool("auto", true, "densify packages as soon as they are loaded")
	}

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", pf.Lookup("log-format"))
	_ = viper.BindPFlag("densify.ellipsoid", pf.Lookup("ellipsoid"))
	_ = viper.BindPFlag("densify.a", pf.Lookup("a"))
	_ = viper.BindPFlag("densify.inv_flattening", pf.Lookup("inv-f"))
	_ = viper.BindPFlag("densify.mode", pf.Lookup("mode"))
	_ = viper.BindPFlag("densify.spacing", pf.Lookup("spacing"))
	_ = viper.BindPFlag("densify.segments", pf.Lookup("segments"))
	_ = viper.BindPFlag("densify.strategy", pf.Lookup("strategy"))
	_ = viper.BindPFlag("densify.extra_segment", pf.Lookup("extra-segment"))
	_ = viper.BindPFlag("densify.workers", pf.Lookup("workers"))

	rootCmd.AddCommand(serveCmd, runCmd, edgeCmd, ellipsoidsCmd, versionCmd)
}

func initConfig() {
	config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// bindServerFlags binds the server flags of the command being executed.
// The root and serve commands carry separate flag sets for the same keys.
func bindServerFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	_ = viper.BindPFlag("server.host", f.Lookup("host"))
	_ = viper.BindPFlag("server.port", f.Lookup("port"))
	_ = viper.BindPFlag("tls.enabled", f.Lookup("tls"))
	_ = viper.BindPFlag("tls.domains", f.Lookup("tls-domains"))
	_ = viper.BindPFlag("tls.email", f.Lookup("tls-email"))
	_ = viper.BindPFlag("storage.type", f.Lookup("storage-type"))
	_ = viper.BindPFlag("storage.local_path", f.Lookup("storage-path"))
	_ = viper.BindPFlag("output.dir", f.Lookup("output-dir"))
	_ = viper.BindPFlag("server.cors.allowed_origins", f.Lookup("cors"))
	_ = viper.BindPFlag("sync.enabled", f.Lookup("sync"))
	_ = viper.BindPFlag("densify.auto", f.Lookup("auto"))
}

func runServer(cmd *cobra.Command, _ []string) error {
	bindServerFlags(cmd)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting geodensify",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"storage_type", cfg.Storage.Type,
		"output_dir", cfg.Output.Dir,
	)

	// Create context with cancellation on shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize application
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	// Start server in background
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "address", cfg.Server.Address())
		if err := application.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal or server error
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case runErr = <-serverErr:
		logger.Error("server error", "error", runErr)
	}
	stop()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	logger.Info("shutting down server")
	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return runErr
}

func setupLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}
