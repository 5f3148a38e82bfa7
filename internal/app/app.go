// Package app provides application initialization and wiring.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jobrunner/geodensify/internal/adapters/geodesic"
	"github.com/jobrunner/geodensify/internal/adapters/geopackage"
	httpAdapter "github.com/jobrunner/geodensify/internal/adapters/http"
	"github.com/jobrunner/geodensify/internal/adapters/metrics"
	"github.com/jobrunner/geodensify/internal/adapters/storage"
	tlsAdapter "github.com/jobrunner/geodensify/internal/adapters/tls"
	"github.com/jobrunner/geodensify/internal/adapters/watcher"
	"github.com/jobrunner/geodensify/internal/application"
	"github.com/jobrunner/geodensify/internal/config"
	"github.com/jobrunner/geodensify/internal/domain"
	"github.com/jobrunner/geodensify/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config         *config.Config
	Logger         *slog.Logger
	Request        domain.DensifyRequest // Run configuration for automatic densification
	Storage        output.ObjectStorage
	Publisher      output.ObjectStorage // nil keeps output packages in Output.Dir
	Repository     *geopackage.Repository
	Transformer    *geopackage.Transformer
	Registry       *application.PackageRegistry
	DensifyService *application.DensifyService
	SyncService    *application.SyncService
	HealthService  *application.HealthService
	HTTPServer     *httpAdapter.Server
	TLSServer      *tlsAdapter.Server
	Watcher        *watcher.Watcher
	Metrics        *metrics.Collector
	MetricsServer  *metrics.Server
}

// Core builds the storage, GeoPackage and application layers without any
// server. The one-shot CLI commands use it directly.
func Core(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	req, err := cfg.Densify.Request()
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Request: req,
	}

	var metricsCollector output.MetricsCollector = &output.NoOpMetrics{}
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector(metrics.DefaultNamespace)
		metricsCollector = app.Metrics
	}

	// Initialize storage adapters
	store, err := initStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	app.Storage = store

	var publisher output.ObjectStorage
	if cfg.Output.Publishes() {
		publisher, err = initStorage(ctx, cfg.Output.Storage)
		if err != nil {
			return nil, fmt.Errorf("initializing output storage: %w", err)
		}
		app.Publisher = publisher
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	// Initialize GeoPackage adapters
	app.Repository = geopackage.NewRepository()

	var transformer output.CoordinateTransformer
	if t, err := geopackage.NewTransformer(ctx); err != nil {
		logger.Warn("coordinate transformation unavailable, only EPSG:4326 layers can be densified", "error", err)
	} else {
		app.Transformer = t
		transformer = t
	}

	// Initialize package registry
	app.Registry = application.NewPackageRegistry(
		app.Repository,
		app.Storage,
		metricsCollector,
		logger,
		cfg.Storage.LocalPath,
	)

	// Initialize densify service
	app.DensifyService = application.NewDensifyService(
		app.Registry,
		app.Repository,
		geopackage.NewWriterFactory(),
		transformer,
		geodesic.Factory,
		publisher,
		metricsCollector,
		logger,
		application.DensifyServiceConfig{
			OutputDir: cfg.Output.Dir,
			Workers:   cfg.Densify.Workers,
		},
	)

	// The sync service also densifies packages found at startup and by the watcher.
	var densifier application.PackageDensifier
	if cfg.Densify.Auto {
		densifier = app.DensifyService
	}
	app.SyncService = application.NewSyncService(
		app.Registry,
		densifier,
		req,
		cfg.Sync.Interval,
		logger,
	)

	app.HealthService = application.NewHealthService(app.Registry)

	return app, nil
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app, err := Core(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Sync endpoint only when periodic sync is configured
	var syncer httpAdapter.Syncer
	if cfg.Sync.Enabled {
		syncer = app.SyncService
	}

	// Initialize HTTP server
	app.HTTPServer = httpAdapter.NewServer(
		cfg.Server,
		app.DensifyService,
		app.Registry,
		app.HealthService,
		syncer,
		app.Request,
		logger,
	)

	// Initialize metrics endpoint, on the API port unless a dedicated port is set
	if app.Metrics != nil {
		app.HTTPServer.Use(app.Metrics.Middleware)
		if cfg.Metrics.Port == 0 {
			app.HTTPServer.Router().Handle(cfg.Metrics.Path, metrics.Handler())
		} else {
			app.MetricsServer = metrics.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, logger)
		}
	}

	// Initialize TLS server if enabled
	if cfg.TLS.Enabled {
		tlsServer, err := tlsAdapter.NewServer(
			tlsAdapter.Config{
				Enabled:  cfg.TLS.Enabled,
				Domains:  cfg.TLS.Domains,
				Email:    cfg.TLS.Email,
				CacheDir: cfg.TLS.CacheDir,
				Staging:  cfg.TLS.Staging,
				DNS: tlsAdapter.DNSConfig{
					SubscriptionID:    cfg.TLS.DNS.SubscriptionID,
					ResourceGroupName: cfg.TLS.DNS.ResourceGroupName,
					ClientID:          cfg.TLS.DNS.ClientID,
				},
			},
			app.HTTPServer.Router(),
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("initializing TLS: %w", err)
		}
		app.TLSServer = tlsServer
	}

	// Initialize file watcher for the hot folder
	if cfg.Storage.Type == string(output.StorageTypeLocal) {
		w, err := watcher.New(
			watcher.Config{
				Paths:  []string{cfg.Storage.LocalPath},
				Ignore: application.IsOutputPackage,
			},
			app.handleFileEvent,
			logger,
		)
		if err != nil {
			logger.Warn("failed to initialize file watcher", "error", err)
		} else {
			app.Watcher = w
		}
	}

	return app, nil
}

// Start starts all application components.
func (a *App) Start(ctx context.Context) error {
	// Load all packages from storage, densifying them in the background
	ids, err := a.Registry.LoadAll(ctx)
	if err != nil {
		a.Logger.Warn("failed to load packages", "error", err)
	}
	if len(ids) > 0 && a.Config.Densify.Auto {
		go func() {
			n := a.SyncService.DensifyNew(ctx, ids)
			a.Logger.Info("initial densification finished", "packages", len(ids), "densified", n)
		}()
	}

	// Start file watcher
	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start file watcher", "error", err)
		}
	}

	if a.Config.Sync.Enabled {
		a.SyncService.Start(ctx)
	}

	// Start metrics server in background
	if a.MetricsServer != nil {
		go func() {
			if err := a.MetricsServer.Start(); err != nil {
				a.Logger.Error("metrics server error", "error", err)
			}
		}()
	}

	// Start server
	if a.TLSServer != nil {
		if err := a.TLSServer.ManageCertificates(ctx); err != nil {
			return err
		}
		return a.TLSServer.ListenAndServe(a.Config.Server.Address())
	}
	return a.HTTPServer.Start()
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}

	if a.Config.Sync.Enabled {
		a.SyncService.Stop()
	}

	if a.MetricsServer != nil {
		if err := a.MetricsServer.Shutdown(ctx); err != nil {
			a.Logger.Error("metrics server shutdown error", "error", err)
		}
	}

	if a.TLSServer != nil {
		if err := a.TLSServer.Shutdown(ctx); err != nil {
			a.Logger.Error("TLS server shutdown error", "error", err)
		}
	} else if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTP server shutdown error", "error", err)
		}
	}

	return a.Close(ctx)
}

// Close unloads all packages and releases the transformer.
func (a *App) Close(ctx context.Context) error {
	packages, _ := a.Registry.ListPackages(ctx)
	for _, pkg := range packages {
		if err := a.Registry.UnloadPackage(ctx, pkg.ID); err != nil {
			a.Logger.Error("failed to unload package", "id", pkg.ID, "error", err)
		}
	}

	if a.Transformer != nil {
		return a.Transformer.Close()
	}
	return nil
}

// handleFileEvent handles file system events in the hot folder.
func (a *App) handleFileEvent(ctx context.Context, event watcher.Event) error {
	a.Logger.Info("file event", "path", event.Path, "operation", event.Operation.String())
	packageID := geopackage.DerivePackageID(event.Path)

	switch event.Operation {
	case watcher.OpCreate, watcher.OpModify:
		if err := a.Registry.LoadPackage(ctx, event.Path); err != nil {
			return err
		}
		a.SyncService.DensifyNew(ctx, []string{packageID})
		return nil

	case watcher.OpDelete:
		if err := a.Registry.UnloadPackage(ctx, packageID); err != nil {
			a.Logger.Warn("failed to unload deleted package", "id", packageID, "error", err)
		}
		return nil
	}

	return nil
}

// initStorage initializes the appropriate storage adapter.
func initStorage(ctx context.Context, cfg config.StorageConfig) (output.ObjectStorage, error) {
	switch output.StorageType(cfg.Type) {
	case output.StorageTypeLocal:
		return storage.NewLocalStorage(cfg.LocalPath), nil

	case output.StorageTypeS3:
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case output.StorageTypeAzure:
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	case output.StorageTypeHTTP:
		return storage.NewHTTPStorage(storage.HTTPConfig{
			BaseURL:   cfg.HTTP.BaseURL,
			IndexFile: cfg.HTTP.IndexFile,
			Timeout:   cfg.HTTP.Timeout,
			Username:  cfg.HTTP.Username,
			Password:  cfg.HTTP.Password,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
