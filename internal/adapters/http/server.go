// Package http provides the HTTP server and handlers.
package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobrunner/geodensify/internal/application"
	"github.com/jobrunner/geodensify/internal/config"
	"github.com/jobrunner/geodensify/internal/domain"
	"github.com/jobrunner/geodensify/internal/ports/input"
)

// Syncer triggers a storage synchronization on demand.
type Syncer interface {
	TriggerSync(ctx context.Context) (application.SyncResult, error)
}

// Server wraps the HTTP server with application handlers.
type Server struct {
	server    *http.Server
	router    *mux.Router
	densifier input.DensifyService
	registry  input.PackageRegistry
	health    input.HealthChecker
	syncer    Syncer
	defaults  domain.DensifyRequest // Applied to parameters a request leaves out
	logger    *slog.Logger
	config    config.ServerConfig
}

// NewServer creates a new HTTP server. A nil syncer disables the sync endpoint.
func NewServer(
	cfg config.ServerConfig,
	densifier input.DensifyService,
	registry input.PackageRegistry,
	health input.HealthChecker,
	syncer Syncer,
	defaults domain.DensifyRequest,
	logger *slog.Logger,
) *Server {
	s := &Server{
		densifier: densifier,
		registry:  registry,
		health:    health,
		syncer:    syncer,
		defaults:  defaults,
		logger:    logger,
		config:    cfg,
	}

	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	// Add middleware
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	// Add CORS middleware if configured
	if s.config.CORS.Enabled() {
		r.Use(s.corsMiddleware)
	}

	// Health endpoints
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)

	// API v1
	api := r.PathPrefix("/api/v1").Subrouter()

	// Densification endpoints
	api.HandleFunc("/ellipsoids", s.handleEllipsoids).Methods(http.MethodGet)
	api.HandleFunc("/densify", s.handleDensify).Methods(s.postMethods()...)
	api.HandleFunc("/edge", s.handleEdge).Methods(http.MethodGet)

	// Package endpoints
	api.HandleFunc("/packages", s.handleListPackages).Methods(http.MethodGet)
	api.HandleFunc("/packages/{packageId}", s.handleGetPackage).Methods(http.MethodGet)
	api.HandleFunc("/packages/{packageId}/layers", s.handleGetLayers).Methods(http.MethodGet)
	api.HandleFunc("/packages/{packageId}/densify", s.handleDensifyPackage).Methods(s.postMethods()...)

	// Sync endpoint (only if sync is configured)
	if s.syncer != nil {
		api.HandleFunc("/sync", s.handleSync).Methods(s.postMethods()...)
	}

	// OpenAPI spec and Swagger UI
	r.HandleFunc("/openapi.json", s.handleOpenAPI).Methods(http.MethodGet)
	r.HandleFunc("/docs", s.handleSwaggerUI).Methods(http.MethodGet)

	// Edge calculator frontend (if enabled)
	if s.config.FrontendEnabled {
		r.HandleFunc("/", s.handleFrontend).Methods(http.MethodGet)
	}

	return r
}

// postMethods returns the methods of POST routes. Preflight requests are
// answered by the CORS middleware, which only runs on matched routes.
func (s *Server) postMethods() []string {
	if s.config.CORS.Enabled() {
		return []string{http.MethodPost, http.MethodOptions}
	}
	return []string{http.MethodPost}
}

// Router returns the mux router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Use adds middleware to the router, e.g. request metrics.
func (s *Server) Use(mw ...mux.MiddlewareFunc) {
	s.router.Use(mw...)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.config.Address())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs incoming requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// recoveryMiddleware recovers from panics.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
