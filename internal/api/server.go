package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/open-climate/physrisk/internal/domain"
	"github.com/open-climate/physrisk/internal/hazard"
	"github.com/open-climate/physrisk/internal/runner"
	"github.com/open-climate/physrisk/internal/screening"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, run *runner.Runner, screener *screening.Engine, hazards *hazard.Registry, version string, tier domain.Tier) *Server {
	handler := NewHandler(repo, cache, bus, run, screener, hazards, version, tier)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Site management
		r.Post("/sites", handler.CreateSite)
		r.Get("/sites", handler.ListSites)
		r.Get("/sites/{id}", handler.GetSite)
		r.Get("/sites/{id}/assessments", handler.ListSiteAssessments)

		// Assessment execution and retrieval
		r.Post("/assessments", handler.RunAssessment)
		r.Get("/assessments/{id}", handler.GetAssessment)

		// Hazard tables (read-only, loaded at startup)
		r.Get("/hazards", handler.ListHazards)

		// Screening rule management
		r.Get("/screening/rules", handler.ListScreeningRules)
		r.Get("/screening/rules/{id}", handler.GetScreeningRule)
		r.Post("/screening/rules", handler.CreateScreeningRule)
		r.Delete("/screening/rules/{id}", handler.DeleteScreeningRule)
		r.Post("/screening/rules/reload", handler.ReloadScreeningRules)

		// Climate warehouse ingestion
		r.Post("/climate/samples", handler.IngestClimateSamples)
		r.Post("/climate/tracks", handler.IngestTrackPoints)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
