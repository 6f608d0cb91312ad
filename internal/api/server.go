package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-insurance/heron/internal/auth"
	"github.com/opensource-insurance/heron/internal/domain"
	"github.com/opensource-insurance/heron/internal/extraction"
	"github.com/opensource-insurance/heron/internal/model"
	"github.com/opensource-insurance/heron/internal/rules"
	"github.com/opensource-insurance/heron/internal/velocity"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, authSvc *auth.Service, gateway *model.Gateway, flags *rules.Engine, filing *velocity.Service, extractor *extraction.Extractor, version string) *Server {
	handler := NewHandler(repo, cache, bus, authSvc, gateway, flags, filing, extractor, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no auth required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Account endpoints (no auth required)
	router.Post("/auth/register", handler.Register)
	router.Post("/auth/login", handler.Login)

	// API routes (bearer token required)
	router.Route("/", func(r chi.Router) {
		r.Use(AuthMiddleware(authSvc))

		r.Get("/auth/me", handler.Me)

		// Claim pipeline
		r.Post("/claims", handler.IngestClaim)
		r.Get("/claims", handler.ListClaims)
		r.Get("/claims/{id}", handler.GetClaim)
		r.Patch("/claims/{id}", handler.UpdateClaimStatus)
		r.Delete("/claims/{id}", handler.DeleteClaim)
		r.Post("/claims/{id}/rescore", handler.RescoreClaim)

		// Predictions and reporting
		r.Get("/predictions/{claimID}", handler.GetPrediction)
		r.Get("/report", handler.Report)

		// Model management
		r.Post("/models/train", handler.TrainModel)
		r.Get("/models", handler.ListModels)

		// Flag rule management
		r.Get("/rules", handler.ListFlagRules)
		r.Post("/rules", handler.SaveFlagRule)
		r.Post("/rules/reload", handler.ReloadFlagRules)
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
