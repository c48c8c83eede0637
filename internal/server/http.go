package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/windfall/pronounce_service/internal/config"
	httphandler "github.com/windfall/pronounce_service/internal/handler/http"
	"github.com/windfall/pronounce_service/internal/middleware"
)

// HTTPServer represents the HTTP server.
type HTTPServer struct {
	server *http.Server
	log    zerolog.Logger
}

// NewRouter builds the chi router with every route mounted.
func NewRouter(
	cfg *config.Config,
	log zerolog.Logger,
	healthHandler *httphandler.HealthHandler,
	assessmentHandler *httphandler.AssessmentHandler,
	sampleHandler *httphandler.SampleHandler,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   cfg.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORSAllowedHeaders,
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/live", healthHandler.Live)

	r.Route("/api/v1", func(r chi.Router) {
		// Synchronous assessment holds the request open for the whole
		// provider budget.
		r.With(chimiddleware.Timeout(cfg.AssessTimeout)).Post("/assessments", assessmentHandler.Assess)

		// Async assessment (2-step pattern)
		r.Post("/assessments/jobs", assessmentHandler.SubmitJob)
		r.Get("/assessments/jobs/{jobID}", assessmentHandler.GetJob)

		r.Post("/assessments/coach", assessmentHandler.Coach)
		r.Get("/learners/{learnerID}/assessments", assessmentHandler.ListHistory)

		r.With(chimiddleware.Compress(5, "application/json")).Post("/samples", sampleHandler.Create)
	})

	return r
}

// NewHTTPServer creates a new HTTP server around handler.
func NewHTTPServer(cfg *config.Config, log zerolog.Logger, handler http.Handler) *HTTPServer {
	// Assessments and job polls outlast the default write timeout.
	writeTimeout := cfg.WriteTimeout
	if min := cfg.AssessTimeout + 5*time.Second; writeTimeout < min {
		writeTimeout = min
	}

	server := &http.Server{
		Addr:         cfg.HTTPAddress(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &HTTPServer{
		server: server,
		log:    log,
	}
}

// Start starts the HTTP server.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
