package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/markdave123-py/hybridocr/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/hybridocr/internal/api/middlewares"
	"github.com/markdave123-py/hybridocr/internal/config"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewRouter builds and wires all routes.
func NewRouter(cfg *config.Config, svc handlers.ExtractionService, logger *zap.Logger) http.Handler {
	h := handlers.NewExtractHandler(svc, cfg.MaxFileSize(), logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(appMiddleware.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	// OCR of a long scan is slow; keep this at least the client's EXTRACT_TIMEOUT.
	timeout := cfg.ServerTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	r.Use(middleware.Timeout(timeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))

	r.Get("/", h.Home)
	r.Get("/healthz", h.Health)

	r.Group(func(protected chi.Router) {
		if cfg.JWTSecret != "" {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))
		}
		protected.Post("/extract", h.Extract)
		protected.Get("/extractions", h.ListExtractions)
		protected.Get("/extractions/{id}", h.GetExtraction)
		protected.Get("/extractions/{id}/text", h.ExtractionText)
		protected.Delete("/extractions/{id}", h.DeleteExtraction)
	})

	return r
}

func NewServer(cfg *config.Config, svc handlers.ExtractionService, logger *zap.Logger) *Server {
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg, svc, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{httpServer: httpSrv, logger: logger}
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
