// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/clinovault/sentinel/internal/alerting"
	"github.com/clinovault/sentinel/internal/config"
	"github.com/clinovault/sentinel/internal/diagnostic"
	"github.com/clinovault/sentinel/internal/metrics"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Server exposes diagnostics and alerting over HTTP.
type Server struct {
	config      *config.Config
	logger      *zap.Logger
	router      chi.Router
	httpServer  *http.Server
	engine      *diagnostic.Engine
	alerts      *alerting.Manager
	instruments *metrics.Instruments
	startTime   time.Time
}

// NewServer wires the router over the diagnostic engine and alert
// manager.
func NewServer(cfg *config.Config, logger *zap.Logger, engine *diagnostic.Engine,
	alerts *alerting.Manager, instruments *metrics.Instruments) *Server {
	s := &Server{
		config:      cfg,
		logger:      logger,
		router:      chi.NewRouter(),
		engine:      engine,
		alerts:      alerts,
		instruments: instruments,
		startTime:   time.Now(),
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)
	if s.instruments != nil {
		s.router.Handle("/metrics", s.instruments.Handler())
	}

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/diagnostics", s.handleGetDiagnostics)
		r.Post("/diagnostics/run", s.handleRunDiagnostics)
		r.Get("/alerts", s.handleListAlerts)
		r.Post("/alerts/{id}/resolve", s.handleResolveAlert)
	})
}

// Start begins serving. Blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: serve: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
