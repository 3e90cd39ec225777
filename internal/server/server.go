// Package server provides the HTTP API: one-shot search plus stateful query sessions.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"semsearch/internal/config"
	"semsearch/internal/corpus"
	"semsearch/internal/domain"
	"semsearch/internal/metrics"
	"semsearch/internal/service"
)

// Deps are the collaborators the HTTP handlers need.
type Deps struct {
	Searcher   domain.Searcher
	NewSession func() *service.Session
	Collection string
	Documents  []string
	Presets    []corpus.Preset

	// DefaultTopK and MaxTopK bound one-shot searches; zero means the
	// session defaults.
	DefaultTopK int
	MaxTopK     int
}

// Server is the HTTP server for the search API.
type Server struct {
	deps     Deps
	sessions *sessionStore
	config   *config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.DefaultTopK <= 0 {
		deps.DefaultTopK = service.DefaultTopK
	}
	if deps.MaxTopK <= 0 {
		deps.MaxTopK = service.MaxTopK
	}
	ttl := time.Duration(cfg.SessionTTLMins) * time.Minute
	return &Server{
		deps:     deps,
		sessions: newSessionStore(ttl),
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/documents", s.handleDocuments)
		r.Get("/presets", s.handlePresets)
		r.Post("/search", s.handleSearch)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Put("/query", s.handleEditQuery)
			r.Put("/top_k", s.handleSetTopK)
			r.Post("/shortcuts/{name}", s.handleShortcut)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	metrics.Register()
	go s.sessions.janitor(ctx, time.Minute)

	s.server = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: time.Duration(s.config.ReadTimeoutSecs) * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", s.config.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
