// Package api provides the HTTP server exposing the mailtx command
// surface: stats, full-text search, similarity search, ledger queries,
// and natural-language questions. It is a thin shell over the core; no
// pipeline behavior depends on it.
package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/mailtx/mailtx/internal/config"
	"github.com/mailtx/mailtx/internal/embed"
	"github.com/mailtx/mailtx/internal/query"
	"github.com/mailtx/mailtx/internal/store"
)

// Server is the HTTP API server.
type Server struct {
	cfg     *config.Config
	store   *store.Store
	engine  *query.Engine
	indexer *embed.Indexer
	logger  *slog.Logger
	router  chi.Router
	server  *http.Server
}

// NewServer creates an API server over the given components.
func NewServer(cfg *config.Config, st *store.Store, eng *query.Engine, ix *embed.Indexer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		store:   st,
		engine:  eng,
		indexer: ix,
		logger:  logger,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(s.loggerMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(120 * time.Second))

	r.Route("/api", func(r chi.Router) {
		if s.cfg.Server.APIKey != "" {
			r.Use(s.authMiddleware)
		}
		r.Get("/stats", s.handleStats)
		r.Get("/search", s.handleSearch)
		r.Get("/similar", s.handleSimilar)
		r.Get("/transactions", s.handleTransactions)
		r.Post("/ask", s.handleAsk)
	})

	return r
}

// loggerMiddleware logs each request with its duration and status.
func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// authMiddleware enforces the configured API key via constant-time compare.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.Server.APIKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start begins serving on the configured port. Blocks until the listener
// fails or Shutdown is called.
func (s *Server) Start() error {
	addr := net.JoinHostPort("127.0.0.1", fmt.Sprintf("%d", s.cfg.Server.APIPort))
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server listening", "addr", addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the configured router, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}
