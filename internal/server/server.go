// Package server exposes the resolution service over HTTP: package metadata
// lookups, search, dependency resolution, and cache administration.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/reqforge/reqforge/pkg/cache"
	"github.com/reqforge/reqforge/pkg/pypi"
	"github.com/reqforge/reqforge/pkg/resolver"
)

// Server wires the resolver service and cache manager to HTTP routes.
type Server struct {
	svc   *resolver.Service
	cache *cache.Manager
	log   *log.Logger
}

// New creates a Server.
func New(svc *resolver.Service, c *cache.Manager, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{svc: svc, cache: c, log: logger}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Route("/packages", func(r chi.Router) {
			r.Post("/resolve-dependencies", s.handleResolve)
			r.Get("/{name}", s.handlePackage)
			r.Get("/{name}/versions", s.handleVersions)
			r.Get("/{name}/{version}", s.handleRelease)
		})
		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", s.handleCacheStats)
			r.Post("/refresh", s.handleCacheRefresh)
		})
		r.Get("/index/validate", s.handleValidateIndex)
	})

	return r
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// requestLogger tags every request with an id and logs its outcome.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.log.Debug("request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start).Round(time.Millisecond))
	})
}

// errStatus maps service errors to HTTP statuses: expected absence is 404,
// an exhausted upstream is 502, anything else 500.
func errStatus(err error) int {
	switch {
	case errors.Is(err, pypi.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pypi.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
