// Package http exposes the resolution API together with health, readiness,
// and metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roamstack/place-resolver/internal/cache"
	"github.com/roamstack/place-resolver/internal/domain"
)

// Resolver is the engine surface the API needs.
type Resolver interface {
	Resolve(ctx context.Context, query string, opts domain.GeocodeOptions) (*domain.GeocodeResult, error)
	ResolveFuzzy(ctx context.Context, query string, opts domain.GeocodeOptions) ([]domain.GeocodeResult, error)
	CacheStats(ctx context.Context) cache.Stats
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the resolution API plus health, readiness, and metrics
// HTTP endpoints.
type Server struct {
	httpServer *http.Server
	resolver   Resolver
	logger     *slog.Logger
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(addr string, resolver Resolver, ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		resolver: resolver,
		logger:   logger,
	}

	mux.HandleFunc("GET /v1/resolve", s.handleResolve)
	mux.HandleFunc("GET /v1/resolve/fuzzy", s.handleResolveFuzzy)
	mux.HandleFunc("GET /v1/cache/stats", s.handleCacheStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	p, ok := parseResolveParams(w, r)
	if !ok {
		return
	}

	result, err := s.resolver.Resolve(r.Context(), p.query, p.opts)
	if err != nil {
		s.logger.Error("resolve failed", "query", p.query, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "resolution failed"})
		return
	}
	if result == nil && p.fuzzy {
		// fuzzy=true opts in to typo recovery when the direct lookup finds
		// nothing; the best correction answers as the canonical result.
		results, ferr := s.resolver.ResolveFuzzy(r.Context(), p.query, p.opts)
		if ferr != nil {
			s.logger.Error("fuzzy resolve failed", "query", p.query, "error", ferr)
		} else if len(results) > 0 {
			writeJSON(w, http.StatusOK, &results[0])
			return
		}
	}
	if result == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "location not found",
			"query": p.query,
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleResolveFuzzy(w http.ResponseWriter, r *http.Request) {
	p, ok := parseResolveParams(w, r)
	if !ok {
		return
	}

	results, err := s.resolver.ResolveFuzzy(r.Context(), p.query, p.opts)
	if err != nil {
		s.logger.Error("fuzzy resolve failed", "query", p.query, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "resolution failed"})
		return
	}
	if results == nil {
		results = []domain.GeocodeResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   p.query,
		"results": results,
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.resolver.CacheStats(r.Context()))
}

type resolveParams struct {
	query string
	opts  domain.GeocodeOptions
	fuzzy bool
}

// parseResolveParams extracts the shared query parameters for the resolve
// endpoints, writing a 400 response and returning ok=false when q is
// missing. Malformed optional parameters are ignored.
func parseResolveParams(w http.ResponseWriter, r *http.Request) (resolveParams, bool) {
	q := r.URL.Query()
	p := resolveParams{query: q.Get("q")}
	if p.query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing required parameter q"})
		return resolveParams{}, false
	}

	p.opts.PreferredCountry = q.Get("country")
	if v := q.Get("alternatives"); v != "" {
		p.opts.IncludeAlternatives, _ = strconv.ParseBool(v)
	}
	if v := q.Get("max"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.opts.MaxResults = n
		}
	}
	if v := q.Get("fuzzy"); v != "" {
		p.fuzzy, _ = strconv.ParseBool(v)
	}
	return p, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response body
}
