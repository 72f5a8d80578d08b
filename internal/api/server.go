// Package api exposes the screening service over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"expvar"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/bouksibkhalid-create/cleargate/internal/aggregate"
	"github.com/bouksibkhalid-create/cleargate/internal/cache"
	"github.com/bouksibkhalid-create/cleargate/internal/enrich"
	"github.com/bouksibkhalid-create/cleargate/internal/graph"
	"github.com/bouksibkhalid-create/cleargate/internal/metrics"
	"github.com/bouksibkhalid-create/cleargate/internal/models"
)

// Server is the HTTP API server. The graph service and enricher are optional;
// their endpoints return 503 when the backing dependency is not configured.
type Server struct {
	agg       *aggregate.Aggregator
	graphs    *graph.Service
	enricher  *enrich.Enricher
	cache     cache.Store
	cacheTTL  time.Duration
	limiter   *RateLimiter
	logger    *slog.Logger
	authToken string // empty = no auth required
}

// NewServer creates a Server. cacheStore may be nil to disable caching and
// limiter may be nil to disable rate limiting.
func NewServer(agg *aggregate.Aggregator, graphs *graph.Service, enricher *enrich.Enricher,
	cacheStore cache.Store, cacheTTL time.Duration, limiter *RateLimiter,
	logger *slog.Logger, authToken string) *Server {
	if cacheTTL <= 0 {
		cacheTTL = cache.DefaultTTL
	}
	return &Server{
		agg:       agg,
		graphs:    graphs,
		enricher:  enricher,
		cache:     cacheStore,
		cacheTTL:  cacheTTL,
		limiter:   limiter,
		logger:    logger,
		authToken: authToken,
	}
}

// Handler returns the router with all routes registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}

	// Health and metrics are unauthenticated.
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/debug/vars", expvar.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.auth)
		r.Post("/v1/search", s.handleSearch)
		r.Post("/v1/connections", s.handleConnections)
		r.Post("/v1/enrich", s.handleEnrich)
	})

	return r
}

// requestID tags every response with an id so failures can be correlated
// across client logs and server logs.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// auth enforces Bearer token authentication when authToken is set.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"sources": s.agg.Sources(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Normalize up front so the cache key reflects the effective request and
	// validation failures never touch the cache or the sources.
	if err := req.Normalize(); err != nil {
		s.writeValidationError(w, err)
		return
	}

	key := cache.SearchKey(req)
	if s.cache != nil {
		if cached, err := s.cache.Get(r.Context(), key); err == nil {
			metrics.CacheHits.Add(1)
			s.writeRaw(w, http.StatusOK, cached)
			return
		}
		metrics.CacheMisses.Add(1)
	}

	env, err := s.agg.Search(r.Context(), req)
	if err != nil {
		s.writeValidationError(w, err)
		return
	}

	// Marshal once so the cached bytes and the response bytes are identical.
	body, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("failed to encode search response", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	if s.cache != nil {
		if err := s.cache.Set(r.Context(), key, body, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache search response", "error", err)
		}
	}
	s.writeRaw(w, http.StatusOK, body)
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	if s.graphs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "offshore graph not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req models.ConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.graphs.Connections(r.Context(), req)
	if err != nil {
		var verr *models.ValidationError
		switch {
		case errors.As(err, &verr):
			s.writeValidationError(w, err)
		case errors.Is(err, graph.ErrNodeNotFound):
			s.writeError(w, http.StatusNotFound, "node not found")
		default:
			s.logger.Error("traversal failed", "node_id", req.NodeID, "error", err)
			s.writeError(w, http.StatusBadGateway, "graph traversal failed")
		}
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	if s.enricher == nil {
		s.writeError(w, http.StatusServiceUnavailable, "enrichment not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	env, err := s.agg.Search(r.Context(), req)
	if err != nil {
		s.writeValidationError(w, err)
		return
	}
	summary, err := s.enricher.Summarize(r.Context(), env)
	if err != nil {
		s.logger.Error("enrichment failed", "query", env.Query, "error", err)
		s.writeError(w, http.StatusBadGateway, "enrichment failed")
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

// --- helpers ---

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("failed to encode response", "error", encErr)
	}
}

func (s *Server) writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// writeValidationError maps a *models.ValidationError to a 400 with the
// offending field named; anything else becomes a generic 400.
func (s *Server) writeValidationError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": verr.Error(),
			"field": verr.Field,
		})
		return
	}
	s.writeError(w, http.StatusBadRequest, err.Error())
}

// Shutdown gracefully shuts down an http.Server with the given timeout.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
