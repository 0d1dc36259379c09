// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

// Package api is the HTTP runtime surface: batch and rollback triggers,
// recommendation reads against the active version, version inspection,
// health and metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tomtom215/basketry/internal/batch"
	"github.com/tomtom215/basketry/internal/metrics"
	"github.com/tomtom215/basketry/internal/models"
	"github.com/tomtom215/basketry/internal/registry"
	"github.com/tomtom215/basketry/internal/repository"
	"github.com/tomtom215/basketry/internal/trigger"
)

// Config tunes the HTTP surface.
type Config struct {
	// RateLimitReqs / RateLimitWindow bound request rates per client IP.
	// Defaults: 100 per minute.
	RateLimitReqs   int
	RateLimitWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.RateLimitReqs < 1 {
		c.RateLimitReqs = 100
	}
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = time.Minute
	}
	return c
}

// Server carries the handler dependencies.
type Server struct {
	repo     repository.Repository
	pointers *registry.Pointers
	triggers *trigger.Publisher
	cfg      Config
	logger   zerolog.Logger
}

// NewServer wires the HTTP surface.
func NewServer(
	repo repository.Repository,
	pointers *registry.Pointers,
	triggers *trigger.Publisher,
	cfg Config,
	logger zerolog.Logger,
) *Server {
	return &Server{
		repo:     repo,
		pointers: pointers,
		triggers: triggers,
		cfg:      cfg.withDefaults(),
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

// Routes builds the chi handler tree.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.cfg.RateLimitReqs, s.cfg.RateLimitWindow))
		r.Use(s.observe)

		r.Post("/batch/{jobType}", s.handleTriggerBatch)
		r.Post("/rollback", s.handleRollback)
		r.Get("/recommendations/{productID}", s.handleRecommendations)
		r.Get("/versions", s.handleVersions)
	})

	return r
}

// observe records request latency per route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		metrics.HTTPRequestDuration.WithLabelValues(
			r.Method, pattern, strconv.Itoa(ww.Status()),
		).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTriggerBatch publishes a batch-run signal for the named job type.
func (s *Server) handleTriggerBatch(w http.ResponseWriter, r *http.Request) {
	jobType, err := batch.ParseJobType(chi.URLParam(r, "jobType"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.triggers.TriggerBatch(r.Context(), jobType, r.RemoteAddr); err != nil {
		s.logger.Error().Err(err).Str("job_type", string(jobType)).Msg("batch trigger publish failed")
		s.writeError(w, http.StatusServiceUnavailable, "trigger publish failed")
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"status":   "accepted",
		"job_type": string(jobType),
	})
}

// handleRollback publishes a rollback signal.
func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	if err := s.triggers.TriggerRollback(r.Context(), r.RemoteAddr); err != nil {
		s.logger.Error().Err(err).Msg("rollback trigger publish failed")
		s.writeError(w, http.StatusServiceUnavailable, "trigger publish failed")
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleRecommendations serves one product's record under the active
// version, hot-cache first.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	ctx := r.Context()

	version, err := s.pointers.Current(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("current version read failed")
		s.writeError(w, http.StatusServiceUnavailable, "version registry unavailable")
		return
	}
	if version == "" {
		s.writeError(w, http.StatusNotFound, "no version published")
		return
	}

	rec, err := s.lookupRecommendation(ctx, productID, version)
	if errors.Is(err, repository.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "no recommendations for product")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", productID).Msg("recommendation read failed")
		s.writeError(w, http.StatusInternalServerError, "recommendation read failed")
		return
	}

	s.writeJSON(w, http.StatusOK, rec)
}

// lookupRecommendation tries the hot cache before the repository. Cache
// errors degrade to repository reads.
func (s *Server) lookupRecommendation(ctx context.Context, productID, version string) (models.Recommendation, error) {
	rec, err := s.pointers.CachedRecommendation(ctx, productID, version)
	if err == nil {
		metrics.HotCacheHits.Inc()
		return rec, nil
	}
	metrics.HotCacheMisses.Inc()

	return s.repo.FindRecommendation(ctx, productID, version)
}

// versionInfo is one pointer's view in the /versions response.
type versionInfo struct {
	Version  string                  `json:"version,omitempty"`
	Metadata *models.VersionMetadata `json:"metadata,omitempty"`
}

// handleVersions reports the pointer set with metadata where available.
func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := make(map[string]versionInfo, 3)

	for name, read := range map[string]func(context.Context) (string, error){
		"current":  s.pointers.Current,
		"previous": s.pointers.Previous,
		"archived": s.pointers.Archived,
	} {
		version, err := read(ctx)
		if err != nil {
			s.logger.Error().Err(err).Str("pointer", name).Msg("pointer read failed")
			s.writeError(w, http.StatusServiceUnavailable, "version registry unavailable")
			return
		}
		info := versionInfo{Version: version}
		if version != "" {
			if meta, err := s.pointers.Metadata(ctx, version); err == nil {
				info.Metadata = &meta
			}
		}
		out[name] = info
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug().Err(err).Msg("response encode failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
