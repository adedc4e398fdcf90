// Package http exposes the discovery pipeline over a JSON API together
// with health, readiness and prometheus metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"undergroundfm/internal/core"
	"undergroundfm/internal/flood"
	"undergroundfm/internal/recommend"
)

// Recommender is the pipeline facade the API serves.
type Recommender interface {
	Recommendations(ctx context.Context, userID string) (*recommend.ResultSet, error)
	Search(ctx context.Context, query string) (*recommend.ResultSet, error)
}

type Server struct {
	config      *core.ServerConfig
	logger      *zap.Logger
	server      *http.Server
	metrics     *Metrics
	recommender Recommender
	prefs       core.PreferenceStore
	gate        *flood.Floodgate
	pageSize    int
	results     *resultCache
}

type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RunsTotal        *prometheus.CounterVec
	RateLimitedTotal prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	PipelineTime     *prometheus.HistogramVec
	ResultSetSize    *prometheus.GaugeVec
	ActiveClients    prometheus.Gauge
}

func newMetrics(registry *prometheus.Registry) *Metrics {
	metrics := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "undergroundfm_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"endpoint", "status"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "undergroundfm_pipeline_runs_total",
				Help: "Total number of discovery pipeline runs",
			},
			[]string{"kind"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "undergroundfm_rate_limited_total",
				Help: "Total number of requests rejected by the floodgate",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "undergroundfm_errors_total",
				Help: "Total number of errors",
			},
			[]string{"component", "type"},
		),
		PipelineTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "undergroundfm_pipeline_duration_seconds",
				Help:    "Time spent assembling a result set",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		ResultSetSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "undergroundfm_result_set_size",
				Help: "Track count of the most recent result set",
			},
			[]string{"kind"},
		),
		ActiveClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "undergroundfm_active_clients",
				Help: "Number of clients tracked by the floodgate",
			},
		),
	}

	registry.MustRegister(
		metrics.RequestsTotal,
		metrics.RunsTotal,
		metrics.RateLimitedTotal,
		metrics.ErrorsTotal,
		metrics.PipelineTime,
		metrics.ResultSetSize,
		metrics.ActiveClients,
	)

	return metrics
}

// resultCache keeps the latest completed result set per cache key. A slow
// run that finishes after a newer one must not clobber it, so Put only
// replaces an entry with a higher generation.
type resultCache struct {
	mu   sync.Mutex
	sets map[string]*recommend.ResultSet
}

func newResultCache() *resultCache {
	return &resultCache{sets: make(map[string]*recommend.ResultSet)}
}

// Put stores the set and returns the freshest set known for the key.
func (c *resultCache) Put(key string, set *recommend.ResultSet) *recommend.ResultSet {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.sets[key]
	if ok && current.Generation > set.Generation {
		return current
	}
	c.sets[key] = set
	return set
}

func NewServer(
	config *core.ServerConfig,
	recommender Recommender,
	prefs core.PreferenceStore,
	discovery core.DiscoveryConfig,
	logger *zap.Logger,
) *Server {
	registry := prometheus.NewRegistry()
	metrics := newMetrics(registry)

	s := &Server{
		config:      config,
		logger:      logger,
		metrics:     metrics,
		recommender: recommender,
		prefs:       prefs,
		gate:        flood.New(discovery.RatePerMinute),
		pageSize:    discovery.PageSize,
		results:     newResultCache(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok","service":"undergroundfm"}`)); err != nil {
			logger.Debug("healthz write failed", zap.Error(err))
		}
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ready","service":"undergroundfm"}`)); err != nil {
			logger.Debug("readyz write failed", zap.Error(err))
		}
	})

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/api/recommendations", s.limited(s.handleRecommendations))
	mux.HandleFunc("/api/search", s.limited(s.handleSearch))
	mux.HandleFunc("/api/preferences", s.limited(s.handlePreferences))

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

// Handler exposes the routing mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
		s.gate.Stop()
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// limited wraps an API handler with the per-client floodgate.
func (s *Server) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.gate.Allow(clientID(r)) {
			s.metrics.RateLimitedTotal.Inc()
			s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		s.metrics.ActiveClients.Set(float64(s.gate.GetStats().ActiveClients))
		next(w, r)
	}
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID := r.URL.Query().Get("user")
	page := pageParam(r)

	start := time.Now()
	set, err := s.recommender.Recommendations(r.Context(), userID)
	if err != nil {
		s.RecordError("recommend", "pipeline")
		s.metrics.RequestsTotal.WithLabelValues("recommendations", "error").Inc()
		s.logger.Error("recommendation run failed",
			zap.String("user", userID),
			zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "recommendation run failed")
		return
	}
	s.RecordPipelineRun("recommendations", time.Since(start))

	set = s.results.Put("recommendations|"+userID, set)
	s.metrics.ResultSetSize.WithLabelValues("recommendations").Set(float64(len(set.Tracks)))
	s.metrics.RequestsTotal.WithLabelValues("recommendations", "ok").Inc()

	tracks, meta := recommend.Paginate(set.Tracks, page, s.pageSize)
	s.writeJSON(w, http.StatusOK, toResultsDTO(tracks, meta))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query().Get("q")
	page := pageParam(r)

	start := time.Now()
	set, err := s.recommender.Search(r.Context(), query)
	if err != nil {
		s.RecordError("search", "pipeline")
		s.metrics.RequestsTotal.WithLabelValues("search", "error").Inc()
		s.logger.Error("search run failed",
			zap.String("query", query),
			zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "search failed")
		return
	}
	s.RecordPipelineRun("search", time.Since(start))

	set = s.results.Put("search|"+query, set)
	s.metrics.ResultSetSize.WithLabelValues("search").Set(float64(len(set.Tracks)))
	s.metrics.RequestsTotal.WithLabelValues("search", "ok").Inc()

	tracks, meta := recommend.Paginate(set.Tracks, page, s.pageSize)
	s.writeJSON(w, http.StatusOK, toResultsDTO(tracks, meta))
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "user parameter required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		prefs, err := s.prefs.Preferences(r.Context(), userID)
		if err != nil {
			s.RecordError("prefs", "load")
			s.logger.Error("preference load failed",
				zap.String("user", userID),
				zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "failed to load preferences")
			return
		}
		s.metrics.RequestsTotal.WithLabelValues("preferences", "ok").Inc()
		s.writeJSON(w, http.StatusOK, prefs)

	case http.MethodPut, http.MethodPost:
		var prefs core.UserPreferences
		if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid preference document")
			return
		}
		if prefs.UndergroundLevel < 0 || prefs.UndergroundLevel > 100 {
			s.writeError(w, http.StatusBadRequest, "undergroundLevel must be between 0 and 100")
			return
		}
		if err := s.prefs.SavePreferences(r.Context(), userID, &prefs); err != nil {
			s.RecordError("prefs", "save")
			s.logger.Error("preference save failed",
				zap.String("user", userID),
				zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "failed to save preferences")
			return
		}
		s.metrics.RequestsTotal.WithLabelValues("preferences", "ok").Inc()
		s.writeJSON(w, http.StatusOK, &prefs)

	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("response write failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) GetMetrics() *Metrics {
	return s.metrics
}

// RefreshStats re-samples the floodgate gauge. Called periodically so the
// gauge decays as idle clients are cleaned up.
func (s *Server) RefreshStats() {
	s.metrics.ActiveClients.Set(float64(s.gate.GetStats().ActiveClients))
}

func (s *Server) RecordError(component, errorType string) {
	s.metrics.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func (s *Server) RecordPipelineRun(kind string, duration time.Duration) {
	s.metrics.RunsTotal.WithLabelValues(kind).Inc()
	s.metrics.PipelineTime.WithLabelValues(kind).Observe(duration.Seconds())
}

// clientID keys the rate limiter: the user parameter when present, the
// remote host otherwise.
func clientID(r *http.Request) string {
	if user := r.URL.Query().Get("user"); user != "" {
		return user
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func pageParam(r *http.Request) int {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}
