// Package server exposes the diagnostics surface: health, Prometheus
// metrics, limiter/breaker status, and the human-readable usage report.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/marketgrid/searchkit/internal/breaker"
	"github.com/marketgrid/searchkit/internal/metrics"
	"github.com/marketgrid/searchkit/internal/ratelimit"
)

type Config struct {
	Host string
	Port int
}

type Server struct {
	router *chi.Mux
	server *http.Server
	logger *zap.Logger

	limiter      *ratelimit.Limiter
	breakers     *breaker.Group
	collector    *metrics.Collector
	cacheBackend string
}

func New(
	cfg Config,
	limiter *ratelimit.Limiter,
	breakers *breaker.Group,
	collector *metrics.Collector,
	gatherer prometheus.Gatherer,
	cacheBackend string,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		router:       chi.NewRouter(),
		logger:       logger,
		limiter:      limiter,
		breakers:     breakers,
		collector:    collector,
		cacheBackend: cacheBackend,
	}

	s.router.Use(middleware.RealIP)
	s.router.Use(requestID)
	s.router.Use(s.logRequests)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	s.router.Get("/status", s.handleStatus)
	s.router.Get("/report", s.handleReport)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("starting diagnostics server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down diagnostics server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type statusResponse struct {
	RateLimiter  ratelimit.Status  `json:"rate_limiter"`
	Breakers     map[string]string `json:"breakers"`
	CacheBackend string            `json:"cache_backend"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{
		RateLimiter:  s.limiter.Status(),
		Breakers:     s.breakers.States(),
		CacheBackend: s.cacheBackend,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, s.collector.Report())
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", w.Header().Get(requestIDHeader)),
			zap.Duration("elapsed", time.Since(start)))
	})
}
