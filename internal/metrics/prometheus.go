package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus mirrors every recorded entry to the standard exposition
// format. The rolling-window collector stays the source of truth for the
// report; this is for scraping.
type Prometheus struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	CacheHitsTotal    prometheus.Counter
	CacheMissesTotal  prometheus.Counter
	RateLimitRejected *prometheus.CounterVec
	CreditsTotal      *prometheus.CounterVec
	BreakerState      *prometheus.GaugeVec
}

// NewPrometheus registers the metric families on reg. Tests pass their own
// registry to avoid cross-test collisions.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)

	return &Prometheus{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchkit_requests_total",
				Help: "Total number of client operations",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "searchkit_request_duration_seconds",
				Help:    "Operation duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		CacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "searchkit_cache_hits_total",
				Help: "Total number of cache hits",
			},
		),
		CacheMissesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "searchkit_cache_misses_total",
				Help: "Total number of cache misses",
			},
		),
		RateLimitRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchkit_rate_limit_rejections_total",
				Help: "Rate limiter rejections by reason",
			},
			[]string{"reason"},
		),
		CreditsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchkit_credits_estimated_total",
				Help: "Estimated upstream credits spent",
			},
			[]string{"endpoint"},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "searchkit_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
			[]string{"endpoint"},
		),
	}
}

func (p *Prometheus) observe(e Entry) {
	status := "success"
	if !e.Success {
		status = "failure"
	}
	p.RequestsTotal.WithLabelValues(e.Endpoint, status).Inc()
	p.RequestDuration.WithLabelValues(e.Endpoint).Observe(e.LatencyMS / 1000)
	if e.CacheHit {
		p.CacheHitsTotal.Inc()
	} else {
		p.CacheMissesTotal.Inc()
	}
	if e.Credits > 0 {
		p.CreditsTotal.WithLabelValues(e.Endpoint).Add(e.Credits)
	}
}

// RecordRateLimitRejection counts a queue-full or wait-timeout rejection.
func (p *Prometheus) RecordRateLimitRejection(reason string) {
	p.RateLimitRejected.WithLabelValues(reason).Inc()
}

// SetBreakerState exports a breaker's state as a gauge.
func (p *Prometheus) SetBreakerState(endpoint string, state float64) {
	p.BreakerState.WithLabelValues(endpoint).Set(state)
}
