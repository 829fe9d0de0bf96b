// Package metrics keeps a rolling 24h window of per-operation entries and
// aggregates it on demand: counts, latency percentiles, credit spend, and
// a per-endpoint breakdown. Every entry is also mirrored to Prometheus.
package metrics

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Entry is one completed operation. Entries are immutable once recorded
// and are pruned when they fall out of the retention window or when the
// store hits its hard cap.
type Entry struct {
	ID        string
	Operation string
	Endpoint  string
	LatencyMS float64
	Credits   float64
	CacheHit  bool
	Success   bool
	ErrorType string
	Timestamp time.Time
	Metadata  map[string]string
}

// Sample describes the operation about to be observed.
type Sample struct {
	Operation string
	Endpoint  string
	Depth     string // "basic" | "advanced", drives the credit estimate
	CacheHit  bool
	Metadata  map[string]string
}

type Config struct {
	Window     time.Duration
	MaxEntries int
	Costs      CostTable

	// Classify maps an error to a short label for the error histogram.
	// Nil falls back to a generic classifier.
	Classify func(error) string
}

// Collector - потокобезопасное хранилище записей с окном 24h и жёстким
// лимитом по количеству (старые вытесняются первыми).
type Collector struct {
	mu         sync.Mutex
	entries    []Entry
	window     time.Duration
	maxEntries int
	costs      CostTable
	classify   func(error) string
	prom       *Prometheus
	logger     *zap.Logger

	now func() time.Time
}

func New(cfg Config, prom *Prometheus, logger *zap.Logger) *Collector {
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	if cfg.Costs == nil {
		cfg.Costs = DefaultCosts()
	}
	if cfg.Classify == nil {
		cfg.Classify = defaultClassify
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Collector{
		window:     cfg.Window,
		maxEntries: cfg.MaxEntries,
		costs:      cfg.Costs,
		classify:   cfg.Classify,
		prom:       prom,
		logger:     logger,
		now:        time.Now,
	}
}

func defaultClassify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}

// Record stores one finished entry. This is the low-level recorder for
// call sites that already did their own timing (cache hits, mostly).
func (c *Collector) Record(e Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = c.now()
	}

	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.pruneLocked()
	c.mu.Unlock()

	if c.prom != nil {
		c.prom.observe(e)
	}
}

// Observe times fn and records exactly one entry for it. The credit
// estimate comes from the cost table; a cache hit always costs zero
// regardless of endpoint, there was no upstream call to pay for.
func (c *Collector) Observe(ctx context.Context, s Sample, fn func(ctx context.Context) error) error {
	start := c.now()
	err := fn(ctx)
	latency := c.now().Sub(start)

	e := Entry{
		Operation: s.Operation,
		Endpoint:  s.Endpoint,
		LatencyMS: float64(latency.Microseconds()) / 1000,
		CacheHit:  s.CacheHit,
		Success:   err == nil,
		Metadata:  s.Metadata,
	}
	if !s.CacheHit {
		e.Credits = c.costs.Cost(s.Endpoint, s.Depth)
	}
	if err != nil {
		e.Credits = 0 // failed calls are not billed
		e.ErrorType = c.classify(err)
	}
	c.Record(e)

	return err
}

// RecordCacheHit is the shorthand for the zero-cost cache-hit entry.
func (c *Collector) RecordCacheHit(operation, endpoint string) {
	c.Record(Entry{
		Operation: operation,
		Endpoint:  endpoint,
		CacheHit:  true,
		Success:   true,
	})
}

func (c *Collector) pruneLocked() {
	cutoff := c.now().Add(-c.window)
	firstFresh := 0
	for firstFresh < len(c.entries) && !c.entries[firstFresh].Timestamp.After(cutoff) {
		firstFresh++
	}
	if firstFresh > 0 {
		c.entries = append([]Entry(nil), c.entries[firstFresh:]...)
	}

	if over := len(c.entries) - c.maxEntries; over > 0 {
		c.entries = append([]Entry(nil), c.entries[over:]...)
	}
}

// EndpointStats is one line of the per-endpoint breakdown.
type EndpointStats struct {
	Requests     int     `json:"requests"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
	Credits      float64 `json:"credits"`
	CacheHitRate float64 `json:"cache_hit_rate_pct"`
}

// Aggregate is derived from the live window on every call; it is never
// stored.
type Aggregate struct {
	TotalRequests  int                      `json:"total_requests"`
	Successes      int                      `json:"successes"`
	Failures       int                      `json:"failures"`
	CacheHits      int                      `json:"cache_hits"`
	CacheMisses    int                      `json:"cache_misses"`
	TotalLatencyMS float64                  `json:"total_latency_ms"`
	AvgLatencyMS   float64                  `json:"avg_latency_ms"`
	P50LatencyMS   float64                  `json:"p50_latency_ms"`
	P95LatencyMS   float64                  `json:"p95_latency_ms"`
	P99LatencyMS   float64                  `json:"p99_latency_ms"`
	TotalCredits   float64                  `json:"total_credits"`
	Endpoints      map[string]EndpointStats `json:"endpoints"`
	Errors         map[string]int           `json:"errors"`
}

// Aggregate computes the rolling-window summary. Zero entries produce an
// all-zero aggregate, never a division error.
func (c *Collector) Aggregate() Aggregate {
	c.mu.Lock()
	c.pruneLocked()
	entries := make([]Entry, len(c.entries))
	copy(entries, c.entries)
	c.mu.Unlock()

	agg := Aggregate{
		Endpoints: make(map[string]EndpointStats),
		Errors:    make(map[string]int),
	}
	if len(entries) == 0 {
		return agg
	}

	latencies := make([]float64, 0, len(entries))
	type epAccum struct {
		requests int
		latency  float64
		credits  float64
		hits     int
	}
	perEndpoint := make(map[string]*epAccum)

	for _, e := range entries {
		agg.TotalRequests++
		if e.Success {
			agg.Successes++
		} else {
			agg.Failures++
		}
		if e.CacheHit {
			agg.CacheHits++
		} else {
			agg.CacheMisses++
		}
		agg.TotalLatencyMS += e.LatencyMS
		agg.TotalCredits += e.Credits
		latencies = append(latencies, e.LatencyMS)
		if e.ErrorType != "" {
			agg.Errors[e.ErrorType]++
		}

		acc := perEndpoint[e.Endpoint]
		if acc == nil {
			acc = &epAccum{}
			perEndpoint[e.Endpoint] = acc
		}
		acc.requests++
		acc.latency += e.LatencyMS
		acc.credits += e.Credits
		if e.CacheHit {
			acc.hits++
		}
	}

	agg.AvgLatencyMS = agg.TotalLatencyMS / float64(agg.TotalRequests)
	sort.Float64s(latencies)
	agg.P50LatencyMS = percentile(latencies, 0.50)
	agg.P95LatencyMS = percentile(latencies, 0.95)
	agg.P99LatencyMS = percentile(latencies, 0.99)

	for name, acc := range perEndpoint {
		agg.Endpoints[name] = EndpointStats{
			Requests:     acc.requests,
			AvgLatencyMS: acc.latency / float64(acc.requests),
			Credits:      acc.credits,
			CacheHitRate: float64(acc.hits) / float64(acc.requests) * 100,
		}
	}

	return agg
}

// percentile indexes a sorted slice at ceil(n×p)-1.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Len reports the current number of stored entries.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
