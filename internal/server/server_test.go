package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/marketgrid/searchkit/internal/breaker"
	"github.com/marketgrid/searchkit/internal/metrics"
	"github.com/marketgrid/searchkit/internal/ratelimit"
	"github.com/marketgrid/searchkit/internal/search"
)

func newTestServer(t *testing.T) (*Server, *metrics.Collector) {
	t.Helper()

	logger := zap.NewNop()
	reg := prometheus.NewRegistry()
	prom := metrics.NewPrometheus(reg)
	collector := metrics.New(metrics.Config{}, prom, logger)
	limiter := ratelimit.New(ratelimit.Config{Capacity: 10, RefillPerMinute: 10}, logger)
	breakers := breaker.NewGroup(search.Endpoints(), breaker.DefaultPolicy(), logger)

	return New(Config{Host: "127.0.0.1", Port: 0}, limiter, breakers, collector, reg, "memory", logger), collector
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("body = %q, want ok", rec.Body.String())
	}
}

func TestServer_Status(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /status status = %d, want 200", rec.Code)
	}

	var status statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("status body is not valid JSON: %v", err)
	}
	if status.RateLimiter.Capacity != 10 {
		t.Errorf("RateLimiter.Capacity = %d, want 10", status.RateLimiter.Capacity)
	}
	if len(status.Breakers) != 4 {
		t.Errorf("Breakers = %v, want 4 categories", status.Breakers)
	}
	if status.CacheBackend != "memory" {
		t.Errorf("CacheBackend = %q, want memory", status.CacheBackend)
	}
}

func TestServer_Report(t *testing.T) {
	s, collector := newTestServer(t)
	collector.Record(metrics.Entry{Operation: "search", Endpoint: "search", LatencyMS: 42, Success: true})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /report status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Total requests") {
		t.Errorf("report body missing summary:\n%s", rec.Body.String())
	}
}

func TestServer_Metrics(t *testing.T) {
	s, collector := newTestServer(t)
	collector.Record(metrics.Entry{Operation: "search", Endpoint: "search", Success: true})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "searchkit_requests_total") {
		t.Error("metrics exposition missing searchkit_requests_total")
	}
}

func TestServer_RequestID(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("response missing generated X-Request-Id")
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Errorf("X-Request-Id = %q, want caller-supplied abc-123", got)
	}
}
