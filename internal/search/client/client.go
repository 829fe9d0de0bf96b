// Package client composes the full request pipeline: cache → rate limit →
// circuit breaker → transport → schema validation → cache store → metrics.
// Its four operations never return a Go error; every failure degrades into
// the uniform empty-results-plus-message shape, so callers built on top
// never need their own error handling.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/marketgrid/searchkit/internal/breaker"
	"github.com/marketgrid/searchkit/internal/cache"
	"github.com/marketgrid/searchkit/internal/metrics"
	"github.com/marketgrid/searchkit/internal/ratelimit"
	"github.com/marketgrid/searchkit/internal/schema"
	"github.com/marketgrid/searchkit/internal/search"
)

type Client struct {
	provider   search.Provider
	limiter    *ratelimit.Limiter
	breakers   *breaker.Group
	store      cache.Store
	collector  *metrics.Collector
	prom       *metrics.Prometheus
	logger     *zap.Logger
	configured bool

	sf singleflight.Group
}

type Config struct {
	// Configured is false when the API credential is absent; every
	// operation then short-circuits to a structured "not configured"
	// result without touching the network, limiter, or upstream budget.
	Configured bool
}

func New(
	cfg Config,
	provider search.Provider,
	limiter *ratelimit.Limiter,
	breakers *breaker.Group,
	store cache.Store,
	collector *metrics.Collector,
	prom *metrics.Prometheus,
	logger *zap.Logger,
) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		provider:   provider,
		limiter:    limiter,
		breakers:   breakers,
		store:      store,
		collector:  collector,
		prom:       prom,
		logger:     logger,
		configured: cfg.Configured,
	}
}

// ClassifyError maps pipeline errors to the short labels used in the
// error histogram. Wire it into metrics.Config.Classify at startup.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, search.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, search.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, search.ErrRateLimited):
		return "upstream_rate_limited"
	case errors.Is(err, search.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, search.ErrServer):
		return "server"
	case errors.Is(err, search.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, schema.ErrInvalid):
		return "validation"
	case errors.Is(err, ratelimit.ErrQueueFull):
		return "queue_full"
	case errors.Is(err, ratelimit.ErrAcquireTimeout):
		return "acquire_timeout"
	case errors.Is(err, breaker.ErrOpen):
		return "circuit_open"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}

// Search runs a web search. Identical concurrent searches collapse into a
// single upstream call.
func (c *Client) Search(ctx context.Context, req search.SearchRequest) *search.SearchResponse {
	if !c.configured {
		c.logger.Debug("search skipped: not configured")
		return &search.SearchResponse{Query: req.Query, Results: []search.SearchResult{}, Error: search.ErrNotConfigured.Error()}
	}

	key := searchKey(req)
	if cached, ok := getCached[search.SearchResponse](ctx, c.store, key); ok {
		c.collector.RecordCacheHit("search", search.EndpointSearch)
		c.logger.Debug("search cache hit", zap.String("query", req.Query))
		return cached
	}

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		var resp *search.SearchResponse
		obsErr := c.collector.Observe(ctx, metrics.Sample{
			Operation: "search",
			Endpoint:  search.EndpointSearch,
			Depth:     req.SearchDepth,
		}, func(ctx context.Context) error {
			return c.callUpstream(ctx, search.EndpointSearch, func(ctx context.Context) error {
				body, err := c.provider.Search(ctx, req)
				if err != nil {
					return err
				}
				parsed, err := schema.ParseSearch(body, req.Topic)
				if err != nil {
					c.logger.Warn("search response failed validation", zap.Error(err))
					return err
				}
				resp = parsed
				return nil
			})
		})
		if obsErr != nil {
			return nil, obsErr
		}

		c.putCached(ctx, key, resp, cache.SearchTTLFor(req.Topic))
		return resp, nil
	})
	if err != nil {
		c.logger.Warn("search degraded", zap.String("query", req.Query), zap.Error(err))
		return &search.SearchResponse{Query: req.Query, Results: []search.SearchResult{}, Error: err.Error()}
	}

	return v.(*search.SearchResponse)
}

// Extract pulls page content for a list of URLs. URLs already cached are
// served locally; only the uncached subset goes upstream, and the merged
// result preserves request order.
func (c *Client) Extract(ctx context.Context, req search.ExtractRequest) *search.ExtractResponse {
	if !c.configured {
		c.logger.Debug("extract skipped: not configured")
		return &search.ExtractResponse{Results: []search.ExtractResult{}, Error: search.ErrNotConfigured.Error()}
	}

	cached := make(map[string]search.ExtractResult)
	var missing []string
	for _, u := range req.URLs {
		if r, ok := getCached[search.ExtractResult](ctx, c.store, extractKey(u, req.ExtractDepth)); ok {
			cached[u] = *r
		} else {
			missing = append(missing, u)
		}
	}

	if len(missing) == 0 {
		c.collector.RecordCacheHit("extract", search.EndpointExtract)
		c.logger.Debug("extract cache hit", zap.Int("urls", len(req.URLs)))
		return &search.ExtractResponse{Results: orderedExtracts(req.URLs, cached)}
	}

	upstream := req
	upstream.URLs = missing

	var resp *search.ExtractResponse
	err := c.collector.Observe(ctx, metrics.Sample{
		Operation: "extract",
		Endpoint:  search.EndpointExtract,
		Depth:     req.ExtractDepth,
		Metadata:  map[string]string{"cached_urls": strconv.Itoa(len(cached))},
	}, func(ctx context.Context) error {
		return c.callUpstream(ctx, search.EndpointExtract, func(ctx context.Context) error {
			body, err := c.provider.Extract(ctx, upstream)
			if err != nil {
				return err
			}
			parsed, err := schema.ParseExtract(body)
			if err != nil {
				c.logger.Warn("extract response failed validation", zap.Error(err))
				return err
			}
			resp = parsed
			return nil
		})
	})
	if err != nil {
		c.logger.Warn("extract degraded", zap.Int("urls", len(req.URLs)), zap.Error(err))
		return &search.ExtractResponse{Results: []search.ExtractResult{}, Error: err.Error()}
	}

	for _, r := range resp.Results {
		cached[r.URL] = r
		c.putCached(ctx, extractKey(r.URL, req.ExtractDepth), r, cache.ExtractTTLFor(r.URL))
	}

	return &search.ExtractResponse{
		Results:       orderedExtracts(req.URLs, cached),
		FailedResults: resp.FailedResults,
		ResponseTime:  resp.ResponseTime,
	}
}

// Map discovers the URL structure of a site.
func (c *Client) Map(ctx context.Context, req search.MapRequest) *search.MapResponse {
	if !c.configured {
		c.logger.Debug("map skipped: not configured")
		return &search.MapResponse{Results: []string{}, Error: search.ErrNotConfigured.Error()}
	}

	key := mapKey(req)
	if cached, ok := getCached[search.MapResponse](ctx, c.store, key); ok {
		c.collector.RecordCacheHit("map", search.EndpointMap)
		return cached
	}

	var resp *search.MapResponse
	err := c.collector.Observe(ctx, metrics.Sample{
		Operation: "map",
		Endpoint:  search.EndpointMap,
	}, func(ctx context.Context) error {
		return c.callUpstream(ctx, search.EndpointMap, func(ctx context.Context) error {
			body, err := c.provider.Map(ctx, req)
			if err != nil {
				return err
			}
			parsed, err := schema.ParseMap(body)
			if err != nil {
				c.logger.Warn("map response failed validation", zap.Error(err))
				return err
			}
			resp = parsed
			return nil
		})
	})
	if err != nil {
		c.logger.Warn("map degraded", zap.String("url", req.URL), zap.Error(err))
		return &search.MapResponse{Results: []string{}, Error: err.Error()}
	}

	c.putCached(ctx, key, resp, cache.MapTTL)
	return resp
}

// Crawl walks a site and extracts the visited pages.
func (c *Client) Crawl(ctx context.Context, req search.CrawlRequest) *search.CrawlResponse {
	if !c.configured {
		c.logger.Debug("crawl skipped: not configured")
		return &search.CrawlResponse{Results: []search.ExtractResult{}, Error: search.ErrNotConfigured.Error()}
	}

	key := crawlKey(req)
	if cached, ok := getCached[search.CrawlResponse](ctx, c.store, key); ok {
		c.collector.RecordCacheHit("crawl", search.EndpointCrawl)
		return cached
	}

	var resp *search.CrawlResponse
	err := c.collector.Observe(ctx, metrics.Sample{
		Operation: "crawl",
		Endpoint:  search.EndpointCrawl,
		Depth:     req.ExtractDepth,
	}, func(ctx context.Context) error {
		return c.callUpstream(ctx, search.EndpointCrawl, func(ctx context.Context) error {
			body, err := c.provider.Crawl(ctx, req)
			if err != nil {
				return err
			}
			parsed, err := schema.ParseCrawl(body)
			if err != nil {
				c.logger.Warn("crawl response failed validation", zap.Error(err))
				return err
			}
			resp = parsed
			return nil
		})
	})
	if err != nil {
		c.logger.Warn("crawl degraded", zap.String("url", req.URL), zap.Error(err))
		return &search.CrawlResponse{Results: []search.ExtractResult{}, Error: err.Error()}
	}

	c.putCached(ctx, key, resp, cache.CrawlTTL)
	return resp
}

// callUpstream is the shared miss path: limiter acquire, then the
// category's breaker around the transport call. Limiter rejections are
// local saturation, not upstream health, so they stay outside the breaker
// and are never counted by it.
func (c *Client) callUpstream(ctx context.Context, category string, fn func(ctx context.Context) error) error {
	if err := c.limiter.Acquire(ctx); err != nil {
		if c.prom != nil {
			switch {
			case errors.Is(err, ratelimit.ErrQueueFull):
				c.prom.RecordRateLimitRejection("queue_full")
			case errors.Is(err, ratelimit.ErrAcquireTimeout):
				c.prom.RecordRateLimitRejection("timeout")
			}
		}
		return err
	}

	b := c.breakers.For(category)
	err := b.Do(ctx, fn)
	if c.prom != nil {
		c.prom.SetBreakerState(category, float64(b.State()))
	}
	return err
}

// getCached decodes a cached JSON value. Backend errors count as misses;
// a broken cache must degrade to extra upstream calls, not failures.
func getCached[T any](ctx context.Context, store cache.Store, key string) (*T, bool) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return &v, true
}

func (c *Client) putCached(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, key, raw, ttl); err != nil {
		c.logger.Warn("cache store failed", zap.String("key", key), zap.Error(err))
	}
}

func orderedExtracts(urls []string, byURL map[string]search.ExtractResult) []search.ExtractResult {
	out := make([]search.ExtractResult, 0, len(urls))
	for _, u := range urls {
		if r, ok := byURL[u]; ok {
			out = append(out, r)
		}
	}
	return out
}
