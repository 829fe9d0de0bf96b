package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/marketgrid/searchkit/internal/search"
)

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client is the raw HTTP transport for the upstream API. It does one
// request per call and maps status codes to sentinel errors; retries,
// rate limiting and caching all live above it.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.tavily.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

type searchPayload struct {
	APIKey            string   `json:"api_key"`
	Query             string   `json:"query"`
	Topic             string   `json:"topic,omitempty"`
	SearchDepth       string   `json:"search_depth,omitempty"`
	Days              int      `json:"days,omitempty"`
	MaxResults        int      `json:"max_results,omitempty"`
	IncludeRawContent bool     `json:"include_raw_content"`
	ChunksPerSource   int      `json:"chunks_per_source,omitempty"`
	IncludeDomains    []string `json:"include_domains,omitempty"`
	ExcludeDomains    []string `json:"exclude_domains,omitempty"`
}

type extractPayload struct {
	APIKey        string   `json:"api_key"`
	URLs          []string `json:"urls"`
	ExtractDepth  string   `json:"extract_depth,omitempty"`
	Format        string   `json:"format,omitempty"`
	IncludeImages bool     `json:"include_images"`
}

type mapPayload struct {
	APIKey       string   `json:"api_key"`
	URL          string   `json:"url"`
	MaxDepth     int      `json:"max_depth,omitempty"`
	MaxBreadth   int      `json:"max_breadth,omitempty"`
	Limit        int      `json:"limit,omitempty"`
	SelectPaths  []string `json:"select_paths,omitempty"`
	ExcludePaths []string `json:"exclude_paths,omitempty"`
}

type crawlPayload struct {
	APIKey       string   `json:"api_key"`
	URL          string   `json:"url"`
	MaxDepth     int      `json:"max_depth,omitempty"`
	MaxBreadth   int      `json:"max_breadth,omitempty"`
	Limit        int      `json:"limit,omitempty"`
	SelectPaths  []string `json:"select_paths,omitempty"`
	ExcludePaths []string `json:"exclude_paths,omitempty"`
	ExtractDepth string   `json:"extract_depth,omitempty"`
}

func (c *Client) Search(ctx context.Context, req search.SearchRequest) ([]byte, error) {
	return c.post(ctx, "/search", searchPayload{
		APIKey:            c.apiKey,
		Query:             req.Query,
		Topic:             req.Topic,
		SearchDepth:       req.SearchDepth,
		Days:              req.Days,
		MaxResults:        req.MaxResults,
		IncludeRawContent: req.IncludeRawContent,
		ChunksPerSource:   req.ChunksPerSource,
		IncludeDomains:    req.IncludeDomains,
		ExcludeDomains:    req.ExcludeDomains,
	})
}

func (c *Client) Extract(ctx context.Context, req search.ExtractRequest) ([]byte, error) {
	return c.post(ctx, "/extract", extractPayload{
		APIKey:        c.apiKey,
		URLs:          req.URLs,
		ExtractDepth:  req.ExtractDepth,
		Format:        req.Format,
		IncludeImages: req.IncludeImages,
	})
}

func (c *Client) Map(ctx context.Context, req search.MapRequest) ([]byte, error) {
	return c.post(ctx, "/map", mapPayload{
		APIKey:       c.apiKey,
		URL:          req.URL,
		MaxDepth:     req.MaxDepth,
		MaxBreadth:   req.MaxBreadth,
		Limit:        req.Limit,
		SelectPaths:  req.SelectPaths,
		ExcludePaths: req.ExcludePaths,
	})
}

func (c *Client) Crawl(ctx context.Context, req search.CrawlRequest) ([]byte, error) {
	return c.post(ctx, "/crawl", crawlPayload{
		APIKey:       c.apiKey,
		URL:          req.URL,
		MaxDepth:     req.MaxDepth,
		MaxBreadth:   req.MaxBreadth,
		Limit:        req.Limit,
		SelectPaths:  req.SelectPaths,
		ExcludePaths: req.ExcludePaths,
		ExtractDepth: req.ExtractDepth,
	})
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", search.ErrUnavailable, err)
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", search.ErrUnavailable, err)
	}

	c.logger.Debug("upstream request",
		zap.String("endpoint", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusOK:
		return respBody, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, search.ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, search.ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", search.ErrServer, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: status %d", search.ErrInvalidRequest, resp.StatusCode)
	}
}
