// Package sentiment is a deliberately simple client for a market-sentiment
// feed. Unlike the search pipeline it carries no breaker or cache, just
// startup-configured request pacing: the feed bills per request at a flat
// rate, so a paced GET is all the resilience it needs.
package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	ErrNotConfigured = errors.New("sentiment API key is not configured")
	ErrUnavailable   = errors.New("sentiment feed unreachable")
)

type Config struct {
	APIKey         string
	BaseURL        string
	RequestDelay   time.Duration // minimum spacing between requests, from the deployment tier
	MaxConcurrent  int
	RequestTimeout time.Duration
}

type Quote struct {
	Symbol    string    `json:"symbol"`
	Sentiment float64   `json:"sentiment"` // -1..1
	Mentions  int       `json:"mentions"`
	AsOf      time.Time `json:"as_of"`
}

type Client struct {
	apiKey        string
	baseURL       string
	client        *http.Client
	pacer         *rate.Limiter
	maxConcurrent int
	logger        *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.sentimentgrid.io"
	}
	if cfg.RequestDelay <= 0 {
		cfg.RequestDelay = time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiKey:        cfg.APIKey,
		baseURL:       cfg.BaseURL,
		client:        &http.Client{Timeout: cfg.RequestTimeout},
		pacer:         rate.NewLimiter(rate.Every(cfg.RequestDelay), 1),
		maxConcurrent: cfg.MaxConcurrent,
		logger:        logger,
	}
}

// Quote fetches the current sentiment for one symbol, waiting out the
// configured request spacing first.
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1/sentiment?symbol=%s", c.baseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("sentiment request",
		zap.String("symbol", symbol),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var q Quote
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &q, nil
}

// Quotes fetches several symbols with bounded fan-out. Results keep the
// order of the input; the first error cancels the rest.
func (c *Client) Quotes(ctx context.Context, symbols []string) ([]*Quote, error) {
	out := make([]*Quote, len(symbols))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)
	for i, s := range symbols {
		g.Go(func() error {
			q, err := c.Quote(ctx, s)
			if err != nil {
				return fmt.Errorf("%s: %w", s, err)
			}
			out[i] = q
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
