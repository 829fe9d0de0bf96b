// Package mock is the in-memory Provider used in tests and when no API
// key is configured in development.
package mock

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/marketgrid/searchkit/internal/search"
)

// Client records every call and returns canned raw response bodies, the
// same surface the real transport exposes.
type Client struct {
	SearchBody  []byte
	ExtractBody []byte
	MapBody     []byte
	CrawlBody   []byte
	Err         error
	Delay       time.Duration

	CallCount          int
	Calls              map[string]int
	LastSearchRequest  search.SearchRequest
	LastExtractRequest search.ExtractRequest
	AllSearchRequests  []search.SearchRequest

	mu sync.Mutex
}

func New() *Client {
	return &Client{Calls: make(map[string]int)}
}

func (c *Client) WithError(err error) *Client {
	c.Err = err
	return c
}

func (c *Client) WithDelay(delay time.Duration) *Client {
	c.Delay = delay
	return c
}

// WithSearchResults builds a valid raw /search body from typed results.
func (c *Client) WithSearchResults(results []search.SearchResult) *Client {
	items := make([]map[string]any, len(results))
	for i, r := range results {
		items[i] = map[string]any{
			"title":   r.Title,
			"url":     r.URL,
			"content": r.Content,
			"score":   r.Score,
		}
		if r.PublishedDate != "" {
			items[i]["published_date"] = r.PublishedDate
		}
		if r.RawContent != "" {
			items[i]["raw_content"] = r.RawContent
		}
	}
	c.SearchBody, _ = json.Marshal(map[string]any{
		"query":         "",
		"results":       items,
		"response_time": 0.5,
	})
	return c
}

// WithExtractResults builds a valid raw /extract body.
func (c *Client) WithExtractResults(results []search.ExtractResult) *Client {
	items := make([]map[string]any, len(results))
	for i, r := range results {
		items[i] = map[string]any{
			"url":         r.URL,
			"raw_content": r.RawContent,
		}
	}
	c.ExtractBody, _ = json.Marshal(map[string]any{
		"results":       items,
		"response_time": 0.5,
	})
	return c
}

// WithMapResults builds a valid raw /map body.
func (c *Client) WithMapResults(baseURL string, urls []string) *Client {
	c.MapBody, _ = json.Marshal(map[string]any{
		"base_url":      baseURL,
		"results":       urls,
		"response_time": 0.5,
	})
	return c
}

// WithCrawlResults builds a valid raw /crawl body.
func (c *Client) WithCrawlResults(baseURL string, results []search.ExtractResult) *Client {
	items := make([]map[string]any, len(results))
	for i, r := range results {
		items[i] = map[string]any{
			"url":         r.URL,
			"raw_content": r.RawContent,
		}
	}
	c.CrawlBody, _ = json.Marshal(map[string]any{
		"base_url":      baseURL,
		"results":       items,
		"response_time": 0.5,
	})
	return c
}

func (c *Client) Search(ctx context.Context, req search.SearchRequest) ([]byte, error) {
	c.mu.Lock()
	c.CallCount++
	c.Calls["search"]++
	c.LastSearchRequest = req
	c.AllSearchRequests = append(c.AllSearchRequests, req)
	body, err, delay := c.SearchBody, c.Err, c.Delay
	c.mu.Unlock()

	return respond(ctx, body, err, delay)
}

func (c *Client) Extract(ctx context.Context, req search.ExtractRequest) ([]byte, error) {
	c.mu.Lock()
	c.CallCount++
	c.Calls["extract"]++
	c.LastExtractRequest = req
	body, err, delay := c.ExtractBody, c.Err, c.Delay
	c.mu.Unlock()

	return respond(ctx, body, err, delay)
}

func (c *Client) Map(ctx context.Context, req search.MapRequest) ([]byte, error) {
	c.mu.Lock()
	c.CallCount++
	c.Calls["map"]++
	body, err, delay := c.MapBody, c.Err, c.Delay
	c.mu.Unlock()

	return respond(ctx, body, err, delay)
}

func (c *Client) Crawl(ctx context.Context, req search.CrawlRequest) ([]byte, error) {
	c.mu.Lock()
	c.CallCount++
	c.Calls["crawl"]++
	body, err, delay := c.CrawlBody, c.Err, c.Delay
	c.mu.Unlock()

	return respond(ctx, body, err, delay)
}

func respond(ctx context.Context, body []byte, err error, delay time.Duration) ([]byte, error) {
	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCount = 0
	c.Calls = make(map[string]int)
	c.LastSearchRequest = search.SearchRequest{}
	c.LastExtractRequest = search.ExtractRequest{}
	c.AllSearchRequests = nil
}
