package search

import (
	"context"
	"errors"
)

var (
	ErrNotConfigured  = errors.New("search API key is not configured")
	ErrUnauthorized   = errors.New("invalid API key")
	ErrRateLimited    = errors.New("upstream rate limit exceeded")
	ErrInvalidRequest = errors.New("invalid request parameters")
	ErrServer         = errors.New("upstream server error")
	ErrUnavailable    = errors.New("upstream unreachable")
)

// IsRetryable сообщает, имеет ли смысл повторять запрос: сетевые сбои и
// 5xx временные, всё остальное (4xx, валидация) нет.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServer) || errors.Is(err, ErrUnavailable)
}

const (
	TopicGeneral = "general"
	TopicNews    = "news"

	DepthBasic    = "basic"
	DepthAdvanced = "advanced"

	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// Endpoint categories. Each category gets its own circuit breaker and its
// own line in the metrics breakdown.
const (
	EndpointSearch  = "search"
	EndpointExtract = "extract"
	EndpointMap     = "map"
	EndpointCrawl   = "crawl"
)

// Endpoints lists all upstream endpoint categories in a stable order.
func Endpoints() []string {
	return []string{EndpointSearch, EndpointExtract, EndpointMap, EndpointCrawl}
}

type SearchRequest struct {
	Query             string
	Topic             string // "general" | "news"
	SearchDepth       string // "basic" | "advanced"
	Days              int    // recency window, meaningful only with Topic "news"
	MaxResults        int
	IncludeRawContent bool
	ChunksPerSource   int // meaningful only with SearchDepth "advanced"
	IncludeDomains    []string
	ExcludeDomains    []string
}

type SearchResult struct {
	Title         string
	URL           string
	Content       string
	Score         float64
	PublishedDate string
	RawContent    string
}

// SearchResponse is what callers get back. Error is set (and Results is
// empty) when the operation degraded instead of succeeding; callers never
// see a Go error from the composition layer.
type SearchResponse struct {
	Query        string
	Results      []SearchResult
	ResponseTime float64
	Error        string
}

type ExtractRequest struct {
	URLs          []string
	ExtractDepth  string // "basic" | "advanced"
	Format        string // "markdown" | "text"
	IncludeImages bool
}

type ExtractResult struct {
	URL        string
	RawContent string
	Images     []string
}

type FailedResult struct {
	URL   string
	Error string
}

type ExtractResponse struct {
	Results       []ExtractResult
	FailedResults []FailedResult
	ResponseTime  float64
	Error         string
}

type MapRequest struct {
	URL          string
	MaxDepth     int
	MaxBreadth   int
	Limit        int
	SelectPaths  []string
	ExcludePaths []string
}

type MapResponse struct {
	BaseURL      string
	Results      []string
	ResponseTime float64
	Error        string
}

type CrawlRequest struct {
	URL          string
	MaxDepth     int
	MaxBreadth   int
	Limit        int
	SelectPaths  []string
	ExcludePaths []string
	ExtractDepth string // depth for extracting crawled pages
}

type CrawlResponse struct {
	BaseURL      string
	Results      []ExtractResult
	ResponseTime float64
	Error        string
}

// Provider is the transport surface: one call per upstream endpoint. It
// returns the raw response body; decoding and validation happen in the
// schema package before anything is trusted.
type Provider interface {
	Search(ctx context.Context, req SearchRequest) ([]byte, error)
	Extract(ctx context.Context, req ExtractRequest) ([]byte, error)
	Map(ctx context.Context, req MapRequest) ([]byte, error)
	Crawl(ctx context.Context, req CrawlRequest) ([]byte, error)
}
