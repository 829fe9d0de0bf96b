// Package schema decodes and validates raw upstream responses before any
// other layer is allowed to see them. A response that is missing required
// keys or carries wrong types is rejected as a whole; partial payloads are
// never passed through.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/marketgrid/searchkit/internal/search"
)

// ErrInvalid marks a response that failed schema validation. It is not
// retryable: the upstream answered, the payload is just unusable.
var ErrInvalid = errors.New("malformed upstream response")

type searchBody struct {
	Query        *string      `json:"query"`
	Results      []searchItem `json:"results"`
	ResponseTime *float64     `json:"response_time"`
}

type searchItem struct {
	Title         *string  `json:"title"`
	URL           *string  `json:"url"`
	Content       *string  `json:"content"`
	Score         *float64 `json:"score"`
	PublishedDate *string  `json:"published_date"`
	RawContent    *string  `json:"raw_content"`
}

func (r searchItem) validate(topic string) error {
	fields := []*validation.FieldRules{
		validation.Field(&r.Title, validation.NotNil),
		validation.Field(&r.URL, validation.NotNil, validation.Required, is.URL),
		validation.Field(&r.Content, validation.NotNil),
		validation.Field(&r.Score, validation.NotNil),
	}
	// Новости без даты публикации бесполезны для ранжирования по свежести,
	// поэтому для topic=news дата обязательна в каждом результате.
	if topic == search.TopicNews {
		fields = append(fields, validation.Field(&r.PublishedDate, validation.NotNil, validation.Required))
	}
	return validation.ValidateStruct(&r, fields...)
}

// ParseSearch validates a raw /search response body. The requested topic
// decides whether published_date is required on every result.
func ParseSearch(body []byte, topic string) (*search.SearchResponse, error) {
	var b searchBody
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := validation.ValidateStruct(&b,
		validation.Field(&b.Results, validation.NotNil),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	for i, r := range b.Results {
		if err := r.validate(topic); err != nil {
			return nil, fmt.Errorf("%w: results[%d]: %v", ErrInvalid, i, err)
		}
	}

	results := make([]search.SearchResult, len(b.Results))
	for i, r := range b.Results {
		results[i] = search.SearchResult{
			Title:         strVal(r.Title),
			URL:           strVal(r.URL),
			Content:       strVal(r.Content),
			Score:         floatVal(r.Score),
			PublishedDate: strVal(r.PublishedDate),
			RawContent:    strVal(r.RawContent),
		}
	}

	return &search.SearchResponse{
		Query:        strVal(b.Query),
		Results:      results,
		ResponseTime: floatVal(b.ResponseTime),
	}, nil
}

type extractBody struct {
	Results       []extractItem `json:"results"`
	FailedResults []failedItem  `json:"failed_results"`
	ResponseTime  *float64      `json:"response_time"`
}

type extractItem struct {
	URL        *string  `json:"url"`
	RawContent *string  `json:"raw_content"`
	Images     []string `json:"images"`
}

func (r extractItem) validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.URL, validation.NotNil, validation.Required, is.URL),
		validation.Field(&r.RawContent, validation.NotNil),
	)
}

type failedItem struct {
	URL   *string `json:"url"`
	Error *string `json:"error"`
}

func (r failedItem) validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.URL, validation.NotNil, validation.Required),
	)
}

// ParseExtract validates a raw /extract response body. Per-URL failures
// reported by the upstream stay in FailedResults and do not invalidate
// the response.
func ParseExtract(body []byte) (*search.ExtractResponse, error) {
	var b extractBody
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := validation.ValidateStruct(&b,
		validation.Field(&b.Results, validation.NotNil),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	for i, r := range b.Results {
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("%w: results[%d]: %v", ErrInvalid, i, err)
		}
	}
	for i, r := range b.FailedResults {
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("%w: failed_results[%d]: %v", ErrInvalid, i, err)
		}
	}

	results := make([]search.ExtractResult, len(b.Results))
	for i, r := range b.Results {
		results[i] = search.ExtractResult{
			URL:        strVal(r.URL),
			RawContent: strVal(r.RawContent),
			Images:     r.Images,
		}
	}

	failed := make([]search.FailedResult, len(b.FailedResults))
	for i, r := range b.FailedResults {
		failed[i] = search.FailedResult{
			URL:   strVal(r.URL),
			Error: strVal(r.Error),
		}
	}

	return &search.ExtractResponse{
		Results:       results,
		FailedResults: failed,
		ResponseTime:  floatVal(b.ResponseTime),
	}, nil
}

type mapBody struct {
	BaseURL      *string  `json:"base_url"`
	Results      []string `json:"results"`
	ResponseTime *float64 `json:"response_time"`
}

// ParseMap validates a raw /map response body: a base URL plus the list
// of discovered URLs.
func ParseMap(body []byte) (*search.MapResponse, error) {
	var b mapBody
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := validation.ValidateStruct(&b,
		validation.Field(&b.BaseURL, validation.NotNil, validation.Required),
		validation.Field(&b.Results, validation.NotNil, validation.Each(validation.Required, is.URL)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return &search.MapResponse{
		BaseURL:      strVal(b.BaseURL),
		Results:      b.Results,
		ResponseTime: floatVal(b.ResponseTime),
	}, nil
}

type crawlBody struct {
	BaseURL      *string       `json:"base_url"`
	Results      []extractItem `json:"results"`
	ResponseTime *float64      `json:"response_time"`
}

// ParseCrawl validates a raw /crawl response body. Crawled pages carry
// the same shape as extract results.
func ParseCrawl(body []byte) (*search.CrawlResponse, error) {
	var b crawlBody
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := validation.ValidateStruct(&b,
		validation.Field(&b.BaseURL, validation.NotNil, validation.Required),
		validation.Field(&b.Results, validation.NotNil),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	for i, r := range b.Results {
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("%w: results[%d]: %v", ErrInvalid, i, err)
		}
	}

	results := make([]search.ExtractResult, len(b.Results))
	for i, r := range b.Results {
		results[i] = search.ExtractResult{
			URL:        strVal(r.URL),
			RawContent: strVal(r.RawContent),
			Images:     r.Images,
		}
	}

	return &search.CrawlResponse{
		BaseURL:      strVal(b.BaseURL),
		Results:      results,
		ResponseTime: floatVal(b.ResponseTime),
	}, nil
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func floatVal(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
