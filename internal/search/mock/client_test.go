package mock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/marketgrid/searchkit/internal/search"
)

func TestClient_SearchBody(t *testing.T) {
	c := New().WithSearchResults([]search.SearchResult{
		{Title: "Apple 10-K", URL: "https://sec.gov/10k", Content: "filing", Score: 0.9},
	})

	body, err := c.Search(context.Background(), search.SearchRequest{Query: "AAPL"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	results, ok := decoded["results"].([]any)
	if !ok || len(results) != 1 {
		t.Errorf("results = %v, want 1 item", decoded["results"])
	}

	if c.CallCount != 1 || c.Calls["search"] != 1 {
		t.Errorf("CallCount = %d, Calls[search] = %d, want 1/1", c.CallCount, c.Calls["search"])
	}
	if c.LastSearchRequest.Query != "AAPL" {
		t.Errorf("LastSearchRequest.Query = %q, want AAPL", c.LastSearchRequest.Query)
	}
}

func TestClient_Error(t *testing.T) {
	c := New().WithError(search.ErrServer)

	if _, err := c.Extract(context.Background(), search.ExtractRequest{}); !errors.Is(err, search.ErrServer) {
		t.Errorf("Extract() error = %v, want ErrServer", err)
	}
	if c.Calls["extract"] != 1 {
		t.Errorf("Calls[extract] = %d, want 1: errors still count as calls", c.Calls["extract"])
	}
}

func TestClient_DelayRespectsContext(t *testing.T) {
	c := New().WithDelay(time.Second).WithSearchResults(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Search(ctx, search.SearchRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Search() error = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Search() did not honor context cancellation")
	}
}

func TestClient_Reset(t *testing.T) {
	c := New().WithMapResults("https://example.com", []string{"https://example.com/a"})

	c.Map(context.Background(), search.MapRequest{URL: "https://example.com"})
	c.Reset()

	if c.CallCount != 0 || len(c.Calls) != 0 {
		t.Errorf("after Reset: CallCount = %d, Calls = %v, want zeroed", c.CallCount, c.Calls)
	}
}
