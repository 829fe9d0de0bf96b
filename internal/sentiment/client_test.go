package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func quoteHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(Quote{
			Symbol:    symbol,
			Sentiment: 0.42,
			Mentions:  17,
			AsOf:      time.Now().UTC(),
		})
	}
}

func TestQuote(t *testing.T) {
	server := httptest.NewServer(quoteHandler(t))
	defer server.Close()

	c := New(Config{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		RequestDelay: time.Millisecond,
	}, zap.NewNop())

	q, err := c.Quote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if q.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", q.Symbol)
	}
	if q.Sentiment != 0.42 {
		t.Errorf("Sentiment = %v, want 0.42", q.Sentiment)
	}
}

func TestQuote_NotConfigured(t *testing.T) {
	c := New(Config{}, zap.NewNop())

	if _, err := c.Quote(context.Background(), "AAPL"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Quote() error = %v, want ErrNotConfigured", err)
	}
}

func TestQuote_PacingDelaysSecondCall(t *testing.T) {
	server := httptest.NewServer(quoteHandler(t))
	defer server.Close()

	delay := 80 * time.Millisecond
	c := New(Config{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		RequestDelay: delay,
	}, zap.NewNop())

	ctx := context.Background()
	if _, err := c.Quote(ctx, "AAPL"); err != nil {
		t.Fatalf("Quote() error = %v", err)
	}

	start := time.Now()
	if _, err := c.Quote(ctx, "MSFT"); err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < delay/2 {
		t.Errorf("second Quote() returned after %v, want pacing of ~%v", elapsed, delay)
	}
}

func TestQuotes_PreservesOrder(t *testing.T) {
	server := httptest.NewServer(quoteHandler(t))
	defer server.Close()

	c := New(Config{
		APIKey:        "test-key",
		BaseURL:       server.URL,
		RequestDelay:  time.Millisecond,
		MaxConcurrent: 2,
	}, zap.NewNop())

	symbols := []string{"AAPL", "MSFT", "GOOG", "AMZN"}
	quotes, err := c.Quotes(context.Background(), symbols)
	if err != nil {
		t.Fatalf("Quotes() error = %v", err)
	}

	if len(quotes) != len(symbols) {
		t.Fatalf("Quotes() returned %d items, want %d", len(quotes), len(symbols))
	}
	for i, q := range quotes {
		if q.Symbol != symbols[i] {
			t.Errorf("quotes[%d].Symbol = %q, want %q", i, q.Symbol, symbols[i])
		}
	}
}

func TestQuotes_BoundedConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()

		json.NewEncoder(w).Encode(Quote{Symbol: r.URL.Query().Get("symbol")})
	}))
	defer server.Close()

	c := New(Config{
		APIKey:        "test-key",
		BaseURL:       server.URL,
		RequestDelay:  time.Millisecond,
		MaxConcurrent: 2,
	}, zap.NewNop())

	if _, err := c.Quotes(context.Background(), []string{"A", "B", "C", "D", "E", "F"}); err != nil {
		t.Fatalf("Quotes() error = %v", err)
	}
	if maxInFlight > 2 {
		t.Errorf("max in-flight requests = %d, want at most 2", maxInFlight)
	}
}

func TestQuotes_FirstErrorWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "BAD" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(Quote{Symbol: r.URL.Query().Get("symbol")})
	}))
	defer server.Close()

	c := New(Config{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		RequestDelay: time.Millisecond,
	}, zap.NewNop())

	if _, err := c.Quotes(context.Background(), []string{"AAPL", "BAD", "MSFT"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Quotes() error = %v, want ErrUnavailable", err)
	}
}
