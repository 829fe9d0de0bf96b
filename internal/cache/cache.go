// Package cache defines the TTL-keyed response cache shared by the client
// layer. Backends are interchangeable; the TTL policy lives here so every
// call site picks lifetimes from one place.
package cache

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
)

// ErrUnavailable wraps backend failures (e.g. redis connectivity). Callers
// treat it as a miss; a broken cache must never break the request path.
var ErrUnavailable = errors.New("cache backend unavailable")

// Store is the backend contract. Get reports a miss with ok=false; an
// expired entry is a miss, and purging it is the store's job, not the
// caller's.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// TTLs by content volatility: news goes stale in minutes, reference
// queries live longer, regulatory filings barely change at all.
const (
	NewsSearchTTL    = 10 * time.Minute
	GeneralSearchTTL = time.Hour
	ExtractTTL       = 6 * time.Hour
	RegulatoryTTL    = 24 * time.Hour
	MapTTL           = 12 * time.Hour
	CrawlTTL         = time.Hour
)

// SearchTTLFor picks the search-result lifetime for a topic.
func SearchTTLFor(topic string) time.Duration {
	if topic == "news" {
		return NewsSearchTTL
	}
	return GeneralSearchTTL
}

// regulatoryDomains are authoritative sources whose documents are
// effectively immutable once published.
var regulatoryDomains = []string{
	"sec.gov",
	"federalreserve.gov",
	"treasury.gov",
	"cbr.ru",
	"e-disclosure.ru",
}

// ExtractTTLFor picks the extract lifetime for a URL: regulatory filings
// get the longest TTL, everything else the default.
func ExtractTTLFor(rawURL string) time.Duration {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ExtractTTL
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range regulatoryDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return RegulatoryTTL
		}
	}
	return ExtractTTL
}
