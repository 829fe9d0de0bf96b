package cache

import (
	"testing"
	"time"
)

func TestSearchTTLFor(t *testing.T) {
	tests := []struct {
		topic string
		want  time.Duration
	}{
		{"news", NewsSearchTTL},
		{"general", GeneralSearchTTL},
		{"", GeneralSearchTTL},
	}

	for _, tt := range tests {
		if got := SearchTTLFor(tt.topic); got != tt.want {
			t.Errorf("SearchTTLFor(%q) = %v, want %v", tt.topic, got, tt.want)
		}
	}
}

func TestExtractTTLFor(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want time.Duration
	}{
		{"sec filing", "https://www.sec.gov/Archives/edgar/data/320193/form10k.htm", RegulatoryTTL},
		{"fed statement", "https://federalreserve.gov/newsevents/pressreleases/monetary.htm", RegulatoryTTL},
		{"investor relations page", "https://investor.apple.com/earnings", ExtractTTL},
		{"news site", "https://www.reuters.com/markets/article", ExtractTTL},
		{"lookalike domain is not regulatory", "https://sec.gov.example.com/phish", ExtractTTL},
		{"garbage url", "::not a url::", ExtractTTL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractTTLFor(tt.url); got != tt.want {
				t.Errorf("ExtractTTLFor(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}
