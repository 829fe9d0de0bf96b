package client

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/marketgrid/searchkit/internal/search"
)

// searchKey hashes the query plus every option that affects the response,
// so two requests share an entry only when the upstream would answer them
// identically.
func searchKey(req search.SearchRequest) string {
	parts := []string{
		req.Query,
		req.Topic,
		req.SearchDepth,
		strconv.Itoa(req.Days),
		strconv.Itoa(req.MaxResults),
		strconv.FormatBool(req.IncludeRawContent),
		strconv.Itoa(req.ChunksPerSource),
		strings.Join(req.IncludeDomains, ","),
		strings.Join(req.ExcludeDomains, ","),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return "search:" + hex.EncodeToString(sum[:])
}

// extractKey is the literal URL plus depth; no hashing, so keys stay
// inspectable in the backend.
func extractKey(url, depth string) string {
	if depth == "" {
		depth = search.DepthBasic
	}
	return fmt.Sprintf("extract:%s:%s", depth, url)
}

func mapKey(req search.MapRequest) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%d|%s|%s",
		req.URL, req.MaxDepth, req.MaxBreadth, req.Limit,
		strings.Join(req.SelectPaths, ","), strings.Join(req.ExcludePaths, ","))))
	return "map:" + hex.EncodeToString(sum[:])
}

func crawlKey(req search.CrawlRequest) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%d|%s|%s|%s",
		req.URL, req.MaxDepth, req.MaxBreadth, req.Limit,
		strings.Join(req.SelectPaths, ","), strings.Join(req.ExcludePaths, ","),
		req.ExtractDepth)))
	return "crawl:" + hex.EncodeToString(sum[:])
}
