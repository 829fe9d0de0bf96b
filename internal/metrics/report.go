package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Report renders the current aggregate as human-readable text.
func (c *Collector) Report() string {
	agg := c.Aggregate()

	var sb strings.Builder
	sb.WriteString("Search API usage report\n\n")

	summary := table.NewWriter()
	summary.SetStyle(table.StyleRounded)
	summary.AppendHeader(table.Row{"Metric", "Value"})
	summary.AppendRows([]table.Row{
		{"Total requests", agg.TotalRequests},
		{"Successes", agg.Successes},
		{"Failures", agg.Failures},
		{"Cache hits", agg.CacheHits},
		{"Cache misses", agg.CacheMisses},
		{"Avg latency", fmt.Sprintf("%.1f ms", agg.AvgLatencyMS)},
		{"p50 latency", fmt.Sprintf("%.1f ms", agg.P50LatencyMS)},
		{"p95 latency", fmt.Sprintf("%.1f ms", agg.P95LatencyMS)},
		{"p99 latency", fmt.Sprintf("%.1f ms", agg.P99LatencyMS)},
		{"Estimated credits", fmt.Sprintf("%.1f", agg.TotalCredits)},
	})
	sb.WriteString(summary.Render())
	sb.WriteString("\n")

	if len(agg.Endpoints) > 0 {
		names := make([]string, 0, len(agg.Endpoints))
		for name := range agg.Endpoints {
			names = append(names, name)
		}
		sort.Strings(names)

		eps := table.NewWriter()
		eps.SetStyle(table.StyleRounded)
		eps.AppendHeader(table.Row{"Endpoint", "Requests", "Avg latency", "Credits", "Cache hit rate"})
		for _, name := range names {
			s := agg.Endpoints[name]
			eps.AppendRow(table.Row{
				name,
				s.Requests,
				fmt.Sprintf("%.1f ms", s.AvgLatencyMS),
				fmt.Sprintf("%.1f", s.Credits),
				fmt.Sprintf("%.1f%%", s.CacheHitRate),
			})
		}
		sb.WriteString("\n")
		sb.WriteString(eps.Render())
		sb.WriteString("\n")
	}

	if len(agg.Errors) > 0 {
		kinds := make([]string, 0, len(agg.Errors))
		for kind := range agg.Errors {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)

		errs := table.NewWriter()
		errs.SetStyle(table.StyleRounded)
		errs.AppendHeader(table.Row{"Error", "Count"})
		for _, kind := range kinds {
			errs.AppendRow(table.Row{kind, agg.Errors[kind]})
		}
		sb.WriteString("\n")
		sb.WriteString(errs.Render())
		sb.WriteString("\n")
	}

	return sb.String()
}
