package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/marketgrid/searchkit/internal/search"
)

var (
	searchTopic      string
	searchDepth      string
	searchDays       int
	searchMaxResults int
	searchRaw        bool
	searchInclude    []string
	searchExclude    []string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a web search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		resp := a.client.Search(cmd.Context(), search.SearchRequest{
			Query:             args[0],
			Topic:             searchTopic,
			SearchDepth:       searchDepth,
			Days:              searchDays,
			MaxResults:        searchMaxResults,
			IncludeRawContent: searchRaw,
			IncludeDomains:    searchInclude,
			ExcludeDomains:    searchExclude,
		})
		exitOnDegraded(resp.Error)

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(resp)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"#", "Title", "URL", "Score", "Published"})
		for i, r := range resp.Results {
			t.AppendRow(table.Row{i + 1, r.Title, r.URL, fmt.Sprintf("%.2f", r.Score), r.PublishedDate})
		}
		t.Render()
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchTopic, "topic", search.TopicGeneral, `search topic: "general" or "news"`)
	searchCmd.Flags().StringVar(&searchDepth, "depth", search.DepthBasic, `search depth: "basic" or "advanced"`)
	searchCmd.Flags().IntVar(&searchDays, "days", 0, "recency window in days (news topic only)")
	searchCmd.Flags().IntVar(&searchMaxResults, "max-results", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchRaw, "raw-content", false, "include raw page content")
	searchCmd.Flags().StringSliceVar(&searchInclude, "include-domains", nil, "restrict results to these domains")
	searchCmd.Flags().StringSliceVar(&searchExclude, "exclude-domains", nil, "drop results from these domains")
}
