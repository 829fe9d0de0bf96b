package cli

import (
	"encoding/json"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/marketgrid/searchkit/internal/search"
)

var (
	siteMaxDepth      int
	siteMaxBreadth    int
	siteLimit         int
	siteSelectPaths   []string
	siteExcludePaths  []string
	crawlExtractDepth string
)

var mapCmd = &cobra.Command{
	Use:   "map <url>",
	Short: "Discover the URL structure of a site",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		resp := a.client.Map(cmd.Context(), search.MapRequest{
			URL:          args[0],
			MaxDepth:     siteMaxDepth,
			MaxBreadth:   siteMaxBreadth,
			Limit:        siteLimit,
			SelectPaths:  siteSelectPaths,
			ExcludePaths: siteExcludePaths,
		})
		exitOnDegraded(resp.Error)

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(resp)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"#", "URL"})
		for i, u := range resp.Results {
			t.AppendRow(table.Row{i + 1, u})
		}
		t.Render()
		return nil
	},
}

var crawlCmd = &cobra.Command{
	Use:   "crawl <url>",
	Short: "Crawl a site and extract the visited pages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		resp := a.client.Crawl(cmd.Context(), search.CrawlRequest{
			URL:          args[0],
			MaxDepth:     siteMaxDepth,
			MaxBreadth:   siteMaxBreadth,
			Limit:        siteLimit,
			SelectPaths:  siteSelectPaths,
			ExcludePaths: siteExcludePaths,
			ExtractDepth: crawlExtractDepth,
		})
		exitOnDegraded(resp.Error)

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(resp)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"URL", "Content bytes"})
		for _, r := range resp.Results {
			t.AppendRow(table.Row{r.URL, len(r.RawContent)})
		}
		t.Render()
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{mapCmd, crawlCmd} {
		cmd.Flags().IntVar(&siteMaxDepth, "max-depth", 1, "how many levels deep to follow links")
		cmd.Flags().IntVar(&siteMaxBreadth, "max-breadth", 20, "how many links to follow per level")
		cmd.Flags().IntVar(&siteLimit, "limit", 50, "total number of URLs to process")
		cmd.Flags().StringSliceVar(&siteSelectPaths, "select-paths", nil, "only follow paths matching these patterns")
		cmd.Flags().StringSliceVar(&siteExcludePaths, "exclude-paths", nil, "skip paths matching these patterns")
	}
	crawlCmd.Flags().StringVar(&crawlExtractDepth, "extract-depth", search.DepthBasic, `extraction depth for crawled pages`)
}
