package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/marketgrid/searchkit/internal/sentiment"
)

var sentimentCmd = &cobra.Command{
	Use:   "sentiment <symbol> [symbol...]",
	Short: "Fetch market sentiment for one or more symbols",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		feed := sentiment.New(sentiment.Config{
			APIKey:         a.cfg.Sentiment.APIKey,
			BaseURL:        a.cfg.Sentiment.BaseURL,
			RequestDelay:   a.cfg.Sentiment.RequestDelay,
			MaxConcurrent:  a.cfg.Sentiment.MaxConcurrent,
			RequestTimeout: a.cfg.Sentiment.RequestTimeout,
		}, a.logger)

		quotes, err := feed.Quotes(cmd.Context(), args)
		if err != nil {
			if errors.Is(err, sentiment.ErrNotConfigured) {
				return fmt.Errorf("SENTIMENT_API_KEY is not set")
			}
			return err
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(quotes)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Symbol", "Sentiment", "Mentions", "As of"})
		for _, q := range quotes {
			t.AppendRow(table.Row{q.Symbol, fmt.Sprintf("%+.2f", q.Sentiment), q.Mentions, q.AsOf.Format("2006-01-02 15:04")})
		}
		t.Render()
		return nil
	},
}
