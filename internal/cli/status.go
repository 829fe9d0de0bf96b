package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show rate limiter and circuit breaker state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		limiterStatus := a.limiter.Status()
		breakerStates := a.breakers.States()

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"rate_limiter": limiterStatus,
				"breakers":     breakerStates,
			})
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.SetTitle("Rate limiter")
		t.AppendRow(table.Row{"Available", limiterStatus.Available})
		t.AppendRow(table.Row{"Capacity", limiterStatus.Capacity})
		t.AppendRow(table.Row{"Queued", limiterStatus.QueueLength})
		t.AppendRow(table.Row{"Utilization", fmt.Sprintf("%.1f%%", limiterStatus.Utilization)})
		t.Render()

		t = table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.SetTitle("Circuit breakers")
		t.AppendHeader(table.Row{"Endpoint", "State"})
		for _, endpoint := range sortedKeys(breakerStates) {
			t.AppendRow(table.Row{endpoint, breakerStates[endpoint]})
		}
		t.Render()
		return nil
	},
}
