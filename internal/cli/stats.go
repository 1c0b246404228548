package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/prodscout/internal/api"
	"github.com/raphaelgruber/prodscout/internal/metrics"
	"github.com/raphaelgruber/prodscout/internal/service"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server runtime statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := apiClient.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}
		if statsJSON {
			return writeJSON(cmd.OutOrStdout(), stats)
		}
		writeStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream batch events from the server",
	Long: `Print every batch event as it happens until interrupted.

Each line shows the batch, the event, and the batch's overall status; job
updates add the product and its new state.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl+C to stop)\n", apiClient.BaseURL())
		err := apiClient.WatchEvents(cmd.Context(), func(ev service.BatchEvent) error {
			fmt.Fprintln(out, formatEvent(time.Now(), ev))
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print JSON instead of text")
}

func formatEvent(at time.Time, ev service.BatchEvent) string {
	line := fmt.Sprintf("%s batch %d %-15s [%s]", at.Format("15:04:05"), ev.BatchID, ev.Type, ev.Status)
	if ev.Job != nil {
		line += fmt.Sprintf(" %s: %s", ev.Job.ProductName, ev.Job.Status)
		if ev.Job.Error != "" {
			line += " (" + ev.Job.Error + ")"
		}
	}
	return line
}

func writeStats(w io.Writer, s api.StatsResponse) {
	fmt.Fprintf(w, "Uptime: %s\n", (time.Duration(s.UptimeSeconds) * time.Second).String())
	fmt.Fprintf(w, "Records: %d\n", s.Records)
	fmt.Fprintf(w, "Active batches: %d\n", s.ActiveBatches)
	fmt.Fprintf(w, "Exporter: %v\n\n", s.Exporter)

	fmt.Fprintf(w, "%-16s %8s %10s %10s %10s\n", "OPERATION", "COUNT", "AVG MS", "MAX MS", "TOKENS")
	ops := []struct {
		name string
		op   *metrics.OperationSnapshot
	}{
		{"llm_generate", s.LLMGenerate},
		{"discover", s.Discover},
		{"identify", s.Identify},
		{"research", s.Research},
		{"research_error", s.ResearchError},
		{"export", s.Export},
		{"store_query", s.StoreQuery},
		{"store_insert", s.StoreInsert},
	}
	for _, o := range ops {
		if o.op == nil {
			continue
		}
		tokens := "-"
		if o.op.TotalInputTokens != nil && o.op.TotalOutputTokens != nil {
			tokens = fmt.Sprintf("%d", *o.op.TotalInputTokens+*o.op.TotalOutputTokens)
		}
		fmt.Fprintf(w, "%-16s %8d %10.1f %10d %10s\n", o.name, o.op.Count, o.op.AvgTimeMs, o.op.MaxTimeMs, tokens)
	}
}
