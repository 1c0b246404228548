package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/prodscout/internal/api"
	"github.com/raphaelgruber/prodscout/internal/models"
	"github.com/raphaelgruber/prodscout/internal/service"
)

var (
	batchesJSON        bool
	batchesExport      bool
	batchesDestination string
	batchesNoTUI       bool
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "List and manage research batches",
	Long: `List active research batches or act on one by ID.

Examples:
  prodscout batches               # List active batches
  prodscout batches show 3        # Job details for batch 3
  prodscout batches monitor 3     # Follow batch 3 until it finishes
  prodscout batches review 3      # New vs. already stored results
  prodscout batches toggle 3 sony-wh1000xm5
  prodscout batches commit 3 --export
  prodscout batches dismiss 3`,
	Args: cobra.NoArgs,
	RunE: runListBatches,
}

var batchesShowCmd = &cobra.Command{
	Use:   "show <batch-id>",
	Short: "Show a batch and its jobs",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowBatch,
}

var batchesMonitorCmd = &cobra.Command{
	Use:   "monitor <batch-id>",
	Short: "Follow a batch until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseBatchID(args[0])
		if err != nil {
			return err
		}
		_, err = monitorBatch(cmd.Context(), cmd.OutOrStdout(), id, !batchesNoTUI && isTerminal(os.Stdout))
		return err
	},
}

var batchesReviewCmd = &cobra.Command{
	Use:   "review <batch-id>",
	Short: "Show the review of a finished batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseBatchID(args[0])
		if err != nil {
			return err
		}
		state, err := apiClient.Review(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("review batch %d: %w", id, err)
		}
		return printReview(cmd.OutOrStdout(), state)
	},
}

var batchesToggleCmd = &cobra.Command{
	Use:   "toggle <batch-id> <product-id>...",
	Short: "Select or deselect new results before commit",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseBatchID(args[0])
		if err != nil {
			return err
		}
		var state service.ReviewState
		for _, productID := range args[1:] {
			if state, err = apiClient.Toggle(cmd.Context(), id, productID); err != nil {
				return fmt.Errorf("toggle %s: %w", productID, err)
			}
		}
		return printReview(cmd.OutOrStdout(), state)
	},
}

var batchesCommitCmd = &cobra.Command{
	Use:   "commit <batch-id>",
	Short: "Commit the selected results and dismiss the batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseBatchID(args[0])
		if err != nil {
			return err
		}
		req, err := commitRequest(batchesExport, batchesDestination)
		if err != nil {
			return err
		}
		res, err := apiClient.Commit(cmd.Context(), id, req)
		if err != nil {
			return fmt.Errorf("commit batch %d: %w", id, err)
		}
		if batchesJSON {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		writeCommit(cmd.OutOrStdout(), res)
		return nil
	},
}

var batchesExportCmd = &cobra.Command{
	Use:   "export <batch-id>",
	Short: "Mirror the selected results to a sheet without committing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseBatchID(args[0])
		if err != nil {
			return err
		}
		var dest *models.Destination
		if batchesDestination != "" {
			d, err := destinationFor(batchesDestination)
			if err != nil {
				return err
			}
			dest = &d
		}
		written, err := apiClient.Export(cmd.Context(), id, dest)
		if err != nil {
			return fmt.Errorf("export batch %d: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported to %s\n", written.Name)
		return nil
	},
}

var batchesDismissCmd = &cobra.Command{
	Use:   "dismiss <batch-id>",
	Short: "Discard a batch and any results still in flight",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseBatchID(args[0])
		if err != nil {
			return err
		}
		if err := apiClient.DismissBatch(cmd.Context(), id); err != nil {
			return fmt.Errorf("dismiss batch %d: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Dismissed batch %d\n", id)
		return nil
	},
}

func init() {
	batchesCmd.PersistentFlags().BoolVar(&batchesJSON, "json", false, "print JSON instead of text")
	batchesCommitCmd.Flags().BoolVar(&batchesExport, "export", false, "also mirror the committed records")
	batchesCommitCmd.Flags().StringVar(&batchesDestination, "destination", "", "sheet name in the server's sheet directory (default: server's sheet)")
	batchesExportCmd.Flags().StringVar(&batchesDestination, "destination", "", "sheet name in the server's sheet directory (default: server's sheet)")
	batchesMonitorCmd.Flags().BoolVar(&batchesNoTUI, "no-tui", false, "print plain progress lines")

	batchesCmd.AddCommand(batchesShowCmd)
	batchesCmd.AddCommand(batchesMonitorCmd)
	batchesCmd.AddCommand(batchesReviewCmd)
	batchesCmd.AddCommand(batchesToggleCmd)
	batchesCmd.AddCommand(batchesCommitCmd)
	batchesCmd.AddCommand(batchesExportCmd)
	batchesCmd.AddCommand(batchesDismissCmd)
}

func parseBatchID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid batch id %q", s)
	}
	return id, nil
}

func runListBatches(cmd *cobra.Command, args []string) error {
	batches, err := apiClient.ListBatches(cmd.Context())
	if err != nil {
		return fmt.Errorf("list batches: %w", err)
	}
	if batchesJSON {
		return writeJSON(cmd.OutOrStdout(), batches)
	}
	writeBatchList(cmd.OutOrStdout(), batches)
	return nil
}

func writeBatchList(w io.Writer, batches []api.BatchView) {
	if len(batches) == 0 {
		fmt.Fprintln(w, "No active batches")
		return
	}

	fmt.Fprintf(w, "%-6s %-12s %-10s %-8s %s\n", "ID", "STATUS", "PROGRESS", "FAILED", "CREATED")
	fmt.Fprintln(w, "--------------------------------------------------------")
	for _, b := range batches {
		progress := fmt.Sprintf("%d/%d", b.Counts.Complete+b.Counts.Error, b.Counts.Total)
		fmt.Fprintf(w, "%-6d %-12s %-10s %-8d %s\n", b.ID, b.Status, progress, b.Counts.Error, b.CreatedAt.Format("15:04:05"))
	}
}

func runShowBatch(cmd *cobra.Command, args []string) error {
	id, err := parseBatchID(args[0])
	if err != nil {
		return err
	}
	b, err := apiClient.GetBatch(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("get batch: %w", err)
	}
	if batchesJSON {
		return writeJSON(cmd.OutOrStdout(), b)
	}
	writeBatch(cmd.OutOrStdout(), b)
	return nil
}

func writeBatch(w io.Writer, b api.BatchView) {
	fmt.Fprintf(w, "Batch: %d\n", b.ID)
	fmt.Fprintf(w, "  Status: %s\n", b.Status)
	fmt.Fprintf(w, "  Progress: %d/%d (%d failed)\n", b.Counts.Complete+b.Counts.Error, b.Counts.Total, b.Counts.Error)
	fmt.Fprintf(w, "  Created: %s\n", b.CreatedAt.Format(time.RFC3339))

	fmt.Fprintln(w, "\nJobs:")
	for _, j := range b.Jobs {
		line := fmt.Sprintf("  %-12s %s (%s)", j.Status, j.ProductName, j.Category)
		if j.StartedAt != nil && j.CompletedAt != nil {
			line += fmt.Sprintf(" %s", j.CompletedAt.Sub(*j.StartedAt).Round(time.Second))
		}
		fmt.Fprintln(w, line)
		if j.Error != "" {
			fmt.Fprintf(w, "               %s\n", j.Error)
		}
	}
}

func printReview(w io.Writer, state service.ReviewState) error {
	if batchesJSON {
		return writeJSON(w, state)
	}
	writeReview(w, state)
	return nil
}
