package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/prodscout/internal/api"
	"github.com/raphaelgruber/prodscout/internal/models"
	"github.com/raphaelgruber/prodscout/internal/service"
)

var (
	researchCategories    []string
	researchMaxCategories int
	researchSkip          []string
	researchExclude       []string
	researchNoCommit      bool
	researchExport        bool
	researchDestination   string
	researchJSON          bool
	researchNoTUI         bool
	researchDryRun        bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover <query>",
	Short: "Suggest product categories for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		categories, err := apiClient.Discover(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("discover: %w", err)
		}
		if researchJSON {
			return writeJSON(cmd.OutOrStdout(), categories)
		}
		if len(categories) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No categories found")
			return nil
		}
		for _, c := range categories {
			fmt.Fprintln(cmd.OutOrStdout(), c)
		}
		return nil
	},
}

var identifyCmd = &cobra.Command{
	Use:   "identify <category>...",
	Short: "List researchable products per category",
	Long: `List the products worth researching in each category.

Products already in the knowledge store or reserved by an active batch are
marked with ✓. A category whose products are all marked is complete.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiClient.Identify(cmd.Context(), args)
		if err != nil {
			return fmt.Errorf("identify: %w", err)
		}
		if researchJSON {
			return writeJSON(cmd.OutOrStdout(), resp)
		}
		writeIdentified(cmd.OutOrStdout(), resp)
		return nil
	},
}

var researchCmd = &cobra.Command{
	Use:   "research [query]",
	Short: "Discover, research, review, and commit products",
	Long: `Run the full research cycle against the server:

  1. discover categories for the query (or use --category)
  2. identify products in each selected category
  3. research every product not yet stored or in progress, as one batch
  4. review the results and commit the new ones

Examples:
  prodscout research "noise cancelling headphones"
  prodscout research "espresso" --max-categories 2 --skip "Coffee Grinders"
  prodscout research --category "Robot Vacuums" --exclude "Roomba j7" --no-commit
  prodscout research "monitors" --export --destination monitors.csv`,
	RunE: runResearch,
}

func init() {
	for _, c := range []*cobra.Command{discoverCmd, identifyCmd, researchCmd} {
		c.Flags().BoolVar(&researchJSON, "json", false, "print JSON instead of text")
	}

	f := researchCmd.Flags()
	f.StringSliceVarP(&researchCategories, "category", "c", nil, "research these categories instead of discovering")
	f.IntVarP(&researchMaxCategories, "max-categories", "n", 0, "use at most N discovered categories (0 = all)")
	f.StringSliceVar(&researchSkip, "skip", nil, "categories to leave out")
	f.StringSliceVar(&researchExclude, "exclude", nil, "product names to leave out")
	f.BoolVar(&researchNoCommit, "no-commit", false, "leave the finished batch for review instead of committing")
	f.BoolVar(&researchExport, "export", false, "mirror committed records to the export sheet")
	f.StringVar(&researchDestination, "destination", "", "sheet name in the server's sheet directory (default: server's sheet)")
	f.BoolVar(&researchNoTUI, "no-tui", false, "print plain progress lines instead of the live display")
	f.BoolVar(&researchDryRun, "dry-run", false, "show what would be researched and stop")
}

// planOptions are the command-line choices applied between discovery and launch.
type planOptions struct {
	maxCategories int
	skip          []string
}

// pickCategories drops skipped categories (case-insensitive) and caps the rest.
func pickCategories(discovered []string, opts planOptions) []string {
	var out []string
	for _, c := range discovered {
		if containsFold(opts.skip, c) {
			continue
		}
		out = append(out, c)
	}
	if opts.maxCategories > 0 && len(out) > opts.maxCategories {
		out = out[:opts.maxCategories]
	}
	return out
}

// applyExclusions deselects excluded products wherever they are selected and
// returns the names actually removed.
func applyExclusions(set *service.SelectionSet, t service.Tracker, exclude []string) []string {
	var removed []string
	for _, category := range set.Categories() {
		for _, p := range set.Identified(category) {
			if !containsFold(exclude, p) || !set.IsProductSelected(category, p) {
				continue
			}
			set.ToggleProduct(t, category, p)
			if !slices.Contains(removed, p) {
				removed = append(removed, p)
			}
		}
	}
	return removed
}

func containsFold(list []string, s string) bool {
	return slices.ContainsFunc(list, func(v string) bool { return strings.EqualFold(strings.TrimSpace(v), s) })
}

func runResearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	query := strings.TrimSpace(strings.Join(args, " "))

	categories := researchCategories
	if len(categories) == 0 {
		if query == "" {
			return errors.New("a query or --category is required")
		}
		discovered, err := apiClient.Discover(ctx, query)
		if err != nil {
			return fmt.Errorf("discover: %w", err)
		}
		categories = discovered
	}
	categories = pickCategories(categories, planOptions{maxCategories: researchMaxCategories, skip: researchSkip})
	if len(categories) == 0 {
		fmt.Fprintln(out, "No categories to research")
		return nil
	}

	tracker, err := apiClient.Tracker(ctx)
	if err != nil {
		return fmt.Errorf("load knowledge: %w", err)
	}
	set := service.NewSelectionSet(categories)
	set.SelectAll(tracker)

	identified, err := apiClient.Identify(ctx, set.SelectedCategories())
	if err != nil {
		return fmt.Errorf("identify: %w", err)
	}
	// Identification can take a while; other batches may have started meanwhile.
	if tracker, err = apiClient.Tracker(ctx); err != nil {
		return fmt.Errorf("load knowledge: %w", err)
	}
	set.SetIdentified(tracker, identified.Identified())
	if removed := applyExclusions(set, tracker, researchExclude); len(removed) > 0 {
		logger.Info("excluded products", "products", removed)
		if !researchJSON {
			fmt.Fprintf(out, "Excluded: %s\n", strings.Join(removed, ", "))
		}
	}

	if !researchJSON {
		writeIdentified(out, identified)
	}

	selections := set.Selections(logger)
	if len(selections) == 0 {
		fmt.Fprintln(out, "Nothing to research: every identified product is stored or in progress.")
		return nil
	}
	if researchDryRun {
		if researchJSON {
			return writeJSON(out, selections)
		}
		fmt.Fprintf(out, "\nWould research %d products:\n", len(selections))
		for _, s := range selections {
			fmt.Fprintf(out, "  - %s (%s)\n", s.ProductName, s.Category)
		}
		return nil
	}

	batch, err := apiClient.Launch(ctx, selections)
	if err != nil {
		return fmt.Errorf("launch batch: %w", err)
	}
	if !researchJSON {
		fmt.Fprintf(out, "\nBatch %d: researching %d products\n", batch.ID, len(selections))
	}

	finished, err := monitorBatch(ctx, out, batch.ID, !researchNoTUI && !researchJSON && isTerminal(os.Stdout))
	if err != nil {
		return err
	}
	if finished == nil {
		// Detached from the live display; the batch keeps running on the server.
		return nil
	}

	state, err := apiClient.Review(ctx, batch.ID)
	if err != nil {
		return fmt.Errorf("review batch %d: %w", batch.ID, err)
	}
	if researchNoCommit {
		if researchJSON {
			return writeJSON(out, state)
		}
		writeReview(out, state)
		fmt.Fprintf(out, "\nBatch %d left for review. Use 'prodscout batches commit %d' when ready.\n", batch.ID, batch.ID)
		return nil
	}

	if !researchJSON {
		writeReview(out, state)
	}
	if len(state.Selected) == 0 {
		if !researchJSON {
			fmt.Fprintf(out, "\nNo new products to commit. Use 'prodscout batches dismiss %d' to clear the batch.\n", batch.ID)
		}
		return nil
	}

	req, err := commitRequest(researchExport, researchDestination)
	if err != nil {
		return err
	}
	res, err := apiClient.Commit(ctx, batch.ID, req)
	if err != nil {
		return fmt.Errorf("commit batch %d: %w", batch.ID, err)
	}
	if researchJSON {
		return writeJSON(out, res)
	}
	writeCommit(out, res)
	return nil
}

// commitRequest builds the finalize options for --export/--destination.
func commitRequest(exportFlag bool, destination string) (api.CommitRequest, error) {
	req := api.CommitRequest{Export: exportFlag || destination != ""}
	if destination == "" {
		return req, nil
	}
	dest, err := destinationFor(destination)
	if err != nil {
		return api.CommitRequest{}, err
	}
	req.Destination = &dest
	return req, nil
}

// destinationFor names a sheet inside the server's sheet directory.
func destinationFor(name string) (models.Destination, error) {
	if filepath.IsAbs(name) {
		return models.Destination{}, fmt.Errorf("destination %q must be relative to the server's sheet directory", name)
	}
	id := filepath.ToSlash(filepath.Clean(name))
	return models.Destination{ID: id, Name: path.Base(id)}, nil
}

func writeIdentified(w io.Writer, resp api.IdentifyResponse) {
	for _, c := range resp.Categories {
		status := ""
		if c.Complete {
			status = " (complete)"
		}
		fmt.Fprintf(w, "\n%s%s\n", c.Category, status)
		if len(c.Products) == 0 {
			fmt.Fprintln(w, "  no products identified")
		}
		for _, p := range c.Products {
			mark := " "
			if p.Accounted {
				mark = "✓"
			}
			fmt.Fprintf(w, "  %s %s\n", mark, p.Name)
		}
	}
}

func writeReview(w io.Writer, state service.ReviewState) {
	fmt.Fprintf(w, "\nReview of batch %d\n", state.BatchID)
	if len(state.New) > 0 {
		fmt.Fprintf(w, "\n  New (%d):\n", len(state.New))
		for _, r := range state.New {
			mark := "[ ]"
			if slices.Contains(state.Selected, r.ProductID) {
				mark = "[x]"
			}
			fmt.Fprintf(w, "    %s %s (%s)\n", mark, r.ProductName, r.ProductID)
		}
	}
	if len(state.Duplicates) > 0 {
		fmt.Fprintf(w, "\n  Already stored (%d):\n", len(state.Duplicates))
		for _, r := range state.Duplicates {
			fmt.Fprintf(w, "    - %s (%s)\n", r.ProductName, r.ProductID)
		}
	}
	if len(state.Errored) > 0 {
		fmt.Fprintf(w, "\n  Failed (%d):\n", len(state.Errored))
		for _, j := range state.Errored {
			fmt.Fprintf(w, "    ✗ %s: %s\n", j.ProductName, j.Error)
		}
	}
}

func writeCommit(w io.Writer, res api.CommitResponse) {
	fmt.Fprintf(w, "\n✓ Committed %d products from batch %d\n", len(res.Commit.Added), res.Commit.BatchID)
	if len(res.Commit.Skipped) > 0 {
		fmt.Fprintf(w, "  Skipped (stored meanwhile): %s\n", strings.Join(res.Commit.Skipped, ", "))
	}
	switch {
	case res.Exported:
		fmt.Fprintf(w, "  Exported to %s\n", res.Destination.Name)
	case res.ExportError != "":
		warnf("records were committed but the export failed: %s", res.ExportError)
	}
}
