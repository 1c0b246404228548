// Package cli provides the command-line interface for prodscout.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/prodscout/internal/client"
	"github.com/raphaelgruber/prodscout/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string

	apiClient *client.Client
	logger    *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "prodscout",
	Short: "AI-assisted product research",
	Long: `Prodscout discovers product categories for a query, identifies the
products worth researching in each, researches them in parallel batches, and
lets you review the results before they are committed to the knowledge store.

All commands talk to a running prodscout-server.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		// Loads .env so PRODSCOUT_SERVER_URL can live next to the project.
		config.Load()

		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		apiClient = client.New(serverURL)
		logger.Debug("using server", "url", apiClient.BaseURL())
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Interrupts cancel the command context so streams and polls stop cleanly.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default $PRODSCOUT_SERVER_URL or http://localhost:8585)")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(identifyCmd)
	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(batchesCmd)
	rootCmd.AddCommand(kbCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(watchCmd)
}

// warnf prints a warning without failing the command.
func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}
