// Package cli provides the command-line interface for community-agent.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/rich7420/community-ai-agent-sub001/internal/app"
	"github.com/rich7420/community-ai-agent-sub001/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	showStats bool

	// Global config and logger
	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "community-agent",
	Short: "Question answering over collected community activity",
	Long: `community-agent answers questions about a community using records
collected from Slack, GitHub, and calendars.

Records are embedded and stored in SurrealDB by 'ingest'. 'ask' retrieves
the most similar records and has the configured LLM answer from them;
'search' shows the retrieved records without calling the LLM.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger, closeLog = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLog != nil {
			if err := closeLog(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// openApp wires the components a command needs. Callers must Close it.
func openApp(ctx context.Context, opts app.Options) (*app.App, error) {
	return app.New(ctx, cfg, logger, opts)
}

// closeApp closes a and prints the collected metrics when --stats is set.
func closeApp(a *app.App) {
	if showStats {
		cachedAnswers := -1
		if a.Assistant != nil {
			cachedAnswers = a.Assistant.CachedAnswers()
		}
		printStats(os.Stdout, a.Metrics.Snapshot(), a.Embedder.Stats(), cachedAnswers)
	}
	if err := a.Close(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close: %v\n", err)
	}
}

// Execute runs the root command with ctx, which is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "print runtime statistics when done")

	// Add subcommands
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "community-agent %s\n", Version)
	},
}
