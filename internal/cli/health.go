package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rich7420/community-ai-agent-sub001/internal/app"
	"github.com/rich7420/community-ai-agent-sub001/internal/health"
	"github.com/spf13/cobra"
)

var errUnhealthy = errors.New("one or more components are unhealthy")

var (
	healthJSON    bool
	healthSkipLLM bool
	healthRecords []string
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the store, embedding backend, LLM and embedding cache",
	Long: `Probe every component a question depends on and report its status and
latency. The embedding check calls the backend directly, bypassing the cache,
and the LLM check asks for a single token.

Exits non-zero when any component is unhealthy.

Examples:
  community-agent health
  community-agent health --skip-llm --json`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "print the report as JSON")
	healthCmd.Flags().BoolVar(&healthSkipLLM, "skip-llm", false, "do not load or probe the chat model")
	healthCmd.Flags().StringSliceVar(&healthRecords, "records", nil, "use an in-memory store loaded from these files instead of SurrealDB")
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, app.Options{RecordFiles: healthRecords, WithoutLLM: healthSkipLLM})
	if err != nil {
		return err
	}
	defer closeApp(a)

	report := a.Health(ctx)
	if healthJSON {
		if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		printHealth(cmd.OutOrStdout(), report)
	}
	if !report.Healthy() {
		return errUnhealthy
	}
	return nil
}

// printHealth displays a health report, one component per line.
func printHealth(w io.Writer, r health.Report) {
	fmt.Fprintf(w, "Status: %s\n", r.Status)
	for _, c := range r.Components {
		note := c.Detail
		if c.Error != "" {
			note = "error: " + c.Error
		}
		line := fmt.Sprintf("  %-16s %-10s %6dms  %s", c.Name, c.Status, c.DurationMs, note)
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
	if len(r.Unhealthy) > 0 {
		fmt.Fprintf(w, "Unhealthy: %s\n", strings.Join(r.Unhealthy, ", "))
	}
}
