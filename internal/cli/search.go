package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rich7420/community-ai-agent-sub001/internal/app"
	"github.com/rich7420/community-ai-agent-sub001/internal/retrieval"
	"github.com/spf13/cobra"
)

var (
	searchFilter filterFlags
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Show the records a question would be answered from",
	Long: `Retrieve the community records most similar to a query, ranked and
trimmed to the context budget exactly as 'ask' would use them, without
calling the LLM.

Examples:
  community-agent search "release schedule"
  community-agent search "flaky test" --platform github --since 2025-01-01`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchFilter.register(searchCmd.Flags())
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print results as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	filter, err := searchFilter.filter(time.Now())
	if err != nil {
		return err
	}

	a, err := openApp(ctx, app.Options{RecordFiles: searchFilter.records, WithoutLLM: true})
	if err != nil {
		return err
	}
	defer closeApp(a)

	res, err := a.Engine.Retrieve(ctx, args[0], filter)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if searchJSON {
		return writeJSON(cmd.OutOrStdout(), res.Records)
	}
	printSearchResult(cmd.OutOrStdout(), res)
	return nil
}

func printSearchResult(w io.Writer, res retrieval.Result) {
	if len(res.Records) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "Found %d results", len(res.Records))
	if res.Candidates > len(res.Records) {
		fmt.Fprintf(w, " (%d more over the context budget)", res.Candidates-len(res.Records))
	}
	fmt.Fprint(w, ":\n\n")

	for i := range res.Records {
		r := &res.Records[i]
		score := defaultTheme.statusStyle().Render(fmt.Sprintf("%.3f", r.Score))
		fmt.Fprintf(w, "%d. %s %s\n", i+1, score, r.SourceLine())
		fmt.Fprintf(w, "   %s\n", snippet(r.Content, 160))
		if verbose && !r.Timestamp.IsZero() {
			fmt.Fprintf(w, "   %s\n", r.Timestamp.Format(time.RFC3339))
		}
		fmt.Fprintln(w)
	}
}

// snippet flattens s to one line of at most n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
