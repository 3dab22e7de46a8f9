package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rich7420/community-ai-agent-sub001/internal/app"
	"github.com/rich7420/community-ai-agent-sub001/internal/models"
	"github.com/spf13/cobra"
)

var (
	askFilter     filterFlags
	askJSON       bool
	askOutputFile string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question and get an answer grounded in community records",
	Long: `Ask a question about the community and get an LLM answer built from
the most similar community records.

The answer cites records as [n]; the sources are listed below it. Repeated
questions are served from the answer cache for the lifetime of the process.

Examples:
  community-agent ask "When is the next release?"
  community-agent ask "Who reviewed the auth PR?" --platform github
  community-agent ask "What was decided about CI?" --since 30d
  community-agent ask "Any meetups?" --records testdata/records.yaml --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askFilter.register(askCmd.Flags())
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full result as JSON")
	askCmd.Flags().StringVarP(&askOutputFile, "output", "o", "", "write output to file")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	filter, err := askFilter.filter(time.Now())
	if err != nil {
		return err
	}

	a, err := openApp(ctx, app.Options{RecordFiles: askFilter.records})
	if err != nil {
		return err
	}
	defer closeApp(a)

	result, err := a.Assistant.Answer(ctx, args[0], filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if askOutputFile != "" {
		f, err := os.Create(askOutputFile)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if askJSON {
		return writeJSON(out, result)
	}
	printAnswer(out, result)
	if askOutputFile != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Written to %s\n", askOutputFile)
	}
	return nil
}

func printAnswer(w io.Writer, result models.QueryResult) {
	fmt.Fprintln(w, result.Answer)
	if result.SourcesUsed == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, defaultTheme.hintStyle().Render(fmt.Sprintf("Sources (%d):", result.SourcesUsed)))
	for i := range result.ContextRecords {
		r := &result.ContextRecords[i]
		fmt.Fprintf(w, "  [%d] %s\n", i+1, r.SourceLine())
	}
	if result.Outcome != models.OutcomeAnswered {
		fmt.Fprintln(w, defaultTheme.errorStyle().Render(fmt.Sprintf("(%s)", result.Outcome)))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
