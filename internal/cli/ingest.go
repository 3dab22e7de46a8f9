package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/rich7420/community-ai-agent-sub001/internal/app"
	"github.com/rich7420/community-ai-agent-sub001/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errInterrupted = errors.New("interrupted")

var (
	ingestRecursive bool
	ingestDryRun    bool
	ingestReembed   bool
	ingestChunkSize int
	ingestJSON      bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Embed record files and store them in SurrealDB",
	Long: `Load standardized record files (.yaml, .yml, .json) written by the
collectors, embed their content, and upsert them into SurrealDB.

A file may hold a list of records, a mapping with a 'records' key, or one
record per YAML document. Records already embedded with the current model
are kept as they are unless --reembed is given.

Examples:
  community-agent ingest data/slack-2025-05.yaml
  community-agent ingest data/ --recursive
  community-agent ingest data/ --dry-run`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestRecursive, "recursive", "r", false, "descend into subdirectories")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "validate records without embedding or storing them")
	ingestCmd.Flags().BoolVar(&ingestReembed, "reembed", false, "embed records again even if they carry a current vector")
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", service.DefaultChunkSize, "records embedded and stored per round")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print the result as JSON")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	files, err := service.ResolvePaths(args, ingestRecursive)
	if err != nil {
		return err
	}

	a, err := openApp(ctx, app.Options{WithoutLLM: true})
	if err != nil {
		return err
	}
	defer closeApp(a)

	opts := service.IngestOptions{
		DryRun:    ingestDryRun,
		Reembed:   ingestReembed,
		ChunkSize: ingestChunkSize,
	}

	if !ingestJSON && term.IsTerminal(int(os.Stdout.Fd())) {
		job := a.Ingest.IngestAsync(a.Jobs, files, opts)
		return runJobProgress(job)
	}

	opts.Progress = func(done, total int) {
		logger.Info("ingest progress", "done", done, "total", total)
	}
	result, err := a.Ingest.IngestFiles(ctx, files, opts)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	if ingestJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	fmt.Fprint(cmd.OutOrStdout(), formatIngestResult(defaultTheme, result))
	return nil
}
