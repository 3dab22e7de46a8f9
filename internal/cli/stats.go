package cli

import (
	"fmt"
	"io"

	"github.com/rich7420/community-ai-agent-sub001/internal/embedding"
	"github.com/rich7420/community-ai-agent-sub001/internal/metrics"
)

// printStats displays process runtime statistics. cachedAnswers is omitted
// when negative, i.e. when no assistant was built.
func printStats(w io.Writer, snap metrics.Snapshot, emb embedding.Stats, cachedAnswers int) {
	fmt.Fprintf(w, "\nRuntime Statistics\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════\n")
	fmt.Fprintf(w, "Uptime: %.1f seconds\n", snap.UptimeSeconds)

	ops := []struct {
		name string
		op   *metrics.OperationSnapshot
	}{
		{"Answer", snap.Answer},
		{"Retrieval", snap.Retrieval},
		{"Embeddings", snap.Embedding},
		{"LLM Generate", snap.LLMGenerate},
		{"Store Search", snap.StoreSearch},
		{"Store Upsert", snap.StoreUpsert},
	}
	for _, o := range ops {
		if o.op == nil {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", o.name)
		printOpStats(w, o.op)
		printTokenStats(w, o.op)
	}

	fmt.Fprintf(w, "\nEmbedding Generator:\n")
	fmt.Fprintf(w, "  Generated: %d, API calls: %d, errors: %d, rate limited: %d\n",
		emb.TotalGenerated, emb.APICalls, emb.Errors, emb.RateLimitHits)
	fmt.Fprintf(w, "  Cache: %d hits, %d misses (%.0f%% hit rate)\n",
		emb.CacheHits, emb.CacheMisses, emb.HitRate()*100)

	if cachedAnswers >= 0 {
		fmt.Fprintf(w, "\nAnswer Cache: %d cached answers\n", cachedAnswers)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(w io.Writer, op *metrics.OperationSnapshot) {
	fmt.Fprintf(w, "  Calls: %d, Errors: %d, Total: %dms\n", op.Count, op.Errors, op.TotalTimeMs)
	fmt.Fprintf(w, "  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

// printTokenStats displays token statistics if available.
func printTokenStats(w io.Writer, op *metrics.OperationSnapshot) {
	if op.TotalInputTokens == nil || op.TotalOutputTokens == nil {
		return
	}
	fmt.Fprintf(w, "  Tokens In:  %d total", *op.TotalInputTokens)
	if op.AvgInputTokens != nil {
		fmt.Fprintf(w, ", avg %.0f", *op.AvgInputTokens)
	}
	if op.MinInputTokens != nil && op.MaxInputTokens != nil {
		fmt.Fprintf(w, ", min %d, max %d", *op.MinInputTokens, *op.MaxInputTokens)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Tokens Out: %d total", *op.TotalOutputTokens)
	if op.AvgOutputTokens != nil {
		fmt.Fprintf(w, ", avg %.0f", *op.AvgOutputTokens)
	}
	if op.MinOutputTokens != nil && op.MaxOutputTokens != nil {
		fmt.Fprintf(w, ", min %d, max %d", *op.MinOutputTokens, *op.MaxOutputTokens)
	}
	fmt.Fprintln(w)
}
