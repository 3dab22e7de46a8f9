package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rich7420/community-ai-agent-sub001/internal/embedding"
	"github.com/rich7420/community-ai-agent-sub001/internal/metrics"
)

// StatsInput is empty; stats takes no arguments.
type StatsInput struct{}

// StatsResult is the stats response.
type StatsResult struct {
	Runtime       metrics.Snapshot `json:"runtime"`
	Embedding     *embedding.Stats `json:"embedding,omitempty"`
	CacheHit      *float64         `json:"embedding_cache_hit_rate,omitempty"`
	CachedAnswers *int             `json:"cached_answers,omitempty"`
}

// NewStatsHandler creates the stats tool handler.
func NewStatsHandler(deps *Dependencies) mcp.ToolHandlerFor[StatsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatsInput) (*mcp.CallToolResult, any, error) {
		out := StatsResult{Runtime: deps.Metrics.Snapshot()}
		if deps.Embedder != nil {
			s := deps.Embedder.Stats()
			rate := s.HitRate()
			out.Embedding = &s
			out.CacheHit = &rate
		}
		if deps.Answers != nil {
			n := deps.Answers.CachedAnswers()
			out.CachedAnswers = &n
		}
		jsonBytes, _ := json.MarshalIndent(out, "", "  ")
		return TextResult(string(jsonBytes)), nil, nil
	}
}

// ClearAnswersInput is empty; clear_answer_cache takes no arguments.
type ClearAnswersInput struct{}

// NewClearAnswersHandler creates the clear_answer_cache tool handler.
func NewClearAnswersHandler(deps *Dependencies) mcp.ToolHandlerFor[ClearAnswersInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ClearAnswersInput) (*mcp.CallToolResult, any, error) {
		if deps.Answers == nil {
			return ErrorResult("Answer cache is not configured", "Start the server with an LLM provider"), nil, nil
		}
		n := deps.Answers.CachedAnswers()
		deps.Answers.ClearCache()
		deps.Logger.Info("answer cache cleared", "answers", n)
		return TextResult(fmt.Sprintf("Cleared %d cached answers", n)), nil, nil
	}
}
