package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rich7420/community-ai-agent-sub001/internal/models"
	"github.com/rich7420/community-ai-agent-sub001/internal/retrieval"
)

// SearchInput defines the input schema for the search_community tool.
type SearchInput struct {
	Query     string   `json:"query" jsonschema:"required,The search query text"`
	Platforms []string `json:"platforms,omitempty" jsonschema:"Only use records from these platforms: slack, github, calendar"`
	Since     string   `json:"since,omitempty" jsonschema:"Only use records at or after this time (YYYY-MM-DD, RFC 3339, 7d or 36h)"`
	Until     string   `json:"until,omitempty" jsonschema:"Only use records at or before this time (YYYY-MM-DD, RFC 3339, 7d or 36h)"`
}

// SearchHit is one record in a search_community result.
type SearchHit struct {
	ID        string          `json:"id"`
	Platform  models.Platform `json:"platform"`
	Source    string          `json:"source"`
	Score     float64         `json:"score"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	Content   string          `json:"content"`
}

// SearchResult is the search_community response.
type SearchResult struct {
	Records    []SearchHit `json:"records"`
	Count      int         `json:"count"`
	Candidates int         `json:"candidates"`
}

// NewSearchHandler creates the search_community tool handler. It returns
// the records an answer would be built from, without calling the LLM.
func NewSearchHandler(deps *Dependencies) mcp.ToolHandlerFor[SearchInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(input.Query) == "" {
			return ErrorResult("Query cannot be empty", "Provide a search query"), nil, nil
		}
		filter, err := models.ParseFilter(input.Platforms, input.Since, input.Until, time.Now())
		if err != nil {
			return ErrorResult("Invalid filter: "+err.Error(), "Use YYYY-MM-DD, RFC 3339, 7d or 36h"), nil, nil
		}

		res, err := deps.Retriever.Retrieve(ctx, input.Query, filter)
		if err != nil {
			deps.Logger.Error("search failed", "stage", retrieval.FailedStage(err), "error", err)
			switch {
			case errors.Is(err, retrieval.ErrEmbeddingUnavailable):
				return ErrorResult("Failed to generate query embedding", "Check the embedding provider"), nil, nil
			case errors.Is(err, retrieval.ErrStoreUnavailable):
				return ErrorResult("Search failed", "Database may be unavailable"), nil, nil
			default:
				return ErrorResult("Search failed", ""), nil, nil
			}
		}

		out := SearchResult{
			Records:    make([]SearchHit, 0, len(res.Records)),
			Count:      len(res.Records),
			Candidates: res.Candidates,
		}
		for i := range res.Records {
			r := &res.Records[i]
			hit := SearchHit{
				ID:       r.ID,
				Platform: r.Platform,
				Source:   r.SourceLine(),
				Score:    r.Score,
				Content:  r.Content,
			}
			if !r.Timestamp.IsZero() {
				ts := r.Timestamp
				hit.Timestamp = &ts
			}
			out.Records = append(out.Records, hit)
		}
		jsonBytes, _ := json.MarshalIndent(out, "", "  ")

		queryLog := input.Query
		if len(queryLog) > 30 {
			queryLog = queryLog[:30] + "..."
		}
		deps.Logger.Info("search completed", "query", queryLog, "results", out.Count)

		return TextResult(string(jsonBytes)), nil, nil
	}
}
