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

// AskInput defines the input schema for the ask_community tool.
type AskInput struct {
	Question  string   `json:"question" jsonschema:"required,The question about the community"`
	Platforms []string `json:"platforms,omitempty" jsonschema:"Only use records from these platforms: slack, github, calendar"`
	Since     string   `json:"since,omitempty" jsonschema:"Only use records at or after this time (YYYY-MM-DD, RFC 3339, 7d or 36h)"`
	Until     string   `json:"until,omitempty" jsonschema:"Only use records at or before this time (YYYY-MM-DD, RFC 3339, 7d or 36h)"`
}

// NewAskHandler creates the ask_community tool handler. The result text is
// the JSON QueryResult: answer, sources_used, context_records, outcome.
func NewAskHandler(deps *Dependencies) mcp.ToolHandlerFor[AskInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(input.Question) == "" {
			return ErrorResult("Question cannot be empty", "Provide a question"), nil, nil
		}
		filter, err := models.ParseFilter(input.Platforms, input.Since, input.Until, time.Now())
		if err != nil {
			return ErrorResult("Invalid filter: "+err.Error(), "Use YYYY-MM-DD, RFC 3339, 7d or 36h"), nil, nil
		}
		if deps.Assistant == nil {
			return ErrorResult("Question answering is not configured", "Start the server with an LLM provider"), nil, nil
		}

		result, err := deps.Assistant.Answer(ctx, input.Question, filter)
		if err != nil {
			if errors.Is(err, retrieval.ErrInvalidInput) {
				return ErrorResult("Question cannot be empty", "Provide a question"), nil, nil
			}
			deps.Logger.Error("ask failed", "error", err)
			return ErrorResult("Answering failed", "Check the server log"), nil, nil
		}

		jsonBytes, _ := json.MarshalIndent(result, "", "  ")
		deps.Logger.Info("ask completed",
			"request_id", result.RequestID,
			"outcome", result.Outcome,
			"sources_used", result.SourcesUsed,
			"cached", result.Cached)

		return TextResult(string(jsonBytes)), nil, nil
	}
}
