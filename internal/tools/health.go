package tools

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HealthInput is empty; health takes no arguments.
type HealthInput struct{}

// NewHealthHandler creates the health tool handler. An unhealthy report is
// still a successful call; the report says which components failed.
func NewHealthHandler(deps *Dependencies) mcp.ToolHandlerFor[HealthInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input HealthInput) (*mcp.CallToolResult, any, error) {
		if deps.Health == nil {
			return ErrorResult("Health checks are not configured", ""), nil, nil
		}
		report := deps.Health.Health(ctx)
		if !report.Healthy() {
			deps.Logger.Warn("health check failed", "unhealthy", report.Unhealthy)
		}
		jsonBytes, _ := json.MarshalIndent(report, "", "  ")
		return TextResult(string(jsonBytes)), nil, nil
	}
}
