package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ping",
		Description: "Test tool - responds with pong or echoes input",
	}, NewPingHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_community",
		Description: "Answer a question about the community from collected Slack, GitHub and calendar records, citing sources",
	}, NewAskHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_community",
		Description: "Return the community records most similar to a query, ranked, without generating an answer",
	}, NewSearchHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "stats",
		Description: "Runtime statistics: timings, token usage and embedding cache hit rate since server start",
	}, NewStatsHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_answer_cache",
		Description: "Drop every cached answer so the next questions are answered from the current records",
	}, NewClearAnswersHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "health",
		Description: "Check the record store, embedding backend, LLM and embedding cache; reports status and latency per component",
	}, NewHealthHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_records",
		Description: "Embed record files from the server host and store them; runs in the background and clears cached answers when done",
	}, NewIngestHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "job_status",
		Description: "Show the progress and result of ingest jobs",
	}, NewJobStatusHandler(deps))
}
