// Package tools provides MCP tool handlers and registration.
package tools

import (
	"context"
	"log/slog"

	"github.com/rich7420/community-ai-agent-sub001/internal/embedding"
	"github.com/rich7420/community-ai-agent-sub001/internal/health"
	"github.com/rich7420/community-ai-agent-sub001/internal/metrics"
	"github.com/rich7420/community-ai-agent-sub001/internal/models"
	"github.com/rich7420/community-ai-agent-sub001/internal/retrieval"
	"github.com/rich7420/community-ai-agent-sub001/internal/service"
)

// Answerer answers a question from community records.
type Answerer interface {
	Answer(ctx context.Context, question string, filter models.Filter) (models.QueryResult, error)
}

// Retriever returns the ranked context for a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, filter models.Filter) (retrieval.Result, error)
}

// StatsSource reports embedding generator counters.
type StatsSource interface {
	Stats() embedding.Stats
}

// AnswerCache is the assistant's cache of answered questions.
type AnswerCache interface {
	CachedAnswers() int
	ClearCache()
}

// HealthChecker probes the components answering depends on.
type HealthChecker interface {
	Health(ctx context.Context) health.Report
}

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	Assistant Answerer
	Answers   AnswerCache
	Retriever Retriever
	Ingest    *service.IngestService
	Jobs      *service.JobManager
	Metrics   *metrics.Collector
	Embedder  StatsSource
	Health    HealthChecker
	Logger    *slog.Logger
}
