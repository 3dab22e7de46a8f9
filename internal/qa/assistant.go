// Package qa answers community questions from retrieved records.
//
// Every question-level failure becomes a fixed answer with an Outcome; the
// only error Answer returns is for a blank question.
package qa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rich7420/community-ai-agent-sub001/internal/llm"
	"github.com/rich7420/community-ai-agent-sub001/internal/metrics"
	"github.com/rich7420/community-ai-agent-sub001/internal/models"
	"github.com/rich7420/community-ai-agent-sub001/internal/retrieval"
	"github.com/tmc/langchaingo/prompts"
)

// Retriever builds the ranked context for a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, filter models.Filter) (retrieval.Result, error)
}

// Generator produces a completion for a system and user prompt.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (llm.Completion, error)
}

// Options tunes an Assistant. A negative CacheSize disables the answer
// cache; zero takes the default.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
}

// Assistant runs retrieval then generation for each question.
type Assistant struct {
	retriever Retriever
	generator Generator
	prompt    prompts.PromptTemplate
	cache     *answerCache
	logger    *slog.Logger
	metrics   *metrics.Collector
}

// New creates an Assistant.
func New(retriever Retriever, generator Generator, opts Options, logger *slog.Logger, m *metrics.Collector) *Assistant {
	if opts.CacheSize == 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		retriever: retriever,
		generator: generator,
		prompt:    userPrompt(),
		cache:     newAnswerCache(opts.CacheSize, opts.CacheTTL),
		logger:    logger,
		metrics:   m,
	}
}

// CachedAnswers returns the number of answers held in the cache.
func (a *Assistant) CachedAnswers() int {
	return a.cache.len()
}

// ClearCache drops every cached answer.
func (a *Assistant) ClearCache() {
	a.cache.purge()
}

// Answer returns the answer for question, restricted to records that pass
// filter.
func (a *Assistant) Answer(ctx context.Context, question string, filter models.Filter) (models.QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.QueryResult{}, fmt.Errorf("answer: %w", retrieval.ErrInvalidInput)
	}

	requestID := uuid.New().String()[:8]
	logger := a.logger.With("request_id", requestID)
	start := time.Now()

	key := cacheKey(question, filter)
	if cached, ok := a.cache.get(key); ok {
		cached.Cached = true
		cached.RequestID = requestID
		logger.Info("answer served from cache", "sources_used", cached.SourcesUsed)
		a.metrics.RecordTiming(metrics.OpAnswer, time.Since(start))
		return cached, nil
	}

	res := a.answer(ctx, logger, question, filter)
	res.RequestID = requestID
	if res.Outcome == models.OutcomeAnswered {
		a.cache.put(key, res)
		a.metrics.RecordTiming(metrics.OpAnswer, time.Since(start))
	} else {
		a.metrics.RecordError(metrics.OpAnswer, time.Since(start))
	}

	logger.Info("answer complete",
		"outcome", res.Outcome,
		"sources_used", res.SourcesUsed,
		"duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

func (a *Assistant) answer(ctx context.Context, logger *slog.Logger, question string, filter models.Filter) models.QueryResult {
	retrieved, err := a.retriever.Retrieve(ctx, question, filter)
	if err != nil {
		outcome, msg, category := retrievalFailure(err)
		logger.Error("retrieval failed", "failure_category", category, "stage", retrieval.FailedStage(err), "error", err)
		return models.QueryResult{Answer: msg, Outcome: outcome, ContextRecords: []models.StandardizedRecord{}}
	}

	records := contextRecords(retrieved.Records)
	result := func(answer string, outcome models.Outcome) models.QueryResult {
		return models.QueryResult{
			Answer:         answer,
			SourcesUsed:    len(records),
			ContextRecords: records,
			Outcome:        outcome,
		}
	}

	if len(records) == 0 {
		logger.Info("no relevant context", "candidates", retrieved.Candidates)
		return result(MsgNoContext, models.OutcomeNoContext)
	}

	prompt, err := a.prompt.Format(map[string]any{
		"context":  retrieved.Context,
		"question": question,
	})
	if err != nil {
		logger.Error("format prompt", "failure_category", categoryUnknown, "error", err)
		return result(MsgFailed, models.OutcomeFailed)
	}

	completion, err := a.generator.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		outcome, msg, category := llmFailure(err)
		logger.Error("llm generation failed", "failure_category", category, "error", err)
		return result(msg, outcome)
	}

	if completion.FinishReason == llm.FinishTruncated {
		logger.Warn("llm response truncated",
			"failure_category", "truncated",
			"finish_reason", completion.RawFinishReason,
			"output_tokens", completion.OutputTokens)
		return result(MsgTruncated, models.OutcomeTruncated)
	}

	text := strings.TrimSpace(completion.Text)
	if text == "" {
		logger.Warn("llm returned empty response", "failure_category", "empty", "finish_reason", completion.RawFinishReason)
		return result(MsgEmpty, models.OutcomeEmpty)
	}
	return result(text, models.OutcomeAnswered)
}

// contextRecords strips embeddings from the kept records.
func contextRecords(scored []models.ScoredRecord) []models.StandardizedRecord {
	out := make([]models.StandardizedRecord, len(scored))
	for i, r := range scored {
		rec := r.StandardizedRecord
		rec.Embedding = nil
		out[i] = rec
	}
	return out
}
