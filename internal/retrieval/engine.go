// Package retrieval turns a question into a ranked, size-bounded context.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rich7420/community-ai-agent-sub001/internal/metrics"
	"github.com/rich7420/community-ai-agent-sub001/internal/models"
)

// Defaults for Options fields left at zero.
const (
	DefaultTopK     = 5
	DefaultMinScore = 0.1
	DefaultBudget   = 4000
	DefaultTimeout  = 30 * time.Second
)

// Embedder produces a query vector.
type Embedder interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}

// Store answers nearest-neighbor queries. Returned records must carry
// their embedding; records without one are ignored.
type Store interface {
	Nearest(ctx context.Context, query []float32, opts models.NearestOptions) ([]models.ScoredRecord, error)
}

// Options tunes an Engine.
type Options struct {
	TopK     int
	MinScore float64
	Budget   Budget
	// StoreTimeout bounds the record store query.
	StoreTimeout time.Duration
}

// Result is the ranked context for one question.
type Result struct {
	// Records are the kept records in ranked order.
	Records []models.ScoredRecord
	Context string
	// SourcesUsed is len(Records): what actually went into Context.
	SourcesUsed int
	// Candidates is how many records ranked before budgeting.
	Candidates int
}

// Engine runs one request through received, embedded, retrieved, budgeted.
type Engine struct {
	embedder Embedder
	store    Store
	opts     Options
	logger   *slog.Logger
	metrics  *metrics.Collector
}

// NewEngine creates an Engine. TopK, Budget.Limit and StoreTimeout take
// defaults when non-positive; a zero MinScore keeps every match.
func NewEngine(embedder Embedder, store Store, opts Options, logger *slog.Logger, m *metrics.Collector) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Budget.Limit <= 0 {
		opts.Budget.Limit = DefaultBudget
	}
	if opts.Budget.Unit == "" {
		opts.Budget.Unit = UnitChars
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{embedder: embedder, store: store, opts: opts, logger: logger, metrics: m}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Retrieve embeds question, queries the store, ranks, and budgets. Errors
// are *StageError wrapping ErrInvalidInput, ErrEmbeddingUnavailable, or
// ErrStoreUnavailable.
func (e *Engine) Retrieve(ctx context.Context, question string, filter models.Filter) (Result, error) {
	start := time.Now()
	res, err := e.retrieve(ctx, question, filter)
	if err != nil {
		e.metrics.RecordError(metrics.OpRetrieval, time.Since(start))
		e.logger.Warn("retrieval failed", "stage", StageFailed, "failed_at", FailedStage(err), "error", err)
		return Result{}, err
	}
	e.metrics.RecordTiming(metrics.OpRetrieval, time.Since(start))
	return res, nil
}

func (e *Engine) retrieve(ctx context.Context, question string, filter models.Filter) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, &StageError{Stage: StageReceived, Err: ErrInvalidInput}
	}
	e.logger.Debug("retrieval stage", "stage", StageReceived, "question_len", len(question))

	vec, err := e.embedder.Generate(ctx, question)
	if err != nil {
		return Result{}, &StageError{Stage: StageEmbedded, Err: fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)}
	}
	if len(vec) == 0 {
		return Result{}, &StageError{Stage: StageEmbedded, Err: ErrEmbeddingUnavailable}
	}
	e.logger.Debug("retrieval stage", "stage", StageEmbedded, "dimension", len(vec))

	candidates, err := e.nearest(ctx, vec, filter)
	if err != nil {
		return Result{}, &StageError{Stage: StageRetrieved, Err: fmt.Errorf("%w: %w", ErrStoreUnavailable, err)}
	}
	ranked := Rank(vec, candidates, e.opts.MinScore, e.opts.TopK)
	e.logger.Debug("retrieval stage", "stage", StageRetrieved, "candidates", len(candidates), "ranked", len(ranked))

	kept, contextText := e.opts.Budget.Fit(ranked)
	e.logger.Debug("retrieval stage", "stage", StageBudgeted,
		"kept", len(kept), "dropped", len(ranked)-len(kept), "budget", e.opts.Budget.Limit, "unit", e.opts.Budget.Unit)

	e.logger.Info("retrieval complete", "stage", StageDone, "sources_used", len(kept), "candidates", len(ranked))
	return Result{
		Records:     kept,
		Context:     contextText,
		SourcesUsed: len(kept),
		Candidates:  len(ranked),
	}, nil
}

func (e *Engine) nearest(ctx context.Context, vec []float32, filter models.Filter) ([]models.ScoredRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.StoreTimeout)
	defer cancel()

	start := time.Now()
	records, err := e.store.Nearest(ctx, vec, models.NearestOptions{K: e.opts.TopK, Filter: filter})
	if err != nil {
		e.metrics.RecordError(metrics.OpStoreSearch, time.Since(start))
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("store query timed out after %s: %w", e.opts.StoreTimeout, err)
		}
		return nil, err
	}
	e.metrics.RecordTiming(metrics.OpStoreSearch, time.Since(start))
	return records, nil
}
