package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rich7420/community-ai-agent-sub001/internal/metrics"
	"golang.org/x/time/rate"
)

// Defaults for Options fields left at zero.
const (
	DefaultBatchSize  = 10
	DefaultMaxTextLen = 4000
	DefaultBatchPause = 500 * time.Millisecond
	DefaultTimeout    = 30 * time.Second
	DefaultBackoff    = 60 * time.Second
)

// RetryPolicy bounds how a rate-limited backend call is retried.
// Only ErrRateLimited is retried; every other failure is final.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// DefaultRetryPolicy retries a rate-limited call once after 60s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 1, Backoff: DefaultBackoff}
}

// Options tunes a Generator.
type Options struct {
	BatchSize   int           // texts per backend call
	MaxTextLen  int           // runes kept per text
	BatchPause  time.Duration // minimum spacing between backend calls in a batch
	Concurrency int           // chunks in flight at once
	Timeout     time.Duration // per backend call
	Retry       RetryPolicy
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		BatchSize:   DefaultBatchSize,
		MaxTextLen:  DefaultMaxTextLen,
		BatchPause:  DefaultBatchPause,
		Concurrency: 1,
		Timeout:     DefaultTimeout,
		Retry:       DefaultRetryPolicy(),
	}
}

// Generator produces embeddings through a Backend with caching, batching,
// pacing, and bounded rate-limit retries. Safe for concurrent use.
type Generator struct {
	backend Backend
	cache   Cache
	opts    Options
	pacer   *rate.Limiter
	sleep   func(context.Context, time.Duration) error
	logger  *slog.Logger
	metrics *metrics.Collector
	stats   counters
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics records backend call timings.
func WithMetrics(m *metrics.Collector) GeneratorOption {
	return func(g *Generator) { g.metrics = m }
}

// WithSleep replaces the rate-limit backoff wait.
func WithSleep(fn func(context.Context, time.Duration) error) GeneratorOption {
	return func(g *Generator) { g.sleep = fn }
}

// NewGenerator builds a Generator. A nil cache disables caching.
// Non-positive BatchSize, MaxTextLen, Concurrency and Timeout take defaults;
// BatchPause and Retry are used as given.
func NewGenerator(backend Backend, cache Cache, opts Options, gopts ...GeneratorOption) *Generator {
	if cache == nil {
		cache = NopCache{}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxTextLen <= 0 {
		opts.MaxTextLen = DefaultMaxTextLen
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retry.MaxRetries < 0 {
		opts.Retry.MaxRetries = 0
	}

	limit := rate.Inf
	if opts.BatchPause > 0 {
		limit = rate.Every(opts.BatchPause)
	}

	g := &Generator{
		backend: backend,
		cache:   cache,
		opts:    opts,
		pacer:   rate.NewLimiter(limit, 1),
		sleep:   sleepContext,
		logger:  slog.Default(),
	}
	for _, opt := range gopts {
		opt(g)
	}
	return g
}

// Model returns the backend model identifier.
func (g *Generator) Model() string {
	return g.backend.Model()
}

// Stats returns the cumulative counters.
func (g *Generator) Stats() Stats {
	return g.stats.snapshot()
}

// Cache returns the cache in use.
func (g *Generator) Cache() Cache {
	return g.cache
}

// Similarity is the package-level Similarity, exposed for callers holding
// only a Generator.
func (g *Generator) Similarity(a, b []float32) float64 {
	return Similarity(a, b)
}

// Prepare trims surrounding whitespace and truncates to MaxTextLen runes.
// The result is what gets embedded and cached.
func (g *Generator) Prepare(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= g.opts.MaxTextLen {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:g.opts.MaxTextLen]))
}

// Generate embeds one text. Blank input returns ErrEmptyText without
// touching the cache or backend.
func (g *Generator) Generate(ctx context.Context, text string) ([]float32, error) {
	prepared := g.Prepare(text)
	if prepared == "" {
		return nil, ErrEmptyText
	}

	model := g.backend.Model()
	if vec, ok := g.cache.Get(ctx, prepared, model); ok {
		g.stats.hits.Add(1)
		return vec, nil
	}
	g.stats.misses.Add(1)

	vecs, err := g.embedWithRetry(ctx, []string{prepared})
	if err != nil {
		g.logger.Warn("embedding failed", "model", model, "text_len", len(prepared), "error", err)
		return nil, fmt.Errorf("generate embedding: %w", err)
	}

	g.stats.generated.Add(1)
	g.cache.Put(ctx, prepared, model, vecs[0])
	return vecs[0], nil
}

type pendingText struct {
	index int
	text  string
}

// GenerateBatch embeds texts and returns exactly one slot per input, in
// input order. Blank inputs and inputs whose chunk failed are nil. Chunk
// failures are isolated: the remaining chunks still run.
func (g *Generator) GenerateBatch(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out
	}

	start := time.Now()
	model := g.backend.Model()

	var pending []pendingText
	for i, t := range texts {
		prepared := g.Prepare(t)
		if prepared == "" {
			continue
		}
		if vec, ok := g.cache.Get(ctx, prepared, model); ok {
			g.stats.hits.Add(1)
			out[i] = vec
			continue
		}
		g.stats.misses.Add(1)
		pending = append(pending, pendingText{index: i, text: prepared})
	}

	var chunks [][]pendingText
	for i := 0; i < len(pending); i += g.opts.BatchSize {
		chunks = append(chunks, pending[i:min(i+g.opts.BatchSize, len(pending))])
	}

	var failed int
	if g.opts.Concurrency <= 1 || len(chunks) <= 1 {
		for _, chunk := range chunks {
			if !g.embedChunk(ctx, model, chunk, out) {
				failed++
			}
		}
	} else {
		failed = g.embedChunksConcurrently(ctx, model, chunks, out)
	}

	g.logger.Info("batch embedding complete",
		"model", model,
		"texts", len(texts),
		"to_embed", len(pending),
		"chunks", len(chunks),
		"failed_chunks", failed,
		"duration_ms", time.Since(start).Milliseconds())
	return out
}

// embedChunksConcurrently fans chunks out to a worker pool. Each worker
// writes only its chunk's slots, so out needs no lock.
func (g *Generator) embedChunksConcurrently(ctx context.Context, model string, chunks [][]pendingText, out [][]float32) int {
	workChan := make(chan []pendingText, len(chunks))
	for _, c := range chunks {
		workChan <- c
	}
	close(workChan)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for range min(g.opts.Concurrency, len(chunks)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range workChan {
				if !g.embedChunk(ctx, model, chunk, out) {
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	return failed
}

// embedChunk fills out for one chunk and reports success.
func (g *Generator) embedChunk(ctx context.Context, model string, chunk []pendingText, out [][]float32) bool {
	if err := g.pacer.Wait(ctx); err != nil {
		g.stats.errors.Add(1)
		g.logger.Warn("embedding chunk skipped", "size", len(chunk), "error", err)
		return false
	}

	texts := make([]string, len(chunk))
	for i, p := range chunk {
		texts[i] = p.text
	}

	vecs, err := g.embedWithRetry(ctx, texts)
	if err != nil {
		g.logger.Warn("embedding chunk failed",
			"model", model,
			"size", len(chunk),
			"first_index", chunk[0].index,
			"error", err)
		return false
	}

	for i, p := range chunk {
		out[p.index] = vecs[i]
		g.cache.Put(ctx, p.text, model, vecs[i])
	}
	g.stats.generated.Add(int64(len(chunk)))
	return true
}

// embedWithRetry calls the backend, retrying only rate-limit failures and
// at most Retry.MaxRetries times. Every 429 counts as a rate-limit hit; a
// call that finally fails counts as one error.
func (g *Generator) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	for attempt := 0; ; attempt++ {
		vecs, err := g.callBackend(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		if !errors.Is(err, ErrRateLimited) {
			g.stats.errors.Add(1)
			return nil, err
		}

		g.stats.rateLimited.Add(1)
		if attempt >= g.opts.Retry.MaxRetries {
			g.stats.errors.Add(1)
			return nil, err
		}

		g.logger.Warn("embedding backend rate limited, backing off",
			"backoff", g.opts.Retry.Backoff,
			"attempt", attempt+1,
			"max_retries", g.opts.Retry.MaxRetries)
		if serr := g.sleep(ctx, g.opts.Retry.Backoff); serr != nil {
			g.stats.errors.Add(1)
			return nil, fmt.Errorf("backoff interrupted: %w", serr)
		}
	}
}

func (g *Generator) callBackend(ctx context.Context, texts []string) ([][]float32, error) {
	g.stats.apiCalls.Add(1)

	callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	start := time.Now()
	vecs, err := g.backend.EmbedTexts(callCtx, texts)
	if err == nil {
		err = validateVectors(vecs, len(texts))
	}
	duration := time.Since(start)

	if err != nil {
		g.metrics.RecordError(metrics.OpEmbedding, duration)
		return nil, classify(err)
	}
	g.metrics.RecordTiming(metrics.OpEmbedding, duration)
	g.logger.Debug("embedding call complete", "texts", len(texts), "duration_ms", duration.Milliseconds())
	return vecs, nil
}

func validateVectors(vecs [][]float32, want int) error {
	if len(vecs) != want {
		return fmt.Errorf("%w: got %d vectors, want %d", ErrMalformedResponse, len(vecs), want)
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return fmt.Errorf("%w: empty vector at %d", ErrMalformedResponse, i)
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
