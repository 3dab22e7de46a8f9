// Package app builds the running components from configuration. The CLI and
// the MCP server share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rich7420/community-ai-agent-sub001/internal/config"
	"github.com/rich7420/community-ai-agent-sub001/internal/db"
	"github.com/rich7420/community-ai-agent-sub001/internal/embedding"
	"github.com/rich7420/community-ai-agent-sub001/internal/llm"
	"github.com/rich7420/community-ai-agent-sub001/internal/memstore"
	"github.com/rich7420/community-ai-agent-sub001/internal/metrics"
	"github.com/rich7420/community-ai-agent-sub001/internal/qa"
	"github.com/rich7420/community-ai-agent-sub001/internal/retrieval"
	"github.com/rich7420/community-ai-agent-sub001/internal/service"
)

// SQLiteCacheFile is the database file name inside EmbedCacheDir.
const SQLiteCacheFile = "embeddings.db"

// Store is the record store contract the app needs.
type Store interface {
	retrieval.Store
	service.RecordStore
	CountRecords(ctx context.Context) (int, error)
}

var (
	_ Store = (*db.Client)(nil)
	_ Store = (*memstore.Store)(nil)
)

// Options selects which parts are built.
type Options struct {
	// RecordFiles, when set, are ingested into an in-memory store instead of
	// connecting to SurrealDB.
	RecordFiles []string
	// WithoutLLM skips the chat model; Assistant stays nil.
	WithoutLLM bool
}

// App holds the wired components.
type App struct {
	Config    config.Config
	Logger    *slog.Logger
	Metrics   *metrics.Collector
	Store     Store
	Cache     embedding.Cache
	Backend   embedding.Backend
	Embedder  *embedding.Generator
	Engine    *retrieval.Engine
	Model     *llm.Model
	Assistant *qa.Assistant
	Ingest    *service.IngestService
	Jobs      *service.JobManager

	closers []func(context.Context) error
}

// New wires every component from cfg. Close releases what New opened, also
// when New fails halfway.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (a *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a = &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewCollector(),
		Jobs:    service.NewJobManager(config.Component(logger, "jobs")),
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
			a = nil
		}
	}()

	cache, closeCache, err := OpenCache(ctx, cfg, logger)
	if err != nil {
		return a, err
	}
	a.Cache = cache
	if closeCache != nil {
		a.closers = append(a.closers, func(context.Context) error { return closeCache() })
	}

	backend, err := llm.NewEmbeddingBackend(ctx, cfg)
	if err != nil {
		return a, fmt.Errorf("init embedding backend: %w", err)
	}
	a.Backend = backend
	a.Embedder = embedding.NewGenerator(backend, cache, GeneratorOptions(cfg),
		embedding.WithLogger(config.Component(logger, "embedding")),
		embedding.WithMetrics(a.Metrics),
	)

	if len(opts.RecordFiles) > 0 {
		a.Store = memstore.New()
	} else {
		client, err := db.NewClient(ctx, DBConfig(cfg), config.Component(logger, "db"), a.Metrics)
		if err != nil {
			return a, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		if err := client.InitSchema(ctx, cfg.EmbedDimension); err != nil {
			return a, fmt.Errorf("initialize schema: %w", err)
		}
		a.Store = client
	}

	a.Ingest = service.NewIngestService(a.Store, a.Embedder, config.Component(logger, "ingest"))
	a.Ingest.OnUpserted(a.dropCachedAnswers)
	a.Engine = retrieval.NewEngine(a.Embedder, a.Store, RetrievalOptions(cfg), config.Component(logger, "retrieval"), a.Metrics)

	if len(opts.RecordFiles) > 0 {
		result, err := a.Ingest.IngestFiles(ctx, opts.RecordFiles, service.IngestOptions{})
		if err != nil {
			return a, fmt.Errorf("load records: %w", err)
		}
		logger.Info("loaded offline records", "upserted", result.Upserted, "failed", result.Failed)
	}

	if opts.WithoutLLM {
		return a, nil
	}

	a.Model, err = llm.NewModel(ctx, cfg, a.Metrics, config.Component(logger, "llm"))
	if err != nil {
		return a, fmt.Errorf("init model: %w", err)
	}
	a.Assistant = qa.New(a.Engine, a.Model, qa.Options{
		CacheSize: cfg.AnswerCacheSize,
		CacheTTL:  cfg.AnswerCacheTTL,
	}, config.Component(logger, "qa"), a.Metrics)

	return a, nil
}

// dropCachedAnswers empties the answer cache after an ingest stored records,
// so no cached answer outlives the context it was built from.
func (a *App) dropCachedAnswers(upserted int) {
	if a.Assistant == nil {
		return
	}
	dropped := a.Assistant.CachedAnswers()
	a.Assistant.ClearCache()
	if dropped > 0 {
		a.Logger.Info("cleared cached answers after ingest", "upserted", upserted, "answers", dropped)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenCache opens the embedding cache selected by cfg.EmbedCacheBackend. The
// returned close func is nil when nothing needs closing.
func OpenCache(ctx context.Context, cfg config.Config, logger *slog.Logger) (embedding.Cache, func() error, error) {
	copts := []embedding.CacheOption{embedding.WithCacheLogger(config.Component(logger, "embed_cache"))}

	switch cfg.EmbedCacheBackend {
	case config.CacheBackendNone:
		return embedding.NopCache{}, nil, nil
	case config.CacheBackendSQLite:
		if err := os.MkdirAll(cfg.EmbedCacheDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create cache dir: %w", err)
		}
		c, err := embedding.OpenSQLiteCache(ctx, filepath.Join(cfg.EmbedCacheDir, SQLiteCacheFile), cfg.EmbedCacheTTL, copts...)
		if err != nil {
			return nil, nil, fmt.Errorf("open embedding cache: %w", err)
		}
		return c, c.Close, nil
	default:
		c, err := embedding.NewFileCache(cfg.EmbedCacheDir, cfg.EmbedCacheTTL, copts...)
		if err != nil {
			return nil, nil, fmt.Errorf("open embedding cache: %w", err)
		}
		return c, nil, nil
	}
}

// GeneratorOptions maps cfg onto embedding generator options.
func GeneratorOptions(cfg config.Config) embedding.Options {
	return embedding.Options{
		BatchSize:   cfg.EmbedBatchSize,
		MaxTextLen:  cfg.EmbedMaxTextLen,
		BatchPause:  cfg.EmbedBatchPause,
		Concurrency: cfg.EmbedConcurrency,
		Timeout:     cfg.RequestTimeout,
		Retry: embedding.RetryPolicy{
			MaxRetries: cfg.RateLimitRetries,
			Backoff:    cfg.RateLimitBackoff,
		},
	}
}

// RetrievalOptions maps cfg onto retrieval engine options.
func RetrievalOptions(cfg config.Config) retrieval.Options {
	return retrieval.Options{
		TopK:     cfg.RetrievalTopK,
		MinScore: cfg.RetrievalMinScore,
		Budget: retrieval.Budget{
			Limit:      cfg.ContextBudget,
			Unit:       retrieval.BudgetUnit(cfg.ContextBudgetUnit),
			TokenModel: cfg.LLMModel,
		},
		StoreTimeout: cfg.RequestTimeout,
	}
}

// DBConfig maps cfg onto the SurrealDB client config.
func DBConfig(cfg config.Config) db.Config {
	return db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
		Timeout:   cfg.RequestTimeout,
	}
}
