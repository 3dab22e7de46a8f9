package app

import (
	"context"
	"fmt"

	"github.com/rich7420/community-ai-agent-sub001/internal/config"
	"github.com/rich7420/community-ai-agent-sub001/internal/health"
)

// healthProbeText is embedded by the embedding check. It goes straight to the
// backend so a cached vector cannot hide an outage.
const healthProbeText = "community agent health check"

// HealthChecks returns one check per external dependency: the record store,
// the embedding backend, the chat model and the embedding cache.
func (a *App) HealthChecks() []health.Check {
	return []health.Check{
		{Name: "store", Run: a.checkStore},
		{Name: "embedding", Run: a.checkEmbedding},
		{Name: "llm", Run: a.checkLLM},
		{Name: "embedding_cache", Run: a.checkCache},
	}
}

// Health runs every check, each bounded by the request timeout.
func (a *App) Health(ctx context.Context) health.Report {
	return health.Run(ctx, a.Config.RequestTimeout, a.HealthChecks())
}

func (a *App) checkStore(ctx context.Context) (string, error) {
	n, err := a.Store.CountRecords(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d records", n), nil
}

func (a *App) checkEmbedding(ctx context.Context) (string, error) {
	vecs, err := a.Backend.EmbedTexts(ctx, []string{healthProbeText})
	if err != nil {
		return "", err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return "", fmt.Errorf("backend returned %d vectors", len(vecs))
	}
	if want := a.Config.EmbedDimension; want > 0 && len(vecs[0]) != want {
		return "", fmt.Errorf("dimension %d, store expects %d", len(vecs[0]), want)
	}
	return fmt.Sprintf("%s, %d dimensions", a.Backend.Model(), len(vecs[0])), nil
}

func (a *App) checkLLM(ctx context.Context) (string, error) {
	if a.Model == nil {
		return "", fmt.Errorf("no chat model loaded: %w", health.ErrDisabled)
	}
	if err := a.Model.Ping(ctx); err != nil {
		return "", err
	}
	return a.Model.Model(), nil
}

func (a *App) checkCache(ctx context.Context) (string, error) {
	if a.Config.EmbedCacheBackend == config.CacheBackendNone {
		return "", health.ErrDisabled
	}
	n, err := a.Cache.Len(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s, %d entries", a.Config.EmbedCacheBackend, n), nil
}
