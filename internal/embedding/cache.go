package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// DefaultCacheTTL is how long a cached vector stays valid.
const DefaultCacheTTL = 30 * 24 * time.Hour

// Cache maps (text, model) to a vector.
//
// Read and write failures are logged and reported as a miss; they never
// reach the caller. Concurrent writers to one key are last-writer-wins,
// which is safe because the value for a key never changes.
type Cache interface {
	Get(ctx context.Context, text, model string) ([]float32, bool)
	Put(ctx context.Context, text, model string, vec []float32)
	// Purge removes entries created before cutoff and returns how many.
	Purge(ctx context.Context, cutoff time.Time) (int, error)
	// Len returns the number of stored entries, expired ones included.
	Len(ctx context.Context) (int, error)
}

// CacheKey returns the fixed-length content address for (text, model).
func CacheKey(text, model string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// cacheEntry is the persisted form of one vector.
type cacheEntry struct {
	Text      string    `json:"text"`
	Model     string    `json:"model"`
	Embedding []float32 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
}

type cacheOptions struct {
	now    func() time.Time
	logger *slog.Logger
}

// CacheOption configures a cache implementation.
type CacheOption func(*cacheOptions)

// WithClock replaces time.Now, letting tests age entries.
func WithClock(now func() time.Time) CacheOption {
	return func(o *cacheOptions) { o.now = now }
}

// WithCacheLogger sets the logger used for downgraded I/O failures.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(o *cacheOptions) { o.logger = logger }
}

func buildCacheOptions(opts []CacheOption) cacheOptions {
	o := cacheOptions{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

func expired(createdAt, now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(createdAt) > ttl
}

// NopCache stores nothing.
type NopCache struct{}

func (NopCache) Get(context.Context, string, string) ([]float32, bool) { return nil, false }
func (NopCache) Put(context.Context, string, string, []float32)      {}
func (NopCache) Purge(context.Context, time.Time) (int, error)       { return 0, nil }
func (NopCache) Len(context.Context) (int, error)                    { return 0, nil }
