package embedding_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rich7420/community-ai-agent-sub001/internal/embedding"
	"github.com/rich7420/community-ai-agent-sub001/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend records calls and answers with respond, or a deterministic
// vector per text when respond is nil.
type fakeBackend struct {
	mu      sync.Mutex
	calls   [][]string
	respond func(call int, texts []string) ([][]float32, error)
}

func (f *fakeBackend) Model() string { return "fake-embed" }

func (f *fakeBackend) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	call := len(f.calls)
	f.calls = append(f.calls, append([]string(nil), texts...))
	f.mu.Unlock()

	if f.respond != nil {
		return f.respond(call, texts)
	}
	return vectorsFor(texts), nil
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func vectorFor(text string) []float32 {
	return []float32{float32(len(text)), 1}
}

func vectorsFor(texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vectorFor(t)
	}
	return out
}

func testOptions() embedding.Options {
	opts := embedding.DefaultOptions()
	opts.BatchPause = 0
	return opts
}

// noSleep records requested backoffs without waiting.
type noSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (n *noSleep) sleep(_ context.Context, d time.Duration) error {
	n.mu.Lock()
	n.waits = append(n.waits, d)
	n.mu.Unlock()
	return nil
}

func TestGenerateEmptyText(t *testing.T) {
	backend := &fakeBackend{}
	gen := embedding.NewGenerator(backend, nil, testOptions())

	for _, in := range []string{"", "   ", "\n\t"} {
		vec, err := gen.Generate(context.Background(), in)
		assert.ErrorIs(t, err, embedding.ErrEmptyText)
		assert.Nil(t, vec)
	}
	assert.Zero(t, backend.callCount(), "blank input never reaches the backend")
	assert.Zero(t, gen.Stats().CacheMisses)
}

func TestGenerateUsesCache(t *testing.T) {
	backend := &fakeBackend{}
	cache, err := embedding.NewFileCache(t.TempDir(), embedding.DefaultCacheTTL)
	require.NoError(t, err)
	gen := embedding.NewGenerator(backend, cache, testOptions())
	ctx := context.Background()

	first, err := gen.Generate(ctx, "  how do I join the meetup?  ")
	require.NoError(t, err)
	second, err := gen.Generate(ctx, "how do I join the meetup?")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.callCount(), "second call is served from cache")

	stats := gen.Stats()
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.TotalGenerated)
	assert.Equal(t, int64(1), stats.APICalls)
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
}

func TestHitRateWithoutRequests(t *testing.T) {
	gen := embedding.NewGenerator(&fakeBackend{}, nil, testOptions())
	assert.Equal(t, 0.0, gen.Stats().HitRate())
}

func TestGenerateBatchPreservesOrderAndBlanks(t *testing.T) {
	backend := &fakeBackend{}
	gen := embedding.NewGenerator(backend, nil, testOptions())

	texts := []string{"alpha", "", "beta", "   ", "gamma"}
	got := gen.GenerateBatch(context.Background(), texts)

	require.Len(t, got, len(texts))
	assert.Equal(t, vectorFor("alpha"), got[0])
	assert.Nil(t, got[1])
	assert.Equal(t, vectorFor("beta"), got[2])
	assert.Nil(t, got[3])
	assert.Equal(t, vectorFor("gamma"), got[4])

	require.Equal(t, 1, backend.callCount())
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, backend.calls[0], "blanks are filtered before the call")
}

func TestGenerateBatchLengthProperty(t *testing.T) {
	gen := embedding.NewGenerator(&fakeBackend{}, nil, testOptions())

	inputs := [][]string{
		nil,
		{},
		{""},
		{"", "", ""},
		{"a", "", "b", "", "", "c", "d", "", "e", "f", "g", "h", "i", "j", "", "k"},
	}
	for _, texts := range inputs {
		got := gen.GenerateBatch(context.Background(), texts)
		require.Len(t, got, len(texts))
		for i, txt := range texts {
			if strings.TrimSpace(txt) == "" {
				assert.Nil(t, got[i], "blank input %d must be nil", i)
			} else {
				assert.NotNil(t, got[i], "input %d must be embedded", i)
			}
		}
	}
}

func TestGenerateBatchChunksRequests(t *testing.T) {
	backend := &fakeBackend{}
	gen := embedding.NewGenerator(backend, nil, testOptions())

	texts := make([]string, 25)
	for i := range texts {
		texts[i] = fmt.Sprintf("message %d", i)
	}
	got := gen.GenerateBatch(context.Background(), texts)

	require.Len(t, got, 25)
	require.Equal(t, 3, backend.callCount())
	assert.Len(t, backend.calls[0], 10)
	assert.Len(t, backend.calls[1], 10)
	assert.Len(t, backend.calls[2], 5)
	assert.Equal(t, int64(25), gen.Stats().TotalGenerated)
}

func TestGenerateBatchPreprocesses(t *testing.T) {
	backend := &fakeBackend{}
	opts := testOptions()
	opts.MaxTextLen = 5
	gen := embedding.NewGenerator(backend, nil, opts)

	gen.GenerateBatch(context.Background(), []string{"  héllo wörld  ", "ok"})

	require.Equal(t, 1, backend.callCount())
	assert.Equal(t, []string{"héllo", "ok"}, backend.calls[0])
}

func TestGenerateBatchSkipsCachedTexts(t *testing.T) {
	backend := &fakeBackend{}
	cache, err := embedding.NewFileCache(t.TempDir(), embedding.DefaultCacheTTL)
	require.NoError(t, err)
	ctx := context.Background()
	cache.Put(ctx, "cached", "fake-embed", []float32{9, 9})

	gen := embedding.NewGenerator(backend, cache, testOptions())
	got := gen.GenerateBatch(ctx, []string{"fresh", "cached"})

	assert.Equal(t, []float32{9, 9}, got[1])
	assert.Equal(t, vectorFor("fresh"), got[0])
	require.Equal(t, 1, backend.callCount())
	assert.Equal(t, []string{"fresh"}, backend.calls[0])

	v, ok := cache.Get(ctx, "fresh", "fake-embed")
	require.True(t, ok, "new vectors are written back")
	assert.Equal(t, vectorFor("fresh"), v)
}

func TestRateLimitedTwiceFailsBatch(t *testing.T) {
	backend := &fakeBackend{respond: func(int, []string) ([][]float32, error) {
		return nil, embedding.ErrRateLimited
	}}
	sleeper := &noSleep{}
	gen := embedding.NewGenerator(backend, nil, testOptions(), embedding.WithSleep(sleeper.sleep))

	var got [][]float32
	require.NotPanics(t, func() {
		got = gen.GenerateBatch(context.Background(), []string{"one", "two", "three"})
	})

	require.Len(t, got, 3)
	for i := range got {
		assert.Nil(t, got[i])
	}
	stats := gen.Stats()
	assert.Equal(t, int64(2), stats.RateLimitHits)
	assert.Equal(t, int64(2), stats.APICalls)
	assert.Equal(t, int64(1), stats.Errors)
	assert.Equal(t, []time.Duration{embedding.DefaultBackoff}, sleeper.waits)
}

func TestRateLimitedOnceThenRecovers(t *testing.T) {
	backend := &fakeBackend{respond: func(call int, texts []string) ([][]float32, error) {
		if call == 0 {
			return nil, errors.New("googleapi: Error 429: Resource has been exhausted")
		}
		return vectorsFor(texts), nil
	}}
	sleeper := &noSleep{}
	gen := embedding.NewGenerator(backend, nil, testOptions(), embedding.WithSleep(sleeper.sleep))

	got := gen.GenerateBatch(context.Background(), []string{"one", "two"})

	assert.Equal(t, vectorsFor([]string{"one", "two"}), got)
	assert.Equal(t, int64(1), gen.Stats().RateLimitHits)
	assert.Zero(t, gen.Stats().Errors)
	assert.Equal(t, backend.calls[0], backend.calls[1], "the same batch is retried")
}

func TestRetryPolicyZeroDoesNotRetry(t *testing.T) {
	backend := &fakeBackend{respond: func(int, []string) ([][]float32, error) {
		return nil, embedding.ErrRateLimited
	}}
	opts := testOptions()
	opts.Retry = embedding.RetryPolicy{}
	gen := embedding.NewGenerator(backend, nil, opts)

	_, err := gen.Generate(context.Background(), "hello")
	assert.ErrorIs(t, err, embedding.ErrRateLimited)
	assert.Equal(t, 1, backend.callCount())
}

func TestFailedChunkIsIsolated(t *testing.T) {
	backend := &fakeBackend{respond: func(call int, texts []string) ([][]float32, error) {
		if call == 1 {
			return nil, &embedding.StatusError{Code: 503}
		}
		return vectorsFor(texts), nil
	}}
	opts := testOptions()
	opts.BatchSize = 2
	gen := embedding.NewGenerator(backend, nil, opts)

	got := gen.GenerateBatch(context.Background(), []string{"a", "b", "c", "d", "e"})

	require.Len(t, got, 5)
	assert.NotNil(t, got[0])
	assert.NotNil(t, got[1])
	assert.Nil(t, got[2], "second chunk failed")
	assert.Nil(t, got[3], "second chunk failed")
	assert.NotNil(t, got[4], "later chunks still run")
	assert.Equal(t, int64(1), gen.Stats().Errors)
	assert.Zero(t, gen.Stats().RateLimitHits)
	assert.Equal(t, 3, backend.callCount(), "non-429 failures are not retried")
}

func TestMalformedResponseFailsChunk(t *testing.T) {
	backend := &fakeBackend{respond: func(int, []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}}
	gen := embedding.NewGenerator(backend, nil, testOptions())

	got := gen.GenerateBatch(context.Background(), []string{"a", "b"})
	assert.Equal(t, [][]float32{nil, nil}, got)
	assert.Equal(t, int64(1), gen.Stats().Errors)
}

func TestBackendTimeout(t *testing.T) {
	backend := &fakeBackend{respond: func(int, []string) ([][]float32, error) {
		return nil, fmt.Errorf("post: %w", context.DeadlineExceeded)
	}}
	gen := embedding.NewGenerator(backend, nil, testOptions())

	_, err := gen.Generate(context.Background(), "slow")
	assert.ErrorIs(t, err, embedding.ErrTimeout)
}

func TestConcurrentChunksPreserveOrder(t *testing.T) {
	backend := &fakeBackend{respond: func(call int, texts []string) ([][]float32, error) {
		// Earlier chunks finish last.
		time.Sleep(time.Duration(5-call%5) * time.Millisecond)
		return vectorsFor(texts), nil
	}}
	opts := testOptions()
	opts.BatchSize = 3
	opts.Concurrency = 4
	gen := embedding.NewGenerator(backend, nil, opts)

	texts := make([]string, 20)
	for i := range texts {
		texts[i] = strings.Repeat("x", i+1)
		if i%7 == 3 {
			texts[i] = " "
		}
	}
	got := gen.GenerateBatch(context.Background(), texts)

	require.Len(t, got, len(texts))
	for i, txt := range texts {
		if strings.TrimSpace(txt) == "" {
			assert.Nil(t, got[i])
			continue
		}
		assert.Equal(t, vectorFor(txt), got[i], "slot %d", i)
	}
}

func TestGeneratorRecordsMetrics(t *testing.T) {
	collector := metrics.NewCollector()
	backend := &fakeBackend{respond: func(call int, texts []string) ([][]float32, error) {
		if call == 0 {
			return nil, &embedding.StatusError{Code: 500}
		}
		return vectorsFor(texts), nil
	}}
	gen := embedding.NewGenerator(backend, nil, testOptions(), embedding.WithMetrics(collector))

	_, err := gen.Generate(context.Background(), "first")
	require.Error(t, err)
	_, err = gen.Generate(context.Background(), "second")
	require.NoError(t, err)

	snap := collector.Snapshot().Embedding
	require.NotNil(t, snap)
	assert.Equal(t, int64(2), snap.Count)
	assert.Equal(t, int64(1), snap.Errors)
}

func TestGeneratorSimilarityDelegates(t *testing.T) {
	gen := embedding.NewGenerator(&fakeBackend{}, nil, testOptions())
	assert.InDelta(t, 1.0, gen.Similarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
}
