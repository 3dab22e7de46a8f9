package qa

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rich7420/community-ai-agent-sub001/internal/llm"
	"github.com/rich7420/community-ai-agent-sub001/internal/memstore"
	"github.com/rich7420/community-ai-agent-sub001/internal/metrics"
	"github.com/rich7420/community-ai-agent-sub001/internal/models"
	"github.com/rich7420/community-ai-agent-sub001/internal/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeRetriever struct {
	result retrieval.Result
	err    error
	calls  int
}

func (f *fakeRetriever) Retrieve(context.Context, string, models.Filter) (retrieval.Result, error) {
	f.calls++
	return f.result, f.err
}

type fakeGenerator struct {
	completion llm.Completion
	err        error
	calls      int
	lastPrompt string
}

func (f *fakeGenerator) Generate(_ context.Context, _, user string) (llm.Completion, error) {
	f.calls++
	f.lastPrompt = user
	return f.completion, f.err
}

func retrieved(ids ...string) retrieval.Result {
	records := make([]models.ScoredRecord, len(ids))
	for i, id := range ids {
		records[i] = models.ScoredRecord{
			StandardizedRecord: models.StandardizedRecord{
				ID:        id,
				Platform:  models.PlatformSlack,
				Content:   "content " + id,
				Embedding: []float32{1, 0},
			},
			Score: 0.9,
		}
	}
	kept, ctx := retrieval.Budget{Limit: 10000}.Fit(records)
	return retrieval.Result{Records: kept, Context: ctx, SourcesUsed: len(kept), Candidates: len(ids)}
}

func TestAnswerBlankQuestion(t *testing.T) {
	r := &fakeRetriever{}
	a := New(r, &fakeGenerator{}, Options{}, nil, nil)

	_, err := a.Answer(context.Background(), "  \t", models.Filter{})
	assert.ErrorIs(t, err, retrieval.ErrInvalidInput)
	assert.Zero(t, r.calls)
}

func TestAnswerOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		retriever   *fakeRetriever
		generator   *fakeGenerator
		wantAnswer  string
		wantOutcome models.Outcome
		wantSources int
		wantLLM     bool
	}{
		{
			name:        "answered",
			retriever:   &fakeRetriever{result: retrieved("a", "b")},
			generator:   &fakeGenerator{completion: llm.Completion{Text: "  Ozone meets Friday [1]. ", FinishReason: llm.FinishCompleted}},
			wantAnswer:  "Ozone meets Friday [1].",
			wantOutcome: models.OutcomeAnswered,
			wantSources: 2,
			wantLLM:     true,
		},
		{
			name:        "truncated",
			retriever:   &fakeRetriever{result: retrieved("a")},
			generator:   &fakeGenerator{completion: llm.Completion{Text: "partial", FinishReason: llm.FinishTruncated}},
			wantAnswer:  MsgTruncated,
			wantOutcome: models.OutcomeTruncated,
			wantSources: 1,
			wantLLM:     true,
		},
		{
			name:        "empty",
			retriever:   &fakeRetriever{result: retrieved("a")},
			generator:   &fakeGenerator{completion: llm.Completion{Text: "  \n"}},
			wantAnswer:  MsgEmpty,
			wantOutcome: models.OutcomeEmpty,
			wantSources: 1,
			wantLLM:     true,
		},
		{
			name:        "timeout",
			retriever:   &fakeRetriever{result: retrieved("a")},
			generator:   &fakeGenerator{err: fmt.Errorf("generate: %w", llm.ErrTimeout)},
			wantAnswer:  MsgTimeout,
			wantOutcome: models.OutcomeTimeout,
			wantSources: 1,
			wantLLM:     true,
		},
		{
			name:        "backend status",
			retriever:   &fakeRetriever{result: retrieved("a")},
			generator:   &fakeGenerator{err: fmt.Errorf("generate: %w", &llm.StatusError{Code: 503})},
			wantAnswer:  fmt.Sprintf(MsgBackendStatus, 503),
			wantOutcome: models.OutcomeBackendStatus,
			wantSources: 1,
			wantLLM:     true,
		},
		{
			name:        "transport",
			retriever:   &fakeRetriever{result: retrieved("a")},
			generator:   &fakeGenerator{err: fmt.Errorf("%w: %w", llm.ErrTransport, &url.Error{Op: "Post", Err: errors.New("refused")})},
			wantAnswer:  MsgFailed,
			wantOutcome: models.OutcomeFailed,
			wantSources: 1,
			wantLLM:     true,
		},
		{
			name:        "no context",
			retriever:   &fakeRetriever{result: retrieval.Result{}},
			generator:   &fakeGenerator{},
			wantAnswer:  MsgNoContext,
			wantOutcome: models.OutcomeNoContext,
		},
		{
			name:        "embedding unavailable",
			retriever:   &fakeRetriever{err: &retrieval.StageError{Stage: retrieval.StageEmbedded, Err: retrieval.ErrEmbeddingUnavailable}},
			generator:   &fakeGenerator{},
			wantAnswer:  MsgEmbeddingUnavailable,
			wantOutcome: models.OutcomeNoEmbedding,
		},
		{
			name:        "store unavailable",
			retriever:   &fakeRetriever{err: &retrieval.StageError{Stage: retrieval.StageRetrieved, Err: retrieval.ErrStoreUnavailable}},
			generator:   &fakeGenerator{},
			wantAnswer:  MsgStoreUnavailable,
			wantOutcome: models.OutcomeStoreFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(tt.retriever, tt.generator, Options{}, nil, nil)

			res, err := a.Answer(context.Background(), "When is the Ozone meetup?", models.Filter{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantAnswer, res.Answer)
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			assert.Equal(t, tt.wantSources, res.SourcesUsed)
			assert.Len(t, res.ContextRecords, res.SourcesUsed)
			assert.Equal(t, tt.wantLLM, tt.generator.calls > 0)
			assert.Len(t, res.RequestID, 8)
			for _, r := range res.ContextRecords {
				assert.Nil(t, r.Embedding)
			}
		})
	}
}

func TestAnswerPromptCarriesContext(t *testing.T) {
	r := &fakeRetriever{result: retrieved("a")}
	g := &fakeGenerator{completion: llm.Completion{Text: "ok"}}
	a := New(r, g, Options{}, nil, nil)

	_, err := a.Answer(context.Background(), "What is Ozone?", models.Filter{})
	require.NoError(t, err)
	assert.Contains(t, g.lastPrompt, r.result.Context)
	assert.Contains(t, g.lastPrompt, "Question: What is Ozone?")
}

func TestAnswerCache(t *testing.T) {
	r := &fakeRetriever{result: retrieved("a")}
	g := &fakeGenerator{completion: llm.Completion{Text: "Friday"}}
	a := New(r, g, Options{}, nil, nil)
	ctx := context.Background()

	first, err := a.Answer(ctx, "When is the meetup?", models.Filter{})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := a.Answer(ctx, "  when IS the   meetup ", models.Filter{})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "Friday", second.Answer)
	assert.Equal(t, 1, second.SourcesUsed)
	assert.NotEqual(t, first.RequestID, second.RequestID)
	assert.Equal(t, 1, g.calls)
	assert.Equal(t, 1, a.CachedAnswers())

	_, err = a.Answer(ctx, "When is the meetup?", models.Filter{Platforms: []models.Platform{models.PlatformGitHub}})
	require.NoError(t, err)
	assert.Equal(t, 2, g.calls, "filter is part of the key")

	a.ClearCache()
	assert.Zero(t, a.CachedAnswers())
}

func TestCachedAnswerIsolatedFromCallers(t *testing.T) {
	result := retrieved("a")
	result.Records[0].Metadata = models.Metadata{"channel": "general"}
	g := &fakeGenerator{completion: llm.Completion{Text: "Friday"}}
	a := New(&fakeRetriever{result: result}, g, Options{}, nil, nil)
	ctx := context.Background()

	first, err := a.Answer(ctx, "When is the meetup?", models.Filter{})
	require.NoError(t, err)
	require.Len(t, first.ContextRecords, 1)
	first.ContextRecords[0].Content = "changed by first caller"
	first.ContextRecords[0].Metadata["channel"] = "random"

	second, err := a.Answer(ctx, "When is the meetup?", models.Filter{})
	require.NoError(t, err)
	require.True(t, second.Cached)
	assert.Equal(t, "content a", second.ContextRecords[0].Content)
	assert.Equal(t, "general", second.ContextRecords[0].Metadata.StringOr("channel", ""))
	second.ContextRecords[0].Metadata["channel"] = "random"

	third, err := a.Answer(ctx, "When is the meetup?", models.Filter{})
	require.NoError(t, err)
	assert.Equal(t, "content a", third.ContextRecords[0].Content)
	assert.Equal(t, "general", third.ContextRecords[0].Metadata.StringOr("channel", ""))
	assert.Equal(t, 1, g.calls)
}

func TestAnswerFailuresNotCached(t *testing.T) {
	r := &fakeRetriever{result: retrieved("a")}
	g := &fakeGenerator{err: llm.ErrTimeout}
	a := New(r, g, Options{}, nil, nil)
	ctx := context.Background()

	for range 2 {
		res, err := a.Answer(ctx, "q?", models.Filter{})
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeTimeout, res.Outcome)
	}
	assert.Equal(t, 2, g.calls)
	assert.Zero(t, a.CachedAnswers())
}

func TestAnswerCacheDisabled(t *testing.T) {
	g := &fakeGenerator{completion: llm.Completion{Text: "x"}}
	a := New(&fakeRetriever{result: retrieved("a")}, g, Options{CacheSize: -1}, nil, nil)

	for range 2 {
		res, err := a.Answer(context.Background(), "q", models.Filter{})
		require.NoError(t, err)
		assert.False(t, res.Cached)
	}
	assert.Equal(t, 2, g.calls)
}

func TestNormalizeQuestion(t *testing.T) {
	tests := []struct{ in, want string }{
		{"What is Ozone?", "what is ozone"},
		{"  what   IS\tozone ?? ", "what is ozone"},
		{"Ozone 是什麼？", "ozone 是什麼"},
		{"hello, world!", "hello world"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeQuestion(tt.in), "input %q", tt.in)
	}
}

// scriptedLLM is a langchaingo model returning one fixed choice.
type scriptedLLM struct {
	content    string
	stopReason string
	calls      int
}

func (s *scriptedLLM) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	s.calls++
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:    s.content,
		StopReason: s.stopReason,
	}}}, nil
}

func (s *scriptedLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s, prompt, options...)
}

type constEmbedder []float32

func (c constEmbedder) Generate(context.Context, string) ([]float32, error) {
	return c, nil
}

func unitVec(s float64) []float32 {
	return []float32{float32(s), float32(math.Sqrt(1 - s*s))}
}

func TestAnswerEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_, err := store.UpsertRecords(ctx, []models.StandardizedRecord{
		{ID: "s1", Platform: models.PlatformSlack, Author: "alice", Content: "X is a distributed storage system.", Timestamp: now,
			Metadata: models.Metadata{"channel_name": "dev"}, Embedding: unitVec(0.9)},
		{ID: "g1", Platform: models.PlatformGitHub, Content: "X roadmap discussion.", Timestamp: now,
			Metadata: models.Metadata{"repository": "org/x", "number": 12}, Embedding: unitVec(0.7)},
		{ID: "c1", Platform: models.PlatformCalendar, Content: "Unrelated event.", Timestamp: now,
			Metadata: models.Metadata{"summary": "Lunch"}, Embedding: unitVec(0.05)},
	})
	require.NoError(t, err)

	collector := metrics.NewCollector()
	engine := retrieval.NewEngine(constEmbedder{1, 0}, store, retrieval.Options{MinScore: 0.1}, nil, collector)

	t.Run("truncation", func(t *testing.T) {
		stub := &scriptedLLM{content: strings.Repeat("cut", 10), stopReason: "MAX_TOKENS"}
		model := llm.NewModelFromLLM(stub, "stub", llm.Options{MaxTokens: 16}, collector, nil)
		a := New(engine, model, Options{}, nil, collector)

		res, err := a.Answer(ctx, "What is X?", models.Filter{})
		require.NoError(t, err)
		assert.Equal(t, MsgTruncated, res.Answer)
		assert.Equal(t, models.OutcomeTruncated, res.Outcome)
		assert.Equal(t, 2, res.SourcesUsed)
	})

	t.Run("answered", func(t *testing.T) {
		stub := &scriptedLLM{content: "X is a storage system [1].", stopReason: "stop"}
		model := llm.NewModelFromLLM(stub, "stub", llm.Options{}, collector, nil)
		a := New(engine, model, Options{}, nil, collector)

		res, err := a.Answer(ctx, "What is X?", models.Filter{})
		require.NoError(t, err)
		assert.Equal(t, "X is a storage system [1].", res.Answer)
		assert.Equal(t, "s1", res.ContextRecords[0].ID)
		assert.Equal(t, "g1", res.ContextRecords[1].ID)
		assert.Equal(t, 1, stub.calls)
	})

	snap := collector.Snapshot()
	require.NotNil(t, snap.Answer)
	assert.Equal(t, int64(2), snap.Answer.Count)
	assert.Equal(t, int64(1), snap.Answer.Errors)
}
