package llm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/rich7420/community-ai-agent-sub001/internal/config"
	"github.com/rich7420/community-ai-agent-sub001/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// stubLLM is a minimal llms.Model that records its last call.
type stubLLM struct {
	response *llms.ContentResponse
	err      error
	delay    time.Duration

	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (s *stubLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	s.messages = messages
	for _, o := range options {
		o(&s.opts)
	}
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.response, s.err
}

func (s *stubLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s, prompt, options...)
}

func choice(content, stop string, info map[string]any) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        content,
		StopReason:     stop,
		GenerationInfo: info,
	}}}
}

func TestGenerateSendsMessagesAndOptions(t *testing.T) {
	stub := &stubLLM{response: choice("Hello!", "stop", nil)}
	m := NewModelFromLLM(stub, "test-model", Options{Temperature: 0.2, MaxTokens: 256, StopWords: []string{"END"}}, nil, nil)

	c, err := m.Generate(context.Background(), "be brief", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", c.Text)
	assert.Equal(t, FinishCompleted, c.FinishReason)

	require.Len(t, stub.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, stub.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, stub.messages[1].Role)
	assert.InDelta(t, 0.2, stub.opts.Temperature, 1e-9)
	assert.Equal(t, 256, stub.opts.MaxTokens)
	assert.Equal(t, []string{"END"}, stub.opts.StopWords)
	assert.Equal(t, "test-model", m.Model())
}

func TestNormalizeFinishReason(t *testing.T) {
	tests := []struct {
		raw  string
		want FinishReason
	}{
		{"stop", FinishCompleted},
		{"end_turn", FinishCompleted},
		{"", FinishCompleted},
		{"length", FinishTruncated},
		{"max_tokens", FinishTruncated},
		{"MAX_TOKENS", FinishTruncated},
		{"FinishReasonMaxTokens", FinishTruncated},
		{"FinishReasonStop", FinishCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeFinishReason(tt.raw))
		})
	}
}

func TestGenerateTruncated(t *testing.T) {
	stub := &stubLLM{response: choice("partial answ", "max_tokens", nil)}
	m := NewModelFromLLM(stub, "m", Options{}, nil, nil)

	c, err := m.Generate(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, FinishTruncated, c.FinishReason)
	assert.Equal(t, "max_tokens", c.RawFinishReason)
}

func TestGenerateNoChoices(t *testing.T) {
	stub := &stubLLM{response: &llms.ContentResponse{}}
	m := NewModelFromLLM(stub, "m", Options{}, nil, nil)

	c, err := m.Generate(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Empty(t, c.Text)
}

func TestGenerateTimeout(t *testing.T) {
	stub := &stubLLM{delay: time.Second}
	m := NewModelFromLLM(stub, "m", Options{Timeout: 20 * time.Millisecond}, nil, nil)

	_, err := m.Generate(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestGenerateRecordsUsage(t *testing.T) {
	collector := metrics.NewCollector()
	stub := &stubLLM{response: choice("ok", "stop", map[string]any{"PromptTokens": 120, "CompletionTokens": 30})}
	m := NewModelFromLLM(stub, "m", Options{}, collector, nil)

	c, err := m.Generate(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, 120, c.InputTokens)
	assert.Equal(t, 30, c.OutputTokens)

	snap := collector.Snapshot().LLMGenerate
	require.NotNil(t, snap)
	require.NotNil(t, snap.TotalInputTokens)
	assert.Equal(t, int64(120), *snap.TotalInputTokens)
}

func TestTokenUsageKeys(t *testing.T) {
	in, out := tokenUsage(map[string]any{"input_tokens": int32(7), "output_tokens": float64(3)})
	assert.Equal(t, 7, in)
	assert.Equal(t, 3, out)

	in, out = tokenUsage(nil)
	assert.Zero(t, in)
	assert.Zero(t, out)
}

func TestClassifyError(t *testing.T) {
	t.Run("deadline", func(t *testing.T) {
		assert.ErrorIs(t, classifyError(fmt.Errorf("call: %w", context.DeadlineExceeded)), ErrTimeout)
	})

	t.Run("transport", func(t *testing.T) {
		err := &url.Error{Op: "Post", URL: "http://localhost:11434", Err: errors.New("connection refused")}
		assert.ErrorIs(t, classifyError(err), ErrTransport)
	})

	statusCases := map[string]int{
		"API returned unexpected status code: 500":      500,
		"googleapi: Error 503: backend overloaded":       503,
		"anthropic: status code 401: invalid x-api-key": 401,
		"rate limit reached for requests":               429,
	}
	for msg, code := range statusCases {
		t.Run(msg, func(t *testing.T) {
			var se *StatusError
			require.ErrorAs(t, classifyError(errors.New(msg)), &se)
			assert.Equal(t, code, se.Code)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		err := errors.New("model refused")
		assert.Equal(t, err, classifyError(err))
	})
}

func TestNewModelUnsupportedProvider(t *testing.T) {
	_, err := NewModel(context.Background(), config.Config{LLMProvider: "watson"}, nil, nil)
	assert.ErrorContains(t, err, "unsupported LLM provider")
}

func TestNewModelMissingKey(t *testing.T) {
	_, err := NewModel(context.Background(), config.Config{LLMProvider: config.ProviderAnthropic}, nil, nil)
	assert.Error(t, err)
}

func TestNewEmbeddingBackendVoyage(t *testing.T) {
	backend, err := NewEmbeddingBackend(context.Background(), config.Config{
		EmbedProvider: config.ProviderVoyage,
		VoyageAPIKey:  "vk",
		EmbedModel:    "voyage-3-lite",
	})
	require.NoError(t, err)
	assert.Equal(t, "voyage-3-lite", backend.Model())
}

func TestNewEmbedderOllama(t *testing.T) {
	e, err := NewEmbedder(context.Background(), config.Config{
		EmbedProvider:  config.ProviderOllama,
		EmbedModel:     "nomic-embed-text",
		EmbedDimension: 768,
		OllamaHost:     "http://localhost:11434",
	})
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", e.Model())
	assert.Equal(t, 768, e.Dimension())
}

func TestNewEmbedderUnsupported(t *testing.T) {
	_, err := NewEmbedder(context.Background(), config.Config{EmbedProvider: "word2vec"})
	assert.ErrorContains(t, err, "unsupported embedding provider")
}

func TestPing(t *testing.T) {
	stub := &stubLLM{response: choice("OK", "length", nil)}
	m := NewModelFromLLM(stub, "test-model", Options{MaxTokens: 256}, metrics.NewCollector(), nil)

	require.NoError(t, m.Ping(context.Background()))
	assert.Equal(t, 1, stub.opts.MaxTokens)
	require.Len(t, stub.messages, 1)

	stub.err = &url.Error{Op: "Post", URL: "http://localhost:11434", Err: errors.New("connection refused")}
	err := m.Ping(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}
