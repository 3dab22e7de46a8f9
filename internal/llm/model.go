package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/rich7420/community-ai-agent-sub001/internal/config"
	"github.com/rich7420/community-ai-agent-sub001/internal/metrics"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// FinishReason is a provider-neutral finish signal.
type FinishReason string

const (
	FinishCompleted FinishReason = "completed"
	FinishTruncated FinishReason = "truncated"
)

// Completion is one generation result.
type Completion struct {
	Text         string
	FinishReason FinishReason
	// RawFinishReason is the provider's own value, kept for logs.
	RawFinishReason string
	InputTokens     int
	OutputTokens    int
}

// Options are the generation parameters sent with every call.
type Options struct {
	Temperature float64
	MaxTokens   int
	StopWords   []string
	Timeout     time.Duration
}

// Model wraps langchaingo LLM for text generation.
type Model struct {
	llm       llms.Model
	modelName string
	opts      Options
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewModel creates an LLM model based on configuration.
func NewModel(ctx context.Context, cfg config.Config, m *metrics.Collector, logger *slog.Logger) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		opts := []openai.Option{
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		model, err = openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderGoogle:
		if cfg.GoogleAPIKey == "" {
			return nil, fmt.Errorf("Google API key required")
		}
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.GoogleAPIKey),
			googleai.WithDefaultModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create google model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, awsErr := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if awsErr != nil {
			return nil, fmt.Errorf("load aws config: %w", awsErr)
		}
		model, err = bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return NewModelFromLLM(model, cfg.LLMModel, Options{
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		StopWords:   cfg.LLMStopWords,
		Timeout:     cfg.RequestTimeout,
	}, m, logger), nil
}

// NewModelFromLLM wraps an existing langchaingo model.
func NewModelFromLLM(model llms.Model, name string, opts Options, m *metrics.Collector, logger *slog.Logger) *Model {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{llm: model, modelName: name, opts: opts, metrics: m, logger: logger}
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// Generate runs one system+user exchange under the configured timeout.
// Errors are classified as ErrTimeout, ErrTransport, or *StatusError when
// the cause is recognizable.
func (m *Model) Generate(ctx context.Context, systemPrompt, userPrompt string) (Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	callOpts := []llms.CallOption{llms.WithTemperature(m.opts.Temperature)}
	if m.opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(m.opts.MaxTokens))
	}
	if len(m.opts.StopWords) > 0 {
		callOpts = append(callOpts, llms.WithStopWords(m.opts.StopWords))
	}

	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages, callOpts...)
	duration := time.Since(start)
	if err != nil {
		m.metrics.RecordError(metrics.OpLLMGenerate, duration)
		return Completion{}, fmt.Errorf("generate: %w", classifyError(err))
	}

	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		m.metrics.RecordLLMUsage(metrics.OpLLMGenerate, duration, 0, 0)
		return Completion{}, nil
	}

	choice := response.Choices[0]
	c := Completion{
		Text:            choice.Content,
		FinishReason:    normalizeFinishReason(choice.StopReason),
		RawFinishReason: choice.StopReason,
	}
	c.InputTokens, c.OutputTokens = tokenUsage(choice.GenerationInfo)
	m.metrics.RecordLLMUsage(metrics.OpLLMGenerate, duration, int64(c.InputTokens), int64(c.OutputTokens))

	m.logger.Debug("llm generate complete",
		"model", m.modelName,
		"finish_reason", choice.StopReason,
		"input_tokens", c.InputTokens,
		"output_tokens", c.OutputTokens,
		"duration_ms", duration.Milliseconds())
	return c, nil
}

// Ping asks the model for a single token to confirm the provider is
// reachable and the credentials work. It records no metrics.
func (m *Model) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	messages := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, "Reply with OK.")}
	if _, err := m.llm.GenerateContent(ctx, messages, llms.WithMaxTokens(1)); err != nil {
		return fmt.Errorf("ping: %w", classifyError(err))
	}
	return nil
}

// normalizeFinishReason folds provider spellings ("length", "max_tokens",
// "MAX_TOKENS", "FinishReasonMaxTokens") into FinishTruncated.
func normalizeFinishReason(raw string) FinishReason {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	folded := b.String()
	if folded == "length" || strings.Contains(folded, "maxtoken") || strings.Contains(folded, "maxoutputtoken") {
		return FinishTruncated
	}
	return FinishCompleted
}

// tokenUsage reads token counts from provider generation info. Key names
// differ per provider.
func tokenUsage(info map[string]any) (in, out int) {
	in = firstInt(info, "PromptTokens", "InputTokens", "input_tokens", "prompt_tokens")
	out = firstInt(info, "CompletionTokens", "OutputTokens", "output_tokens", "completion_tokens")
	return in, out
}

func firstInt(info map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
