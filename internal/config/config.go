// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProviderType identifies an embedding or LLM backend.
type ProviderType string

const (
	ProviderOllama    ProviderType = "ollama"
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderGoogle    ProviderType = "google"
	ProviderBedrock   ProviderType = "bedrock"
	ProviderVoyage    ProviderType = "voyage"
)

// Cache backends for the embedding cache.
const (
	CacheBackendFile   = "file"
	CacheBackendSQLite = "sqlite"
	CacheBackendNone   = "none"
)

// Budget units for the retrieval context budget.
const (
	BudgetUnitChars  = "chars"
	BudgetUnitTokens = "tokens"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Embedding backend
	EmbedProvider  ProviderType
	EmbedModel     string
	EmbedDimension int
	EmbedEndpoint  string

	// LLM backend
	LLMProvider    ProviderType
	LLMModel       string
	LLMTemperature float64
	LLMMaxTokens   int
	LLMStopWords   []string

	// Provider credentials and hosts
	OllamaHost      string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	GoogleAPIKey    string
	VoyageAPIKey    string
	AWSRegion       string

	// Embedding cache
	EmbedCacheBackend string
	EmbedCacheDir     string
	EmbedCacheTTL     time.Duration

	// Embedding generator
	EmbedBatchSize   int
	EmbedMaxTextLen  int
	EmbedBatchPause  time.Duration
	EmbedConcurrency int
	RateLimitBackoff time.Duration
	RateLimitRetries int
	RequestTimeout   time.Duration

	// Retrieval
	RetrievalTopK     int
	RetrievalMinScore float64
	ContextBudget     int
	// ContextBudgetUnit is "chars" (default) or "tokens". The tokens unit
	// loads a tiktoken encoding on first use, which downloads its BPE file
	// unless TIKTOKEN_CACHE_DIR already holds it; offline hosts should keep
	// chars or pre-populate that directory.
	ContextBudgetUnit string

	// Answer cache
	AnswerCacheSize int
	AnswerCacheTTL  time.Duration

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
// A .env file in the working directory is applied first; real environment
// variables take precedence over it.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "community"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "records"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		EmbedProvider:  ProviderType(strings.ToLower(getEnv("COMMUNITY_EMBED_PROVIDER", string(ProviderOllama)))),
		EmbedModel:     getEnv("COMMUNITY_EMBED_MODEL", "nomic-embed-text"),
		EmbedDimension: getEnvInt("COMMUNITY_EMBED_DIMENSION", 768),
		EmbedEndpoint:  getEnv("COMMUNITY_EMBED_ENDPOINT", ""),

		LLMProvider:    ProviderType(strings.ToLower(getEnv("COMMUNITY_LLM_PROVIDER", string(ProviderOllama)))),
		LLMModel:       getEnv("COMMUNITY_LLM_MODEL", "llama3.2"),
		LLMTemperature: getEnvFloat("COMMUNITY_LLM_TEMPERATURE", 0.7),
		LLMMaxTokens:   getEnvInt("COMMUNITY_LLM_MAX_TOKENS", 1024),
		LLMStopWords:   getEnvList("COMMUNITY_LLM_STOP_WORDS"),

		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		GoogleAPIKey:    getEnv("GOOGLE_API_KEY", ""),
		VoyageAPIKey:    getEnv("VOYAGE_API_KEY", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		EmbedCacheBackend: strings.ToLower(getEnv("COMMUNITY_EMBED_CACHE", CacheBackendFile)),
		EmbedCacheDir:     getEnv("COMMUNITY_EMBED_CACHE_DIR", "cache/embeddings"),
		EmbedCacheTTL:     getEnvDuration("COMMUNITY_EMBED_CACHE_TTL", 30*24*time.Hour),

		EmbedBatchSize:   getEnvInt("COMMUNITY_EMBED_BATCH_SIZE", 10),
		EmbedMaxTextLen:  getEnvInt("COMMUNITY_EMBED_MAX_TEXT_LEN", 4000),
		EmbedBatchPause:  getEnvDuration("COMMUNITY_EMBED_BATCH_PAUSE", 500*time.Millisecond),
		EmbedConcurrency: getEnvInt("COMMUNITY_EMBED_CONCURRENCY", 1),
		RateLimitBackoff: getEnvDuration("COMMUNITY_RATE_LIMIT_BACKOFF", 60*time.Second),
		RateLimitRetries: getEnvInt("COMMUNITY_RATE_LIMIT_RETRIES", 1),
		RequestTimeout:   getEnvDuration("COMMUNITY_REQUEST_TIMEOUT", 30*time.Second),

		RetrievalTopK:     getEnvInt("COMMUNITY_TOP_K", 5),
		RetrievalMinScore: getEnvFloat("COMMUNITY_MIN_SCORE", 0.1),
		ContextBudget:     getEnvInt("COMMUNITY_CONTEXT_BUDGET", 4000),
		ContextBudgetUnit: strings.ToLower(getEnv("COMMUNITY_CONTEXT_BUDGET_UNIT", BudgetUnitChars)),

		AnswerCacheSize: getEnvInt("COMMUNITY_ANSWER_CACHE_SIZE", 1000),
		AnswerCacheTTL:  getEnvDuration("COMMUNITY_ANSWER_CACHE_TTL", 24*time.Hour),

		LogFile:  getEnv("COMMUNITY_LOG_FILE", "/tmp/community-agent.log"),
		LogLevel: parseLogLevel(getEnv("COMMUNITY_LOG_LEVEL", "INFO")),
	}
}

// Validate reports configuration that cannot work, such as a provider
// selected without its API key.
func (c Config) Validate() error {
	var errs []error

	switch c.EmbedProvider {
	case ProviderOllama:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY required for openai embeddings"))
		}
	case ProviderGoogle:
		if c.GoogleAPIKey == "" {
			errs = append(errs, errors.New("GOOGLE_API_KEY required for google embeddings"))
		}
	case ProviderVoyage:
		if c.VoyageAPIKey == "" {
			errs = append(errs, errors.New("VOYAGE_API_KEY required for voyage embeddings"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported embedding provider: %s", c.EmbedProvider))
	}

	switch c.LLMProvider {
	case ProviderOllama, ProviderBedrock:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY required for openai LLM"))
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY required for anthropic LLM"))
		}
	case ProviderGoogle:
		if c.GoogleAPIKey == "" {
			errs = append(errs, errors.New("GOOGLE_API_KEY required for google LLM"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM provider: %s", c.LLMProvider))
	}

	switch c.EmbedCacheBackend {
	case CacheBackendFile, CacheBackendSQLite, CacheBackendNone:
	default:
		errs = append(errs, fmt.Errorf("unsupported embedding cache backend: %s", c.EmbedCacheBackend))
	}

	switch c.ContextBudgetUnit {
	case BudgetUnitChars, BudgetUnitTokens:
	default:
		errs = append(errs, fmt.Errorf("unsupported context budget unit: %s", c.ContextBudgetUnit))
	}

	if c.EmbedBatchSize <= 0 {
		errs = append(errs, errors.New("COMMUNITY_EMBED_BATCH_SIZE must be positive"))
	}
	if c.RetrievalTopK <= 0 {
		errs = append(errs, errors.New("COMMUNITY_TOP_K must be positive"))
	}
	if c.ContextBudget <= 0 {
		errs = append(errs, errors.New("COMMUNITY_CONTEXT_BUDGET must be positive"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		slog.Warn("invalid float in environment, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return f
}

// getEnvDuration accepts Go duration strings ("90s", "720h") or a bare
// number of seconds.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(val, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	slog.Warn("invalid duration in environment, using default", "key", key, "value", val, "default", defaultVal)
	return defaultVal
}

func getEnvList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
