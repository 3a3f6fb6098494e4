package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port            string
	Environment     string
	SupabaseURL     string
	SupabaseDBURL   string
	SupabaseJWKSURL string // Constructed from SupabaseURL + /auth/v1/.well-known/jwks.json
	CORSOrigins     string
	TablePrefix     string
	AutoMigrate     bool // create tables on startup
	// Generation (streaming) providers
	AnthropicAPIKey  string
	OpenRouterAPIKey string
	DefaultProvider  string
	DefaultModel     string
	// Structured calls and embeddings (OpenAI-compatible endpoint)
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	ValidationModel     string
	ClassifierModel     string
	EmbeddingModel      string
	EmbeddingDimensions int
	// External document workflow
	WorkflowURL            string
	WorkflowMode           string // "webhook" or "sync"
	WorkflowTimeout        time.Duration
	WorkflowCallbackSecret string
	// Turn pipeline limits
	StreamStallTimeout time.Duration
	RateLimitRPS       float64
	RateLimitBurst     int
	MemoryWorkers      int64
	// Logging: when LogDir is set, logs are also written to a
	// timestamped file there and only the newest LogMaxFiles are kept.
	LogDir      string
	LogMaxFiles int
	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)
	supabaseURL := getEnv("SUPABASE_URL", "")

	// Construct JWKS URL from Supabase URL
	jwksURL := supabaseURL + "/auth/v1/.well-known/jwks.json"

	return &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     env,
		SupabaseURL:     supabaseURL,
		SupabaseDBURL:   getEnv("SUPABASE_DB_URL", ""),
		SupabaseJWKSURL: jwksURL,
		CORSOrigins:     getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:     tablePrefix,
		AutoMigrate:     getEnv("AUTO_MIGRATE", "false") == "true",

		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		DefaultProvider:  getEnv("DEFAULT_PROVIDER", "anthropic"),
		DefaultModel:     getEnv("DEFAULT_MODEL", "claude-haiku-4-5-20251001"),

		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", ""),
		ValidationModel:     getEnv("VALIDATION_MODEL", "gpt-4o-mini"),
		ClassifierModel:     getEnv("CLASSIFIER_MODEL", "gpt-4o-mini"),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimensions: getEnvInt("EMBEDDING_DIMENSIONS", 1536),

		WorkflowURL:            getEnv("WORKFLOW_URL", ""),
		WorkflowMode:           getEnv("WORKFLOW_MODE", "webhook"),
		WorkflowTimeout:        getEnvDuration("WORKFLOW_TIMEOUT", 120*time.Second),
		WorkflowCallbackSecret: getEnv("WORKFLOW_CALLBACK_SECRET", ""),

		StreamStallTimeout: getEnvDuration("STREAM_STALL_TIMEOUT", 60*time.Second),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 1),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 5),
		MemoryWorkers:      int64(getEnvInt("MEMORY_WORKERS", 4)),

		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getEnvInt("LOG_MAX_FILES", 10),

		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("90s", "2m").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}
