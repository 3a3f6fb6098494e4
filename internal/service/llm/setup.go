package llm

import (
	"log/slog"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/config"
)

// SetupProviders initializes the provider factory and registry for routing.
func SetupProviders(cfg *config.Config, logger *slog.Logger) *ProviderRegistry {
	registry := NewProviderRegistry(NewProviderFactory(cfg))

	if cfg.AnthropicAPIKey != "" {
		logger.Info("provider available", "name", "anthropic", "models", "claude-*")
	} else {
		logger.Warn("ANTHROPIC_API_KEY not set - Anthropic provider not available")
	}
	if cfg.OpenRouterAPIKey != "" {
		logger.Info("provider available", "name", "openrouter", "models", "openrouter/*")
	}
	logger.Info("provider available", "name", "lorem", "models", "lorem-*")

	return registry
}

// SetupStructured returns the JSON-mode / embedding client, or nil when no
// OpenAI-compatible key is configured. Callers treat nil as "model unavailable".
func SetupStructured(cfg *config.Config, logger *slog.Logger) *OpenAIClient {
	if cfg.OpenAIAPIKey == "" {
		logger.Warn("OPENAI_API_KEY not set - answer validation fails open and memory is disabled")
		return nil
	}
	return NewOpenAIClient(OpenAIOptions{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		EmbeddingModel: cfg.EmbeddingModel,
		Dimensions:     cfg.EmbeddingDimensions,
	}, logger)
}
