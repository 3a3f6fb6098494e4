package llm

import (
	"fmt"

	llmprovider "github.com/haowjy/meridian-llm-go"
	"github.com/haowjy/meridian-llm-go/providers/anthropic"
	"github.com/haowjy/meridian-llm-go/providers/lorem"
	"github.com/haowjy/meridian-llm-go/providers/openrouter"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/config"
)

// ProviderFactory creates library provider instances from configuration
type ProviderFactory struct {
	config *config.Config
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(cfg *config.Config) *ProviderFactory {
	return &ProviderFactory{
		config: cfg,
	}
}

// GetProvider returns a provider instance for the given provider name.
//
// Supported providers:
//   - "anthropic" - Claude models via Anthropic API
//   - "openrouter" - Any model routed through OpenRouter
//   - "lorem" - Mock provider for local development (no API key required)
func (f *ProviderFactory) GetProvider(providerName string) (llmprovider.Provider, error) {
	switch providerName {
	case "anthropic":
		if f.config.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
		provider, err := anthropic.NewProvider(f.config.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create Anthropic provider: %w", err)
		}
		return provider, nil

	case "openrouter":
		if f.config.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY environment variable not set")
		}
		provider, err := openrouter.NewProvider(f.config.OpenRouterAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenRouter provider: %w", err)
		}
		return provider, nil

	case "lorem":
		return lorem.NewProvider(), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerName)
	}
}
