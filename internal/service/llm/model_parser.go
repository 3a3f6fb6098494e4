package llm

import (
	"fmt"
	"strings"
)

// ModelInfo contains parsed provider and model information
type ModelInfo struct {
	Provider string // "anthropic", "openrouter", "lorem"
	Model    string // Model identifier for that provider
}

// ParseModel extracts the provider from a model string.
//
//   - "claude-haiku-4-5" → anthropic / claude-haiku-4-5
//   - "lorem-fast" → lorem / lorem-fast
//   - "openrouter/anthropic/claude-haiku-4-5" → openrouter / anthropic/claude-haiku-4-5
//
// A "/" splits on the first slash; otherwise the provider is inferred from the prefix.
func ParseModel(modelStr string) (*ModelInfo, error) {
	if modelStr == "" {
		return nil, fmt.Errorf("model string cannot be empty")
	}

	if provider, model, ok := strings.Cut(modelStr, "/"); ok {
		if provider == "" {
			return nil, fmt.Errorf("provider cannot be empty in model string: %s", modelStr)
		}
		if model == "" {
			return nil, fmt.Errorf("model cannot be empty in model string: %s", modelStr)
		}
		return &ModelInfo{Provider: provider, Model: model}, nil
	}

	provider := inferProvider(modelStr)
	if provider == "" {
		return nil, fmt.Errorf("unable to infer provider from model: %s", modelStr)
	}

	return &ModelInfo{Provider: provider, Model: modelStr}, nil
}

// inferProvider infers the provider from model name prefix
func inferProvider(model string) string {
	modelLower := strings.ToLower(model)

	switch {
	case strings.HasPrefix(modelLower, "claude-"):
		return "anthropic"
	case strings.HasPrefix(modelLower, "lorem-"):
		return "lorem"
	default:
		return ""
	}
}
