package llm

import (
	"fmt"
	"sync"

	domainllm "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/llm"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/llm/adapters"
)

// ProviderRegistry routes model strings to cached provider adapters.
type ProviderRegistry struct {
	factory *ProviderFactory
	cache   map[string]domainllm.LLMProvider
	mu      sync.RWMutex
}

// NewProviderRegistry creates a new provider registry.
func NewProviderRegistry(factory *ProviderFactory) *ProviderRegistry {
	return &ProviderRegistry{
		factory: factory,
		cache:   make(map[string]domainllm.LLMProvider),
	}
}

// GetProvider returns the adapter for the given provider name, creating and
// caching it on first use.
func (r *ProviderRegistry) GetProvider(provider string) (domainllm.LLMProvider, error) {
	if provider == "" {
		return nil, fmt.Errorf("provider cannot be empty")
	}

	r.mu.RLock()
	if cached, exists := r.cache[provider]; exists {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have created it while we waited for the lock
	if cached, exists := r.cache[provider]; exists {
		return cached, nil
	}

	libraryProvider, err := r.factory.GetProvider(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider '%s': %w", provider, err)
	}

	adapter := adapters.NewProviderAdapter(libraryProvider)
	r.cache[provider] = adapter

	return adapter, nil
}

// ForModel resolves a model string ("claude-...", "openrouter/x/y") to its
// provider adapter and the provider-local model id.
func (r *ProviderRegistry) ForModel(modelStr string) (domainllm.LLMProvider, string, error) {
	info, err := ParseModel(modelStr)
	if err != nil {
		return nil, "", err
	}
	provider, err := r.GetProvider(info.Provider)
	if err != nil {
		return nil, "", err
	}
	return provider, info.Model, nil
}
