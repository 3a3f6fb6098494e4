package adapters

import (
	"context"

	llmprovider "github.com/haowjy/meridian-llm-go"

	domainllm "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/llm"
)

// ProviderAdapter wraps any meridian-llm-go provider (anthropic, openrouter, lorem)
// and implements the backend's LLMProvider interface.
type ProviderAdapter struct {
	provider llmprovider.Provider
}

// NewProviderAdapter creates an adapter from an existing library provider.
func NewProviderAdapter(provider llmprovider.Provider) *ProviderAdapter {
	return &ProviderAdapter{provider: provider}
}

// Name returns the provider name.
func (a *ProviderAdapter) Name() string {
	return a.provider.Name().String()
}

// SupportsModel returns true if this provider supports the given model.
func (a *ProviderAdapter) SupportsModel(model string) bool {
	return a.provider.SupportsModel(model)
}

// StreamResponse starts a streaming generation and forwards text deltas.
// The returned channel closes when the library stream closes or ctx is done.
func (a *ProviderAdapter) StreamResponse(ctx context.Context, req *domainllm.GenerateRequest) (<-chan domainllm.StreamEvent, error) {
	libEventCh, err := a.provider.StreamResponse(ctx, convertToLibraryRequest(req))
	if err != nil {
		return nil, err
	}

	out := make(chan domainllm.StreamEvent)
	go func() {
		defer close(out)
		conv := newEventConverter()
		for libEvent := range libEventCh {
			event, ok := conv.convert(libEvent)
			if !ok {
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				// Drain so the library goroutine can exit
				for range libEventCh {
				}
				return
			}
		}
	}()

	return out, nil
}
