package llm

import (
	"context"
)

// LLMProvider streams a chat completion from a language model provider.
// Implementations wrap the meridian-llm-go providers.
type LLMProvider interface {
	// StreamResponse starts generation and returns a channel of events.
	// The channel is closed after a terminal event (Metadata or Error).
	// Cancelling ctx stops upstream consumption.
	StreamResponse(ctx context.Context, req *GenerateRequest) (<-chan StreamEvent, error)

	// Name returns the provider name (e.g., "anthropic", "lorem")
	Name() string

	// SupportsModel returns true if the provider supports the given model.
	SupportsModel(model string) bool
}

// GenerateRequest contains the parameters for a generation request.
type GenerateRequest struct {
	// Messages is the conversation history, oldest first
	Messages []Message

	// Model is the model identifier (e.g., "claude-haiku-4-5-20251001")
	Model string

	// System is the system prompt for this turn
	System string
}

// Message is one plain-text conversation message.
type Message struct {
	// Role is either "user" or "assistant"
	Role    string
	Content string
}

// StreamEvent is one event of a provider stream. Exactly one of the fields is set.
type StreamEvent struct {
	// TextDelta is an increment of generated text, in generation order
	TextDelta string

	// Metadata marks successful completion
	Metadata *StreamMetadata

	// Error terminates the stream
	Error error
}

// StreamMetadata is reported when the provider finishes.
type StreamMetadata struct {
	Model        string
	InputTokens  int
	OutputTokens int
	StopReason   string
}

// StructuredCompleter makes a single JSON-mode completion and decodes the
// reply into out. Used for answer validation and memory classification.
type StructuredCompleter interface {
	CompleteJSON(ctx context.Context, model, system, user string, out interface{}) error
}

// Embedder computes an embedding vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
