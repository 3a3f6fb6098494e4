package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient makes JSON-mode completions and embeddings against any
// OpenAI-compatible endpoint. It implements StructuredCompleter and Embedder.
type OpenAIClient struct {
	client         *openai.Client
	embeddingModel string
	dimensions     int
	logger         *slog.Logger
}

// OpenAIOptions configures an OpenAIClient.
type OpenAIOptions struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	Dimensions     int
}

// NewOpenAIClient creates a client. BaseURL is optional.
func NewOpenAIClient(opts OpenAIOptions, logger *slog.Logger) *OpenAIClient {
	clientConfig := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		clientConfig.BaseURL = opts.BaseURL
	}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(clientConfig),
		embeddingModel: opts.EmbeddingModel,
		dimensions:     opts.Dimensions,
		logger:         logger,
	}
}

// CompleteJSON sends a system + user prompt in JSON mode at temperature 0 and
// decodes the first choice into out.
func (c *OpenAIClient) CompleteJSON(ctx context.Context, model, system, user string, out interface{}) error {
	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	latency := time.Since(start)
	if err != nil {
		c.logger.Warn("structured completion failed",
			"model", model,
			"error", err,
			"latency_ms", latency.Milliseconds())
		return fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return errors.New("empty response from model")
	}

	content := stripCodeFence(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("decode model reply: %w", err)
	}

	c.logger.Debug("structured completion done",
		"model", model,
		"latency_ms", latency.Milliseconds(),
		"tokens", resp.Usage.TotalTokens)
	return nil
}

// Embed returns the embedding vector for text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("no text provided for embedding")
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(c.embeddingModel),
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("empty embedding response")
	}
	return resp.Data[0].Embedding, nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models add even in JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
