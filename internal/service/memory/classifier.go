// Package memory extracts long-lived memories from user messages and
// retrieves them for prompt enrichment.
package memory

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	chatRepo "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/repositories/chat"
	domainllm "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/llm"
)

const classifierPrompt = `You decide whether a message from a coaching client contains something worth remembering about them for future conversations.
Worth remembering: facts about their business, clients, offers, goals, preferences, constraints, and notable events or results.
Not worth remembering: greetings, thanks, small talk, questions with no personal information, and one-word replies.
Reply with a JSON object: {"should_write_memory": boolean, "memory_type": "episodic" | "fact" | "preference" | "artefact"}.`

type classification struct {
	ShouldWrite bool   `json:"should_write_memory"`
	MemoryType  string `json:"memory_type"`
}

// Classifier decides per message whether to store a memory, and stores it.
type Classifier struct {
	completer domainllm.StructuredCompleter
	embedder  domainllm.Embedder
	memories  chatRepo.MemoryRepository
	model     string
	logger    *slog.Logger
}

// NewClassifier creates a classifier.
func NewClassifier(
	completer domainllm.StructuredCompleter,
	embedder domainllm.Embedder,
	memories chatRepo.MemoryRepository,
	model string,
	logger *slog.Logger,
) *Classifier {
	return &Classifier{
		completer: completer,
		embedder:  embedder,
		memories:  memories,
		model:     model,
		logger:    logger,
	}
}

// Process classifies text and persists it as a memory when the model says so.
// It is best effort: failures are logged and never returned.
func (c *Classifier) Process(ctx context.Context, text, threadID, userID string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	logger := c.logger.With("thread_id", threadID, "user_id", userID)

	var verdict classification
	if err := c.completer.CompleteJSON(ctx, c.model, classifierPrompt, text, &verdict); err != nil {
		logger.Warn("memory classification failed", "error", err)
		return
	}
	if !verdict.ShouldWrite {
		logger.Debug("message not memorable")
		return
	}

	memoryType := chat.MemoryType(strings.TrimSpace(verdict.MemoryType))
	if memoryType == "" {
		memoryType = chat.MemoryEpisodic
	}

	embedding, err := c.embedder.Embed(ctx, text)
	if err != nil {
		logger.Warn("memory embedding failed", "error", err)
		return
	}

	memory := &chat.Memory{
		UserID:    userID,
		ThreadID:  threadID,
		Content:   text,
		Type:      memoryType,
		Embedding: embedding,
	}
	if err := c.memories.CreateMemory(ctx, memory); err != nil {
		logger.Warn("memory insert failed", "error", err)
		return
	}

	logger.Info("memory stored", "memory_id", memory.ID, "memory_type", memoryType)
}
