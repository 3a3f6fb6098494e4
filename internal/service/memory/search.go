package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	chatRepo "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/repositories/chat"
	domainllm "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/llm"
)

const maxSearchResults = 20

// Searcher finds a user's memories closest to a query text.
type Searcher struct {
	embedder domainllm.Embedder
	memories chatRepo.MemoryRepository
}

// NewSearcher creates a searcher.
func NewSearcher(embedder domainllm.Embedder, memories chatRepo.MemoryRepository) *Searcher {
	return &Searcher{embedder: embedder, memories: memories}
}

// Search embeds query and returns up to k memories by cosine similarity.
func (s *Searcher) Search(ctx context.Context, userID, query string, k int) ([]chat.ScoredMemory, error) {
	if strings.TrimSpace(query) == "" {
		return []chat.ScoredMemory{}, nil
	}
	if k <= 0 || k > maxSearchResults {
		k = maxSearchResults
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.memories.SearchMemories(ctx, userID, vector, k)
}

// Wipe deletes every memory of a user and returns how many were removed.
func (s *Searcher) Wipe(ctx context.Context, userID string) (int64, error) {
	return s.memories.DeleteUserMemories(ctx, userID)
}

// FormatForPrompt renders memories as a system prompt section.
func FormatForPrompt(memories []chat.ScoredMemory) string {
	if len(memories) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Things you remember about this user from earlier conversations:")
	for _, m := range memories {
		fmt.Fprintf(&b, "\n- %s", m.Content)
	}
	return b.String()
}
