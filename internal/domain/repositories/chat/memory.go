package chat

import (
	"context"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
)

// MemoryRepository stores embedded memories. Rows are only ever inserted or
// bulk-deleted per user.
type MemoryRepository interface {
	CreateMemory(ctx context.Context, memory *chat.Memory) error

	// SearchMemories returns up to k of the user's memories ranked by cosine similarity
	SearchMemories(ctx context.Context, userID string, vector []float32, k int) ([]chat.ScoredMemory, error)

	// DeleteUserMemories wipes every memory of a user and returns how many were removed
	DeleteUserMemories(ctx context.Context, userID string) (int64, error)
}
