package chat

import (
	"context"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
)

// MessageRepository defines data access for the append-only message log
type MessageRepository interface {
	// CreateMessage appends a message and fills ID and CreatedAt
	CreateMessage(ctx context.Context, msg *chat.Message) error

	// ListMessages returns a thread's messages in creation order
	ListMessages(ctx context.Context, threadID string) ([]chat.Message, error)

	// FindByMetadata returns the first message in the thread whose metadata
	// key equals value. Returns domain.ErrNotFound when none matches.
	FindByMetadata(ctx context.Context, threadID, key, value string) (*chat.Message, error)
}
