package chat

import (
	"context"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
)

// ThreadRepository defines data access for threads
type ThreadRepository interface {
	// CreateThread inserts a thread and fills ID and timestamps
	CreateThread(ctx context.Context, thread *chat.Thread) error

	// GetThread retrieves a thread scoped to its owner
	// Returns domain.ErrNotFound if not found
	GetThread(ctx context.Context, threadID, userID string) (*chat.Thread, error)

	// GetThreadByIDOnly retrieves a thread without user scoping.
	// Used by the workflow callback, which is authenticated by shared secret.
	GetThreadByIDOnly(ctx context.Context, threadID string) (*chat.Thread, error)

	// ListThreads returns the user's threads, most recently updated first
	ListThreads(ctx context.Context, userID string) ([]chat.Thread, error)

	// UpdateTitle sets the title and the custom-title flag
	UpdateTitle(ctx context.Context, threadID, userID, title string, custom bool) error

	// MergeMetadata shallow-merges patch into the thread metadata in one statement.
	// If patch carries questionsAnswered, the merge only applies when the stored
	// count is not greater (progress never decreases); otherwise a ConflictError.
	// Returns domain.ErrNotFound if the thread does not exist.
	MergeMetadata(ctx context.Context, threadID string, patch map[string]interface{}) error

	// DeleteThread removes a thread and its messages
	DeleteThread(ctx context.Context, threadID, userID string) error
}
