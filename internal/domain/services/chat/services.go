package chat

import (
	"context"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
)

// AnswerValidator gates acceptance of an answer to a tool question.
// It never returns an error: model failures fail open.
type AnswerValidator interface {
	Validate(ctx context.Context, questionKey, answer string) chat.Verdict
}

// MemoryDispatcher hands a completed user message to background memory
// classification. It returns immediately.
type MemoryDispatcher interface {
	Dispatch(text, threadID, userID string)
}

// MemorySearcher retrieves a user's memories relevant to a query text.
type MemorySearcher interface {
	Search(ctx context.Context, userID, query string, k int) ([]chat.ScoredMemory, error)
}

// MemoryService is the user-facing memory surface.
type MemoryService interface {
	MemorySearcher
	Wipe(ctx context.Context, userID string) (int64, error)
}

// WorkflowSubmitter submits completed answers to the external document workflow.
type WorkflowSubmitter interface {
	// Submit returns a *domain.WorkflowError on failure. In webhook mode the
	// submission status is pending; in sync mode it carries the result.
	Submit(ctx context.Context, req *chat.WorkflowRequest) (*chat.WorkflowSubmission, error)
}

// WorkflowReconciler appends a workflow result to its thread exactly once.
type WorkflowReconciler interface {
	// Reconcile returns the result message and whether it was newly created.
	Reconcile(ctx context.Context, chatID string, result *chat.WorkflowResult) (*chat.Message, bool, error)
}

// ChatService runs conversation turns.
type ChatService interface {
	// HandleTurn returns domain.ErrEmptyInput for blank input before any
	// storage or network access.
	HandleTurn(ctx context.Context, userID string, req *TurnRequest) (*TurnResult, error)
}

// ThreadService manages a user's threads.
type ThreadService interface {
	ListThreads(ctx context.Context, userID string) ([]chat.Thread, error)
	GetThread(ctx context.Context, threadID, userID string) (*chat.ThreadWithMessages, error)
	RenameThread(ctx context.Context, threadID, userID string, req *UpdateThreadRequest) (*chat.Thread, error)
	DeleteThread(ctx context.Context, threadID, userID string) error
}

// WorkflowService exposes handoff status, accepts workflow callbacks and
// resubmits a failed handoff.
type WorkflowService interface {
	Status(ctx context.Context, chatID, userID string) (chat.WorkflowStatus, error)
	HandleCallback(ctx context.Context, cb *WorkflowCallback) (*chat.Message, bool, error)
	// Resubmit requires a completed tool flow whose last attempt failed
	// (or never ran); a pending or complete handoff is a ConflictError.
	Resubmit(ctx context.Context, chatID, userID string) (map[string]interface{}, error)
}
