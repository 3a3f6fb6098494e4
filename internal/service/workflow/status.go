package workflow

import (
	"time"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/cache"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
)

const statusTTL = 24 * time.Hour

// StatusTracker remembers the handoff status of recent chats so clients can
// poll without reading the thread.
type StatusTracker struct {
	store cache.Store[chat.WorkflowStatus]
}

// NewStatusTracker creates a tracker over store.
func NewStatusTracker(store cache.Store[chat.WorkflowStatus]) *StatusTracker {
	return &StatusTracker{store: store}
}

// Set records the status of chatID.
func (t *StatusTracker) Set(chatID string, status chat.WorkflowStatus) {
	t.store.Set(chatID, status, statusTTL)
}

// Get returns the recorded status of chatID.
func (t *StatusTracker) Get(chatID string) (chat.WorkflowStatus, bool) {
	return t.store.Get(chatID)
}
