package chat

import (
	"fmt"
	"time"
)

// Role of a message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// Message metadata keys.
const (
	// MetaQuestionKey tags an accepted user answer with the question it answered.
	MetaQuestionKey = "questionKey"
	// MetaWorkflowResultFor marks the assistant message carrying the successful workflow result.
	MetaWorkflowResultFor = "workflowResultFor"
	// MetaWorkflowFailureFor marks the notice for one failed workflow attempt.
	MetaWorkflowFailureFor = "workflowFailureFor"
	// MetaDocumentURL is the artifact link carried by a workflow result message.
	MetaDocumentURL = "documentUrl"
)

// FailureKey identifies one workflow attempt of a thread.
func FailureKey(threadID string, attempt int) string {
	return fmt.Sprintf("%s#%d", threadID, attempt)
}

// Message is append-only; it is never mutated after creation.
type Message struct {
	ID        string                 `json:"id" db:"id"`
	ThreadID  string                 `json:"thread_id" db:"thread_id"`
	UserID    string                 `json:"user_id" db:"user_id"`
	Role      Role                   `json:"role" db:"role"`
	Content   string                 `json:"content" db:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// MetaString returns a string metadata value, or "" when absent.
func (m *Message) MetaString(key string) string {
	if m.Metadata == nil {
		return ""
	}
	s, _ := m.Metadata[key].(string)
	return s
}
