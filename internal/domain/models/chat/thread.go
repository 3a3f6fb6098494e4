package chat

import (
	"time"
)

// Thread metadata keys. The metadata column is an opaque bag; these are the
// keys the orchestration layer reads and merges.
const (
	MetaQuestionsAnswered  = "questionsAnswered"
	MetaCollectedAnswers   = "collectedAnswers"
	MetaCurrentQuestionKey = "currentQuestionKey"
	MetaWorkflowStatus     = "workflowStatus"
	// MetaWorkflowAttempt counts workflow submissions for the thread.
	MetaWorkflowAttempt = "workflowAttempt"
)

// Thread is a persisted conversation session owned by one user.
// ToolID is nil for free-form chat.
type Thread struct {
	ID             string                 `json:"id" db:"id"`
	UserID         string                 `json:"user_id" db:"user_id"`
	ToolID         *string                `json:"tool_id,omitempty" db:"tool_id"`
	Title          string                 `json:"title" db:"title"`
	HasCustomTitle bool                   `json:"has_custom_title" db:"has_custom_title"`
	Metadata       map[string]interface{} `json:"metadata" db:"metadata"`
	CreatedAt      time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at" db:"updated_at"`
}

// IsToolThread reports whether the thread runs a guided tool flow.
func (t *Thread) IsToolThread() bool {
	return t.ToolID != nil && *t.ToolID != ""
}

// ThreadWithMessages is the thread detail view.
type ThreadWithMessages struct {
	Thread
	Messages []Message `json:"messages"`
}

// MetaInt reads a JSON number from a metadata bag. Values written in-process
// are ints; values read back from JSONB decode as float64.
func MetaInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
