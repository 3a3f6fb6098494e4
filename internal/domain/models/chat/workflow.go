package chat

import "time"

// WorkflowStatus tracks a thread's handoff to the document workflow.
type WorkflowStatus string

const (
	WorkflowPending  WorkflowStatus = "pending"
	WorkflowComplete WorkflowStatus = "complete"
	WorkflowFailed   WorkflowStatus = "failed"
)

// ConversationEntry is one line of history sent to the workflow.
type ConversationEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// WorkflowRequest is the outbound submission payload, keyed by chat id.
type WorkflowRequest struct {
	ChatID       string              `json:"chatId"`
	ToolID       string              `json:"toolId,omitempty"`
	Answers      map[string]string   `json:"answers"`
	Conversation []ConversationEntry `json:"conversation"`
	Timestamp    time.Time           `json:"timestamp"`
}

// WorkflowResult is the outcome produced by the external workflow.
type WorkflowResult struct {
	Success     bool                   `json:"success"`
	DocumentURL string                 `json:"documentUrl,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Raw         map[string]interface{} `json:"raw,omitempty"`
}

// WorkflowSubmission describes what happened when a handoff was attempted.
type WorkflowSubmission struct {
	Status WorkflowStatus  `json:"status"`
	Result *WorkflowResult `json:"result,omitempty"`
}
