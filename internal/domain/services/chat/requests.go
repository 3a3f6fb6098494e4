package chat

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/config"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
)

// IncomingMessage is one message of the client's conversation view.
type IncomingMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnRequest is the body of POST /api/chat.
//
// Only the last user message is new input; the server's stored history is
// authoritative. The progress fields are accepted from clients that held
// tool state locally and only seed a thread that is created by this turn.
type TurnRequest struct {
	Messages           []IncomingMessage `json:"messages"`
	Tool               string            `json:"tool,omitempty"`
	ChatID             string            `json:"chatId,omitempty"`
	CurrentQuestionKey *string           `json:"currentQuestionKey,omitempty"`
	QuestionsAnswered  *int              `json:"questionsAnswered,omitempty"`
	CollectedAnswers   map[string]string `json:"collectedAnswers,omitempty"`
}

// Validate checks the request shape. Empty input is reported separately as
// domain.ErrEmptyInput.
func (r *TurnRequest) Validate() error {
	if err := validation.ValidateStruct(r,
		validation.Field(&r.Messages, validation.Required),
		validation.Field(&r.ChatID, validation.Length(0, config.MaxChatIDLength)),
		validation.Field(&r.QuestionsAnswered, validation.Min(0)),
	); err != nil {
		return err
	}
	if len(r.Input()) > config.MaxMessageLength {
		return validation.NewError("validation_message_too_long", "message is too long")
	}
	return nil
}

// Input returns the trimmed content of the last user message.
func (r *TurnRequest) Input() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == string(chat.RoleUser) {
			return strings.TrimSpace(r.Messages[i].Content)
		}
	}
	return ""
}

// DirectReply is a turn answered without streaming: a tool opener or a
// re-prompt after a rejected answer.
type DirectReply struct {
	Content            string `json:"content"`
	IsStreamed         bool   `json:"isStreamed"`
	ChatID             string `json:"chatId"`
	CurrentQuestionKey string `json:"currentQuestionKey,omitempty"`
	QuestionsAnswered  int    `json:"questionsAnswered"`
}

// TurnStream is a running generation the caller is subscribed to.
type TurnStream interface {
	TurnID() string
	Interrupt() bool
	RemoveClient(clientID string)
}

// TurnResult is the outcome of starting a turn: either Reply, or Stream
// with the subscribed Events channel.
type TurnResult struct {
	ChatID   string
	Reply    *DirectReply
	Stream   TurnStream
	Events   <-chan string
	ClientID string
}

// UpdateThreadRequest renames a thread.
type UpdateThreadRequest struct {
	Title string `json:"title"`
}

// Validate checks the rename request.
func (r *UpdateThreadRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, config.MaxChatTitleLength)),
	)
}

// WorkflowCallback is the body of POST /api/workflow/results. Older
// workflows send the payload as n8nData.
type WorkflowCallback struct {
	ChatID      string                 `json:"chatId"`
	AnswersData map[string]interface{} `json:"answersData,omitempty"`
	N8nData     map[string]interface{} `json:"n8nData,omitempty"`
	ChatHistory []IncomingMessage      `json:"chatHistory,omitempty"`
}

// Validate checks the callback has a chat id and a payload.
func (r *WorkflowCallback) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ChatID, validation.Required),
		validation.Field(&r.AnswersData, validation.When(r.N8nData == nil, validation.Required.Error("answersData or n8nData is required"))),
	)
}

// Payload returns whichever result payload was sent.
func (r *WorkflowCallback) Payload() map[string]interface{} {
	if r.AnswersData != nil {
		return r.AnswersData
	}
	return r.N8nData
}
