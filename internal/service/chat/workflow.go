package chat

import (
	"context"
	"errors"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain"
	chatModels "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	chatSvc "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/chat"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/workflow"
)

// Status reports the handoff status of a chat owned by userID. The in-memory
// status wins over the persisted one because it is written first.
func (s *Service) Status(ctx context.Context, chatID, userID string) (chatModels.WorkflowStatus, error) {
	thread, err := s.Threads.GetThread(ctx, chatID, userID)
	if err != nil {
		return "", err
	}
	if s.Statuses != nil {
		if status, ok := s.Statuses.Get(chatID); ok {
			return status, nil
		}
	}
	if v, ok := thread.Metadata[chatModels.MetaWorkflowStatus].(string); ok && v != "" {
		return chatModels.WorkflowStatus(v), nil
	}
	return "", &domain.NotFoundError{Message: "no workflow submitted for this chat"}
}

// Resubmit hands a completed tool flow to the workflow again after an earlier
// attempt failed. The request is rebuilt from the stored answers and history.
func (s *Service) Resubmit(ctx context.Context, chatID, userID string) (map[string]interface{}, error) {
	thread, err := s.Threads.GetThread(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if !thread.IsToolThread() {
		return nil, &domain.ValidationError{Message: "chat is not running a tool"}
	}
	history, err := s.Messages.ListMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	final := s.Tracker.Load(thread, history)
	if final.Tool == nil || !final.IsComplete() {
		return nil, &domain.ValidationError{Message: "tool answers are not complete yet"}
	}

	status, err := s.Status(ctx, chatID, userID)
	var notFound *domain.NotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return nil, err
	}
	switch status {
	case chatModels.WorkflowPending:
		return nil, &domain.ConflictError{Message: "a submission is already pending", ResourceType: "workflow", ResourceID: chatID}
	case chatModels.WorkflowComplete:
		return nil, &domain.ConflictError{Message: "the document was already generated", ResourceType: "workflow", ResourceID: chatID}
	}

	v, err, _ := s.resubmits.Do(chatID, func() (interface{}, error) {
		s.Logger.Info("resubmitting workflow", "chat_id", chatID, "previous_status", status)
		return s.submitWorkflow(ctx, chatID, final, conversationOf(history))
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]interface{}), nil
}

// HandleCallback records a result delivered by the workflow. Duplicate
// deliveries return the message created by the first one.
func (s *Service) HandleCallback(ctx context.Context, cb *chatSvc.WorkflowCallback) (*chatModels.Message, bool, error) {
	if err := cb.Validate(); err != nil {
		return nil, false, &domain.ValidationError{Message: err.Error()}
	}
	if s.Reconciler == nil {
		return nil, false, &domain.WorkflowError{Message: "document workflow is not configured", Code: domain.CodeWorkflowNotConfig}
	}

	result := workflow.ParseResult(cb.Payload())
	msg, created, err := s.Reconciler.Reconcile(ctx, cb.ChatID, result)
	if err != nil {
		return nil, false, err
	}

	s.Logger.Info("workflow callback handled",
		"chat_id", cb.ChatID,
		"success", result.Success,
		"created", created)
	return msg, created, nil
}
