package chat

import (
	"context"
	"strings"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain"
	chatModels "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	chatSvc "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/chat"
)

// ListThreads returns the user's threads, most recently updated first.
func (s *Service) ListThreads(ctx context.Context, userID string) ([]chatModels.Thread, error) {
	return s.Threads.ListThreads(ctx, userID)
}

// GetThread returns a thread with its full message history.
func (s *Service) GetThread(ctx context.Context, threadID, userID string) (*chatModels.ThreadWithMessages, error) {
	thread, err := s.Threads.GetThread(ctx, threadID, userID)
	if err != nil {
		return nil, err
	}
	messages, err := s.Messages.ListMessages(ctx, thread.ID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []chatModels.Message{}
	}
	return &chatModels.ThreadWithMessages{Thread: *thread, Messages: messages}, nil
}

// RenameThread sets a user-chosen title.
func (s *Service) RenameThread(ctx context.Context, threadID, userID string, req *chatSvc.UpdateThreadRequest) (*chatModels.Thread, error) {
	if err := req.Validate(); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}
	thread, err := s.Threads.GetThread(ctx, threadID, userID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if err := s.Threads.UpdateTitle(ctx, threadID, userID, title, true); err != nil {
		return nil, err
	}
	thread.Title = title
	thread.HasCustomTitle = true

	s.Logger.Info("thread renamed", "thread_id", threadID, "user_id", userID)
	return thread, nil
}

// DeleteThread removes a thread and its messages. An in-flight turn on the
// thread is interrupted first.
func (s *Service) DeleteThread(ctx context.Context, threadID, userID string) error {
	if _, err := s.Threads.GetThread(ctx, threadID, userID); err != nil {
		return err
	}
	if s.Turns != nil {
		if active := s.Turns.ActiveForThread(threadID); active != nil {
			active.Interrupt()
		}
	}
	if err := s.Threads.DeleteThread(ctx, threadID, userID); err != nil {
		return err
	}
	s.Logger.Info("thread deleted", "thread_id", threadID, "user_id", userID)
	return nil
}
