package chat

import (
	"context"
	"time"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain"
	chatModels "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	domainllm "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/llm"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/progress"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/streaming"
)

// finalizer returns the hook that commits a successfully generated turn:
// both messages, the advanced progress, memory classification and, when the
// last question was just answered, the workflow handoff.
func (s *Service) finalizer(tc *turnContext, answered *answeredTurn) streaming.FinalizeFunc {
	return func(ctx context.Context, content string, meta *domainllm.StreamMetadata) (map[string]interface{}, error) {
		answeredKey := ""
		final := tc.current
		if answered != nil {
			answeredKey = answered.key
			final = answered.next
		}

		replyMeta := map[string]interface{}{}
		if meta != nil && meta.Model != "" {
			replyMeta["model"] = meta.Model
		}

		var assistant *chatModels.Message
		err := s.Tx.ExecTx(ctx, func(ctx context.Context) error {
			var err error
			assistant, err = s.appendMessages(ctx, tc, answeredKey, content, replyMeta)
			if err != nil {
				return err
			}
			if answered == nil {
				return nil
			}
			return s.Threads.MergeMetadata(ctx, tc.thread.ID, final.MetadataPatch())
		})
		if err != nil {
			return nil, err
		}

		s.remember(tc)

		payload := map[string]interface{}{
			"messageId": assistant.ID,
		}
		if final.Tool != nil {
			payload["questionsAnswered"] = final.QuestionsAnswered
			payload["isComplete"] = final.IsComplete()
			if final.CurrentQuestionKey != "" {
				payload["currentQuestionKey"] = final.CurrentQuestionKey
			}
		}

		if answered != nil && final.JustCompleted {
			workflow, err := s.handoff(ctx, tc, final, content)
			if err != nil {
				return nil, err
			}
			payload["workflow"] = workflow
		}
		return payload, nil
	}
}

// handoff submits the completed answers. Webhook submissions are pending
// until the callback arrives; sync results are reconciled immediately.
func (s *Service) handoff(ctx context.Context, tc *turnContext, final progress.Progress, reply string) (map[string]interface{}, error) {
	conversation := conversationOf(tc.history,
		chatModels.ConversationEntry{Role: string(chatModels.RoleUser), Content: tc.input},
		chatModels.ConversationEntry{Role: string(chatModels.RoleAssistant), Content: reply},
	)
	return s.submitWorkflow(ctx, tc.thread.ID, final, conversation)
}

// conversationOf flattens the user and assistant messages of history,
// followed by extra.
func conversationOf(history []chatModels.Message, extra ...chatModels.ConversationEntry) []chatModels.ConversationEntry {
	conversation := make([]chatModels.ConversationEntry, 0, len(history)+len(extra))
	for _, m := range history {
		if m.Role == chatModels.RoleUser || m.Role == chatModels.RoleAssistant {
			conversation = append(conversation, chatModels.ConversationEntry{Role: string(m.Role), Content: m.Content})
		}
	}
	return append(conversation, extra...)
}

// submitWorkflow starts a new submission attempt for a completed tool flow.
func (s *Service) submitWorkflow(ctx context.Context, chatID string, final progress.Progress, conversation []chatModels.ConversationEntry) (map[string]interface{}, error) {
	if s.Workflow == nil {
		return nil, &domain.WorkflowError{Message: "document workflow is not configured", Code: domain.CodeWorkflowNotConfig}
	}

	answers := make(map[string]string, len(final.CollectedAnswers))
	for k, v := range final.CollectedAnswers {
		answers[k] = v
	}
	req := &chatModels.WorkflowRequest{
		ChatID:       chatID,
		ToolID:       string(final.Tool.Kind()),
		Answers:      answers,
		Conversation: conversation,
		Timestamp:    time.Now().UTC(),
	}

	attempt := s.beginAttempt(ctx, chatID)
	logger := s.Logger.With("thread_id", chatID, "attempt", attempt)

	submitCtx, cancel := context.WithTimeout(ctx, s.opts.WorkflowTimeout)
	defer cancel()
	submission, err := s.Workflow.Submit(submitCtx, req)
	if err != nil {
		logger.Error("workflow submission failed", "error", err, "code", domain.ErrorCode(err))
		s.setWorkflowStatus(ctx, chatID, chatModels.WorkflowFailed)
		return nil, err
	}

	out := map[string]interface{}{"status": submission.Status}
	if submission.Result == nil {
		logger.Info("workflow submission accepted, awaiting callback")
		return out, nil
	}

	msg, _, err := s.Reconciler.Reconcile(ctx, chatID, submission.Result)
	if err != nil {
		return nil, err
	}
	out["messageId"] = msg.ID
	out["content"] = msg.Content
	if submission.Result.DocumentURL != "" {
		out["documentUrl"] = submission.Result.DocumentURL
	}
	return out, nil
}

// beginAttempt marks the chat pending and bumps its attempt counter, so a
// failure notice of this attempt is told apart from earlier ones.
func (s *Service) beginAttempt(ctx context.Context, chatID string) int {
	attempt := 1
	if thread, err := s.Threads.GetThreadByIDOnly(ctx, chatID); err == nil {
		if n, ok := chatModels.MetaInt(thread.Metadata[chatModels.MetaWorkflowAttempt]); ok {
			attempt = n + 1
		}
	}

	if s.Statuses != nil {
		s.Statuses.Set(chatID, chatModels.WorkflowPending)
	}
	if err := s.Threads.MergeMetadata(ctx, chatID, map[string]interface{}{
		chatModels.MetaWorkflowStatus:  string(chatModels.WorkflowPending),
		chatModels.MetaWorkflowAttempt: attempt,
	}); err != nil {
		s.Logger.Warn("failed to record workflow attempt", "thread_id", chatID, "attempt", attempt, "error", err)
	}
	return attempt
}

func (s *Service) setWorkflowStatus(ctx context.Context, chatID string, status chatModels.WorkflowStatus) {
	if s.Statuses != nil {
		s.Statuses.Set(chatID, status)
	}
	if err := s.Threads.MergeMetadata(ctx, chatID, map[string]interface{}{
		chatModels.MetaWorkflowStatus: string(status),
	}); err != nil {
		s.Logger.Warn("failed to record workflow status", "thread_id", chatID, "status", status, "error", err)
	}
}
