package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain/repositories"
	chatRepo "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/repositories/chat"
)

// Reconciler appends a workflow result to its thread. A successful result is
// appended once per chat; a failure notice is appended once per submission
// attempt and never blocks a later success.
//
// Concurrent calls for one chat are collapsed with singleflight; across
// processes the existence checks plus the unique indexes on
// workflowResultFor and workflowFailureFor keep a second append from
// succeeding.
type Reconciler struct {
	threads  chatRepo.ThreadRepository
	messages chatRepo.MessageRepository
	tx       repositories.TransactionManager
	status   *StatusTracker
	group    singleflight.Group
	logger   *slog.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(
	threads chatRepo.ThreadRepository,
	messages chatRepo.MessageRepository,
	tx repositories.TransactionManager,
	status *StatusTracker,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		threads:  threads,
		messages: messages,
		tx:       tx,
		status:   status,
		logger:   logger,
	}
}

type reconcileOutcome struct {
	message *chat.Message
	created bool
}

// Reconcile records result in the thread identified by chatID. It returns the
// result message and whether it was appended by this round; callers sharing a
// collapsed round see the same answer. Once a success is recorded every later
// call returns it; a repeated failure for the same attempt returns the
// existing notice.
func (r *Reconciler) Reconcile(ctx context.Context, chatID string, result *chat.WorkflowResult) (*chat.Message, bool, error) {
	if result == nil {
		return nil, false, &domain.ValidationError{Message: "workflow result is required"}
	}

	v, err, _ := r.group.Do(chatID, func() (interface{}, error) {
		return r.reconcile(ctx, chatID, result)
	})
	if err != nil {
		return nil, false, err
	}
	out := v.(*reconcileOutcome)
	return out.message, out.created, nil
}

func (r *Reconciler) reconcile(ctx context.Context, chatID string, result *chat.WorkflowResult) (*reconcileOutcome, error) {
	thread, err := r.threads.GetThreadByIDOnly(ctx, chatID)
	if err != nil {
		return nil, err
	}
	attempt, _ := chat.MetaInt(thread.Metadata[chat.MetaWorkflowAttempt])
	failureKey := chat.FailureKey(chatID, attempt)

	var out reconcileOutcome
	err = r.tx.ExecTx(ctx, func(ctx context.Context) error {
		existing, err := r.find(ctx, chatID, result.Success, failureKey)
		if err != nil || existing != nil {
			out.message = existing
			return err
		}

		msg := &chat.Message{
			ThreadID: chatID,
			UserID:   thread.UserID,
			Role:     chat.RoleAssistant,
			Content:  resultMessage(result),
			Metadata: map[string]interface{}{},
		}
		status := chat.WorkflowComplete
		if result.Success {
			msg.Metadata[chat.MetaWorkflowResultFor] = chatID
		} else {
			msg.Metadata[chat.MetaWorkflowFailureFor] = failureKey
			status = chat.WorkflowFailed
		}
		if result.DocumentURL != "" {
			msg.Metadata[chat.MetaDocumentURL] = result.DocumentURL
		}
		if err := r.messages.CreateMessage(ctx, msg); err != nil {
			return err
		}
		out.message = msg
		out.created = true

		return r.threads.MergeMetadata(ctx, chatID, map[string]interface{}{
			chat.MetaWorkflowStatus: string(status),
		})
	})

	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		// Another process won the unique index race; return its message.
		existing, findErr := r.find(ctx, chatID, result.Success, failureKey)
		if findErr == nil && existing == nil {
			findErr = domain.ErrNotFound
		}
		if findErr != nil {
			return nil, fmt.Errorf("reconcile %s after conflict: %w", chatID, findErr)
		}
		out = reconcileOutcome{message: existing}
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", chatID, err)
	}

	status := chat.WorkflowFailed
	if out.message.MetaString(chat.MetaWorkflowResultFor) != "" {
		status = chat.WorkflowComplete
	}
	if r.status != nil {
		r.status.Set(chatID, status)
	}
	r.logger.Info("workflow result reconciled",
		"chat_id", chatID,
		"attempt", attempt,
		"created", out.created,
		"status", status)
	return &out, nil
}

// find returns the message that already settles this result: the recorded
// success, or for a failure the notice of the same attempt. It returns nil
// when the result still has to be appended.
func (r *Reconciler) find(ctx context.Context, chatID string, success bool, failureKey string) (*chat.Message, error) {
	existing, err := r.messages.FindByMetadata(ctx, chatID, chat.MetaWorkflowResultFor, chatID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if success {
		return nil, nil
	}

	existing, err = r.messages.FindByMetadata(ctx, chatID, chat.MetaWorkflowFailureFor, failureKey)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return nil, nil
}

func resultMessage(result *chat.WorkflowResult) string {
	if !result.Success {
		reason := result.Error
		if reason == "" {
			reason = "the document workflow reported a failure"
		}
		return fmt.Sprintf("Sorry, I couldn't generate your document: %s. Your answers are saved, so you can try again.", reason)
	}
	if result.DocumentURL != "" {
		return fmt.Sprintf("Your document is ready: %s", result.DocumentURL)
	}
	return "Your document is ready."
}
