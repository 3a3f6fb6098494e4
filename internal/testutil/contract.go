package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	chatRepo "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/repositories/chat"
)

// RunRepositoryContract checks the behaviour the services rely on from a
// thread and message repository pair. The in-memory Store and the Postgres
// repositories both run it, so the fakes cannot drift from the real thing.
func RunRepositoryContract(t *testing.T, threads chatRepo.ThreadRepository, messages chatRepo.MessageRepository) {
	owner := uuid.NewString()
	stranger := uuid.NewString()

	newThread := func(t *testing.T, meta map[string]interface{}) *chat.Thread {
		t.Helper()
		thread := &chat.Thread{ID: uuid.NewString(), UserID: owner, Title: "contract", Metadata: meta}
		require.NoError(t, threads.CreateThread(context.Background(), thread))
		return thread
	}

	t.Run("create keeps caller id", func(t *testing.T) {
		id := uuid.NewString()
		thread := &chat.Thread{ID: id, UserID: owner, Title: "minted"}
		require.NoError(t, threads.CreateThread(context.Background(), thread))
		assert.Equal(t, id, thread.ID)
		assert.False(t, thread.CreatedAt.IsZero())

		got, err := threads.GetThread(context.Background(), id, owner)
		require.NoError(t, err)
		assert.Equal(t, "minted", got.Title)
	})

	t.Run("create assigns id when empty", func(t *testing.T) {
		thread := &chat.Thread{UserID: owner, Title: "generated"}
		require.NoError(t, threads.CreateThread(context.Background(), thread))
		_, err := uuid.Parse(thread.ID)
		assert.NoError(t, err)
	})

	t.Run("duplicate id is a conflict", func(t *testing.T) {
		existing := newThread(t, nil)
		dup := &chat.Thread{ID: existing.ID, UserID: stranger, Title: "hijack"}

		err := threads.CreateThread(context.Background(), dup)
		var conflict *domain.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.ErrorIs(t, err, domain.ErrConflict)

		got, err := threads.GetThreadByIDOnly(context.Background(), existing.ID)
		require.NoError(t, err)
		assert.Equal(t, owner, got.UserID)
	})

	t.Run("reads are owner scoped", func(t *testing.T) {
		thread := newThread(t, nil)
		_, err := threads.GetThread(context.Background(), thread.ID, stranger)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, threads.DeleteThread(context.Background(), thread.ID, stranger), domain.ErrNotFound)
		assert.ErrorIs(t, threads.UpdateTitle(context.Background(), thread.ID, stranger, "x", true), domain.ErrNotFound)
	})

	t.Run("merge keeps unrelated keys", func(t *testing.T) {
		thread := newThread(t, map[string]interface{}{"theme": "dark", chat.MetaQuestionsAnswered: 1})

		require.NoError(t, threads.MergeMetadata(context.Background(), thread.ID, map[string]interface{}{
			chat.MetaQuestionsAnswered: 2,
			chat.MetaWorkflowStatus:    "pending",
		}))

		got, err := threads.GetThreadByIDOnly(context.Background(), thread.ID)
		require.NoError(t, err)
		assert.Equal(t, "dark", got.Metadata["theme"])
		assert.Equal(t, "pending", got.Metadata[chat.MetaWorkflowStatus])
		n, ok := chat.MetaInt(got.Metadata[chat.MetaQuestionsAnswered])
		require.True(t, ok)
		assert.Equal(t, 2, n)
	})

	t.Run("stale progress is rejected", func(t *testing.T) {
		thread := newThread(t, map[string]interface{}{chat.MetaQuestionsAnswered: 3})

		err := threads.MergeMetadata(context.Background(), thread.ID, map[string]interface{}{
			chat.MetaQuestionsAnswered:  2,
			chat.MetaCurrentQuestionKey: "stale",
		})
		var conflict *domain.ConflictError
		require.ErrorAs(t, err, &conflict)

		got, err := threads.GetThreadByIDOnly(context.Background(), thread.ID)
		require.NoError(t, err)
		assert.NotContains(t, got.Metadata, chat.MetaCurrentQuestionKey)
		n, _ := chat.MetaInt(got.Metadata[chat.MetaQuestionsAnswered])
		assert.Equal(t, 3, n)

		// Equal counts are a replay, not a regression
		assert.NoError(t, threads.MergeMetadata(context.Background(), thread.ID, map[string]interface{}{
			chat.MetaQuestionsAnswered: 3,
		}))
	})

	t.Run("merge on missing thread", func(t *testing.T) {
		err := threads.MergeMetadata(context.Background(), uuid.NewString(), map[string]interface{}{"k": "v"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("messages keep creation order", func(t *testing.T) {
		thread := newThread(t, nil)
		for _, content := range []string{"first", "second", "third"} {
			require.NoError(t, messages.CreateMessage(context.Background(), &chat.Message{
				ThreadID: thread.ID, UserID: owner, Role: chat.RoleUser, Content: content,
			}))
		}

		got, err := messages.ListMessages(context.Background(), thread.ID)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "first", got[0].Content)
		assert.Equal(t, "third", got[2].Content)
	})

	t.Run("message on missing thread", func(t *testing.T) {
		err := messages.CreateMessage(context.Background(), &chat.Message{
			ThreadID: uuid.NewString(), UserID: owner, Role: chat.RoleUser, Content: "orphan",
		})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("one workflow result per thread", func(t *testing.T) {
		thread := newThread(t, nil)
		result := func() *chat.Message {
			return &chat.Message{
				ThreadID: thread.ID, UserID: owner, Role: chat.RoleAssistant, Content: "done",
				Metadata: map[string]interface{}{chat.MetaWorkflowResultFor: thread.ID},
			}
		}
		require.NoError(t, messages.CreateMessage(context.Background(), result()))

		err := messages.CreateMessage(context.Background(), result())
		assert.ErrorIs(t, err, domain.ErrConflict)

		found, err := messages.FindByMetadata(context.Background(), thread.ID, chat.MetaWorkflowResultFor, thread.ID)
		require.NoError(t, err)
		assert.Equal(t, "done", found.Content)
	})

	t.Run("one failure notice per attempt", func(t *testing.T) {
		thread := newThread(t, nil)
		failure := func(attempt int) *chat.Message {
			return &chat.Message{
				ThreadID: thread.ID, UserID: owner, Role: chat.RoleAssistant, Content: "failed",
				Metadata: map[string]interface{}{chat.MetaWorkflowFailureFor: chat.FailureKey(thread.ID, attempt)},
			}
		}
		require.NoError(t, messages.CreateMessage(context.Background(), failure(1)))
		assert.ErrorIs(t, messages.CreateMessage(context.Background(), failure(1)), domain.ErrConflict)
		assert.NoError(t, messages.CreateMessage(context.Background(), failure(2)))
	})

	t.Run("find by metadata misses", func(t *testing.T) {
		thread := newThread(t, nil)
		_, err := messages.FindByMetadata(context.Background(), thread.ID, chat.MetaWorkflowResultFor, thread.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
