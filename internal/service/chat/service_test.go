package chat

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/cache"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain"
	chatModels "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	chatSvc "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/chat"
	domainllm "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/llm"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/progress"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/streaming"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/workflow"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/testutil"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/tools"
)

// echoProvider streams a fixed reply and records the last request.
type echoProvider struct {
	mu    sync.Mutex
	reply []string
	last  *domainllm.GenerateRequest
	calls int
	// gate, when set, holds the reply back until it is closed
	gate chan struct{}
}

func (p *echoProvider) Name() string                    { return "echo" }
func (p *echoProvider) SupportsModel(model string) bool { return true }

func (p *echoProvider) StreamResponse(ctx context.Context, req *domainllm.GenerateRequest) (<-chan domainllm.StreamEvent, error) {
	p.mu.Lock()
	p.last = req
	p.calls++
	gate := p.gate
	p.mu.Unlock()

	ch := make(chan domainllm.StreamEvent, len(p.reply)+1)
	emit := func() {
		for _, r := range p.reply {
			ch <- domainllm.StreamEvent{TextDelta: r}
		}
		ch <- domainllm.StreamEvent{Metadata: &domainllm.StreamMetadata{Model: req.Model, StopReason: "end_turn"}}
		close(ch)
	}
	if gate == nil {
		emit()
		return ch, nil
	}
	go func() {
		select {
		case <-gate:
			emit()
		case <-ctx.Done():
			close(ch)
		}
	}()
	return ch, nil
}

func (p *echoProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *echoProvider) ForModel(model string) (domainllm.LLMProvider, string, error) {
	return p, model, nil
}

type stubValidator struct {
	verdict chatModels.Verdict
	calls   int
}

func (v *stubValidator) Validate(ctx context.Context, key, answer string) chatModels.Verdict {
	v.calls++
	return v.verdict
}

type stubSubmitter struct {
	mu         sync.Mutex
	submission *chatModels.WorkflowSubmission
	err        error
	requests   []*chatModels.WorkflowRequest
}

func (s *stubSubmitter) Submit(ctx context.Context, req *chatModels.WorkflowRequest) (*chatModels.WorkflowSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.submission, s.err
}

type recordingDispatcher struct {
	mu    sync.Mutex
	texts []string
}

func (d *recordingDispatcher) Dispatch(text, threadID, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts = append(d.texts, text)
}

type fixture struct {
	svc       *Service
	store     *testutil.Store
	provider  *echoProvider
	validator *stubValidator
	submitter *stubSubmitter
	memory    *recordingDispatcher
	statuses  *workflow.StatusTracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := tools.NewCatalog()
	require.NoError(t, err)

	store := testutil.NewStore()
	logger := testutil.DiscardLogger()
	statuses := workflow.NewStatusTracker(cache.NewLRU[chatModels.WorkflowStatus](16, time.Hour))
	f := &fixture{
		store:     store,
		provider:  &echoProvider{reply: []string{"Great", " answer."}},
		validator: &stubValidator{verdict: chatModels.Accept()},
		submitter: &stubSubmitter{submission: &chatModels.WorkflowSubmission{Status: chatModels.WorkflowPending}},
		memory:    &recordingDispatcher{},
		statuses:  statuses,
	}
	f.svc = NewService(Deps{
		Threads:    store,
		Messages:   store,
		Profiles:   store,
		Tx:         testutil.TxManager{Store: store},
		Catalog:    catalog,
		Tracker:    progress.NewTracker(catalog),
		Validator:  f.validator,
		Providers:  f.provider,
		Turns:      streaming.NewRegistry(time.Minute, time.Minute),
		Memory:     f.memory,
		Workflow:   f.submitter,
		Reconciler: workflow.NewReconciler(store, store, testutil.TxManager{Store: store}, statuses, logger),
		Statuses:   statuses,
		Logger:     logger,
	}, Options{Model: "lorem-fast", StallTimeout: 5 * time.Second})
	return f
}

func userTurn(content string) []chatSvc.IncomingMessage {
	return []chatSvc.IncomingMessage{{Role: "user", Content: content}}
}

// drain reads every frame of a streamed turn.
func drain(t *testing.T, result *chatSvc.TurnResult) []map[string]interface{} {
	t.Helper()
	require.NotNil(t, result.Events)
	var frames []map[string]interface{}
	timeout := time.After(5 * time.Second)
	for {
		select {
		case frame, ok := <-result.Events:
			if !ok {
				return frames
			}
			var m map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(frame, "data: "), "\n\n")), &m))
			frames = append(frames, m)
		case <-timeout:
			t.Fatal("timed out waiting for frames")
		}
	}
}

// seedToolThread creates a hybrid-offer thread positioned at key with the
// given answers already collected.
func seedToolThread(t *testing.T, store *testutil.Store, key string, answers map[string]interface{}) string {
	t.Helper()
	toolID := string(tools.KindHybridOffer)
	thread := &chatModels.Thread{
		ID:     "3f1c9a64-7d0e-4c56-9a1b-2a8f6c4e5d10",
		UserID: "user-1",
		ToolID: &toolID,
		Metadata: map[string]interface{}{
			chatModels.MetaCurrentQuestionKey: key,
			chatModels.MetaQuestionsAnswered:  len(answers),
			chatModels.MetaCollectedAnswers:   answers,
		},
	}
	require.NoError(t, store.CreateThread(context.Background(), thread))
	return thread.ID
}

func TestHandleTurn_EmptyInputTouchesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.HandleTurn(context.Background(), "user-1", &chatSvc.TurnRequest{
		Messages: userTurn("   "),
		ChatID:   "3f1c9a64-7d0e-4c56-9a1b-2a8f6c4e5d10",
	})

	assert.ErrorIs(t, err, domain.ErrEmptyInput)
	assert.Nil(t, f.store.Thread("3f1c9a64-7d0e-4c56-9a1b-2a8f6c4e5d10"))
	assert.Zero(t, f.provider.Calls())
}

func TestHandleTurn_ToolOpener(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.HandleTurn(context.Background(), "user-1", &chatSvc.TurnRequest{
		Messages: userTurn("Let's build my offer"),
		Tool:     "hybrid-offer",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Reply)

	assert.False(t, result.Reply.IsStreamed)
	assert.Equal(t, "offerDescription", result.Reply.CurrentQuestionKey)
	assert.Zero(t, result.Reply.QuestionsAnswered)
	assert.Zero(t, f.provider.Calls())

	thread := f.store.Thread(result.ChatID)
	require.NotNil(t, thread)
	assert.Equal(t, "offerDescription", thread.Metadata[chatModels.MetaCurrentQuestionKey])
	assert.Len(t, f.store.Messages(result.ChatID), 2)
	assert.Equal(t, []string{"Let's build my offer"}, f.memory.texts)
}

func TestHandleTurn_RejectedAnswerReprompts(t *testing.T) {
	f := newFixture(t)
	reason := "Tell me what the offer actually is."
	f.validator.verdict = chatModels.Reject(reason)
	chatID := seedToolThread(t, f.store, "offerDescription", map[string]interface{}{})

	result, err := f.svc.HandleTurn(context.Background(), "user-1", &chatSvc.TurnRequest{
		Messages: userTurn("idk"),
		ChatID:   chatID,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Reply)

	assert.True(t, strings.HasPrefix(result.Reply.Content, reason))
	assert.Equal(t, "offerDescription", result.Reply.CurrentQuestionKey)
	assert.Zero(t, result.Reply.QuestionsAnswered)
	assert.Zero(t, f.provider.Calls())

	thread := f.store.Thread(chatID)
	assert.Equal(t, 0, thread.Metadata[chatModels.MetaQuestionsAnswered])
	for _, m := range f.store.Messages(chatID) {
		if m.Role == chatModels.RoleUser {
			assert.Empty(t, m.MetaString(chatModels.MetaQuestionKey), "rejected answers are not tagged")
		}
	}
	assert.Equal(t, []string{"idk"}, f.memory.texts, "rejected answers still reach memory classification")
}

func TestHandleTurn_AcceptedAnswerStreamsAndAdvances(t *testing.T) {
	f := newFixture(t)
	chatID := seedToolThread(t, f.store, "offerDescription", map[string]interface{}{})

	result, err := f.svc.HandleTurn(context.Background(), "user-1", &chatSvc.TurnRequest{
		Messages: userTurn("A 12-week group coaching program for new therapists"),
		ChatID:   chatID,
	})
	require.NoError(t, err)
	require.Nil(t, result.Reply)

	frames := drain(t, result)
	require.Len(t, frames, 3)
	assert.Equal(t, "Great", frames[0]["content"])
	assert.Equal(t, " answer.", frames[1]["content"])
	complete := frames[2]
	assert.Equal(t, "complete", complete["type"])
	assert.Equal(t, chatID, complete["chatId"])
	assert.Equal(t, float64(1), complete["questionsAnswered"])
	assert.Equal(t, "targetAudience", complete["currentQuestionKey"])
	assert.Equal(t, false, complete["isComplete"])

	thread := f.store.Thread(chatID)
	assert.Equal(t, 1, thread.Metadata[chatModels.MetaQuestionsAnswered])
	assert.Equal(t, "targetAudience", thread.Metadata[chatModels.MetaCurrentQuestionKey])

	msgs := f.store.Messages(chatID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "offerDescription", msgs[0].MetaString(chatModels.MetaQuestionKey))
	assert.Equal(t, "Great answer.", msgs[1].Content)
	assert.Equal(t, []string{"A 12-week group coaching program for new therapists"}, f.memory.texts)
	assert.Empty(t, f.submitter.requests)

	req := f.provider.last
	require.NotNil(t, req)
	assert.Equal(t, "lorem-fast", req.Model)
	assert.NotEmpty(t, req.System)
}

func TestHandleTurn_StaleProgressRollsBackTurn(t *testing.T) {
	f := newFixture(t)
	f.provider.gate = make(chan struct{})
	chatID := seedToolThread(t, f.store, "offerDescription", map[string]interface{}{})

	result, err := f.svc.HandleTurn(context.Background(), "user-1", &chatSvc.TurnRequest{
		Messages: userTurn("A 12-week group coaching program for new therapists"),
		ChatID:   chatID,
	})
	require.NoError(t, err)

	// Another turn advanced the thread while this one was generating
	require.NoError(t, f.store.MergeMetadata(context.Background(), chatID, map[string]interface{}{
		chatModels.MetaQuestionsAnswered:  2,
		chatModels.MetaCurrentQuestionKey: "painPoints",
	}))
	close(f.provider.gate)

	frames := drain(t, result)
	last := frames[len(frames)-1]
	assert.Equal(t, "error", last["type"])

	thread := f.store.Thread(chatID)
	assert.Equal(t, 2, thread.Metadata[chatModels.MetaQuestionsAnswered])
	assert.Equal(t, "painPoints", thread.Metadata[chatModels.MetaCurrentQuestionKey])
	assert.Empty(t, f.store.Messages(chatID), "the stale turn's messages are rolled back")
	assert.Empty(t, f.memory.texts)
}

func completedAnswers() map[string]interface{} {
	return map[string]interface{}{
		"offerDescription": "Group coaching for therapists",
		"targetAudience":   "Newly licensed therapists",
		"painPoints":       "No clients, no marketing skills",
		"solution":         "Weekly calls and templates",
		"pricing":          "$2,000 for 12 weeks",
	}
}

func TestHandleTurn_CompletionSubmitsWebhook(t *testing.T) {
	f := newFixture(t)
	chatID := seedToolThread(t, f.store, "clientResult", completedAnswers())

	result, err := f.svc.HandleTurn(context.Background(), "user-1", &chatSvc.TurnRequest{
		Messages: userTurn("They land five paying clients within 90 days"),
		ChatID:   chatID,
	})
	require.NoError(t, err)

	frames := drain(t, result)
	complete := frames[len(frames)-1]
	assert.Equal(t, "complete", complete["type"])
	assert.Equal(t, true, complete["isComplete"])
	assert.Equal(t, map[string]interface{}{"status": "pending"}, complete["workflow"])

	require.Len(t, f.submitter.requests, 1)
	sub := f.submitter.requests[0]
	assert.Equal(t, chatID, sub.ChatID)
	assert.Equal(t, "hybrid-offer", sub.ToolID)
	assert.Len(t, sub.Answers, 6)
	assert.Equal(t, "They land five paying clients within 90 days", sub.Answers["clientResult"])

	status, err := f.svc.Status(context.Background(), chatID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, chatModels.WorkflowPending, status)
}

func TestHandleTurn_CompletionSyncAppendsResult(t *testing.T) {
	f := newFixture(t)
	f.submitter.submission = &chatModels.WorkflowSubmission{
		Status: chatModels.WorkflowComplete,
		Result: &chatModels.WorkflowResult{Success: true, DocumentURL: "https://docs.example.com/d/9"},
	}
	chatID := seedToolThread(t, f.store, "clientResult", completedAnswers())

	result, err := f.svc.HandleTurn(context.Background(), "user-1", &chatSvc.TurnRequest{
		Messages: userTurn("They land five paying clients within 90 days"),
		ChatID:   chatID,
	})
	require.NoError(t, err)

	frames := drain(t, result)
	wf, ok := frames[len(frames)-1]["workflow"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "https://docs.example.com/d/9", wf["documentUrl"])

	var results int
	for _, m := range f.store.Messages(chatID) {
		if m.MetaString(chatModels.MetaWorkflowResultFor) != "" {
			results++
		}
	}
	assert.Equal(t, 1, results)
	assert.Equal(t, "complete", f.store.Thread(chatID).Metadata[chatModels.MetaWorkflowStatus])
}

func TestHandleTurn_WorkflowFailureSurfacesError(t *testing.T) {
	f := newFixture(t)
	f.submitter.err = &domain.WorkflowError{Message: "workflow returned 500", Code: domain.CodeWorkflowRejected}
	chatID := seedToolThread(t, f.store, "clientResult", completedAnswers())

	result, err := f.svc.HandleTurn(context.Background(), "user-1", &chatSvc.TurnRequest{
		Messages: userTurn("They land five paying clients within 90 days"),
		ChatID:   chatID,
	})
	require.NoError(t, err)

	frames := drain(t, result)
	last := frames[len(frames)-1]
	assert.Equal(t, "error", last["type"])
	assert.Equal(t, domain.CodeWorkflowRejected, last["code"])
	assert.Equal(t, "failed", f.store.Thread(chatID).Metadata[chatModels.MetaWorkflowStatus])
}

func TestResubmit_AfterFailedHandoff(t *testing.T) {
	f := newFixture(t)
	f.submitter.err = &domain.WorkflowError{Message: "workflow returned 500", Code: domain.CodeWorkflowRejected}
	chatID := seedToolThread(t, f.store, "clientResult", completedAnswers())

	result, err := f.svc.HandleTurn(context.Background(), "user-1", &chatSvc.TurnRequest{
		Messages: userTurn("They land five paying clients within 90 days"),
		ChatID:   chatID,
	})
	require.NoError(t, err)
	drain(t, result)
	require.Len(t, f.submitter.requests, 1)

	f.submitter.err = nil
	submission, err := f.svc.Resubmit(context.Background(), chatID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, chatModels.WorkflowPending, submission["status"])

	require.Len(t, f.submitter.requests, 2)
	again := f.submitter.requests[1]
	assert.Equal(t, chatID, again.ChatID)
	assert.Equal(t, "They land five paying clients within 90 days", again.Answers["clientResult"])
	assert.Len(t, again.Answers, 6)
	assert.NotEmpty(t, again.Conversation)

	thread := f.store.Thread(chatID)
	assert.Equal(t, "pending", thread.Metadata[chatModels.MetaWorkflowStatus])
	assert.Equal(t, 2, thread.Metadata[chatModels.MetaWorkflowAttempt])

	_, err = f.svc.Resubmit(context.Background(), chatID, "user-1")
	var conflict *domain.ConflictError
	assert.ErrorAs(t, err, &conflict, "a pending handoff is not resubmitted")
	assert.Len(t, f.submitter.requests, 2)
}

func TestResubmit_RequiresCompletedTool(t *testing.T) {
	f := newFixture(t)
	chatID := seedToolThread(t, f.store, "targetAudience", map[string]interface{}{
		"offerDescription": "Group coaching for therapists",
	})

	_, err := f.svc.Resubmit(context.Background(), chatID, "user-1")
	var vErr *domain.ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = f.svc.Resubmit(context.Background(), chatID, "user-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.submitter.requests)
}

func TestHandleCallback_SuccessAfterFailure(t *testing.T) {
	f := newFixture(t)
	chatID := seedToolThread(t, f.store, "clientResult", completedAnswers())

	failed, created, err := f.svc.HandleCallback(context.Background(), &chatSvc.WorkflowCallback{
		ChatID:      chatID,
		AnswersData: map[string]interface{}{"success": false, "error": "render timeout"},
	})
	require.NoError(t, err)
	require.True(t, created)
	assert.Contains(t, failed.Content, "render timeout")

	done, created, err := f.svc.HandleCallback(context.Background(), &chatSvc.WorkflowCallback{
		ChatID:      chatID,
		AnswersData: map[string]interface{}{"success": true, "documentUrl": "https://docs.example.com/d/7"},
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "https://docs.example.com/d/7", done.MetaString(chatModels.MetaDocumentURL))

	status, err := f.svc.Status(context.Background(), chatID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, chatModels.WorkflowComplete, status)

	_, err = f.svc.Resubmit(context.Background(), chatID, "user-1")
	var conflict *domain.ConflictError
	assert.ErrorAs(t, err, &conflict, "a generated document is not resubmitted")
}

func TestHandleTurn_ClientMintedChatID(t *testing.T) {
	f := newFixture(t)
	chatID := "0b5a7e2c-1f34-4d8e-9c6b-7a2d1e0f3b45"

	result, err := f.svc.HandleTurn(context.Background(), "user-1", &chatSvc.TurnRequest{
		Messages: userTurn("How should I price a coaching package?"),
		ChatID:   chatID,
	})
	require.NoError(t, err)
	drain(t, result)

	thread := f.store.Thread(chatID)
	require.NotNil(t, thread)
	assert.Equal(t, "How should I price a coaching package?", thread.Title)
	assert.False(t, thread.IsToolThread())

	_, err = f.svc.HandleTurn(context.Background(), "user-1", &chatSvc.TurnRequest{
		Messages: userTurn("hello"),
		ChatID:   "not-a-uuid",
	})
	var vErr *domain.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestHandleTurn_ChatIDOwnedByAnotherUser(t *testing.T) {
	f := newFixture(t)
	chatID := seedToolThread(t, f.store, "offerDescription", map[string]interface{}{})

	_, err := f.svc.HandleTurn(context.Background(), "user-2", &chatSvc.TurnRequest{
		Messages: userTurn("Let me in"),
		ChatID:   chatID,
	})

	assert.ErrorIs(t, err, domain.ErrNotFound)
	thread := f.store.Thread(chatID)
	require.NotNil(t, thread)
	assert.Equal(t, "user-1", thread.UserID)
	messages, err := f.store.ListMessages(context.Background(), chatID)
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.Zero(t, f.provider.Calls())
}

func TestThreads_RenameAndDelete(t *testing.T) {
	f := newFixture(t)
	chatID := seedToolThread(t, f.store, "offerDescription", map[string]interface{}{})

	renamed, err := f.svc.RenameThread(context.Background(), chatID, "user-1", &chatSvc.UpdateThreadRequest{Title: "  My offer  "})
	require.NoError(t, err)
	assert.Equal(t, "My offer", renamed.Title)
	assert.True(t, renamed.HasCustomTitle)

	_, err = f.svc.GetThread(context.Background(), chatID, "user-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.svc.DeleteThread(context.Background(), chatID, "user-1"))
	assert.Nil(t, f.store.Thread(chatID))
}

func TestHandleCallback_Idempotent(t *testing.T) {
	f := newFixture(t)
	chatID := seedToolThread(t, f.store, "clientResult", completedAnswers())
	cb := &chatSvc.WorkflowCallback{
		ChatID:      chatID,
		AnswersData: map[string]interface{}{"documentUrl": "https://docs.example.com/d/3", "success": true},
	}

	first, created, err := f.svc.HandleCallback(context.Background(), cb)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := f.svc.HandleCallback(context.Background(), cb)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}
