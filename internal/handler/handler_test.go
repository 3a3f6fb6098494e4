package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain"
	chatModels "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	chatSvc "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/chat"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/httputil"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/streaming"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeChatService struct {
	result *chatSvc.TurnResult
	err    error
	calls  atomic.Int32
}

func (f *fakeChatService) HandleTurn(ctx context.Context, userID string, req *chatSvc.TurnRequest) (*chatSvc.TurnResult, error) {
	f.calls.Add(1)
	if req.Input() == "" {
		return nil, domain.ErrEmptyInput
	}
	return f.result, f.err
}

type fakeStream struct {
	interrupted atomic.Bool
	removed     atomic.Bool
}

func (s *fakeStream) TurnID() string { return "7c0b6c1e-2f43-4d8a-9e5b-3a1d2c4f6e80" }
func (s *fakeStream) Interrupt() bool {
	s.interrupted.Store(true)
	return true
}
func (s *fakeStream) RemoveClient(clientID string) { s.removed.Store(true) }

type fakeThreadService struct {
	owner string
}

func (f *fakeThreadService) ListThreads(ctx context.Context, userID string) ([]chatModels.Thread, error) {
	return []chatModels.Thread{}, nil
}

func (f *fakeThreadService) GetThread(ctx context.Context, threadID, userID string) (*chatModels.ThreadWithMessages, error) {
	if userID != f.owner {
		return nil, &domain.NotFoundError{Message: "thread not found"}
	}
	return &chatModels.ThreadWithMessages{Thread: chatModels.Thread{ID: threadID, UserID: userID}}, nil
}

func (f *fakeThreadService) RenameThread(ctx context.Context, threadID, userID string, req *chatSvc.UpdateThreadRequest) (*chatModels.Thread, error) {
	if err := req.Validate(); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}
	return &chatModels.Thread{ID: threadID, Title: req.Title, HasCustomTitle: true}, nil
}

func (f *fakeThreadService) DeleteThread(ctx context.Context, threadID, userID string) error {
	return nil
}

func chatRequest(t *testing.T, userID, body string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	if userID != "" {
		r = httputil.WithUserID(r, userID)
	}
	return r
}

func newChatHandler(svc chatSvc.ChatService) *ChatHandler {
	return NewChatHandler(svc, &fakeThreadService{owner: "user-1"}, streaming.NewRegistry(time.Minute, time.Minute), nil, testLogger())
}

func TestSendMessage_EmptyInput(t *testing.T) {
	svc := &fakeChatService{}
	rec := httptest.NewRecorder()

	newChatHandler(svc).SendMessage(rec, chatRequest(t, "user-1", `{"messages":[{"role":"user","content":"   "}]}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Cannot process empty input."}`, rec.Body.String())
}

func TestSendMessage_RequiresUser(t *testing.T) {
	svc := &fakeChatService{}
	rec := httptest.NewRecorder()

	newChatHandler(svc).SendMessage(rec, chatRequest(t, "", `{"messages":[{"role":"user","content":"hi"}]}`))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, svc.calls.Load())
}

func TestSendMessage_DirectReplyIsJSON(t *testing.T) {
	svc := &fakeChatService{result: &chatSvc.TurnResult{
		ChatID: "c1",
		Reply: &chatSvc.DirectReply{
			Content:            "What do you sell?",
			ChatID:             "c1",
			CurrentQuestionKey: "offerDescription",
		},
	}}
	rec := httptest.NewRecorder()

	newChatHandler(svc).SendMessage(rec, chatRequest(t, "user-1", `{"messages":[{"role":"user","content":"start"}],"tool":"hybrid-offer"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["isStreamed"])
	assert.Equal(t, "What do you sell?", body["content"])
	assert.Equal(t, "offerDescription", body["currentQuestionKey"])
}

func TestSendMessage_StreamsFrames(t *testing.T) {
	events := make(chan string, 3)
	events <- streaming.NewChunkFrame("Hello")
	events <- streaming.NewChunkFrame(" World")
	complete, err := streaming.NewCompleteFrame("c1", nil)
	require.NoError(t, err)
	events <- complete
	close(events)

	stream := &fakeStream{}
	svc := &fakeChatService{result: &chatSvc.TurnResult{ChatID: "c1", Stream: stream, Events: events, ClientID: "client"}}
	rec := httptest.NewRecorder()

	newChatHandler(svc).SendMessage(rec, chatRequest(t, "user-1", `{"messages":[{"role":"user","content":"hi"}]}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "c1", rec.Header().Get("X-Chat-Id"))
	body := rec.Body.String()
	assert.Equal(t, 3, strings.Count(body, "data: "))
	assert.Less(t, strings.Index(body, "Hello"), strings.Index(body, " World"))
	assert.True(t, stream.removed.Load())
	assert.False(t, stream.interrupted.Load())
}

func TestSendMessage_ClientAbortInterrupts(t *testing.T) {
	stream := &fakeStream{}
	svc := &fakeChatService{result: &chatSvc.TurnResult{ChatID: "c1", Stream: stream, Events: make(chan string), ClientID: "client"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := chatRequest(t, "user-1", `{"messages":[{"role":"user","content":"hi"}]}`).WithContext(ctx)
	r = httputil.WithUserID(r, "user-1")

	newChatHandler(svc).SendMessage(httptest.NewRecorder(), r)

	assert.True(t, stream.interrupted.Load())
}

func TestSendMessage_WorkflowErrorCarriesCode(t *testing.T) {
	svc := &fakeChatService{err: &domain.WorkflowError{Message: "document workflow timed out", Code: domain.CodeWorkflowTimeout}}
	rec := httptest.NewRecorder()

	newChatHandler(svc).SendMessage(rec, chatRequest(t, "user-1", `{"messages":[{"role":"user","content":"hi"}]}`))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.JSONEq(t, `{"error":"document workflow timed out","code":"WORKFLOW_TIMEOUT"}`, rec.Body.String())
}

func TestInterruptTurn_UnknownTurn(t *testing.T) {
	h := newChatHandler(&fakeChatService{})
	r := httptest.NewRequest(http.MethodPost, "/api/turns/x/interrupt", nil)
	r = httputil.WithUserID(r, "user-1")
	r.SetPathValue("id", "7c0b6c1e-2f43-4d8a-9e5b-3a1d2c4f6e80")
	rec := httptest.NewRecorder()

	h.InterruptTurn(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInterruptTurn_BadID(t *testing.T) {
	h := newChatHandler(&fakeChatService{})
	r := httptest.NewRequest(http.MethodPost, "/api/turns/x/interrupt", nil)
	r = httputil.WithUserID(r, "user-1")
	r.SetPathValue("id", "not-a-uuid")
	rec := httptest.NewRecorder()

	h.InterruptTurn(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRenameThread_Validation(t *testing.T) {
	h := NewThreadHandler(&fakeThreadService{owner: "user-1"}, testLogger())
	r := httptest.NewRequest(http.MethodPatch, "/api/threads/t1", bytes.NewBufferString(`{"title":""}`))
	r = httputil.WithUserID(r, "user-1")
	r.SetPathValue("id", "t1")
	rec := httptest.NewRecorder()

	h.RenameThread(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestGetThread_OtherUserIsNotFound(t *testing.T) {
	h := NewThreadHandler(&fakeThreadService{owner: "user-1"}, testLogger())
	r := httptest.NewRequest(http.MethodGet, "/api/threads/t1", nil)
	r = httputil.WithUserID(r, "user-2")
	r.SetPathValue("id", "t1")
	rec := httptest.NewRecorder()

	h.GetThread(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
