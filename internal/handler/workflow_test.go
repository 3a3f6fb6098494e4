package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain"
	chatModels "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	chatSvc "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/chat"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/httputil"
)

type fakeWorkflowService struct {
	callbacks   []*chatSvc.WorkflowCallback
	resubmitted []string
	err         error
}

func (f *fakeWorkflowService) Status(ctx context.Context, chatID, userID string) (chatModels.WorkflowStatus, error) {
	if chatID == "missing" {
		return "", &domain.NotFoundError{Message: "no workflow submitted for this chat"}
	}
	return chatModels.WorkflowPending, nil
}

func (f *fakeWorkflowService) HandleCallback(ctx context.Context, cb *chatSvc.WorkflowCallback) (*chatModels.Message, bool, error) {
	f.callbacks = append(f.callbacks, cb)
	if f.err != nil {
		return nil, false, f.err
	}
	return &chatModels.Message{ID: "m1", ThreadID: cb.ChatID, Role: chatModels.RoleAssistant}, true, nil
}

func (f *fakeWorkflowService) Resubmit(ctx context.Context, chatID, userID string) (map[string]interface{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.resubmitted = append(f.resubmitted, chatID)
	return map[string]interface{}{"status": "pending"}, nil
}

func callbackRequest(secret string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/workflow/results",
		strings.NewReader(`{"chatId":"c1","answersData":{"documentUrl":"https://docs.example.com/d/1"}}`))
	if secret != "" {
		r.Header.Set(WorkflowSecretHeader, secret)
	}
	return r
}

func TestWorkflowResults_Secret(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		sent       string
		wantStatus int
	}{
		{"no secret configured", "", "", http.StatusOK},
		{"matching secret", "s3cret", "s3cret", http.StatusOK},
		{"wrong secret", "s3cret", "guess", http.StatusUnauthorized},
		{"missing secret", "s3cret", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeWorkflowService{}
			h := NewWorkflowHandler(svc, tt.configured, testLogger())
			rec := httptest.NewRecorder()

			h.Results(rec, callbackRequest(tt.sent))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Len(t, svc.callbacks, 1)
				assert.Contains(t, rec.Body.String(), `"success":true`)
			} else {
				assert.Empty(t, svc.callbacks)
			}
		})
	}
}

func TestWorkflowResults_ErrorShape(t *testing.T) {
	svc := &fakeWorkflowService{err: &domain.ValidationError{Message: "chatId: cannot be blank."}}
	rec := httptest.NewRecorder()

	NewWorkflowHandler(svc, "", testLogger()).Results(rec, callbackRequest(""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"chatId: cannot be blank."}`, rec.Body.String())
}

func TestWorkflowStatus(t *testing.T) {
	h := NewWorkflowHandler(&fakeWorkflowService{}, "", testLogger())

	r := httptest.NewRequest(http.MethodGet, "/api/workflow/c1/status", nil)
	r = httputil.WithUserID(r, "user-1")
	r.SetPathValue("chatId", "c1")
	rec := httptest.NewRecorder()
	h.Status(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chatId":"c1","status":"pending"}`, rec.Body.String())

	r = httptest.NewRequest(http.MethodGet, "/api/workflow/missing/status", nil)
	r = httputil.WithUserID(r, "user-1")
	r.SetPathValue("chatId", "missing")
	rec = httptest.NewRecorder()
	h.Status(rec, r)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func submitRequest(chatID string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/workflow/"+chatID+"/submit", nil)
	r = httputil.WithUserID(r, "user-1")
	r.SetPathValue("chatId", chatID)
	return r
}

func TestWorkflowSubmit(t *testing.T) {
	svc := &fakeWorkflowService{}
	rec := httptest.NewRecorder()

	NewWorkflowHandler(svc, "", testLogger()).Submit(rec, submitRequest("c1"))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"chatId":"c1","workflow":{"status":"pending"}}`, rec.Body.String())
	assert.Equal(t, []string{"c1"}, svc.resubmitted)
}

func TestWorkflowSubmit_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"already pending", &domain.ConflictError{Message: "a submission is already pending"}, http.StatusConflict},
		{"incomplete tool", &domain.ValidationError{Message: "tool answers are not complete yet"}, http.StatusBadRequest},
		{"unknown chat", domain.ErrNotFound, http.StatusNotFound},
		{"workflow down", &domain.WorkflowError{Message: "workflow returned 503", Code: domain.CodeWorkflowUnavailable}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewWorkflowHandler(&fakeWorkflowService{err: tt.err}, "", testLogger()).Submit(rec, submitRequest("c1"))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
