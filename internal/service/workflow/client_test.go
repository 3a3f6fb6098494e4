package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/testutil"
)

func sampleRequest() *chat.WorkflowRequest {
	return &chat.WorkflowRequest{
		ChatID:       "chat-1",
		ToolID:       "hybrid-offer",
		Answers:      map[string]string{"offerDescription": "group coaching"},
		Conversation: []chat.ConversationEntry{{Role: "user", Content: "group coaching"}},
		Timestamp:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func workflowCode(t *testing.T, err error) string {
	t.Helper()
	var wfErr *domain.WorkflowError
	require.True(t, errors.As(err, &wfErr), "expected *domain.WorkflowError, got %T", err)
	return wfErr.Code
}

func TestSubmit_WebhookAccepted(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, ModeWebhook, time.Second, testutil.DiscardLogger())
	sub, err := client.Submit(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, chat.WorkflowPending, sub.Status)
	assert.Nil(t, sub.Result)
	assert.Equal(t, "chat-1", got["chatId"])
	assert.Equal(t, map[string]interface{}{"offerDescription": "group coaching"}, got["answers"])
	assert.NotEmpty(t, got["conversation"])
	assert.Equal(t, "2025-03-01T12:00:00Z", got["timestamp"])
}

func TestSubmit_SyncResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"documentUrl":"https://docs.example.com/d/1"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, ModeSync, time.Second, testutil.DiscardLogger())
	sub, err := client.Submit(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, chat.WorkflowComplete, sub.Status)
	require.NotNil(t, sub.Result)
	assert.Equal(t, "https://docs.example.com/d/1", sub.Result.DocumentURL)
}

func TestSubmit_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
		code    string
	}{
		{
			name: "non-2xx",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			code: domain.CodeWorkflowRejected,
		},
		{
			name: "bad json in sync mode",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			},
			code: domain.CodeWorkflowBadResponse,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
			},
			timeout: 20 * time.Millisecond,
			code:    domain.CodeWorkflowTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			timeout := tt.timeout
			if timeout == 0 {
				timeout = time.Second
			}
			client := NewClient(srv.URL, ModeSync, timeout, testutil.DiscardLogger())
			_, err := client.Submit(context.Background(), sampleRequest())
			require.Error(t, err)
			assert.Equal(t, tt.code, workflowCode(t, err))
		})
	}
}

func TestSubmit_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, ModeWebhook, time.Second, testutil.DiscardLogger())
	_, err := client.Submit(context.Background(), sampleRequest())
	assert.Equal(t, domain.CodeWorkflowUnavailable, workflowCode(t, err))
}

func TestSubmit_NotConfigured(t *testing.T) {
	client := NewClient("", ModeWebhook, time.Second, testutil.DiscardLogger())
	_, err := client.Submit(context.Background(), sampleRequest())
	assert.Equal(t, domain.CodeWorkflowNotConfig, workflowCode(t, err))
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode(" SYNC ")
	require.NoError(t, err)
	assert.Equal(t, ModeSync, mode)

	_, err = ParseMode("poll")
	assert.Error(t, err)
}

func TestParseResult(t *testing.T) {
	r := ParseResult(map[string]interface{}{"document_url": "https://x"})
	assert.True(t, r.Success)
	assert.Equal(t, "https://x", r.DocumentURL)

	r = ParseResult(map[string]interface{}{"error": "template missing"})
	assert.False(t, r.Success)
	assert.Equal(t, "template missing", r.Error)

	r = ParseResult(map[string]interface{}{"success": false})
	assert.False(t, r.Success)
}
