package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/auth"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/cache"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/httputil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubVerifier struct{}

func (stubVerifier) VerifyToken(token string) (*auth.Claims, error) {
	if token != "good" {
		return nil, domain.ErrUnauthorized
	}
	c := &auth.Claims{Role: "authenticated"}
	c.Subject = "user-1"
	return c, nil
}

func (stubVerifier) Close() error { return nil }

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, httputil.GetUserID(r))
	})
}

func TestAuthMiddleware(t *testing.T) {
	h := AuthMiddleware(stubVerifier{}, testLogger(), "/health")(echoUser())

	tests := []struct {
		name       string
		method     string
		path       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", http.MethodGet, "/api/threads", "Bearer good", http.StatusOK, "user-1"},
		{"lowercase scheme", http.MethodGet, "/api/threads", "bearer good", http.StatusOK, "user-1"},
		{"bad token", http.MethodGet, "/api/threads", "Bearer bad", http.StatusUnauthorized, ""},
		{"missing header", http.MethodGet, "/api/threads", "", http.StatusUnauthorized, ""},
		{"public path", http.MethodGet, "/health", "", http.StatusOK, ""},
		{"preflight", http.MethodOptions, "/api/chat", "", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestRateLimit_PerUser(t *testing.T) {
	buckets := cache.NewLRU[*rate.Limiter](100, time.Hour)
	h := RateLimit(buckets, 0.001, 2, testLogger())(echoUser())

	send := func(userID string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		r = httputil.WithUserID(r, userID)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("user-1"))
	assert.Equal(t, http.StatusOK, send("user-1"))
	assert.Equal(t, http.StatusTooManyRequests, send("user-1"))
	assert.Equal(t, http.StatusOK, send("user-2"), "buckets are per user")
}

func TestRecovery(t *testing.T) {
	h := Recovery(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tools", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRecovery_AfterStreamStarted(t *testing.T) {
	h := Recovery(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, isFlusher := w.(http.Flusher)
		require.True(t, isFlusher)
		w.Write([]byte("data: {}\n\n"))
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/turns/t1/stream", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "data: {}\n\n", rec.Body.String())
}
