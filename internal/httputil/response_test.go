package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorWithExtras_FlattensExtras(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondErrorWithExtras(rec, http.StatusBadGateway, "document workflow is unavailable", map[string]interface{}{
		"code": "WORKFLOW_UNAVAILABLE",
	})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Bad Gateway", body["title"])
	assert.Equal(t, "WORKFLOW_UNAVAILABLE", body["code"])
	assert.Equal(t, float64(502), body["status"])
}

func TestRespondErrorBody(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondErrorBody(rec, http.StatusBadRequest, "Cannot process empty input.", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Cannot process empty input."}`, rec.Body.String())
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/memories/search?k=7&bad=x", nil)
	assert.Equal(t, 7, QueryInt(r, "k", 5))
	assert.Equal(t, 5, QueryInt(r, "bad", 5))
	assert.Equal(t, 5, QueryInt(r, "missing", 5))
}

func TestRespondError_ProblemType(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusTooManyRequests, "slow down")

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "https://datatracker.ietf.org/doc/html/rfc6585#section-4", body["type"])

	rec = httptest.NewRecorder()
	RespondError(rec, http.StatusTeapot, "")
	body = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "about:blank", body["type"])
	assert.NotContains(t, body, "detail")
}
