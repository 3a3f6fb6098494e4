package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/httputil"
)

// handleError converts domain errors to RFC 7807 responses.
func handleError(w http.ResponseWriter, err error) {
	var (
		validationErr *domain.ValidationError
		conflictErr   *domain.ConflictError
		workflowErr   *domain.WorkflowError
		upstreamErr   *domain.UpstreamError
	)

	switch {
	case errors.As(err, &validationErr):
		httputil.RespondError(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, domain.ErrEmptyInput), errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		httputil.RespondError(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &conflictErr):
		httputil.RespondError(w, http.StatusConflict, conflictErr.Error())
	case errors.As(err, &workflowErr):
		httputil.RespondErrorWithExtras(w, workflowErr.StatusCode(), workflowErr.Error(), map[string]interface{}{
			"code": workflowErr.Code,
		})
	case errors.As(err, &upstreamErr):
		httputil.RespondErrorWithExtras(w, upstreamErr.StatusCode(), "upstream model failure", map[string]interface{}{
			"code": domain.ErrorCode(upstreamErr),
		})
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// PathParam reads a required path parameter, responding 400 when it is empty.
func PathParam(w http.ResponseWriter, r *http.Request, name, label string) (string, bool) {
	value := strings.TrimSpace(r.PathValue(name))
	if value == "" {
		httputil.RespondError(w, http.StatusBadRequest, label+" is required")
		return "", false
	}
	return value, true
}

// requireUser reads the authenticated user, responding 401 when absent.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := httputil.GetUserID(r)
	if userID == "" {
		httputil.RespondError(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return userID, true
}
