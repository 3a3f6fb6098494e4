package handler

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain"
	chatSvc "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/chat"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/httputil"
)

// WorkflowSecretHeader carries the shared secret on workflow callbacks.
const WorkflowSecretHeader = "X-Workflow-Secret"

// WorkflowHandler receives document workflow results and reports status.
type WorkflowHandler struct {
	workflowService chatSvc.WorkflowService
	secret          string
	logger          *slog.Logger
}

// NewWorkflowHandler creates a workflow handler. An empty secret disables
// the callback check.
func NewWorkflowHandler(workflowService chatSvc.WorkflowService, secret string, logger *slog.Logger) *WorkflowHandler {
	return &WorkflowHandler{workflowService: workflowService, secret: secret, logger: logger}
}

// Results records a workflow result on its thread. Safe to call repeatedly.
// POST /api/workflow/results
func (h *WorkflowHandler) Results(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get(WorkflowSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.logger.Warn("workflow callback rejected: bad secret", "remote_addr", r.RemoteAddr)
			httputil.RespondErrorBody(w, http.StatusUnauthorized, "invalid workflow secret", "")
			return
		}
	}

	var cb chatSvc.WorkflowCallback
	if err := httputil.ParseJSON(w, r, &cb); err != nil {
		httputil.RespondErrorBody(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	msg, created, err := h.workflowService.HandleCallback(r.Context(), &cb)
	if err != nil {
		var (
			validationErr *domain.ValidationError
			httpErr       domain.HTTPError
		)
		switch {
		case errors.As(err, &validationErr):
			httputil.RespondErrorBody(w, http.StatusBadRequest, validationErr.Message, "")
		case errors.Is(err, domain.ErrNotFound):
			httputil.RespondErrorBody(w, http.StatusNotFound, "chat not found", "")
		case errors.As(err, &httpErr):
			httputil.RespondErrorBody(w, httpErr.StatusCode(), httpErr.Error(), domain.ErrorCode(err))
		default:
			h.logger.Error("workflow callback failed", "chat_id", cb.ChatID, "error", err)
			httputil.RespondErrorBody(w, http.StatusInternalServerError, "internal server error", "")
		}
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"created": created,
		"data":    msg,
	})
}

// Status reports the handoff status of one of the caller's chats.
// GET /api/workflow/{chatId}/status
func (h *WorkflowHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	chatID, ok := PathParam(w, r, "chatId", "Chat ID")
	if !ok {
		return
	}

	status, err := h.workflowService.Status(r.Context(), chatID, userID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"chatId": chatID,
		"status": status,
	})
}

// Submit resubmits a completed tool flow whose last handoff failed.
// POST /api/workflow/{chatId}/submit
func (h *WorkflowHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	chatID, ok := PathParam(w, r, "chatId", "Chat ID")
	if !ok {
		return
	}

	workflow, err := h.workflowService.Resubmit(r.Context(), chatID, userID)
	if err != nil {
		h.logger.Warn("workflow resubmission failed", "chat_id", chatID, "error", err)
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusAccepted, map[string]interface{}{
		"chatId":   chatID,
		"workflow": workflow,
	})
}
