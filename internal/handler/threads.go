package handler

import (
	"log/slog"
	"net/http"

	chatSvc "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/chat"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/httputil"
)

// ThreadHandler handles thread HTTP requests
type ThreadHandler struct {
	threadService chatSvc.ThreadService
	logger        *slog.Logger
}

// NewThreadHandler creates a new thread handler
func NewThreadHandler(threadService chatSvc.ThreadService, logger *slog.Logger) *ThreadHandler {
	return &ThreadHandler{threadService: threadService, logger: logger}
}

// ListThreads returns the caller's threads
// GET /api/threads
func (h *ThreadHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	threads, err := h.threadService.ListThreads(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, threads)
}

// GetThread returns a thread with its messages
// GET /api/threads/{id}
func (h *ThreadHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	threadID, ok := PathParam(w, r, "id", "Thread ID")
	if !ok {
		return
	}

	thread, err := h.threadService.GetThread(r.Context(), threadID, userID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, thread)
}

// RenameThread sets a custom title
// PATCH /api/threads/{id}
func (h *ThreadHandler) RenameThread(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	threadID, ok := PathParam(w, r, "id", "Thread ID")
	if !ok {
		return
	}

	var req chatSvc.UpdateThreadRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	thread, err := h.threadService.RenameThread(r.Context(), threadID, userID, &req)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, thread)
}

// DeleteThread removes a thread
// DELETE /api/threads/{id}
func (h *ThreadHandler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	threadID, ok := PathParam(w, r, "id", "Thread ID")
	if !ok {
		return
	}

	if err := h.threadService.DeleteThread(r.Context(), threadID, userID); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
