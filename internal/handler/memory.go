package handler

import (
	"log/slog"
	"net/http"
	"strings"

	chatSvc "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/chat"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/httputil"
)

const defaultMemorySearchK = 5

// MemoryHandler exposes a user's long-term memories.
type MemoryHandler struct {
	memoryService chatSvc.MemoryService
	logger        *slog.Logger
}

// NewMemoryHandler creates a memory handler
func NewMemoryHandler(memoryService chatSvc.MemoryService, logger *slog.Logger) *MemoryHandler {
	return &MemoryHandler{memoryService: memoryService, logger: logger}
}

// Search returns the memories closest to q
// GET /api/memories/search?q=&k=
func (h *MemoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		httputil.RespondError(w, http.StatusBadRequest, "q is required")
		return
	}

	results, err := h.memoryService.Search(r.Context(), userID, query, httputil.QueryInt(r, "k", defaultMemorySearchK))
	if err != nil {
		h.logger.Error("memory search failed", "user_id", userID, "error", err)
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, results)
}

// Wipe deletes all of the caller's memories
// DELETE /api/memories
func (h *MemoryHandler) Wipe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	deleted, err := h.memoryService.Wipe(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	h.logger.Info("memories wiped", "user_id", userID, "deleted", deleted)
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"deleted": deleted})
}
