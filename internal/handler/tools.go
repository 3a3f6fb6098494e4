package handler

import (
	"net/http"
	"time"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/httputil"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/tools"
)

// ToolHandler serves the guided tool catalog.
type ToolHandler struct {
	catalog *tools.Catalog
}

// NewToolHandler creates a tool handler
func NewToolHandler(catalog *tools.Catalog) *ToolHandler {
	return &ToolHandler{catalog: catalog}
}

// ListTools returns every tool with its questions
// GET /api/tools
func (h *ToolHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, h.catalog.List())
}

// HealthCheck reports liveness
// GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now(),
	})
}
