package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain"
	chatSvc "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/chat"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/handler/sse"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/httputil"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/streaming"
)

// ChatHandler serves chat turns and their streams.
// Handlers only talk to services; the registry is the one shared runtime object.
type ChatHandler struct {
	chatService   chatSvc.ChatService
	threadService chatSvc.ThreadService
	registry      *streaming.Registry
	sseConfig     *sse.Config
	logger        *slog.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(
	chatService chatSvc.ChatService,
	threadService chatSvc.ThreadService,
	registry *streaming.Registry,
	sseConfig *sse.Config,
	logger *slog.Logger,
) *ChatHandler {
	if sseConfig == nil {
		sseConfig = sse.DefaultConfig()
	}
	return &ChatHandler{
		chatService:   chatService,
		threadService: threadService,
		registry:      registry,
		sseConfig:     sseConfig,
		logger:        logger,
	}
}

// SendMessage runs one turn.
// POST /api/chat
// Responds with an SSE stream for generated replies and JSON for direct ones.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req chatSvc.TurnRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondErrorBody(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	result, err := h.chatService.HandleTurn(r.Context(), userID, &req)
	if err != nil {
		h.respondTurnError(w, err)
		return
	}

	if result.Reply != nil {
		httputil.RespondJSON(w, http.StatusOK, result.Reply)
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		result.Stream.Interrupt()
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("X-Chat-Id", result.ChatID)
	w.Header().Set("X-Turn-Id", result.Stream.TurnID())
	w.WriteHeader(http.StatusOK)

	outcome := sse.Pump(r.Context(), writer, result.Events, h.sseConfig, h.logger.With("turn_id", result.Stream.TurnID()))
	result.Stream.RemoveClient(result.ClientID)
	if outcome == sse.Disconnected {
		// The requester went away: stop generating and leave no trace.
		if result.Stream.Interrupt() {
			h.logger.Info("turn interrupted by client disconnect",
				"turn_id", result.Stream.TurnID(),
				"chat_id", result.ChatID)
		}
	}
}

// respondTurnError keeps the flat {"error","code"} shape the chat client reads.
func (h *ChatHandler) respondTurnError(w http.ResponseWriter, err error) {
	var (
		validationErr *domain.ValidationError
		httpErr       domain.HTTPError
	)
	switch {
	case errors.Is(err, domain.ErrEmptyInput):
		httputil.RespondErrorBody(w, http.StatusBadRequest, domain.ErrEmptyInput.Error(), "")
	case errors.As(err, &validationErr):
		httputil.RespondErrorBody(w, http.StatusBadRequest, validationErr.Message, "")
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondErrorBody(w, http.StatusNotFound, "chat not found", "")
	case errors.As(err, &httpErr):
		httputil.RespondErrorBody(w, httpErr.StatusCode(), httpErr.Error(), domain.ErrorCode(err))
	default:
		h.logger.Error("turn failed", "error", err)
		httputil.RespondErrorBody(w, http.StatusInternalServerError, "internal server error", "")
	}
}

// StreamTurn reattaches to a running or recently finished turn.
// GET /api/turns/{id}/stream
func (h *ChatHandler) StreamTurn(w http.ResponseWriter, r *http.Request) {
	executor, ok := h.ownedTurn(w, r)
	if !ok {
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	clientID := uuid.NewString()
	events := executor.AddClient(clientID)
	defer executor.RemoveClient(clientID)

	w.WriteHeader(http.StatusOK)
	logger := h.logger.With("turn_id", executor.TurnID(), "client_id", clientID)
	logger.Debug("SSE client attached")

	// A reattached observer leaving does not cancel the turn.
	if sse.Pump(r.Context(), writer, events, h.sseConfig, logger) == sse.Disconnected {
		logger.Debug("SSE client detached")
	}
}

// InterruptTurn cancels a streaming turn.
// POST /api/turns/{id}/interrupt
func (h *ChatHandler) InterruptTurn(w http.ResponseWriter, r *http.Request) {
	executor, ok := h.ownedTurn(w, r)
	if !ok {
		return
	}

	if !executor.Interrupt() {
		httputil.RespondError(w, http.StatusConflict, "turn is already finishing")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"turn_id": executor.TurnID(),
		"status":  string(streaming.StatusCancelled),
	})
}

// ownedTurn resolves the {id} turn and checks the caller owns its thread.
func (h *ChatHandler) ownedTurn(w http.ResponseWriter, r *http.Request) (*streaming.TurnExecutor, bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return nil, false
	}
	turnID, ok := PathParam(w, r, "id", "Turn ID")
	if !ok {
		return nil, false
	}
	if _, err := uuid.Parse(turnID); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid turn ID format")
		return nil, false
	}

	executor := h.registry.Get(turnID)
	if executor == nil {
		httputil.RespondError(w, http.StatusNotFound, "Turn is not currently streaming")
		return nil, false
	}
	if _, err := h.threadService.GetThread(r.Context(), executor.ThreadID(), userID); err != nil {
		// Someone else's turn looks the same as a missing one.
		httputil.RespondError(w, http.StatusNotFound, "Turn is not currently streaming")
		return nil, false
	}
	return executor, true
}
