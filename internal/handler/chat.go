package handler

import (
	"log/slog"
	"net/http"

	"lumina/internal/handler/sse"
	"lumina/internal/httputil"
	"lumina/internal/service/chat"
	"lumina/internal/service/chat/streaming"
)

// ChatHandler handles the chat endpoint. Handlers only talk to services,
// never repositories.
type ChatHandler struct {
	chatService *chat.Service
	logger      *slog.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(chatService *chat.Service, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger,
	}
}

// Chat runs one chat request.
// POST /api/chat
// With stream=false the whole response returns as one JSON document; with
// stream=true it returns as an SSE stream of normalized events.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	var req chat.Request
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !req.Stream {
		resp, err := h.chatService.Complete(r.Context(), userID, &req)
		if err != nil {
			h.logger.Error("chat request failed", "error", err, "user_id", userID)
			httputil.RespondDomainError(w, err)
			return
		}
		httputil.RespondJSON(w, http.StatusOK, resp)
		return
	}

	h.stream(w, r, userID, &req)
}

func (h *ChatHandler) stream(w http.ResponseWriter, r *http.Request, userID string, req *chat.Request) {
	// Validate before committing to the SSE content type so early failures
	// still map onto plain HTTP error responses.
	if err := req.Validate(); err != nil {
		httputil.RespondDomainError(w, err)
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	err = h.chatService.Stream(r.Context(), userID, req, func(ev streaming.Event) error {
		return writer.WriteEvent(ev)
	})
	if err != nil {
		// The terminal error event already went out in-stream; this is for
		// the operator, not the client.
		h.logger.Error("chat stream ended with error", "error", err, "user_id", userID)
	}
}
