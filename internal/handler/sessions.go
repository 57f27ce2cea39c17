package handler

import (
	"context"
	"log/slog"
	"net/http"

	"lumina/internal/domain/models"
	"lumina/internal/httputil"
)

// SessionStore is the persistence surface the session endpoints need.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID, userID string) (*models.ChatSession, error)
	ListSessions(ctx context.Context, userID string) ([]models.ChatSession, error)
	DeleteSession(ctx context.Context, sessionID, userID string) error
	AppendMessages(ctx context.Context, sessionID, userID string, messages []models.ChatMessage) (*models.ChatSession, error)
	UpdateCanvas(ctx context.Context, sessionID, userID string, content *string) error
}

// SessionHandler serves the chat history endpoints.
type SessionHandler struct {
	store  SessionStore
	logger *slog.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(store SessionStore, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger}
}

// ListSessions returns the user's sessions, newest activity first.
// GET /api/sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	sessions, err := h.store.ListSessions(r.Context(), userID)
	if err != nil {
		h.logger.Error("list sessions failed", "error", err, "user_id", userID)
		httputil.RespondDomainError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, sessions)
}

// GetSession returns one session with its full message history.
// GET /api/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	sessionID := r.PathValue("id")

	session, err := h.store.GetSession(r.Context(), sessionID, userID)
	if err != nil {
		httputil.RespondDomainError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, session)
}

// DeleteSession removes a session and its messages.
// DELETE /api/sessions/{id}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	sessionID := r.PathValue("id")

	if err := h.store.DeleteSession(r.Context(), sessionID, userID); err != nil {
		httputil.RespondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// appendMessagesRequest is the body for the message append endpoint, used by
// the client to persist finished exchanges (including voice emergency saves
// on page-hide).
type appendMessagesRequest struct {
	Messages []models.ChatMessage `json:"messages"`
}

// AppendMessages appends finished messages to a session, creating it on
// first write.
// POST /api/sessions/{id}/messages
func (h *SessionHandler) AppendMessages(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	sessionID := r.PathValue("id")

	var req appendMessagesRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		httputil.RespondError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	session, err := h.store.AppendMessages(r.Context(), sessionID, userID, req.Messages)
	if err != nil {
		h.logger.Error("append messages failed", "error", err, "user_id", userID)
		httputil.RespondDomainError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, session)
}

// updateCanvasRequest carries the session's replacement canvas artifact.
type updateCanvasRequest struct {
	Content *string `json:"content"`
}

// UpdateCanvas stores the session's current canvas artifact.
// PUT /api/sessions/{id}/canvas
func (h *SessionHandler) UpdateCanvas(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	sessionID := r.PathValue("id")

	var req updateCanvasRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.store.UpdateCanvas(r.Context(), sessionID, userID, req.Content); err != nil {
		httputil.RespondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
