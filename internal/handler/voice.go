package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"lumina/internal/config"
	"lumina/internal/httputil"
	"lumina/internal/service/tools"
	"lumina/internal/service/tools/external"
	"lumina/internal/voice"
)

// VoiceHandler upgrades voice clients and bridges them to the realtime
// provider.
type VoiceHandler struct {
	cfg          voice.UpstreamConfig
	searchClient external.SearchClient
	searcher     tools.MessageSearcher
	saver        voice.SessionSaver
	upgrader     websocket.Upgrader
	logger       *slog.Logger
}

// NewVoiceHandler creates a voice handler. Origin checking is delegated to
// the CORS layer; the upgrader accepts what reaches it.
func NewVoiceHandler(cfg *config.Config, searchClient external.SearchClient, searcher tools.MessageSearcher, saver voice.SessionSaver, logger *slog.Logger) *VoiceHandler {
	return &VoiceHandler{
		cfg: voice.UpstreamConfig{
			URL:    cfg.RealtimeURL,
			Voice:  cfg.RealtimeVoice,
			APIKey: cfg.RealtimeAPIKey,
		},
		searchClient: searchClient,
		searcher:     searcher,
		saver:        saver,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Voice runs one voice session over a websocket.
// GET /api/voice?sessionId=...&access_token=...
// Auth happens in middleware via the access_token query fallback, since
// browsers cannot set headers on websocket connections.
func (h *VoiceHandler) Voice(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	sessionID := r.URL.Query().Get("sessionId")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	// Voice sessions get the retrieval tools only; artifacts and file
	// generation are text-chat features.
	builder := tools.NewBuilder(nil)
	if h.searchClient != nil {
		builder = builder.WithWebSearch(h.searchClient)
	}
	if h.searcher != nil {
		builder = builder.WithPastChats(userID, h.searcher)
	}
	registry, defs := builder.Build()

	bridge := voice.NewBridge(conn, h.cfg, registry, defs, h.saver, userID, sessionID, h.logger)
	if err := bridge.Run(r.Context()); err != nil {
		h.logger.Info("voice session ended", "error", err, "user_id", userID)
	}
}
