package frame

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dennisdiepolder/monti/wrapupbridge/internal/auth"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/config"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/types"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Dispatcher runs commands received from embedded frames
type Dispatcher interface {
	Dispatch(ctx context.Context, msg types.FrameMessage) types.WrapupOutcome
	Initialized() bool
}

// Handler handles frame WebSocket upgrade requests
type Handler struct {
	hub        *Hub
	dispatcher Dispatcher
	config     *config.Config
	upgrader   websocket.Upgrader
	agentID    string
	logger     zerolog.Logger
}

// NewHandler creates a new frame WebSocket handler
func NewHandler(hub *Hub, dispatcher Dispatcher, cfg *config.Config, logger zerolog.Logger) *Handler {
	h := &Handler{
		hub:        hub,
		dispatcher: dispatcher,
		config:     cfg,
		agentID:    cfg.AgentID,
		logger:     logger.With().Str("component", "frame").Logger(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts requests without an Origin header and origins listed
// in ALLOWED_ORIGINS
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	h.logger.Warn().Str("origin", origin).Msg("rejected frame origin")
	return false
}

// ServeHTTP handles WebSocket upgrade requests. A token bound to another
// agent (agentId claim) cannot drive this agent's widget.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.GetUserFromContext(r.Context())
	if claims != nil && claims.AgentID != "" && claims.AgentID != h.agentID {
		h.logger.Warn().
			Str("token_agent_id", claims.AgentID).
			Str("email", claims.Email).
			Msg("rejected frame token for another agent")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := NewClient(h.hub, conn, h.dispatcher, h.config, h.logger, claims)

	// Tell the frame whether commands are accepted yet
	if status, err := json.Marshal(h.Status()); err == nil {
		client.send <- status
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	client.Start()
}

// Status returns the status message sent to frames
func (h *Handler) Status() types.FrameStatus {
	return types.FrameStatus{
		Type:        "status",
		AgentID:     h.agentID,
		Initialized: h.dispatcher.Initialized(),
	}
}

// BroadcastStatus pushes the current status to every frame
func (h *Handler) BroadcastStatus() {
	status, err := json.Marshal(h.Status())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal frame status")
		return
	}
	h.hub.Broadcast(status)
}
