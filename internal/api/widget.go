package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dennisdiepolder/monti/wrapupbridge/internal/frameurl"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/types"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/widget"
	"github.com/rs/zerolog"
)

// Controller is the widget surface exposed over HTTP
type Controller interface {
	Status() widget.Status
	Dispatch(ctx context.Context, msg types.FrameMessage) types.WrapupOutcome
}

// WidgetHandler exposes the widget state and accepts commands equivalent to
// frame messages
type WidgetHandler struct {
	widget     Controller
	frameURL   string
	attributes map[string]interface{}
	logger     zerolog.Logger
}

// NewWidgetHandler creates a new WidgetHandler
func NewWidgetHandler(w Controller, frameURL string, attributes map[string]interface{}, logger zerolog.Logger) *WidgetHandler {
	return &WidgetHandler{
		widget:     w,
		frameURL:   frameURL,
		attributes: attributes,
		logger:     logger.With().Str("component", "widget_handler").Logger(),
	}
}

// GetStatus returns the widget status
// GET /api/widget/status
func (h *WidgetHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.widget.Status())
}

// PostCommand runs a command the same way a frame message would
// POST /api/widget/commands
func (h *WidgetHandler) PostCommand(w http.ResponseWriter, r *http.Request) {
	var msg types.FrameMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil || msg.Func == "" {
		http.Error(w, `{"error":"invalid command"}`, http.StatusBadRequest)
		return
	}

	outcome := h.widget.Dispatch(r.Context(), msg)

	status := http.StatusOK
	if outcome == types.OutcomeRejected {
		status = http.StatusConflict
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(types.FrameAck{Type: "ack", Func: msg.Func, Outcome: string(outcome)})
}

// GetFrameURL returns the embedded frame URL with the widget attributes
// flattened into its query
// GET /api/widget/frame-url
func (h *WidgetHandler) GetFrameURL(w http.ResponseWriter, r *http.Request) {
	u, err := frameurl.Build(h.frameURL, h.attributes)
	if err != nil {
		h.logger.Error().Err(err).Str("frame_url", h.frameURL).Msg("failed to build frame url")
		http.Error(w, `{"error":"invalid frame url"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"url": u})
}
