package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dennisdiepolder/monti/wrapupbridge/internal/storage"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// WrapupHandler provides REST endpoints for the wrap-up audit trail
type WrapupHandler struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewWrapupHandler creates a new WrapupHandler
func NewWrapupHandler(store storage.Store, logger zerolog.Logger) *WrapupHandler {
	return &WrapupHandler{
		store:  store,
		logger: logger.With().Str("component", "wrapup_handler").Logger(),
	}
}

// GetByDate returns the wrap-up records of one day
// GET /api/wrapups/{date}?interactionId=...
func (h *WrapupHandler) GetByDate(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	var records []types.WrapupRecord
	var err error
	if id := r.URL.Query().Get("interactionId"); id != "" {
		records, err = h.store.GetInteractionWrapups(date, types.InteractionID(id))
	} else {
		records, err = h.store.GetWrapupRecords(date)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("date", date).Msg("failed to get wrap-up records")
		http.Error(w, "failed to retrieve wrap-up records", http.StatusInternalServerError)
		return
	}

	if records == nil {
		records = []types.WrapupRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// Truncate deletes every wrap-up record
// DELETE /api/wrapups
func (h *WrapupHandler) Truncate(w http.ResponseWriter, r *http.Request) {
	if err := h.store.TruncateAll(); err != nil {
		h.logger.Error().Err(err).Msg("failed to truncate wrap-up records")
		http.Error(w, `{"error":"failed to truncate"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info().Msg("wrap-up records truncated")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "wrap-up records deleted"})
}
