package desktopsim

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dennisdiepolder/monti/wrapupbridge/internal/types"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// API provides an HTTP control interface for the simulated platform
type API struct {
	platform *Platform
	logger   zerolog.Logger
}

// NewAPI creates a new control API
func NewAPI(platform *Platform, logger zerolog.Logger) *API {
	return &API{
		platform: platform,
		logger:   logger,
	}
}

// SetupRoutes configures HTTP routes
func (api *API) SetupRoutes(router *mux.Router) {
	router.Handle("/desktop", api.platform)
	router.HandleFunc("/health", api.healthHandler).Methods("GET")
	router.HandleFunc("/interactions", api.listInteractionsHandler).Methods("GET")
	router.HandleFunc("/interactions", api.createInteractionHandler).Methods("POST")
	router.HandleFunc("/interactions/{id}", api.getInteractionHandler).Methods("GET")
	router.HandleFunc("/interactions/{id}/state", api.setStateHandler).Methods("POST")
	router.HandleFunc("/agents", api.agentsHandler).Methods("GET")
	router.HandleFunc("/codes", api.codesHandler).Methods("GET", "PUT")
	router.HandleFunc("/behavior", api.behaviorHandler).Methods("GET", "PUT")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// healthHandler returns service health
func (api *API) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// listInteractionsHandler returns all interactions
func (api *API) listInteractionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.platform.Interactions())
}

// createInteractionHandler starts a new active interaction for an agent
func (api *API) createInteractionHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      types.InteractionID `json:"id"`
		AgentID string              `json:"agentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AgentID == "" {
		http.Error(w, "agentId is required", http.StatusBadRequest)
		return
	}

	in := api.platform.CreateInteraction(req.AgentID, req.ID)
	api.logger.Info().
		Str("interaction_id", string(in.ID)).
		Str("agent_id", in.AgentID).
		Msg("interaction created")
	writeJSON(w, http.StatusCreated, in)
}

// getInteractionHandler returns a single interaction
func (api *API) getInteractionHandler(w http.ResponseWriter, r *http.Request) {
	id := types.InteractionID(mux.Vars(r)["id"])
	in, ok := api.platform.Interaction(id)
	if !ok {
		http.Error(w, "interaction not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

// setStateHandler forces a lifecycle transition
func (api *API) setStateHandler(w http.ResponseWriter, r *http.Request) {
	id := types.InteractionID(mux.Vars(r)["id"])

	var req struct {
		State types.LifecycleState `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.State == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := api.platform.SetState(id, req.State); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"interactionId": string(id),
		"state":         string(req.State),
	})
}

// agentsHandler returns agent presence
func (api *API) agentsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.platform.Agents())
}

// codesHandler gets or replaces the code lists
func (api *API) codesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == "GET" {
		idle, wrapup := api.platform.Codes()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"idleCodes":   idle,
			"wrapupCodes": wrapup,
		})
		return
	}

	var req struct {
		IdleCodes   []types.IdleCode   `json:"idleCodes"`
		WrapupCodes []types.WrapupCode `json:"wrapupCodes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	api.platform.SetCodes(req.IdleCodes, req.WrapupCodes)
	api.logger.Info().
		Int("idle_codes", len(req.IdleCodes)).
		Int("wrapup_codes", len(req.WrapupCodes)).
		Msg("code lists updated")
	writeJSON(w, http.StatusOK, map[string]string{"message": "codes updated"})
}

// behaviorHandler gets or replaces the platform behavior
func (api *API) behaviorHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == "GET" {
		writeJSON(w, http.StatusOK, api.platform.Behavior())
		return
	}

	var b Behavior
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	api.platform.SetBehavior(b)
	api.logger.Info().
		Bool("wrapup_on_end", b.WrapupOnEnd).
		Dur("wrapup_delay", b.WrapupDelay).
		Bool("fail_end", b.FailEnd).
		Bool("fail_apply", b.FailApply).
		Msg("behavior updated")
	writeJSON(w, http.StatusOK, b)
}

// Start serves the platform and the control routes until ctx is done
func (api *API) Start(ctx context.Context, addr string) error {
	router := mux.NewRouter()
	api.SetupRoutes(router)

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		api.logger.Info().Msg("shutting down desktop simulator")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	api.logger.Info().Str("addr", addr).Msg("desktop simulator started")
	return server.ListenAndServe()
}
