package desktopsim

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dennisdiepolder/monti/wrapupbridge/internal/types"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

func setupTestAPI() (*Platform, *mux.Router) {
	logger := zerolog.Nop()
	platform := NewPlatform(DefaultIdleCodes(), DefaultWrapupCodes(), logger)

	router := mux.NewRouter()
	NewAPI(platform, logger).SetupRoutes(router)
	return platform, router
}

func TestHealthHandler(t *testing.T) {
	_, router := setupTestAPI()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "healthy" {
		t.Fatalf("expected status healthy, got %s", body["status"])
	}
}

func TestCreateInteractionHandler(t *testing.T) {
	platform, router := setupTestAPI()

	payload := `{"id": "i-1", "agentId": "agent-1"}`
	req := httptest.NewRequest(http.MethodPost, "/interactions", bytes.NewBufferString(payload))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}

	in, ok := platform.Interaction("i-1")
	if !ok {
		t.Fatal("expected interaction to exist")
	}
	if in.State != types.StateActive || in.AgentID != "agent-1" {
		t.Errorf("unexpected interaction: %+v", in)
	}
}

func TestCreateInteractionHandlerGeneratesID(t *testing.T) {
	_, router := setupTestAPI()

	req := httptest.NewRequest(http.MethodPost, "/interactions", bytes.NewBufferString(`{"agentId": "agent-1"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var in Interaction
	json.NewDecoder(w.Body).Decode(&in)
	if in.ID == "" {
		t.Fatal("expected generated interaction id")
	}
}

func TestCreateInteractionHandlerRequiresAgent(t *testing.T) {
	_, router := setupTestAPI()

	req := httptest.NewRequest(http.MethodPost, "/interactions", bytes.NewBufferString(`{"id": "i-1"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSetStateHandler(t *testing.T) {
	platform, router := setupTestAPI()
	platform.CreateInteraction("agent-1", "i-1")

	req := httptest.NewRequest(http.MethodPost, "/interactions/i-1/state", bytes.NewBufferString(`{"state": "Wrapup"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	in, _ := platform.Interaction("i-1")
	if in.State != types.StateWrapup {
		t.Errorf("expected Wrapup, got %s", in.State)
	}
}

func TestSetStateHandlerUnknownInteraction(t *testing.T) {
	_, router := setupTestAPI()

	req := httptest.NewRequest(http.MethodPost, "/interactions/missing/state", bytes.NewBufferString(`{"state": "Closed"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCodesHandler(t *testing.T) {
	platform, router := setupTestAPI()

	payload := `{"idleCodes": [{"id": 7, "name": "Meeting", "isDefault": true}]}`
	req := httptest.NewRequest(http.MethodPut, "/codes", bytes.NewBufferString(payload))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	idle, wrapup := platform.Codes()
	if len(idle) != 1 || idle[0].ID.String() != "7" {
		t.Errorf("unexpected idle codes: %+v", idle)
	}
	if len(wrapup) != 3 {
		t.Errorf("wrap-up codes should be unchanged, got %d", len(wrapup))
	}
}

func TestBehaviorHandler(t *testing.T) {
	platform, router := setupTestAPI()

	req := httptest.NewRequest(http.MethodPut, "/behavior", bytes.NewBufferString(`{"wrapupOnEnd": true, "failApply": true}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	b := platform.Behavior()
	if !b.WrapupOnEnd || !b.FailApply || b.FailEnd {
		t.Errorf("unexpected behavior: %+v", b)
	}
}
