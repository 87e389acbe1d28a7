package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/dennisdiepolder/monti/wrapupbridge/internal/api"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/config"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/event"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/metrics"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/storage"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/types"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/widget"
	"github.com/rs/zerolog"
)

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	healthHandler(rec, req)

	// Check status code
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	// Check content type
	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	// Parse response body
	var response map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	// Check response fields
	if response["status"] != "ok" {
		t.Errorf("expected status ok, got %s", response["status"])
	}
	if response["service"] != "wrapupbridge" {
		t.Errorf("expected service wrapupbridge, got %s", response["service"])
	}
}

func TestHealthHandlerMethods(t *testing.T) {
	tests := []struct {
		method         string
		expectedStatus int
	}{
		{http.MethodGet, http.StatusOK},
		{http.MethodPost, http.StatusOK},    // Handler doesn't check method
		{http.MethodPut, http.StatusOK},     // Handler doesn't check method
		{http.MethodDelete, http.StatusOK},  // Handler doesn't check method
		{http.MethodOptions, http.StatusOK}, // Handler doesn't check method
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			rec := httptest.NewRecorder()

			healthHandler(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
		})
	}
}

type stubWidget struct{}

func (stubWidget) Status() widget.Status { return widget.Status{AgentID: "agent-1"} }

func (stubWidget) Dispatch(ctx context.Context, msg types.FrameMessage) types.WrapupOutcome {
	return types.OutcomeRejected
}

type sinkFunc func(types.InteractionStateChange)

func (f sinkFunc) Deliver(change types.InteractionStateChange) { f(change) }

func testRouter(delivered *[]types.InteractionStateChange) http.Handler {
	cfg := &config.Config{AllowedOrigins: []string{"http://localhost:5173"}, FrameURL: "http://localhost:5173/frame"}
	return newRouter(cfg, handlers{
		frame:   http.NotFoundHandler(),
		widget:  api.NewWidgetHandler(stubWidget{}, cfg.FrameURL, nil, zerolog.Nop()),
		wrapups: api.NewWrapupHandler(storage.NewNoopStore(), zerolog.Nop()),
		events: event.NewReceiver(sinkFunc(func(c types.InteractionStateChange) {
			*delivered = append(*delivered, c)
		}), zerolog.Nop()),
		metrics: metrics.Get().Handler(),
	})
}

func TestRouterAuth(t *testing.T) {
	os.Clearenv()
	var delivered []types.InteractionStateChange
	router := testRouter(&delivered)

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "health is public", path: "/health", want: http.StatusOK},
		{name: "metrics is public", path: "/metrics", want: http.StatusOK},
		{name: "api needs a token", path: "/api/widget/status", want: http.StatusUnauthorized},
		{name: "frame socket needs a token", path: "/ws/frame", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestRouterSkipAuth(t *testing.T) {
	os.Clearenv()
	os.Setenv("SKIP_AUTH", "true")
	defer os.Unsetenv("SKIP_AUTH")

	var delivered []types.InteractionStateChange
	router := testRouter(&delivered)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/widget/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// the dev identity is an admin, so truncation is allowed
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/wrapups", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for truncate, got %d", rec.Code)
	}
}

func TestRouterInteractionEvent(t *testing.T) {
	os.Clearenv()
	var delivered []types.InteractionStateChange
	router := testRouter(&delivered)

	body := bytes.NewBufferString(`{"interactionId": "int1", "state": "Wrapup"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/interaction-event", body))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if len(delivered) != 1 || delivered[0].InteractionID != "int1" || delivered[0].State != types.StateWrapup {
		t.Errorf("unexpected deliveries: %+v", delivered)
	}
}
