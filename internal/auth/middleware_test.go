package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// captureClaims runs the middleware and returns the claims seen by the handler
func captureClaims(req *http.Request) (*httptest.ResponseRecorder, *Claims) {
	var got *Claims
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetUserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, got
}

func TestMiddlewareSkipAuth(t *testing.T) {
	os.Clearenv()
	os.Setenv("SKIP_AUTH", "true")

	w, claims := captureClaims(httptest.NewRequest(http.MethodGet, "/api/widget/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if claims == nil || claims.Role != "admin" {
		t.Fatalf("expected dev admin claims, got %+v", claims)
	}
}

func TestMiddlewareHealthBypass(t *testing.T) {
	os.Clearenv()

	w, _ := captureClaims(httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestMiddlewareMissingToken(t *testing.T) {
	os.Clearenv()

	w, _ := captureClaims(httptest.NewRequest(http.MethodGet, "/api/widget/status", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestMiddlewareDevelopmentToken(t *testing.T) {
	os.Clearenv()
	os.Setenv("ENV", "development")

	token := signedToken(t, jwt.MapClaims{
		"email":              "jane@example.com",
		"preferred_username": "jane",
		"agent_id":           "agent-7",
		"sub":                "user-1",
		"realm_access":       map[string]interface{}{"roles": []interface{}{"agent", "supervisor"}},
		"groups":             []interface{}{"/team/a"},
		"exp":                float64(time.Now().Add(time.Hour).Unix()),
	})

	// the frame passes the token as a query parameter
	req := httptest.NewRequest(http.MethodGet, "/ws/frame?token="+token, nil)
	w, claims := captureClaims(req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if claims.Email != "jane@example.com" || claims.Name != "jane" || claims.AgentID != "agent-7" {
		t.Errorf("unexpected identity claims: %+v", claims)
	}
	if claims.Role != "supervisor" {
		t.Errorf("expected supervisor to win over agent, got %s", claims.Role)
	}
	if claims.Subject != "user-1" {
		t.Errorf("expected subject user-1, got %s", claims.Subject)
	}
	if len(claims.Groups) != 1 || claims.Groups[0] != "/team/a" {
		t.Errorf("unexpected groups: %v", claims.Groups)
	}
}

func TestMiddlewareExpiredToken(t *testing.T) {
	os.Clearenv()
	os.Setenv("ENV", "development")

	token := signedToken(t, jwt.MapClaims{
		"email": "jane@example.com",
		"exp":   float64(time.Now().Add(-time.Hour).Unix()),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/widget/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w, _ := captureClaims(req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		claims *Claims
		want   int
	}{
		{name: "admin", claims: &Claims{Role: "admin"}, want: http.StatusNoContent},
		{name: "agent", claims: &Claims{Role: "agent"}, want: http.StatusForbidden},
		{name: "anonymous", claims: nil, want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/wrapups", nil)
			if tt.claims != nil {
				req = req.WithContext(WithUser(req.Context(), tt.claims))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}
