package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "8080" {
					t.Errorf("expected port 8080, got %s", cfg.Port)
				}
				if cfg.LogLevel != "info" {
					t.Errorf("expected log level info, got %s", cfg.LogLevel)
				}
				if cfg.WSReadTimeout != 60*time.Second {
					t.Errorf("expected WSReadTimeout 60s, got %v", cfg.WSReadTimeout)
				}
				if cfg.RequestTimeout != 10*time.Second {
					t.Errorf("expected RequestTimeout 10s, got %v", cfg.RequestTimeout)
				}
				if cfg.IdleCodesTimeout != 60*time.Second {
					t.Errorf("expected IdleCodesTimeout 60s, got %v", cfg.IdleCodesTimeout)
				}
				if cfg.StatusInterval != 30*time.Second {
					t.Errorf("expected StatusInterval 30s, got %v", cfg.StatusInterval)
				}
				if cfg.DesktopURL != "ws://localhost:8090/desktop" {
					t.Errorf("unexpected desktop url %s", cfg.DesktopURL)
				}
				if cfg.AgentID != "agent-1" {
					t.Errorf("expected agent-1, got %s", cfg.AgentID)
				}
				if cfg.Debug {
					t.Error("expected debug off")
				}
				if len(cfg.WidgetAttributes) != 0 {
					t.Errorf("expected no widget attributes, got %v", cfg.WidgetAttributes)
				}
			},
		},
		{
			name: "custom values",
			env: map[string]string{
				"PORT":               "9000",
				"LOG_LEVEL":          "warn",
				"WS_READ_TIMEOUT":    "30",
				"WS_WRITE_TIMEOUT":   "5",
				"REQUEST_TIMEOUT":    "3",
				"IDLE_CODES_TIMEOUT": "15",
				"ALLOWED_ORIGINS":    "http://example.com, http://test.com",
				"AGENT_ID":           "agent-42",
				"WIDGET_ATTRIBUTES":  `{"queue": {"id": 7}, "skills": ["a", "b"]}`,
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "9000" {
					t.Errorf("expected port 9000, got %s", cfg.Port)
				}
				if cfg.LogLevel != "warn" {
					t.Errorf("expected log level warn, got %s", cfg.LogLevel)
				}
				if cfg.WSWriteTimeout != 5*time.Second {
					t.Errorf("expected WSWriteTimeout 5s, got %v", cfg.WSWriteTimeout)
				}
				if cfg.RequestTimeout != 3*time.Second {
					t.Errorf("expected RequestTimeout 3s, got %v", cfg.RequestTimeout)
				}
				if cfg.IdleCodesTimeout != 15*time.Second {
					t.Errorf("expected IdleCodesTimeout 15s, got %v", cfg.IdleCodesTimeout)
				}
				if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://test.com" {
					t.Errorf("unexpected allowed origins %v", cfg.AllowedOrigins)
				}
				if cfg.AgentID != "agent-42" {
					t.Errorf("expected agent-42, got %s", cfg.AgentID)
				}
				if _, ok := cfg.WidgetAttributes["queue"].(map[string]interface{}); !ok {
					t.Errorf("expected nested queue attribute, got %v", cfg.WidgetAttributes)
				}
			},
		},
		{
			name: "debug forces debug level",
			env: map[string]string{
				"DEBUG":     "true",
				"LOG_LEVEL": "error",
			},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.Debug || cfg.LogLevel != "debug" {
					t.Errorf("expected debug level, got debug=%v level=%s", cfg.Debug, cfg.LogLevel)
				}
			},
		},
		{
			name:    "invalid WS_READ_TIMEOUT",
			env:     map[string]string{"WS_READ_TIMEOUT": "invalid"},
			wantErr: true,
		},
		{
			name:    "invalid REQUEST_TIMEOUT",
			env:     map[string]string{"REQUEST_TIMEOUT": "soon"},
			wantErr: true,
		},
		{
			name:    "non-positive IDLE_CODES_TIMEOUT",
			env:     map[string]string{"IDLE_CODES_TIMEOUT": "0"},
			wantErr: true,
		},
		{
			name:    "invalid WIDGET_ATTRIBUTES",
			env:     map[string]string{"WIDGET_ATTRIBUTES": "{not json"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestWebSocketConstants(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.PongWait != cfg.WSReadTimeout {
		t.Errorf("PongWait (%v) should equal WSReadTimeout (%v)", cfg.PongWait, cfg.WSReadTimeout)
	}
	if cfg.PingPeriod >= cfg.PongWait {
		t.Errorf("PingPeriod (%v) should be less than PongWait (%v)", cfg.PingPeriod, cfg.PongWait)
	}
	if cfg.WriteWait != cfg.WSWriteTimeout {
		t.Errorf("WriteWait (%v) should equal WSWriteTimeout (%v)", cfg.WriteWait, cfg.WSWriteTimeout)
	}
	if cfg.MaxMessageSize <= 0 {
		t.Errorf("MaxMessageSize should be positive, got %d", cfg.MaxMessageSize)
	}
}
