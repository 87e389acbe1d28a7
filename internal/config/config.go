package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	Debug          bool

	// Frame bridge WebSocket
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	StatusInterval time.Duration

	// Desktop platform
	DesktopURL       string
	AgentID          string
	RequestTimeout   time.Duration
	IdleCodesTimeout time.Duration

	// Embedded frame
	FrameURL         string
	WidgetAttributes map[string]interface{}
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Debug:          getEnv("DEBUG", "false") == "true",
		DesktopURL:     getEnv("DESKTOP_URL", "ws://localhost:8090/desktop"),
		AgentID:        getEnv("AGENT_ID", "agent-1"),
		FrameURL:       getEnv("FRAME_URL", "http://localhost:5173/frame"),
	}

	var err error
	if config.WSReadTimeout, err = seconds("WS_READ_TIMEOUT", "60"); err != nil {
		return nil, err
	}
	if config.WSWriteTimeout, err = seconds("WS_WRITE_TIMEOUT", "10"); err != nil {
		return nil, err
	}
	if config.StatusInterval, err = seconds("STATUS_INTERVAL", "30"); err != nil {
		return nil, err
	}
	if config.RequestTimeout, err = seconds("REQUEST_TIMEOUT", "10"); err != nil {
		return nil, err
	}
	if config.IdleCodesTimeout, err = seconds("IDLE_CODES_TIMEOUT", "60"); err != nil {
		return nil, err
	}

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 4096

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	config.WidgetAttributes = map[string]interface{}{}
	if raw := os.Getenv("WIDGET_ATTRIBUTES"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &config.WidgetAttributes); err != nil {
			return nil, fmt.Errorf("invalid WIDGET_ATTRIBUTES: %w", err)
		}
	}

	if config.Debug {
		config.LogLevel = "debug"
	}

	return config, nil
}

// seconds parses a positive whole number of seconds
func seconds(key, defaultValue string) (time.Duration, error) {
	n, err := strconv.Atoi(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return time.Duration(n) * time.Second, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
