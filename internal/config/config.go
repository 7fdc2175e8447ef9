package config

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config holds the client's environment-driven settings.
type Config struct {
	Environment string
	LogLevel    slog.Level

	// LLM provider
	APIKey      string
	APIBaseURL  string
	TextModel   string
	ImageModel  string
	CallTimeout time.Duration

	// Player identity used for seeds and snapshot keys
	PlayerID string

	// Optional Redis backing for events and session snapshots.
	// Empty disables both.
	RedisURL string
}

func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),
		APIKey:      getEnv("INKBOUND_API_KEY", ""),
		APIBaseURL:  getEnv("INKBOUND_API_BASE_URL", "https://api.openai.com/v1"),
		TextModel:   getEnv("INKBOUND_TEXT_MODEL", "gpt-4o-mini"),
		ImageModel:  getEnv("INKBOUND_IMAGE_MODEL", "gpt-image-1"),
		CallTimeout: parseDuration(getEnv("INKBOUND_CALL_TIMEOUT", "90s")),
		PlayerID:    getEnv("INKBOUND_PLAYER_ID", "reader"),
		RedisURL:    getEnv("REDIS_URL", ""),
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 90 * time.Second
	}
	return d
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
