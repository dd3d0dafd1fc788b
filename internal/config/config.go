package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Supported gateway providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config holds all runtime configuration, loaded from environment
// variables.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	RedisURL   string `env:"REDIS_URL" envDefault:"localhost:6379"`
	SessionTTL int    `env:"SESSION_TTL_HOURS" envDefault:"24"`

	GatewayProvider string `env:"GATEWAY_PROVIDER" envDefault:"gemini"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`

	// Model overrides. Empty values fall back to per-provider defaults.
	StoryModel  string `env:"STORY_MODEL"`
	ImageModel  string `env:"IMAGE_MODEL"`
	SpeechModel string `env:"SPEECH_MODEL"`
	SpeechVoice string `env:"SPEECH_VOICE"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	switch strings.ToLower(cfg.GatewayProvider) {
	case ProviderGemini, ProviderOpenAI:
	default:
		return nil, fmt.Errorf("invalid gateway provider %q", cfg.GatewayProvider)
	}

	return cfg, nil
}

// SlogLevel converts the configured log level string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
