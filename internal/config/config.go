package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds process-level configuration for the companion server.
// Application settings the caregiver edits at runtime (credentials,
// contacts, reminders) live in the settings document instead.
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Path of the caregiver-editable settings document
	SettingsFile string `envconfig:"SETTINGS_FILE" default:"config.json"`

	// LLM provider selection: "deepseek" (OpenAI-compatible) or "gemini"
	LLMProvider string `envconfig:"LLM_PROVIDER" default:"deepseek"`
	LLMBaseURL  string `envconfig:"LLM_BASE_URL" default:"https://api.deepseek.com"`
	LLMModel    string `envconfig:"LLM_MODEL" default:"deepseek-chat"`

	// Speech synthesis configuration
	TTSAPIKey  string `envconfig:"ELEVEN_LABS_API_KEY" default:""`
	TTSVoiceID string `envconfig:"ELEVEN_LABS_VOICE_ID" default:"21m00Tcm4TlvDq8ikWAM"`

	// Interaction history storage; in-memory when MONGODB_URI is unset
	MongoURI      string `envconfig:"MONGODB_URI" default:""`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"companion"`

	// JWT signing secret for caregiver and device tokens
	JWTSecret string `envconfig:"JWT_SECRET" default:""`

	// Observability
	MetricsEnabled bool `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads configuration from the environment, consulting a .env file
// first when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.LLMProvider != "deepseek" && cfg.LLMProvider != "gemini" {
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}

	return &cfg, nil
}
