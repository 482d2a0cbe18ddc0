package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP API listener.
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port int    `envconfig:"PORT" default:"8098"`

	// Content host connection.
	WPBaseURL      string        `envconfig:"WP_BASE_URL" required:"true"`
	WPUsername     string        `envconfig:"WP_USERNAME" required:"true"`
	WPAppPassword  string        `envconfig:"WP_APP_PASSWORD" required:"true"`
	WPReadTimeout  time.Duration `envconfig:"WP_READ_TIMEOUT" default:"20s"`
	WPWriteTimeout time.Duration `envconfig:"WP_WRITE_TIMEOUT" default:"60s"`

	// Translation providers, tried in order within a single call.
	GeminiAPIKeys       []string      `envconfig:"GEMINI_API_KEYS"`
	GeminiModel         string        `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	TranslationEndpoint string        `envconfig:"TRANSLATION_ENDPOINT" default:""`
	TranslationModel    string        `envconfig:"TRANSLATION_MODEL" default:""`
	TranslationAPIKey   string        `envconfig:"TRANSLATION_API_KEY" default:""`
	TitleTimeout        time.Duration `envconfig:"TITLE_TIMEOUT" default:"25s"`
	BodyTimeout         time.Duration `envconfig:"BODY_TIMEOUT" default:"90s"`

	// Batch behaviour.
	MaxChunkLen int           `envconfig:"MAX_CHUNK_LEN" default:"4500"`
	MaxRetries  int           `envconfig:"MAX_RETRIES" default:"3"`
	BackoffBase time.Duration `envconfig:"BACKOFF_BASE" default:"2s"`

	// Optional run-history persistence. Empty disables the store.
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`

	// bcrypt hash protecting the HTTP API. Empty disables auth (local only).
	APIUser         string `envconfig:"API_USER" default:"admin"`
	APIPasswordHash string `envconfig:"API_PASSWORD_HASH" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.WPBaseURL) == "" {
		return fmt.Errorf("WP_BASE_URL is required")
	}
	if strings.TrimSpace(c.WPUsername) == "" {
		return fmt.Errorf("WP_USERNAME is required")
	}
	if strings.TrimSpace(c.WPAppPassword) == "" {
		return fmt.Errorf("WP_APP_PASSWORD is required")
	}
	if len(c.Credentials()) == 0 {
		return fmt.Errorf("at least one translation credential is required (GEMINI_API_KEYS or TRANSLATION_ENDPOINT)")
	}
	if c.MaxChunkLen < 200 {
		return fmt.Errorf("MAX_CHUNK_LEN must be >= 200")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must be >= 0")
	}
	if c.BackoffBase <= 0 {
		return fmt.Errorf("BACKOFF_BASE must be positive")
	}
	if c.TitleTimeout <= 0 || c.BodyTimeout <= 0 {
		return fmt.Errorf("TITLE_TIMEOUT and BODY_TIMEOUT must be positive")
	}
	return nil
}

// Credential selects one provider endpoint/key pair for the fallback chain.
type Credential struct {
	Kind   string // "gemini" or "openai"
	APIKey string
	// Endpoint and Model apply to openai-compatible credentials; Model also
	// overrides the Gemini model when set.
	Endpoint string
	Model    string
}

// Credentials returns the ordered fallback chain: every Gemini key in the
// order configured, then the OpenAI-compatible endpoint when present.
func (c *Config) Credentials() []Credential {
	creds := make([]Credential, 0, len(c.GeminiAPIKeys)+1)
	for _, key := range c.GeminiAPIKeys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		creds = append(creds, Credential{Kind: "gemini", APIKey: key, Model: strings.TrimSpace(c.GeminiModel)})
	}
	if endpoint := strings.TrimSpace(c.TranslationEndpoint); endpoint != "" {
		creds = append(creds, Credential{
			Kind:     "openai",
			APIKey:   strings.TrimSpace(c.TranslationAPIKey),
			Endpoint: endpoint,
			Model:    strings.TrimSpace(c.TranslationModel),
		})
	}
	return creds
}
