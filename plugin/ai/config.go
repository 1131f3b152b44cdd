package ai

import (
	"errors"
	"time"

	"github.com/hrygo/servicefunnel/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	Enabled bool

	LLM LLMConfig
}

// LLMConfig represents LLM configuration.
type LLMConfig struct {
	Provider    string // openai, deepseek, ollama
	Model       string // gpt-4o-mini
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 512
	Temperature float32 // default: 0.1
	Timeout     time.Duration
	RatePerSec  float64
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Enabled: p.IsLLMEnabled(),
	}

	if !cfg.Enabled {
		return cfg
	}

	cfg.LLM = LLMConfig{
		Provider:    p.LLMProvider,
		Model:       p.LLMModel,
		APIKey:      p.LLMAPIKey,
		BaseURL:     p.LLMBaseURL,
		MaxTokens:   512,
		Temperature: 0.1,
		Timeout:     p.LLMTimeout,
		RatePerSec:  p.LLMRatePerSec,
	}

	// Ollama exposes an OpenAI compatible endpoint under /v1.
	if p.LLMProvider == "ollama" && p.LLMBaseURL == "https://api.openai.com/v1" {
		cfg.LLM.BaseURL = "http://localhost:11434/v1"
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	return c.LLM.Validate()
}

// Validate checks that the provider settings are usable.
func (c LLMConfig) Validate() error {
	switch c.Provider {
	case "":
		return errors.New("LLM provider is required")
	case "openai", "deepseek", "ollama":
	default:
		return errors.New("unsupported LLM provider: " + c.Provider)
	}

	if c.Provider != "ollama" && c.APIKey == "" {
		return errors.New("LLM API key is required")
	}

	if c.Model == "" {
		return errors.New("LLM model is required")
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("LLM temperature must be within [0, 2]")
	}

	return nil
}
