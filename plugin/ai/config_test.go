package ai

import (
	"testing"
	"time"

	"github.com/hrygo/servicefunnel/internal/profile"
)

// TestNewConfigFromProfile_OpenAI tests OpenAI configuration.
func TestNewConfigFromProfile_OpenAI(t *testing.T) {
	prof := &profile.Profile{
		LLMEnabled:    true,
		LLMProvider:   "openai",
		LLMModel:      "gpt-4o-mini",
		LLMAPIKey:     "sk-test",
		LLMBaseURL:    "https://api.openai.com/v1",
		LLMTimeout:    5 * time.Second,
		LLMRatePerSec: 3,
	}

	cfg := NewConfigFromProfile(prof)

	if !cfg.Enabled {
		t.Fatalf("Expected Enabled=true, got false")
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("Expected LLM.Model=gpt-4o-mini, got %s", cfg.LLM.Model)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("Expected LLM.APIKey=sk-test, got %s", cfg.LLM.APIKey)
	}
	if cfg.LLM.MaxTokens != 512 {
		t.Errorf("Expected LLM.MaxTokens=512, got %d", cfg.LLM.MaxTokens)
	}
	if cfg.LLM.Timeout != 5*time.Second {
		t.Errorf("Expected LLM.Timeout=5s, got %s", cfg.LLM.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

// TestNewConfigFromProfile_Ollama tests the local endpoint default.
func TestNewConfigFromProfile_Ollama(t *testing.T) {
	prof := &profile.Profile{
		LLMEnabled:  true,
		LLMProvider: "ollama",
		LLMModel:    "qwen2.5",
		LLMBaseURL:  "https://api.openai.com/v1",
	}

	cfg := NewConfigFromProfile(prof)

	if cfg.LLM.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("Expected local ollama URL, got %s", cfg.LLM.BaseURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("ollama without key should validate, got %v", err)
	}
}

// TestNewConfigFromProfile_Disabled tests disabled configuration.
func TestNewConfigFromProfile_Disabled(t *testing.T) {
	cfg := NewConfigFromProfile(&profile.Profile{LLMEnabled: false, LLMAPIKey: "sk"})

	if cfg.Enabled {
		t.Errorf("Expected Enabled=false, got true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled config must validate, got %v", err)
	}
}

// TestLLMConfig_Validate tests validation errors.
func TestLLMConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LLMConfig
		wantErr bool
	}{
		{"valid", LLMConfig{Provider: "openai", APIKey: "k", Model: "m"}, false},
		{"missing provider", LLMConfig{APIKey: "k", Model: "m"}, true},
		{"unknown provider", LLMConfig{Provider: "acme", APIKey: "k", Model: "m"}, true},
		{"missing key", LLMConfig{Provider: "deepseek", Model: "m"}, true},
		{"missing model", LLMConfig{Provider: "openai", APIKey: "k"}, true},
		{"bad temperature", LLMConfig{Provider: "openai", APIKey: "k", Model: "m", Temperature: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
