package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the funnel server and CLI.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where the funnel stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// LLM configuration
	LLMEnabled     bool          // FUNNEL_LLM_ENABLED
	LLMProvider    string        // FUNNEL_LLM_PROVIDER (default: openai)
	LLMAPIKey      string        // FUNNEL_LLM_API_KEY
	LLMBaseURL     string        // FUNNEL_LLM_BASE_URL (default: https://api.openai.com/v1)
	LLMModel       string        // FUNNEL_LLM_MODEL (default: gpt-4o-mini)
	LLMTimeout     time.Duration // FUNNEL_LLM_TIMEOUT (default: 10s)
	LLMRatePerSec  float64       // FUNNEL_LLM_RATE (default: 5)
	LLMRecordUsage bool          // FUNNEL_LLM_RECORD_USAGE (default: true)

	// Funnel configuration
	FeaturesPath string        // FUNNEL_FEATURES_PATH, overrides the embedded feature table
	CatalogFile  string        // FUNNEL_CATALOG_FILE, serve the catalog from a YAML file instead of the database
	CatalogTTL   time.Duration // FUNNEL_CATALOG_TTL (default: 10m)
	DialogTTL    time.Duration // FUNNEL_DIALOG_TTL, idle dialogs older than this are purged (default: 720h)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsLLMEnabled reports whether model-backed components can be constructed.
func (p *Profile) IsLLMEnabled() bool {
	return p.LLMEnabled && (p.LLMAPIKey != "" || p.LLMProvider == "ollama")
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", raw)
		return defaultValue
	}
	return d
}

func getFloatEnv(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Warn("invalid number in environment, using default", "key", key, "value", raw)
		return defaultValue
	}
	return f
}

// FromEnv loads the LLM and funnel settings from FUNNEL_* environment variables.
// Fields already set (for example from flags) are kept when the variable is absent.
func (p *Profile) FromEnv() {
	if v := os.Getenv("FUNNEL_LLM_ENABLED"); v != "" {
		p.LLMEnabled = v == "true"
	}
	p.LLMProvider = getEnvOrDefault("FUNNEL_LLM_PROVIDER", orDefault(p.LLMProvider, "openai"))
	p.LLMAPIKey = getEnvOrDefault("FUNNEL_LLM_API_KEY", p.LLMAPIKey)
	p.LLMBaseURL = getEnvOrDefault("FUNNEL_LLM_BASE_URL", orDefault(p.LLMBaseURL, "https://api.openai.com/v1"))
	p.LLMModel = getEnvOrDefault("FUNNEL_LLM_MODEL", orDefault(p.LLMModel, "gpt-4o-mini"))
	p.LLMTimeout = getDurationEnv("FUNNEL_LLM_TIMEOUT", orDefaultDuration(p.LLMTimeout, 10*time.Second))
	p.LLMRatePerSec = getFloatEnv("FUNNEL_LLM_RATE", orDefaultFloat(p.LLMRatePerSec, 5))
	if v := os.Getenv("FUNNEL_LLM_RECORD_USAGE"); v != "" {
		p.LLMRecordUsage = v == "true"
	}

	p.FeaturesPath = getEnvOrDefault("FUNNEL_FEATURES_PATH", p.FeaturesPath)
	p.CatalogFile = getEnvOrDefault("FUNNEL_CATALOG_FILE", p.CatalogFile)
	p.CatalogTTL = getDurationEnv("FUNNEL_CATALOG_TTL", orDefaultDuration(p.CatalogTTL, 10*time.Minute))
	p.DialogTTL = getDurationEnv("FUNNEL_DIALOG_TTL", orDefaultDuration(p.DialogTTL, 30*24*time.Hour))
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orDefaultDuration(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

func orDefaultFloat(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q: only 'postgres' and 'sqlite' are supported", p.Driver)
	}

	if p.Data == "" {
		if p.Mode == "prod" {
			p.Data = "/var/opt/servicefunnel"
		} else {
			p.Data = "."
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("funnel_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for the postgres driver")
	}

	return nil
}
