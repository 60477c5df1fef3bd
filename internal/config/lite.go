package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/symptom-triage-mcp/internal/domain"
)

// LiteConfig configures the standalone MCP server. It needs no external services and
// is read from TRIAGE_* environment variables only.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for SQLite files and exports

	// In-flight session cache
	CacheMaxItems int
	SessionTTL    time.Duration

	CatalogFile string // Optional YAML catalog

	// Feedback window
	EnforceFeedbackWindow bool
	FeedbackMinDelay      time.Duration
	FeedbackMaxDelay      time.Duration

	// Logging
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()

	return &LiteConfig{
		DataDir:          filepath.Join(homeDir, ".symptom-triage"),
		CacheMaxItems:    1000,
		SessionTTL:       2 * time.Hour,
		FeedbackMinDelay: 24 * time.Hour,
		FeedbackMaxDelay: 72 * time.Hour,
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// LoadLiteConfig overlays environment variables on the defaults. Unparseable values
// are ignored.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("TRIAGE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("TRIAGE_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("TRIAGE_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SessionTTL = d
		}
	}

	cfg.CatalogFile = os.Getenv("TRIAGE_CATALOG_FILE")

	if v := os.Getenv("TRIAGE_ENFORCE_FEEDBACK_WINDOW"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EnforceFeedbackWindow = b
		}
	}
	if v := os.Getenv("TRIAGE_FEEDBACK_MIN_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.FeedbackMinDelay = d
		}
	}
	if v := os.Getenv("TRIAGE_FEEDBACK_MAX_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.FeedbackMaxDelay = d
		}
	}

	if v := os.Getenv("TRIAGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TRIAGE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// TriageConfig converts the lite settings into the engine's configuration.
func (c *LiteConfig) TriageConfig() domain.TriageConfig {
	return domain.TriageConfig{
		CatalogFile:           c.CatalogFile,
		SessionTTL:            c.SessionTTL,
		EnforceFeedbackWindow: c.EnforceFeedbackWindow,
		FeedbackMinDelay:      c.FeedbackMinDelay,
		FeedbackMaxDelay:      c.FeedbackMaxDelay,
	}
}

// LoggingConfig returns the logging settings. The MCP stdio transport owns stdout, so
// logs always go to stderr.
func (c *LiteConfig) LoggingConfig() domain.LoggingConfig {
	return domain.LoggingConfig{
		Level:  c.LogLevel,
		Format: c.LogFormat,
		Output: "stderr",
	}
}

// FeedbackDBPath returns the path to the outcome feedback database.
func (c *LiteConfig) FeedbackDBPath() string {
	return filepath.Join(c.DataDir, "feedback.db")
}

// PriorsDBPath returns the path to the base prior database.
func (c *LiteConfig) PriorsDBPath() string {
	return filepath.Join(c.DataDir, "priors.db")
}

// SessionsDBPath returns the path to the completed-session archive.
func (c *LiteConfig) SessionsDBPath() string {
	return filepath.Join(c.DataDir, "sessions.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}
