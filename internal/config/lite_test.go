package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 24*time.Hour, cfg.FeedbackMinDelay)
	assert.Equal(t, 72*time.Hour, cfg.FeedbackMaxDelay)
	assert.False(t, cfg.EnforceFeedbackWindow)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Empty(t, cfg.CatalogFile)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("TRIAGE_DATA_DIR", "/tmp/test-triage")
	t.Setenv("TRIAGE_CACHE_MAX_ITEMS", "500")
	t.Setenv("TRIAGE_SESSION_TTL", "30m")
	t.Setenv("TRIAGE_CATALOG_FILE", "/etc/triage/catalog.yaml")
	t.Setenv("TRIAGE_ENFORCE_FEEDBACK_WINDOW", "true")
	t.Setenv("TRIAGE_FEEDBACK_MIN_DELAY", "1h")
	t.Setenv("TRIAGE_FEEDBACK_MAX_DELAY", "2h")
	t.Setenv("TRIAGE_LOG_LEVEL", "debug")
	t.Setenv("TRIAGE_LOG_FORMAT", "text")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-triage", cfg.DataDir)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "/etc/triage/catalog.yaml", cfg.CatalogFile)
	assert.True(t, cfg.EnforceFeedbackWindow)
	assert.Equal(t, time.Hour, cfg.FeedbackMinDelay)
	assert.Equal(t, 2*time.Hour, cfg.FeedbackMaxDelay)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)

	triage := cfg.TriageConfig()
	assert.True(t, triage.EnforceFeedbackWindow)
	assert.Equal(t, time.Hour, triage.FeedbackMinDelay)
	assert.Equal(t, "/etc/triage/catalog.yaml", triage.CatalogFile)
}

func TestLoadLiteConfig_IgnoresInvalidValues(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("TRIAGE_CACHE_MAX_ITEMS", "-3")
	t.Setenv("TRIAGE_SESSION_TTL", "soon")
	t.Setenv("TRIAGE_ENFORCE_FEEDBACK_WINDOW", "maybe")

	cfg := LoadLiteConfig()

	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.EnforceFeedbackWindow)
}

func TestLiteConfig_Paths(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.symptom-triage"}

	assert.Equal(t, "/home/user/.symptom-triage/feedback.db", cfg.FeedbackDBPath())
	assert.Equal(t, "/home/user/.symptom-triage/priors.db", cfg.PriorsDBPath())
	assert.Equal(t, "/home/user/.symptom-triage/sessions.db", cfg.SessionsDBPath())
	assert.Equal(t, "/home/user/.symptom-triage/exports", cfg.ExportDir())
}

func TestLiteConfig_LoggingGoesToStderr(t *testing.T) {
	cfg := DefaultLiteConfig()
	assert.Equal(t, "stderr", cfg.LoggingConfig().Output)
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	cfg := &LiteConfig{DataDir: filepath.Join(tmpDir, "triage")}

	require.NoError(t, cfg.EnsureDataDir())

	_, err = os.Stat(cfg.DataDir)
	assert.NoError(t, err)

	_, err = os.Stat(cfg.ExportDir())
	assert.NoError(t, err)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"TRIAGE_DATA_DIR",
		"TRIAGE_CACHE_MAX_ITEMS",
		"TRIAGE_SESSION_TTL",
		"TRIAGE_CATALOG_FILE",
		"TRIAGE_ENFORCE_FEEDBACK_WINDOW",
		"TRIAGE_FEEDBACK_MIN_DELAY",
		"TRIAGE_FEEDBACK_MAX_DELAY",
		"TRIAGE_LOG_LEVEL",
		"TRIAGE_LOG_FORMAT",
	}
	for _, v := range vars {
		t.Setenv(v, "")
	}
}
