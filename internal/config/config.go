// Package config loads server configuration: a viper-backed Manager for the full
// HTTP server and an environment-only LiteConfig for the standalone MCP server.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/symptom-triage-mcp/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. TRIAGE_SERVER_PORT.
const EnvPrefix = "TRIAGE"

// Manager implements domain.ConfigManager using Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

// NewManager loads configuration from config.yaml (optional), TRIAGE_* environment
// variables and built-in defaults, in increasing order of precedence for env.
func NewManager() (*Manager, error) {
	return NewManagerFromFile("")
}

// NewManagerFromFile is NewManager with an explicit config file path.
func NewManagerFromFile(path string) (*Manager, error) {
	m := &Manager{v: viper.New()}
	if path != "" {
		m.v.SetConfigFile(path)
	}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	v := m.v

	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/symptom-triage/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.tls_enabled", false)
	v.SetDefault("server.cert_file", "")
	v.SetDefault("server.key_file", "")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "symptom_triage")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("cache.redis_url", "redis://localhost:6379")
	v.SetDefault("cache.key_prefix", "triage:session:")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.filename", "")

	v.SetDefault("triage.catalog_file", "")
	v.SetDefault("triage.session_ttl", "2h")
	v.SetDefault("triage.enforce_feedback_window", false)
	v.SetDefault("triage.feedback_min_delay", "24h")
	v.SetDefault("triage.feedback_max_delay", "72h")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", "60s")
	v.SetDefault("breaker.timeout", "30s")
	v.SetDefault("breaker.min_requests", 3)
	v.SetDefault("breaker.failure_ratio", 0.6)
	v.SetDefault("breaker.operation_timeout", "5s")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetTriageConfig returns engine and feedback configuration
func (m *Manager) GetTriageConfig() *domain.TriageConfig {
	return &m.config.Triage
}

// Reload re-reads every source
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate checks the loaded configuration for values the server cannot start with.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.TLSEnabled && (config.Server.CertFile == "" || config.Server.KeyFile == "") {
		return fmt.Errorf("TLS enabled but cert_file or key_file is missing")
	}

	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if config.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if config.Database.Username == "" {
		return fmt.Errorf("database username is required")
	}

	if config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required")
	}

	triage := config.Triage
	if triage.FeedbackMinDelay < 0 || triage.FeedbackMaxDelay <= triage.FeedbackMinDelay {
		return fmt.Errorf("invalid feedback window: %s to %s", triage.FeedbackMinDelay, triage.FeedbackMaxDelay)
	}
	if triage.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	if config.RateLimit.Enabled && (config.RateLimit.RequestsPerSecond <= 0 || config.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit requires positive requests_per_second and burst")
	}

	if config.Breaker.FailureRatio <= 0 || config.Breaker.FailureRatio > 1 {
		return fmt.Errorf("breaker failure ratio must be in (0, 1]: %v", config.Breaker.FailureRatio)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a keyword/value connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetDatabaseURL returns the postgres:// URL used by migrations and database/sql.
func (m *Manager) GetDatabaseURL() string {
	db := m.config.Database
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.Username, db.Password),
		Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:     "/" + db.Database,
		RawQuery: "sslmode=" + db.SSLMode,
	}
	return u.String()
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
