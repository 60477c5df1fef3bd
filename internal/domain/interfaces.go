package domain

import (
	"context"
)

// SessionRepository archives completed triage sessions. Archiving is owned by an
// out-of-core collaborator and is treated as best effort by the engine.
type SessionRepository interface {
	SaveSession(ctx context.Context, session *TriageSession) error
	GetSession(ctx context.Context, sessionID string) (*TriageSession, error)
}

// SessionCache holds in-flight sessions for transports that keep state server-side.
type SessionCache interface {
	Get(ctx context.Context, sessionID string) (*TriageSession, error)
	Put(ctx context.Context, session *TriageSession) error
	Delete(ctx context.Context, sessionID string) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	GetTriageConfig() *TriageConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
