package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/symptom-triage-mcp/internal/domain"
)

// RedisCache stores in-flight sessions as JSON in Redis with a TTL.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(config domain.CacheConfig, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, config.KeyPrefix, ttl), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "triage:session:"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// Get loads a session or returns domain.ErrNotFound. Corrupt entries are removed and
// reported as missing.
func (c *RedisCache) Get(ctx context.Context, sessionID string) (*domain.TriageSession, error) {
	key := c.key(sessionID)

	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from cache: %w", err)
	}

	var session domain.TriageSession
	if err := json.Unmarshal(val, &session); err != nil {
		c.client.Del(ctx, key)
		return nil, domain.ErrNotFound
	}
	return &session, nil
}

// Put stores session with the cache TTL.
func (c *RedisCache) Put(ctx context.Context, session *domain.TriageSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return c.client.Set(ctx, c.key(session.SessionID), data, c.ttl).Err()
}

// Delete removes a session.
func (c *RedisCache) Delete(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, c.key(sessionID)).Err()
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) key(sessionID string) string {
	return c.keyPrefix + sessionID
}
