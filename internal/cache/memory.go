// Package cache holds in-flight triage sessions for transports that keep interview
// state on the server.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/symptom-triage-mcp/internal/domain"
)

// MemoryCache is a size-bounded in-process session cache whose entries expire after a
// fixed TTL.
type MemoryCache struct {
	lru *expirable.LRU[string, *domain.TriageSession]
}

// NewMemoryCache creates a cache holding at most size sessions for ttl each.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryCache{lru: expirable.NewLRU[string, *domain.TriageSession](size, nil, ttl)}
}

// Get returns a copy of the cached session or domain.ErrNotFound.
func (c *MemoryCache) Get(_ context.Context, sessionID string) (*domain.TriageSession, error) {
	session, ok := c.lru.Get(sessionID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return session.Clone(), nil
}

// Put stores a copy of session, refreshing its TTL.
func (c *MemoryCache) Put(_ context.Context, session *domain.TriageSession) error {
	c.lru.Add(session.SessionID, session.Clone())
	return nil
}

// Delete evicts a session.
func (c *MemoryCache) Delete(_ context.Context, sessionID string) error {
	c.lru.Remove(sessionID)
	return nil
}

// Len returns the number of cached sessions.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}
