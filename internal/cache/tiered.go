package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/symptom-triage-mcp/internal/domain"
)

// TieredCache keeps recently used sessions in a process-local LRU in front of a shared
// backing cache. Writes go to both tiers; reads fall through to the backing cache and
// repopulate the hot tier.
type TieredCache struct {
	hot     *lru.Cache
	backing domain.SessionCache
	hotTTL  time.Duration

	statsMu sync.Mutex
	stats   Stats
}

// Stats counts hot-tier effectiveness.
type Stats struct {
	HotHits     int64 `json:"hot_hits"`
	HotMisses   int64 `json:"hot_misses"`
	BackingHits int64 `json:"backing_hits"`
}

type hotEntry struct {
	session *domain.TriageSession
	expiry  time.Time
}

func (e *hotEntry) isExpired() bool {
	return time.Now().After(e.expiry)
}

// NewTieredCache puts an LRU of hotSize entries, each valid for hotTTL, in front of
// backing.
func NewTieredCache(backing domain.SessionCache, hotSize int, hotTTL time.Duration) (*TieredCache, error) {
	if hotSize <= 0 {
		hotSize = 1000
	}
	if hotTTL <= 0 {
		hotTTL = time.Minute
	}

	hot, err := lru.New(hotSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return &TieredCache{hot: hot, backing: backing, hotTTL: hotTTL}, nil
}

// Get returns a copy of the session from the hot tier or the backing cache.
func (c *TieredCache) Get(ctx context.Context, sessionID string) (*domain.TriageSession, error) {
	if value, ok := c.hot.Get(sessionID); ok {
		if entry, ok := value.(*hotEntry); ok && !entry.isExpired() {
			c.count(func(s *Stats) { s.HotHits++ })
			return entry.session.Clone(), nil
		}
		c.hot.Remove(sessionID)
	}
	c.count(func(s *Stats) { s.HotMisses++ })

	session, err := c.backing.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.count(func(s *Stats) { s.BackingHits++ })
	c.setHot(session)
	return session.Clone(), nil
}

// Put writes through to the backing cache, then refreshes the hot tier.
func (c *TieredCache) Put(ctx context.Context, session *domain.TriageSession) error {
	if err := c.backing.Put(ctx, session); err != nil {
		c.hot.Remove(session.SessionID)
		return err
	}
	c.setHot(session)
	return nil
}

// Delete removes the session from both tiers.
func (c *TieredCache) Delete(ctx context.Context, sessionID string) error {
	c.hot.Remove(sessionID)
	return c.backing.Delete(ctx, sessionID)
}

// Stats returns a copy of the hit counters.
func (c *TieredCache) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

func (c *TieredCache) setHot(session *domain.TriageSession) {
	c.hot.Add(session.SessionID, &hotEntry{
		session: session.Clone(),
		expiry:  time.Now().Add(c.hotTTL),
	})
}

func (c *TieredCache) count(fn func(*Stats)) {
	c.statsMu.Lock()
	fn(&c.stats)
	c.statsMu.Unlock()
}
