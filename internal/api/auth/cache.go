package auth

import (
	"sync"
	"time"

	"github.com/aomanu/cidrd/pkg/models"
)

// TokenCache remembers which users recently presented which tokens, so a
// hot client does not trigger a user lookup on every request. Entries
// expire after the configured TTL; a zero TTL disables caching entirely.
type TokenCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry

	// now is swapped out by tests.
	now func() time.Time
}

type cacheEntry struct {
	user      *models.User
	expiresAt time.Time
}

// NewTokenCache builds a cache with the given entry lifetime.
func NewTokenCache(ttl time.Duration) *TokenCache {
	return &TokenCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached user for a token, or nil on miss or expiry.
func (c *TokenCache) Get(token string) *models.User {
	if c.ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[token]
	if !ok {
		return nil
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, token)
		return nil
	}
	return entry.user
}

// Put stores a verified token/user pair. Expired entries are pruned on the
// way in to keep the map from growing without bound.
func (c *TokenCache) Put(token string, user *models.User) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[token] = cacheEntry{user: user, expiresAt: now.Add(c.ttl)}
}
