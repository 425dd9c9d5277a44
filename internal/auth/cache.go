package auth

import (
	"sync"
	"time"
)

type cacheEntry struct {
	claims    Claims
	expiresAt time.Time
}

// ValidationCache remembers tokens that already passed signature and expiry
// checks. An entry never outlives the token it describes.
type ValidationCache struct {
	store sync.Map
	ttl   time.Duration
}

func NewValidationCache(ttl time.Duration) *ValidationCache {
	return &ValidationCache{ttl: ttl}
}

func (c *ValidationCache) Get(token string, now time.Time) (Claims, bool) {
	val, ok := c.store.Load(token)
	if !ok {
		return Claims{}, false
	}

	e := val.(cacheEntry)
	if !now.Before(e.expiresAt) {
		c.store.Delete(token)
		return Claims{}, false
	}

	return e.claims, true
}

func (c *ValidationCache) Put(token string, claims Claims, now time.Time) {
	expiresAt := now.Add(c.ttl)
	if tokenExpiry := claims.ExpiresAtTime(); tokenExpiry.Before(expiresAt) {
		expiresAt = tokenExpiry
	}
	if !now.Before(expiresAt) {
		return
	}
	c.store.Store(token, cacheEntry{claims: claims, expiresAt: expiresAt})
}

// Cleanup removes lapsed entries and returns how many went.
func (c *ValidationCache) Cleanup(now time.Time) int {
	removed := 0
	c.store.Range(func(key, val any) bool {
		if !now.Before(val.(cacheEntry).expiresAt) {
			c.store.Delete(key)
			removed++
		}
		return true
	})
	return removed
}
