package auth

import (
	"sync"
	"time"
)

// Revocations reports whether a token id was revoked before its expiry.
type Revocations interface {
	IsRevoked(tokenID string) bool
}

// Denylist is an in-memory set of revoked token ids. Each entry lives only
// until the token's own expiry, after which validation rejects it anyway.
// Entries are per process, so a revocation is only seen by the node that
// recorded it.
type Denylist struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

func NewDenylist() *Denylist {
	return &Denylist{entries: make(map[string]time.Time)}
}

func (d *Denylist) Revoke(tokenID string, expiresAt time.Time) {
	if tokenID == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[tokenID] = expiresAt
}

func (d *Denylist) IsRevoked(tokenID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, exists := d.entries[tokenID]
	return exists
}

// Cleanup drops entries whose token has expired and returns how many went.
func (d *Denylist) Cleanup(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for tokenID, expiresAt := range d.entries {
		if !now.Before(expiresAt) {
			delete(d.entries, tokenID)
			removed++
		}
	}
	return removed
}

func (d *Denylist) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}
