// Package cache provides content-addressed, time-bounded memoization for
// remote call results. It is an optimization layer only: contents are lost on
// process restart.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

type entry struct {
	value    string
	storedAt time.Time
}

// Cache maps keys to values with a single time-to-live. Expired entries are
// treated as absent and evicted lazily on read. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

// New builds a cache whose entries expire after ttl. A zero or negative ttl
// keeps entries for the life of the process.
func New(ttl time.Duration) *Cache {
	return NewWithClock(ttl, time.Now)
}

// NewWithClock injects the clock so expiry can be simulated in tests.
func NewWithClock(ttl time.Duration, now func() time.Time) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: map[string]entry{},
		now:     now,
	}
}

// Get returns the stored value, or absent when the key is unknown or its
// entry has outlived the time-to-live. Expired entries are evicted here.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored, present := c.entries[key]
	if !present {
		return "", false
	}
	if c.ttl > 0 && c.now().Sub(stored.storedAt) > c.ttl {
		delete(c.entries, key)
		return "", false
	}
	return stored.value, true
}

// Put stores the value under the key, unconditionally replacing any previous
// entry (last writer wins).
func (c *Cache) Put(key string, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, storedAt: c.now()}
}

// Len reports the number of entries currently held, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Key derives a deterministic content-addressed key from the given parts.
func Key(parts ...string) string {
	digest := sha256.New()
	for _, part := range parts {
		digest.Write([]byte(part))
		digest.Write([]byte{0})
	}
	return hex.EncodeToString(digest.Sum(nil))
}
