package judge

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/jmerrifield20/SecretTriage/internal/triage/model"
)

type cacheEntry struct {
	verdict   model.ExternalVerdict
	expiresAt time.Time
}

func (e *cacheEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// verdictCache holds genuine verdicts keyed by the xxhash of their prompt.
type verdictCache struct {
	mu      sync.RWMutex
	entries map[uint64]*cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

func newVerdictCache(ttl time.Duration) *verdictCache {
	return &verdictCache{
		entries: make(map[uint64]*cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(prompt string) uint64 {
	return xxhash.Sum64String(prompt)
}

func (c *verdictCache) get(key uint64) (model.ExternalVerdict, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.expired(c.now()) {
		return model.ExternalVerdict{}, false
	}
	return e.verdict, true
}

func (c *verdictCache) set(key uint64, v model.ExternalVerdict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{verdict: v, expiresAt: c.now().Add(c.ttl)}
}

// evict removes expired entries and returns how many were dropped.
func (c *verdictCache) evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *verdictCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
