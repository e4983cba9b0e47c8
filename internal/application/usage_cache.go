package application

import (
	"fmt"
	"sync"
	"time"
)

// usageCache stores recently computed weekly usage counts so repeated
// admissibility probes for the same department-week do not re-scan the
// request table. Every write path invalidates the cache.
type usageCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]usageCacheEntry
}

type usageCacheEntry struct {
	used      int
	expiresAt time.Time
}

func newUsageCache(ttl time.Duration, maxEntries int, now func() time.Time) *usageCache {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &usageCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]usageCacheEntry),
	}
}

func (c *usageCache) Get(key string) (int, bool) {
	if c == nil {
		return 0, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return 0, false
	}
	return entry.used, true
}

func (c *usageCache) Store(key string, used int) {
	if c == nil {
		return
	}
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = usageCacheEntry{used: used, expiresAt: expiry}
}

func (c *usageCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]usageCacheEntry)
	c.mu.Unlock()
}

func (c *usageCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *usageCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func usageCacheKey(departmentID string, weekStart time.Time) string {
	return fmt.Sprintf("%s|%s", departmentID, weekStart.Format("2006-01-02"))
}
