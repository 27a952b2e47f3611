package signup

import (
	"sync"
	"time"
)

// DefaultAvailabilityTTL is how long an availability answer is reused.
const DefaultAvailabilityTTL = 60 * time.Second

type cacheEntry struct {
	available bool
	expiresAt time.Time
	gen       uint64
}

// UniquenessCache memoizes availability answers per email for a fixed TTL.
// Entries are evicted by a scheduled callback and are also treated as
// missing once the TTL has elapsed. There is no capacity bound.
type UniquenessCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   Clock
	gen     uint64
	entries map[string]cacheEntry
}

// NewUniquenessCache returns an empty cache. A non-positive ttl uses
// DefaultAvailabilityTTL.
func NewUniquenessCache(ttl time.Duration, clock Clock) *UniquenessCache {
	if ttl <= 0 {
		ttl = DefaultAvailabilityTTL
	}
	return &UniquenessCache{
		ttl:     ttl,
		clock:   normalizeClock(clock),
		entries: make(map[string]cacheEntry),
	}
}

// TTL returns the entry lifetime.
func (c *UniquenessCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached answer for key.
func (c *UniquenessCache) Get(key string) (available bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, found := c.entries[key]
	if !found {
		return false, false
	}
	if !c.clock.Now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return false, false
	}
	return entry.available, true
}

// Set stores the answer for key and schedules its eviction one TTL later.
func (c *UniquenessCache) Set(key string, available bool) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.entries[key] = cacheEntry{
		available: available,
		expiresAt: c.clock.Now().Add(c.ttl),
		gen:       gen,
	}
	c.mu.Unlock()

	c.clock.AfterFunc(c.ttl, func() {
		c.evict(key, gen)
	})
}

// Delete drops key. Deleting a missing key is a no-op.
func (c *UniquenessCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of stored entries, expired or not.
func (c *UniquenessCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evict removes key only if it still holds the entry the timer was armed for.
func (c *UniquenessCache) evict(key string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok && entry.gen == gen {
		delete(c.entries, key)
	}
}
