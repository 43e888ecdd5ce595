// Package fontcache provides a bounded, TTL-expiring in-memory cache
// for fetched font binaries.
//
// The cache is an explicit object passed by reference to its consumers
// rather than an ambient singleton, so eviction and expiry behavior can
// be tested in isolation. Eviction is by ascending hit count (ties
// broken by insertion order), not recency: the least-consulted entries
// leave first.
package fontcache

import (
	"fmt"
	"sync"
	"time"
)

// Defaults for the process-wide font cache.
const (
	DefaultCapacity = 20
	DefaultTTL      = time.Hour
)

// Stats is a point-in-time snapshot of cache usage.
type Stats struct {
	Size    int
	MaxSize int
	Hits    int
}

// entry is a cached font binary with bookkeeping for eviction and expiry.
type entry struct {
	bytes    []byte
	storedAt time.Time
	hitCount int
	seq      int // insertion order, breaks hit-count ties
}

// Cache is a capacity-bounded, TTL-expiring map of font binaries keyed
// by "family-weight-style". Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	capacity int
	ttl      time.Duration
	now      func() time.Time
	hits     int
	nextSeq  int
}

// New creates a Cache with the given capacity and TTL.
// Non-positive values fall back to the package defaults.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries:  make(map[string]*entry),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// NewWithClock creates a Cache with an injectable clock for expiry tests.
func NewWithClock(capacity int, ttl time.Duration, now func() time.Time) *Cache {
	c := New(capacity, ttl)
	c.now = now
	return c
}

// Key builds the canonical cache key for a font variant.
func Key(family string, weight int, style string) string {
	return fmt.Sprintf("%s-%d-%s", family, weight, style)
}

// Get returns the cached bytes for key and increments its hit counter.
// An entry older than the TTL is treated as absent and purged; expiry
// is lazy, checked on lookup rather than by a background sweep.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}

	e.hitCount++
	c.hits++
	return e.bytes, true
}

// Put stores bytes under key, then evicts least-hit entries until the
// cache is at or under capacity. A re-Put of an existing key resets its
// timestamp and hit count.
func (c *Cache) Put(key string, bytes []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{
		bytes:    bytes,
		storedAt: c.now(),
		seq:      c.nextSeq,
	}
	c.nextSeq++

	for len(c.entries) > c.capacity {
		c.evictLeastUsed()
	}
}

// evictLeastUsed removes the entry with the lowest hit count, breaking
// ties by insertion order. Callers must hold c.mu.
func (c *Cache) evictLeastUsed() {
	var victim string
	var victimEntry *entry
	for key, e := range c.entries {
		if victimEntry == nil || e.hitCount < victimEntry.hitCount ||
			(e.hitCount == victimEntry.hitCount && e.seq < victimEntry.seq) {
			victim = key
			victimEntry = e
		}
	}
	if victimEntry != nil {
		delete(c.entries, victim)
	}
}

// Stats returns a snapshot of current cache usage.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:    len(c.entries),
		MaxSize: c.capacity,
		Hits:    c.hits,
	}
}

// Clear removes all entries and resets the hit counter.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.hits = 0
	c.nextSeq = 0
}
