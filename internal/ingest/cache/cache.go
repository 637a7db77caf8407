// Package cache holds the last successful FetchResult per (feed, query) pair.
package cache

import (
	"sync"
	"time"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
)

// Key identifies one cache entry.
type Key struct {
	FeedID string
	Query  string
}

// Entry is a cached result and its age at lookup time.
type Entry struct {
	Result domain.FetchResult
	Age    time.Duration
}

// Cache is a key to FetchResult store with one entry per key and no eviction
// beyond overwrite.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]domain.FetchResult
	now     func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[Key]domain.FetchResult),
		now:     time.Now,
	}
}

// Get returns the entry for feedID and query.
func (c *Cache) Get(feedID, query string) (Entry, bool) {
	c.mu.RLock()
	result, ok := c.entries[Key{FeedID: feedID, Query: query}]
	c.mu.RUnlock()

	if !ok {
		return Entry{}, false
	}

	return Entry{Result: result, Age: c.now().Sub(result.FetchedAt)}, true
}

// Fresh returns the entry only if it is younger than ttl.
func (c *Cache) Fresh(feedID, query string, ttl time.Duration) (Entry, bool) {
	entry, ok := c.Get(feedID, query)
	if !ok || entry.Age >= ttl {
		return Entry{}, false
	}

	return entry, true
}

// Put replaces the entry for feedID and query wholesale.
func (c *Cache) Put(feedID, query string, result domain.FetchResult) {
	if result.FetchedAt.IsZero() {
		result.FetchedAt = c.now()
	}

	c.mu.Lock()
	c.entries[Key{FeedID: feedID, Query: query}] = result
	c.mu.Unlock()
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
