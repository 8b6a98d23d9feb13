// Package cache provides an in-memory, TTL-bounded cache for hub lookups
// that several splits of one run share, such as a revision's file listing.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache defines the interface for caching values by key.
type Cache[V any] interface {
	// Get retrieves a value; ok is false on a miss or an expired entry.
	Get(ctx context.Context, key string) (V, bool)
	// Put stores a value
	Put(ctx context.Context, key string, value V) error
	// Delete removes a value
	Delete(ctx context.Context, key string) error
	// Clear removes all entries
	Clear(ctx context.Context) error
	// Close releases any resources held by the cache
	Close() error
}

// Entry represents a single cache entry with metadata
type Entry[V any] struct {
	Value     V
	CreatedAt time.Time
	LastUsed  time.Time
}

// MemoryCache implements Cache using in-memory storage with LRU eviction.
type MemoryCache[V any] struct {
	mu         sync.Mutex
	entries    map[string]*Entry[V]
	maxEntries int
	ttl        time.Duration
	stats      *StatsCollector
	now        func() time.Time
}

// NewMemoryCache creates a new memory cache from cfg. A nil cfg means DefaultConfig.
func NewMemoryCache[V any](cfg *Config) *MemoryCache[V] {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := &MemoryCache[V]{
		entries:    make(map[string]*Entry[V]),
		maxEntries: cfg.MaxEntries,
		ttl:        cfg.TTL,
		now:        time.Now,
	}
	if cfg.EnableStats {
		c.stats = NewStatsCollector()
	}
	return c
}

// Get retrieves a value from the cache
func (c *MemoryCache[V]) Get(ctx context.Context, key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	entry, ok := c.entries[key]
	if !ok {
		c.recordMiss()
		return zero, false
	}
	now := c.now()
	if c.ttl > 0 && now.Sub(entry.CreatedAt) > c.ttl {
		delete(c.entries, key)
		c.recordEviction()
		c.recordMiss()
		return zero, false
	}
	entry.LastUsed = now
	if c.stats != nil {
		c.stats.RecordHit()
	}
	return entry.Value, true
}

// Put stores a value in the cache
func (c *MemoryCache[V]) Put(ctx context.Context, key string, value V) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	now := c.now()
	c.entries[key] = &Entry[V]{
		Value:     value,
		CreatedAt: now,
		LastUsed:  now,
	}
	c.updateSize()
	return nil
}

// Delete removes a value from the cache
func (c *MemoryCache[V]) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	c.updateSize()
	return nil
}

// Clear removes all entries from the cache
func (c *MemoryCache[V]) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry[V])
	c.updateSize()
	return nil
}

// Close releases any resources held by the cache
func (c *MemoryCache[V]) Close() error {
	return c.Clear(context.Background())
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache statistics; zero when stats are disabled.
func (c *MemoryCache[V]) Stats() Stats {
	if c.stats == nil {
		return Stats{}
	}
	return c.stats.GetStats()
}

// evictOldest removes the least recently used entry from the cache
func (c *MemoryCache[V]) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.LastUsed.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.LastUsed
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.recordEviction()
	}
}

func (c *MemoryCache[V]) recordMiss() {
	if c.stats != nil {
		c.stats.RecordMiss()
	}
}

func (c *MemoryCache[V]) recordEviction() {
	if c.stats != nil {
		c.stats.RecordEviction()
	}
}

func (c *MemoryCache[V]) updateSize() {
	if c.stats != nil {
		c.stats.UpdateSize(int64(len(c.entries)))
	}
}

// Key joins a dataset id and revision into a cache key.
func Key(datasetID, revision string) string {
	return datasetID + "@" + revision
}
