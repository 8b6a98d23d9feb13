package cache

import (
	"sync"
	"time"
)

// Stats holds cache statistics
type Stats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Entries     int64
	LastUpdated time.Time
}

// StatsCollector collects and reports cache statistics
type StatsCollector struct {
	mu    sync.Mutex
	stats Stats
}

// NewStatsCollector creates a new statistics collector
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{
		stats: Stats{
			LastUpdated: time.Now(),
		},
	}
}

func (c *StatsCollector) update(fn func(s *Stats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.stats.LastUpdated = time.Now()
	c.mu.Unlock()
}

// RecordHit records a cache hit
func (c *StatsCollector) RecordHit() {
	c.update(func(s *Stats) { s.Hits++ })
}

// RecordMiss records a cache miss
func (c *StatsCollector) RecordMiss() {
	c.update(func(s *Stats) { s.Misses++ })
}

// RecordEviction records a cache eviction
func (c *StatsCollector) RecordEviction() {
	c.update(func(s *Stats) { s.Evictions++ })
}

// UpdateSize updates the current entry count
func (c *StatsCollector) UpdateSize(entries int64) {
	c.update(func(s *Stats) { s.Entries = entries })
}

// GetStats returns a snapshot of the current statistics
func (c *StatsCollector) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// HitRate returns the cache hit rate
func (c *StatsCollector) HitRate() float64 {
	s := c.GetStats()
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
