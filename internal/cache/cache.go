// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultCleanupInterval is how often Serve sweeps expired entries.
const DefaultCleanupInterval = time.Minute

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a thread-safe map whose entries expire after a fixed TTL.
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	ttl     time.Duration
	now     func() time.Time

	cleanupInterval time.Duration

	statsMu sync.Mutex
	stats   Stats
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	TotalKeys   int64
	LastCleanup time.Time
}

// New creates a cache whose entries live for ttl.
func New[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		entries:         make(map[K]entry[V]),
		ttl:             ttl,
		now:             time.Now,
		cleanupInterval: DefaultCleanupInterval,
	}
}

// Get returns the value for key if it is present and unexpired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.record(func(s *Stats) { s.Misses++ })
		var zero V
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Another writer may have refreshed the entry since the read.
		if cur, still := c.entries[key]; still && !c.now().Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		c.record(func(s *Stats) { s.Misses++; s.Evictions++ })
		var zero V
		return zero, false
	}
	c.record(func(s *Stats) { s.Hits++ })
	return e.value, true
}

// Set stores value under key with the default TTL.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
	n := int64(len(c.entries))
	c.mu.Unlock()
	c.record(func(s *Stats) { s.TotalKeys = n })
}

// Delete removes key. Missing keys are ignored.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	n := int64(len(c.entries))
	c.mu.Unlock()
	if ok {
		c.record(func(s *Stats) { s.Evictions++; s.TotalKeys = n })
	}
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	evicted := int64(len(c.entries))
	c.entries = make(map[K]entry[V])
	c.mu.Unlock()
	c.record(func(s *Stats) { s.Evictions += evicted; s.TotalKeys = 0 })
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a copy of the current statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// HitRate returns hits as a percentage of lookups.
func (c *Cache[K, V]) HitRate() float64 {
	s := c.Stats()
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Serve sweeps expired entries until ctx is canceled. It implements suture.Service.
func (c *Cache[K, V]) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *Cache[K, V]) String() string {
	return "lookup-cache"
}

func (c *Cache[K, V]) cleanup() {
	now := c.now()
	c.mu.Lock()
	var evicted int64
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}
	n := int64(len(c.entries))
	c.mu.Unlock()

	c.record(func(s *Stats) {
		s.Evictions += evicted
		s.TotalKeys = n
		s.LastCleanup = now
	})
}

func (c *Cache[K, V]) record(fn func(*Stats)) {
	c.statsMu.Lock()
	fn(&c.stats)
	c.statsMu.Unlock()
}
