// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package embedding

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	// DefaultCacheTTL is how long a memoized vector is trusted.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultCacheCapacity is a soft cap: exceeding it triggers eviction of
	// expired entries only, it never forces out live ones.
	DefaultCacheCapacity = 100

	// evictBatch bounds how many expired entries one overflow sweep removes.
	evictBatch = 20

	// keyPrefixLen is how much of the content participates in the key; the
	// content length disambiguates the rest.
	keyPrefixLen = 50
)

type cacheEntry struct {
	vector    []float32
	createdAt time.Time
}

// Cache memoizes embedding vectors keyed by content, modality, and provider
// configuration. Construct one per process and inject it wherever embeddings
// are generated, so search and ingestion share hits.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	ttl      time.Duration
	capacity int
	nowFunc  func() time.Time
}

// NewCache creates a cache with the given TTL and soft capacity. Zero values
// select the defaults.
func NewCache(ttl time.Duration, capacity int) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		entries:  make(map[string]cacheEntry),
		ttl:      ttl,
		capacity: capacity,
		nowFunc:  time.Now,
	}
}

// SetNowFunc overrides the time source (for testing).
func (c *Cache) SetNowFunc(fn func() time.Time) {
	c.mu.Lock()
	c.nowFunc = fn
	c.mu.Unlock()
}

// GetOrCompute returns the cached vector for (content, cfg, isImage) if it is
// younger than the TTL, otherwise runs compute and stores the result.
func (c *Cache) GetOrCompute(content string, cfg Config, isImage bool, compute func() ([]float32, error)) ([]float32, error) {
	key := cacheKey(content, cfg, isImage)

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && c.nowFunc().Sub(entry.createdAt) < c.ttl {
		c.mu.Unlock()
		return entry.vector, nil
	}
	c.mu.Unlock()

	vector, err := compute()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{vector: vector, createdAt: c.nowFunc()}
	if len(c.entries) > c.capacity {
		c.evictExpiredLocked()
	}
	c.mu.Unlock()

	return vector, nil
}

// Len reports the current entry count, expired entries included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictExpiredLocked removes up to evictBatch of the oldest expired entries.
// Live entries are never evicted; the capacity is advisory.
func (c *Cache) evictExpiredLocked() {
	now := c.nowFunc()

	type aged struct {
		key       string
		createdAt time.Time
	}
	var expired []aged
	for key, entry := range c.entries {
		if now.Sub(entry.createdAt) >= c.ttl {
			expired = append(expired, aged{key: key, createdAt: entry.createdAt})
		}
	}

	sort.Slice(expired, func(i, j int) bool {
		return expired[i].createdAt.Before(expired[j].createdAt)
	})

	if len(expired) > evictBatch {
		expired = expired[:evictBatch]
	}
	for _, e := range expired {
		delete(c.entries, e.key)
	}
}

func cacheKey(content string, cfg Config, isImage bool) string {
	prefix := content
	if len(prefix) > keyPrefixLen {
		prefix = prefix[:keyPrefixLen]
	}
	return fmt.Sprintf("%s:%d:%t:%s", prefix, len(content), isImage, cfg.CacheKeyPart())
}
