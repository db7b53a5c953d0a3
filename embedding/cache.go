package embedding

import (
	"crypto/sha256"
	"strings"
	"sync"
	"sync/atomic"
)

// cacheKey is the content address of a text: the SHA-256 of its trimmed
// bytes. Keying by content hash keeps the cache valid across documents that
// share text and bounds key memory regardless of text length.
type cacheKey [sha256.Size]byte

func keyForText(text string) cacheKey {
	return sha256.Sum256([]byte(strings.TrimSpace(text)))
}

// CacheStats is a point-in-time snapshot of cache effectiveness.
type CacheStats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// HitRate returns hits/(hits+misses), 0 when the cache is untouched.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// vectorCache maps content hashes to embeddings. Eviction is
// oldest-insertion-first once capacity is reached; embeddings for a given
// model never change, so recency tracking on reads buys little here.
type vectorCache struct {
	capacity int

	mu      sync.RWMutex
	entries map[cacheKey][]float32
	order   []cacheKey

	hits   atomic.Uint64
	misses atomic.Uint64
}

func newVectorCache(capacity int) *vectorCache {
	return &vectorCache{
		capacity: capacity,
		entries:  make(map[cacheKey][]float32),
	}
}

// get returns the cached vector for key, counting the hit or miss.
func (c *vectorCache) get(key cacheKey) ([]float32, bool) {
	c.mu.RLock()
	vec, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}

	return vec, ok
}

// put stores a vector, evicting the oldest entries to stay within capacity.
// Callers must not mutate vec after handing it over.
func (c *vectorCache) put(key cacheKey, vec []float32) {
	if c.capacity <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = vec
		return
	}

	for len(c.entries) >= c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = vec
	c.order = append(c.order, key)
}

// stats returns a snapshot of cache counters.
func (c *vectorCache) stats() CacheStats {
	c.mu.RLock()
	entries := len(c.entries)
	c.mu.RUnlock()

	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: entries,
	}
}
