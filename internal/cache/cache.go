// Package cache implements the Query Cache (C2): an LRU+TTL cache of Match
// lists keyed by a cryptographic fingerprint over the query parameters.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"structgraph/internal/logging"
	"structgraph/internal/model"
)

// Stats reports cumulative hit/miss counters plus the current size.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int
}

// Cache is a thread-safe LRU cache of model.QueryCacheEntry, with
// per-entry TTL checked on access.
type Cache struct {
	mu      sync.Mutex
	lru     *lru.Cache[string, model.QueryCacheEntry]
	ttl     time.Duration
	disabled bool

	hits   int64
	misses int64
}

// New constructs a Cache with the given max size and TTL.
func New(maxSize int, ttl time.Duration) (*Cache, error) {
	if maxSize <= 0 {
		maxSize = 256
	}
	l, err := lru.New[string, model.QueryCacheEntry](maxSize)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Cache{lru: l, ttl: ttl}, nil
}

// Key computes the stable fingerprint for a query over
// (operation, canonicalized project root, pattern/rule text, language, and
// any filters that alter the result set), per spec §4.2.
func Key(operation, projectRoot, patternOrRule, language string, extra map[string]string) string {
	h := sha256.New()
	fmt.Fprintf(h, "op=%s\nroot=%s\nlang=%s\npattern=%s\n", operation, projectRoot, language, patternOrRule)

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\n", k, extra[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SetDisabled toggles the process-global bypass switch: when disabled, Get
// always misses and Put is a no-op, but stats are unchanged (spec §4.2).
func (c *Cache) SetDisabled(disabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled = disabled
}

// Get returns the cached Match list for key, or ok=false on miss (including
// expired entries, which are evicted on access).
func (c *Cache) Get(key string) (matches []model.Match, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disabled {
		return nil, false
	}

	entry, found := c.lru.Get(key)
	if !found {
		c.misses++
		return nil, false
	}
	if c.ttl > 0 && time.Since(entry.InsertedAt) > c.ttl {
		c.lru.Remove(key)
		c.misses++
		logging.CacheDebug("evicted expired entry key=%s", key)
		return nil, false
	}
	c.hits++
	return entry.Value, true
}

// Put inserts matches under key with the current time as InsertedAt.
func (c *Cache) Put(key string, matches []model.Match) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled {
		return
	}
	c.lru.Add(key, model.QueryCacheEntry{Value: matches, InsertedAt: time.Now()})
	logging.CacheDebug("cached %d matches key=%s", len(matches), key)
}

// Clear empties the cache without affecting cumulative stats.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Stats returns cumulative hit/miss counts and current size.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Size: c.lru.Len()}
}
