package ruleeval

import (
	"fmt"
	"sync"
)

// CacheKey identifies a compiled rule by the tuple §4.2 specifies:
// tenant, a content hash of the raw rule body, and the rule-pack version.
type CacheKey struct {
	TenantID    string
	ContentHash string
	Version     string
}

func (k CacheKey) string() string {
	return fmt.Sprintf("%s|%s|%s", k.TenantID, k.ContentHash, k.Version)
}

// Cache is a concurrent-safe store of compiled rules, safe under multiple
// concurrent readers and a single writer per key (§5). It never evicts —
// compiled rules are small and the key space is bounded by the number of
// distinct rule-pack versions a tenant has ever used; callers that need
// bounded memory should wrap this with the TTL/LRU cache in
// internal/infrastructure/cache instead of reaching for a second layer
// here.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*CompiledRule
	hits    int64
	misses  int64
}

// NewCache constructs an empty compiled-rule cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*CompiledRule)}
}

// Get returns the cached compiled rule for key, if present.
func (c *Cache) Get(key CacheKey) (*CompiledRule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[key.string()]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return r, ok
}

// Put stores a compiled rule under key.
func (c *Cache) Put(key CacheKey, rule *CompiledRule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.string()] = rule
}

// GetOrCompile returns the cached rule for key, compiling and caching raw
// on a miss.
func (c *Cache) GetOrCompile(key CacheKey, raw any) (*CompiledRule, error) {
	if r, ok := c.Get(key); ok {
		return r, nil
	}
	r, err := Compile(raw)
	if err != nil {
		return nil, err
	}
	c.Put(key, r)
	return r, nil
}

// Stats reports cache hit/miss counters and current size, used by the
// metrics recorder.
type Stats struct {
	Hits, Misses int64
	Size         int
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Hits: c.hits, Misses: c.misses, Size: len(c.entries)}
}
