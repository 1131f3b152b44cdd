package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// LRUCache is a size-bounded cache with per-entry TTL.
type LRUCache[V any] struct {
	capacity   int
	defaultTTL time.Duration
	mu         sync.Mutex

	cache map[string]*entry[V]
	order *list.List // front is most recently used

	hits, misses, evictions int64
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	element   *list.Element
}

// NewLRUCache creates a new LRU cache.
func NewLRUCache[V any](capacity int, defaultTTL time.Duration) *LRUCache[V] {
	if capacity <= 0 {
		capacity = 1000
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}

	return &LRUCache[V]{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		cache:      make(map[string]*entry[V]),
		order:      list.New(),
	}
}

// Get retrieves a value from the cache.
func (c *LRUCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.cache[key]
	if !ok {
		c.misses++
		return zero, false
	}

	if time.Now().After(e.expiresAt) {
		c.removeEntry(e)
		c.misses++
		return zero, false
	}

	c.hits++
	c.order.MoveToFront(e.element)
	return e.value, true
}

// Set stores a value in the cache.
func (c *LRUCache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.cache[key]; ok {
		e.value = value
		e.expiresAt = time.Now().Add(ttl)
		c.order.MoveToFront(e.element)
		return
	}

	for len(c.cache) >= c.capacity {
		c.evictOldest()
	}

	e := &entry[V]{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	e.element = c.order.PushFront(e)
	c.cache[key] = e
}

// Invalidate removes entries matching the pattern.
// Supports * wildcard at the end (e.g., "dialog:*").
func (c *LRUCache[V]) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !strings.HasSuffix(pattern, "*") {
		if e, ok := c.cache[pattern]; ok {
			c.removeEntry(e)
			return 1
		}
		return 0
	}

	count := 0
	prefix := strings.TrimSuffix(pattern, "*")
	for key, e := range c.cache {
		if strings.HasPrefix(key, prefix) {
			c.removeEntry(e)
			count++
		}
	}
	return count
}

// Size returns the number of entries in the cache.
func (c *LRUCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Clear removes all entries from the cache.
func (c *LRUCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*entry[V])
	c.order.Init()
}

// Stats returns hit, miss and eviction counters.
func (c *LRUCache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Evictions: c.evictions, Size: len(c.cache)}
}

// evictOldest removes the least recently used entry.
// Must be called with lock held.
func (c *LRUCache[V]) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	c.removeEntry(oldest.Value.(*entry[V]))
	c.evictions++
}

// Must be called with lock held.
func (c *LRUCache[V]) removeEntry(e *entry[V]) {
	c.order.Remove(e.element)
	delete(c.cache, e.key)
}

// CleanupExpired removes all expired entries and returns how many were removed.
func (c *LRUCache[V]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toDelete []*entry[V]
	now := time.Now()
	for _, e := range c.cache {
		if now.After(e.expiresAt) {
			toDelete = append(toDelete, e)
		}
	}
	for _, e := range toDelete {
		c.removeEntry(e)
	}
	return len(toDelete)
}
