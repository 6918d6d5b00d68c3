// Package cache provides the bounded, TTL-based, concurrency-safe caches
// used by the embedding client and the thread-context builder (spec §4.6).
// It generalizes the teacher's hand-rolled FIFO embeddingCache
// (internal/embedding/ollama.go) into a generic TTL+LRU cache and adds
// single-flight loading so concurrent misses for the same key collapse
// into one upstream call, as spec §4.6 recommends.
package cache

import (
	"container/list"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Stats are the hit/miss/eviction counters a cache exposes for C8.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// TTLCache is a bounded, TTL-based LRU cache safe for concurrent use.
// Every operation, Get included, takes the one exclusive mutex, because
// a hit moves the entry to the front of the LRU list; concurrent reads
// are therefore serialized rather than run in parallel.
type TTLCache[V any] struct {
	mu       sync.Mutex
	items    map[string]*list.Element // key -> element wrapping entry[V]
	order    *list.List               // front = most recently used
	maxSize  int
	ttl      time.Duration
	group    singleflight.Group
	stats    Stats
}

// New creates a TTLCache bounded to maxSize entries, each valid for ttl.
func New[V any](maxSize int, ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{
		items:   make(map[string]*list.Element, maxSize),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get returns the cached value for key if present and unexpired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	e := el.Value.(*entry[V])
	if time.Now().After(e.expiresAt) {
		c.removeElement(el)
		c.stats.Misses++
		return zero, false
	}
	c.order.MoveToFront(el)
	c.stats.Hits++
	return e.value, true
}

// Set inserts or refreshes key, evicting the least-recently-used entry
// if the cache is at capacity.
func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value)
}

func (c *TTLCache[V]) setLocked(key string, value V) {
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	if c.maxSize > 0 && len(c.items) >= c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			c.removeElement(oldest)
			c.stats.Evictions++
		}
	}

	e := &entry[V]{key: key, value: value, expiresAt: time.Now().Add(c.ttl)}
	el := c.order.PushFront(e)
	c.items[key] = el
}

func (c *TTLCache[V]) removeElement(el *list.Element) {
	e := el.Value.(*entry[V])
	delete(c.items, e.key)
	c.order.Remove(el)
}

// Len returns the current number of live (not necessarily unexpired) entries.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of the hit/miss/eviction counters.
func (c *TTLCache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// GetOrLoad returns the cached value for key, or calls load exactly once
// per set of concurrent misses (via singleflight) and caches the result.
// A failed load is never cached.
func (c *TTLCache[V]) GetOrLoad(key string, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if cached, ok := c.Get(key); ok {
			return cached, nil
		}
		loaded, err := load()
		if err != nil {
			return loaded, err
		}
		c.Set(key, loaded)
		return loaded, nil
	})

	var zero V
	if err != nil {
		return zero, err
	}
	return v.(V), nil
}
