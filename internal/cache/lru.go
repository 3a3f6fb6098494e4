package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU implements Store with least-recently-used eviction and TTL expiry.
type LRU[V any] struct {
	capacity   int
	defaultTTL time.Duration
	now        func() time.Time

	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front = most recently used
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// NewLRU creates an LRU store. Non-positive arguments fall back to
// 1000 entries and a 5 minute TTL.
func NewLRU[V any](capacity int, defaultTTL time.Duration) *LRU[V] {
	if capacity <= 0 {
		capacity = 1000
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}

	return &LRU[V]{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		now:        time.Now,
		items:      make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Get returns the value for key if present and not expired.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(key)
}

// Set stores value under key. A non-positive ttl uses the default.
func (c *LRU[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value, ttl)
}

// GetOrSet is atomic: concurrent callers for the same key observe one value.
func (c *LRU[V]) GetOrSet(key string, ttl time.Duration, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.get(key); ok {
		return v
	}
	v := create()
	c.set(key, v, ttl)
	return v
}

// Delete removes key if present.
func (c *LRU[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// get must be called with mu held.
func (c *LRU[V]) get(key string) (V, bool) {
	var zero V

	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[V])
	if c.now().After(e.expiresAt) {
		c.remove(el)
		return zero, false
	}

	c.order.MoveToFront(el)
	return e.value, true
}

// set must be called with mu held.
func (c *LRU[V]) set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	expiresAt := c.now().Add(ttl)

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	for len(c.items) >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.remove(oldest)
	}

	el := c.order.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = el
}

func (c *LRU[V]) remove(el *list.Element) {
	e := el.Value.(*entry[V])
	delete(c.items, e.key)
	c.order.Remove(el)
}
