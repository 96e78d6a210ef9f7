package cache

import (
	"container/list"
	"sync"
)

// LRU is a fixed-capacity map with least-recently-used eviction and an atomic
// take-and-remove operation. Inserting past capacity silently drops the
// stalest entry; callers that care about the loss must size the cache for it.
//
// Put and Take are atomic per key. Nothing is guaranteed across a concurrent
// Put/Take pair on the same key beyond that: the Take observes the entry or it
// does not.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[K]*list.Element
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// New returns an empty cache. Capacity must be positive.
func New[K comparable, V any](capacity int) *LRU[K, V] {
	if capacity <= 0 {
		panic("cache: capacity must be positive")
	}
	return &LRU[K, V]{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[K]*list.Element, capacity),
	}
}

// Put inserts value under key, refreshing recency when the key is present.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*entry[K, V]).value = value
		return
	}

	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry[K, V]).key)
	}
}

// Take removes and returns the value under key. Consumption is at-most-once:
// of two concurrent Takes for the same key, exactly one can succeed.
func (c *LRU[K, V]) Take(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}

	c.order.Remove(elem)
	delete(c.items, key)
	return elem.Value.(*entry[K, V]).value, true
}

// Len reports the number of live entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
