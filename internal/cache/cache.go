// Package cache provides a small bounded, TTL-evicting cache used by
// the discovery loop to remember the last gossip payload merged from
// each source and skip redundant re-merges of unchanged state.
package cache

import (
	"container/heap"
	"time"
)

type item struct {
	key        string
	value      string
	expiryTime time.Time
}

// TTLCache stores string values keyed by string, evicting the
// soonest-to-expire entry once maxItems is reached. Unlike the
// teacher's objects-cache, this cache is only ever touched from the
// controller's single consumer loop, so it carries no internal
// locking — the controller's single-writer discipline (spec §4.3, §5)
// already rules out concurrent access.
type TTLCache struct {
	maxItems int
	ttl      time.Duration

	items        map[string]*item
	evictionHeap itemHeap
}

// New creates a TTLCache holding at most maxItems entries, each valid
// for ttl.
func New(maxItems int, ttl time.Duration) *TTLCache {
	h := make(itemHeap, 0)
	heap.Init(&h)
	return &TTLCache{
		maxItems:     maxItems,
		ttl:          ttl,
		items:        map[string]*item{},
		evictionHeap: h,
	}
}

// Put stores value under key, replacing any prior entry.
func (c *TTLCache) Put(key, value string) {
	c.delete(key)

	if len(c.items) >= c.maxItems {
		c.evict(1)
	}
	it := &item{key: key, value: value, expiryTime: time.Now().Add(c.ttl)}
	c.items[key] = it
	heap.Push(&c.evictionHeap, it)
}

func (c *TTLCache) evict(n int) {
	for i := 0; i < n && len(c.evictionHeap) > 0; i++ {
		evicted := heap.Pop(&c.evictionHeap).(*item)
		delete(c.items, evicted.key)
	}
}

func (c *TTLCache) delete(key string) {
	delete(c.items, key)
	for i := range c.evictionHeap {
		if c.evictionHeap[i].key == key {
			heap.Remove(&c.evictionHeap, i)
			return
		}
	}
}

// Get returns the value stored under key and whether it is present and
// unexpired.
func (c *TTLCache) Get(key string) (string, bool) {
	it, ok := c.items[key]
	if !ok {
		return "", false
	}
	if time.Now().After(it.expiryTime) {
		return "", false
	}
	return it.value, true
}

type itemHeap []*item

func (h itemHeap) Len() int            { return len(h) }
func (h itemHeap) Less(i, j int) bool  { return h[i].expiryTime.Before(h[j].expiryTime) }
func (h itemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(v any) {
	*h = append(*h, v.(*item))
}
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}
