package optix

import (
	"container/list"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// PlanCache stores rebuild plans keyed by path identity. Entries are opaque
// to implementations; the engine validates shape fingerprints itself, so a
// cache may evict or drop entries at any time without affecting results.
type PlanCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithPlanCache registers a plan cache on the engine. A nil cache disables
// plan reuse entirely.
func WithPlanCache(cache PlanCache) Option {
	return func(cfg *engineConfig) {
		cfg.planCache = cache
		cfg.planCacheSet = true
	}
}

// WithPlanCacheSize installs a bounded LRU plan cache with the given
// capacity. A capacity of zero disables caching.
func WithPlanCacheSize(capacity int) Option {
	return func(cfg *engineConfig) {
		cfg.planCache = NewLRUPlanCache(capacity)
		cfg.planCacheSet = true
	}
}

// DefaultPlanCacheSize is the capacity of the LRU cache engines create when
// no cache option is supplied.
const DefaultPlanCacheSize = 128

// CacheStats is a snapshot of LRU cache counters.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}

// LRUPlanCache is a bounded least-recently-used PlanCache. Safe for
// concurrent use; lookup and insert each take a single critical section.
type LRUPlanCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List

	hits      int64
	misses    int64
	evictions int64
}

type lruEntry struct {
	key   string
	value any
}

// NewLRUPlanCache constructs an LRU cache holding at most capacity plans.
func NewLRUPlanCache(capacity int) *LRUPlanCache {
	if capacity < 0 {
		capacity = 0
	}
	return &LRUPlanCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached plan for key, promoting it to most recently used.
func (c *LRUPlanCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	element, ok := c.entries[key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	c.order.MoveToFront(element)
	atomic.AddInt64(&c.hits, 1)
	return element.Value.(*lruEntry).value, true
}

// Set stores value under key, replacing any previous entry and evicting the
// least recently used plan when over capacity.
func (c *LRUPlanCache) Set(key string, value any) {
	if c.capacity == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if element, ok := c.entries[key]; ok {
		element.Value.(*lruEntry).value = value
		c.order.MoveToFront(element)
		return
	}
	c.entries[key] = c.order.PushFront(&lruEntry{key: key, value: value})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*lruEntry).key)
		atomic.AddInt64(&c.evictions, 1)
	}
}

// Stats returns a snapshot of the cache counters.
func (c *LRUPlanCache) Stats() CacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()
	return CacheStats{
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Evictions: atomic.LoadInt64(&c.evictions),
		Entries:   entries,
	}
}

// rebuildPlan memoizes, per (tree shape, path) pair, the adapter and child
// index of every step so repeated applications against same-shaped trees
// skip adapter resolution and child location. Plans are immutable once
// built; a stale plan is replaced wholesale.
type rebuildPlan struct {
	id    string
	steps []planStep
}

// planStep pairs the resolution outcome of one path segment with the shape
// fingerprint that must still hold for the step to be reusable.
type planStep struct {
	adapter    Adapter
	child      int
	childCount int
	auxSum     uint64
}

func newRebuildPlan(steps []planStep) *rebuildPlan {
	return &rebuildPlan{
		id:    uuid.NewString(),
		steps: steps,
	}
}

// matches reports whether dec still has the shape this step was derived
// from. Any change to child count or aux data invalidates.
func (s planStep) matches(dec Decomposition) bool {
	if len(dec.Children) != s.childCount {
		return false
	}
	return auxChecksum(dec) == s.auxSum
}

// auxChecksum hashes the non-child data a rebuild depends on: labels and the
// adapter's private extra payload.
func auxChecksum(dec Decomposition) uint64 {
	h := fnv.New64a()
	for _, label := range dec.Labels {
		h.Write([]byte(label))
		h.Write([]byte{0})
	}
	if dec.Extra != nil {
		fmt.Fprintf(h, "%v", dec.Extra)
	}
	return h.Sum64()
}
