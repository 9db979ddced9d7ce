package cache

import (
	"container/list"
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultLoadTimeout bounds a shared GetOrLoad load once it is detached
// from the caller that started it.
const DefaultLoadTimeout = 30 * time.Second

// LRUCache evicts by size and by TTL.
//
// A key that has callers waiting in GetOrLoad carries a generation taken
// from a cache-wide counter. Delete moves it to a fresh value, so loads
// started before an invalidation are neither joined nor stored. The entry
// goes away with the last waiting caller.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	gens    map[string]uint64
	waiters map[string]int
	seq     uint64
	lru     *list.List
	now     func() time.Time
	group   singleflight.Group

	loadTimeout time.Duration

	hits, misses uint64
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Size   int
	Hits   uint64
	Misses uint64
}

func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		gens:    make(map[string]uint64),
		waiters: make(map[string]int),
		lru:     list.New(),
		now:     time.Now,

		loadTimeout: DefaultLoadTimeout,
	}
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *LRUCache[T]) getLocked(key string) (T, bool) {
	var zero T
	elem, exists := c.items[key]
	if !exists {
		c.misses++
		return zero, false
	}
	item := elem.Value.(*cacheItem[T])
	if c.now().After(item.expiresAt) {
		c.removeElement(elem)
		c.misses++
		return zero, false
	}
	c.lru.MoveToFront(elem)
	c.hits++
	return item.data, true
}

func (c *LRUCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, data)
}

func (c *LRUCache[T]) setLocked(key string, data T) {
	item := &cacheItem[T]{key: key, data: data, expiresAt: c.now().Add(c.ttl)}

	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	c.items[key] = c.lru.PushFront(item)
	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Delete removes key and invalidates any load for it that is in flight.
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, tracked := c.gens[key]; tracked {
		c.seq++
		c.gens[key] = c.seq
	}
	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

// GetOrLoad returns the cached value or calls load once for all concurrent
// callers of the same key and generation.
//
// The load runs detached from ctx, bounded by the load timeout, so one
// caller going away does not fail the others. Each caller stops waiting
// when its own ctx is done.
func (c *LRUCache[T]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T

	c.mu.Lock()
	if v, ok := c.getLocked(key); ok {
		c.mu.Unlock()
		return v, nil
	}
	gen, tracked := c.gens[key]
	if !tracked {
		c.seq++
		gen = c.seq
		c.gens[key] = gen
	}
	c.waiters[key]++
	c.mu.Unlock()
	defer c.release(key)

	detached := context.WithoutCancel(ctx)
	results := c.group.DoChan(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		lctx, cancel := context.WithTimeout(detached, c.loadTimeout)
		defer cancel()

		data, err := load(lctx)
		if err != nil {
			return data, err
		}

		c.mu.Lock()
		if cur, ok := c.gens[key]; ok && cur == gen {
			c.setLocked(key, data)
		}
		c.mu.Unlock()
		return data, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(T)
		return v, nil
	}
}

// release drops the generation of key once nobody waits on it.
func (c *LRUCache[T]) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waiters[key]--
	if c.waiters[key] <= 0 {
		delete(c.waiters, key)
		delete(c.gens, key)
	}
}

func (c *LRUCache[T]) tracked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.gens)
}

func (c *LRUCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

// CleanExpired removes all expired entries and returns how many went.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		if now.After(elem.Value.(*cacheItem[T]).expiresAt) {
			c.removeElement(elem)
			removed++
		}
		elem = next
	}
	return removed
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRUCache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Size: len(c.items), Hits: c.hits, Misses: c.misses}
}
