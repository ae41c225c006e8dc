package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

const (
	defaultMaxSize = 100
	defaultTTL     = 5 * time.Minute
)

// QueryCache is an LRU cache of query embeddings with a TTL.
//
// Every Invalidate starts a new generation. Vectors computed against an older
// generation are dropped by PutAt, so an embedding that was in flight while
// the index was swapped never lands in the cache.
type QueryCache struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	lru        *list.List // front = most recently used
	maxSize    int
	ttl        time.Duration
	generation uint64

	hits   uint64
	misses uint64
}

type cacheEntry struct {
	key      string
	vector   []float32
	storedAt time.Time
}

// NewQueryCache creates a cache holding at most maxSize vectors for ttl.
// Non-positive arguments select the defaults (100 entries, 5 minutes).
func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &QueryCache{
		items:   make(map[string]*list.Element, maxSize),
		lru:     list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Vectors from different models never share a key.
func cacheKey(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func (c *QueryCache) Get(model, text string) ([]float32, bool) {
	key := cacheKey(model, text)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if time.Since(entry.storedAt) > c.ttl {
		c.remove(el)
		c.misses++
		return nil, false
	}

	c.lru.MoveToFront(el)
	c.hits++
	return entry.vector, true
}

// Generation returns the current generation, to be passed to PutAt once the
// vector has been computed.
func (c *QueryCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Put stores vector in the current generation.
func (c *QueryCache) Put(model, text string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(cacheKey(model, text), vector)
}

// PutAt stores vector only if no Invalidate happened since gen was read.
func (c *QueryCache) PutAt(gen uint64, model, text string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.put(cacheKey(model, text), vector)
}

func (c *QueryCache) put(key string, vector []float32) {
	if el, ok := c.items[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.vector = vector
		entry.storedAt = time.Now()
		c.lru.MoveToFront(el)
		return
	}

	for c.lru.Len() >= c.maxSize {
		c.remove(c.lru.Back())
	}
	c.items[key] = c.lru.PushFront(&cacheEntry{key: key, vector: vector, storedAt: time.Now()})
}

func (c *QueryCache) remove(el *list.Element) {
	c.lru.Remove(el)
	delete(c.items, el.Value.(*cacheEntry).key)
}

// Invalidate drops every entry and starts a new generation. Called when the
// served index is replaced.
func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element, c.maxSize)
	c.lru.Init()
	c.generation++
}

func (c *QueryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns hit and miss counters.
func (c *QueryCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
