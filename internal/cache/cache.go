// Package cache memoises encoded API responses. The engines are pure, so a
// response depends only on the endpoint and the request body; both are hashed
// with xxhash into the LRU key.
package cache

import (
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a fixed-size LRU of response bodies. A nil *Cache is a valid,
// always-missing cache.
type Cache struct {
	lru    *lru.Cache[uint64, []byte]
	size   int
	hits   atomic.Uint64
	misses atomic.Uint64
}

// Stats is a point-in-time snapshot of cache usage.
type Stats struct {
	Enabled  bool   `json:"enabled"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
}

// New returns a cache holding up to size entries. Size 0 disables caching and
// returns nil.
func New(size int) (*Cache, error) {
	if size <= 0 {
		return nil, nil
	}
	l, err := lru.New[uint64, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l, size: size}, nil
}

// Key hashes endpoint and body into a cache key.
func Key(endpoint string, body []byte) uint64 {
	d := xxhash.New()
	d.WriteString(endpoint)
	d.Write([]byte{0})
	d.Write(body)
	return d.Sum64()
}

// Get returns the stored body for key.
func (c *Cache) Get(key uint64) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Add stores body under key, evicting the least recently used entry when full.
func (c *Cache) Add(key uint64, body []byte) {
	if c == nil {
		return
	}
	c.lru.Add(key, body)
}

// Purge drops every entry and resets the counters.
func (c *Cache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}

// Stats returns a snapshot of the cache usage. A nil cache reports disabled.
func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		Enabled:  true,
		Size:     c.lru.Len(),
		Capacity: c.size,
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
	}
}
