// Package readcache is a fixed-capacity LRU read cache over
// (tableId,key) -> (value,version), backed by hashicorp/golang-lru.
package readcache

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/devrev/pairdb/objectmanager/internal/model"
)

// Entry is a cached object value and the version it was read at.
type Entry struct {
	Value   []byte
	Version model.Version
}

// Cache wraps an LRU keyed by the string form of model.Key.
type Cache struct {
	lru *lru.Cache
}

// New builds a cache holding at most size entries.
func New(size int) (*Cache, error) {
	if size <= 0 {
		size = 1
	}
	l, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l}, nil
}

func cacheKey(key model.Key) string {
	return key.String()
}

// Get returns the cached entry for a key, if present.
func (c *Cache) Get(key model.Key) (Entry, bool) {
	v, ok := c.lru.Get(cacheKey(key))
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

// Put caches a value for a key, evicting the least-recently-used
// entry if the cache is at capacity.
func (c *Cache) Put(key model.Key, value []byte, version model.Version) {
	c.lru.Add(cacheKey(key), Entry{Value: value, Version: version})
}

// Evict removes a key from the cache, used by Remove.
func (c *Cache) Evict(key model.Key) {
	c.lru.Remove(cacheKey(key))
}

// Len returns the number of entries currently cached.
func (c *Cache) Len() int {
	return c.lru.Len()
}
