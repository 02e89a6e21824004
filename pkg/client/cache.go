package client

import (
	"strings"
	"sync"
)

// cache holds raw response bodies keyed by path plus encoded query. Each
// invalidated prefix carries a version so a response that was in flight
// across an invalidation is not stored.
type cache struct {
	mu       sync.Mutex
	entries  map[string][]byte
	versions map[string]uint64
}

func newCache() *cache {
	return &cache{
		entries:  make(map[string][]byte),
		versions: make(map[string]uint64),
	}
}

func (c *cache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	return data, ok
}

func (c *cache) version(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versionLocked(key)
}

func (c *cache) versionLocked(key string) uint64 {
	var v uint64
	for prefix, n := range c.versions {
		if strings.HasPrefix(key, prefix) {
			v += n
		}
	}
	return v
}

// put stores data unless key was invalidated since version was read.
func (c *cache) put(key string, data []byte, version uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versionLocked(key) != version {
		return false
	}
	c.entries[key] = data
	return true
}

func (c *cache) invalidate(prefixes ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, prefix := range prefixes {
		c.versions[prefix]++
		for key := range c.entries {
			if strings.HasPrefix(key, prefix) {
				delete(c.entries, key)
			}
		}
	}
}

func (c *cache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		delete(c.entries, key)
	}
	c.versions[""]++
}
