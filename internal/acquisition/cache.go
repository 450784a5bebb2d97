package acquisition

import "sync"

// Key identifies a normalized reading: the device, the reading path and the
// unit it was converted to.
type Key struct {
	Device string
	Path   string
	Unit   string
}

// Cache memoizes normalized readings. It is owned by the caller and shared
// explicitly; nothing in the engine holds one.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]float64
	hits    int
	misses  int
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{entries: make(map[Key]float64)}
}

// Get returns a cached value.
func (c *Cache) Get(k Key) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[k]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Put stores a value.
func (c *Cache) Put(k Key, v float64) {
	c.mu.Lock()
	c.entries[k] = v
	c.mu.Unlock()
}

// Invalidate drops every reading of a device.
func (c *Cache) Invalidate(device string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.Device == device {
			delete(c.entries, k)
		}
	}
}

// Len is the number of cached readings.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counts.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
