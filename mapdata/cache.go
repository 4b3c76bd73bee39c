package mapdata

import (
	"path/filepath"
	"sync"
)

// Cache memoises parsed maps by cleaned path. Safe for concurrent use.
type Cache struct {
	mu   sync.Mutex
	maps map[string]*MapData
}

func NewCache() *Cache {
	return &Cache{maps: map[string]*MapData{}}
}

// Load returns the parsed map at path. An empty path yields empty map data.
// Parse failures are not cached.
func (c *Cache) Load(path string) (*MapData, error) {
	if path == "" {
		return Empty(), nil
	}
	key := filepath.Clean(path)
	c.mu.Lock()
	md, ok := c.maps[key]
	c.mu.Unlock()
	if ok {
		return md, nil
	}
	md, err := ParseFile(key)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.maps[key] = md
	c.mu.Unlock()
	return md, nil
}

// Len returns the number of cached maps.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.maps)
}
