package basemerge

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/beetlebugorg/basemerge/internal/conflate"
)

// LayerCache holds loaded layers with LRU eviction.
//
// Base maps are read once per workspace but new-feature layers and lookup
// outputs are often reused across stages. The cache keeps recently used
// layers in memory and evicts the least recently used when the memory
// estimate exceeds the limit.
//
// Cached layers are shared. Workspace.ReadLayer returns a clone, so callers
// are free to modify what they get.
//
// Example:
//
//	cache := basemerge.NewLayerCache(256 << 20) // 256MB
//	ws, err := basemerge.OpenWorkspace(dir, cache)
type LayerCache struct {
	maxMemory  int64
	usedMemory int64
	layers     map[string]*cacheEntry
	lru        *list.List // most recent at front
	hits       int
	misses     int
	uncached   int
	mu         sync.RWMutex
}

type cacheEntry struct {
	key          string
	layer        *conflate.Layer
	memorySize   int64
	element      *list.Element
	lastAccessed time.Time
	accessCount  int
}

// NewLayerCache creates a cache limited to maxMemoryBytes. Zero means
// unlimited.
func NewLayerCache(maxMemoryBytes int64) *LayerCache {
	return &LayerCache{
		maxMemory: maxMemoryBytes,
		layers:    make(map[string]*cacheEntry),
		lru:       list.New(),
	}
}

// get returns the cached layer for key or loads it with loader. A layer too
// large for the cache is returned uncached and counted in Stats().Uncached.
func (c *LayerCache) get(key string, loader func() (*conflate.Layer, error)) (*conflate.Layer, error) {
	c.mu.Lock()
	if entry, ok := c.layers[key]; ok {
		entry.lastAccessed = time.Now()
		entry.accessCount++
		c.hits++
		c.lru.MoveToFront(entry.element)
		c.mu.Unlock()
		return entry.layer, nil
	}
	c.misses++
	c.mu.Unlock()

	l, err := loader()
	if err != nil {
		return nil, err
	}
	if err := c.add(key, l); err != nil {
		c.mu.Lock()
		c.uncached++
		c.mu.Unlock()
	}
	return l, nil
}

// add stores l under key, replacing any previous entry.
func (c *LayerCache) add(key string, l *conflate.Layer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	memSize := estimateLayerMemory(l)
	if entry, ok := c.layers[key]; ok {
		c.usedMemory += memSize - entry.memorySize
		entry.layer = l
		entry.memorySize = memSize
		entry.lastAccessed = time.Now()
		entry.accessCount++
		c.lru.MoveToFront(entry.element)
		c.evictOver(entry)
		return nil
	}

	if c.maxMemory > 0 && memSize > c.maxMemory {
		return fmt.Errorf("layer too large for cache (%d bytes > %d bytes max)",
			memSize, c.maxMemory)
	}
	if c.maxMemory > 0 {
		for c.usedMemory+memSize > c.maxMemory && c.lru.Len() > 0 {
			c.evictLRU()
		}
	}

	entry := &cacheEntry{
		key:          key,
		layer:        l,
		memorySize:   memSize,
		lastAccessed: time.Now(),
		accessCount:  1,
	}
	entry.element = c.lru.PushFront(entry)
	c.layers[key] = entry
	c.usedMemory += memSize
	return nil
}

// evictOver evicts older entries until usage fits, never evicting keep.
// Must be called with c.mu locked.
func (c *LayerCache) evictOver(keep *cacheEntry) {
	if c.maxMemory <= 0 {
		return
	}
	for c.usedMemory > c.maxMemory && c.lru.Len() > 1 {
		if c.lru.Back().Value.(*cacheEntry) == keep {
			return
		}
		c.evictLRU()
	}
}

// evictLRU removes the least recently used layer.
// Must be called with c.mu locked.
func (c *LayerCache) evictLRU() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*cacheEntry)
	c.lru.Remove(elem)
	delete(c.layers, entry.key)
	c.usedMemory -= entry.memorySize
}

// Remove drops key from the cache.
func (c *LayerCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.layers[key]; ok {
		c.lru.Remove(entry.element)
		delete(c.layers, key)
		c.usedMemory -= entry.memorySize
	}
}

// Clear empties the cache.
func (c *LayerCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.layers = make(map[string]*cacheEntry)
	c.lru.Init()
	c.usedMemory = 0
}

// Stats returns cache statistics.
func (c *LayerCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CacheStats{
		LayerCount: len(c.layers),
		UsedMemory: c.usedMemory,
		MaxMemory:  c.maxMemory,
		Hits:       c.hits,
		Misses:     c.misses,
		Uncached:   c.uncached,
	}
}

// CacheStats holds cache metrics.
type CacheStats struct {
	LayerCount int   // Layers currently cached
	UsedMemory int64 // Estimated bytes in use
	MaxMemory  int64 // Limit in bytes, 0 for unlimited
	Hits       int
	Misses     int
	Uncached   int // Loads too large to cache
}

// estimateLayerMemory approximates the in-memory size of l:
//   - 1KB per layer
//   - 256 bytes per feature plus 64 per attribute
//   - 16 bytes per coordinate pair
func estimateLayerMemory(l *conflate.Layer) int64 {
	if l == nil {
		return 0
	}
	size := int64(1024)
	for _, f := range l.Features {
		size += 256 + int64(len(f.Attrs))*64
		for _, r := range f.Geom {
			size += int64(len(r)) * 16
		}
	}
	return size
}
