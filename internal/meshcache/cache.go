package meshcache

import (
	"sync"
	"sync/atomic"

	"meshpipe/internal/chunk"
	"meshpipe/internal/meshing"
)

// Metrics is a point-in-time view of cache usage.
type Metrics struct {
	Hits          uint64
	Misses        uint64
	Stale         uint64
	Invalidations uint64
	Entries       int
	Bytes         int
}

// Cache stores finished meshes keyed by (chunk coordinate, LOD). Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[chunk.Coord]map[int]*meshing.MeshData
	bytes   int

	// OnInvalidate runs after a coordinate's entries are dropped, outside the lock.
	// The world wires it to mark the chunk's mesh dirty.
	OnInvalidate func(coord chunk.Coord)

	hits, misses, stale, invalidations atomic.Uint64
}

func New() *Cache {
	return &Cache{entries: make(map[chunk.Coord]map[int]*meshing.MeshData)}
}

// Get returns the cached payload for key, if any.
func (c *Cache) Get(coord chunk.Coord, lod int) (*meshing.MeshData, bool) {
	c.mu.RLock()
	m, ok := c.entries[coord][lod]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return m, ok
}

// GetIfFresh returns the payload only if it was built from blocks with the given
// fingerprint. A mismatch counts as a miss and leaves the entry in place for Put
// to replace.
func (c *Cache) GetIfFresh(coord chunk.Coord, lod int, fingerprint uint64) (*meshing.MeshData, bool) {
	c.mu.RLock()
	m, ok := c.entries[coord][lod]
	c.mu.RUnlock()
	switch {
	case !ok:
		c.misses.Add(1)
		return nil, false
	case m.Fingerprint() != fingerprint:
		c.stale.Add(1)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return m, true
}

// Put stores mesh under (coord, lod), replacing any earlier entry.
func (c *Cache) Put(coord chunk.Coord, lod int, mesh *meshing.MeshData) {
	if mesh == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	lods, ok := c.entries[coord]
	if !ok {
		lods = make(map[int]*meshing.MeshData, 2)
		c.entries[coord] = lods
	}
	if old, ok := lods[lod]; ok {
		c.bytes -= old.MemoryFootprint()
	}
	lods[lod] = mesh
	c.bytes += mesh.MemoryFootprint()
}

// InvalidateChunk drops every LOD entry for coord and reports whether any existed.
func (c *Cache) InvalidateChunk(coord chunk.Coord) bool {
	c.mu.Lock()
	lods, ok := c.entries[coord]
	if ok {
		for _, m := range lods {
			c.bytes -= m.MemoryFootprint()
		}
		delete(c.entries, coord)
	}
	c.mu.Unlock()

	c.invalidations.Add(1)
	if c.OnInvalidate != nil {
		c.OnInvalidate(coord)
	}
	return ok
}

// Len is the number of cached (coord, lod) entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, lods := range c.entries {
		n += len(lods)
	}
	return n
}

func (c *Cache) Metrics() Metrics {
	c.mu.RLock()
	bytes := c.bytes
	c.mu.RUnlock()
	return Metrics{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Stale:         c.stale.Load(),
		Invalidations: c.invalidations.Load(),
		Entries:       c.Len(),
		Bytes:         bytes,
	}
}
