package world

import (
	"sort"
	"sync"

	"meshpipe/internal/chunk"
	"meshpipe/internal/profiling"
)

// Store holds the loaded chunks keyed by column coordinate.
type Store struct {
	mu       sync.RWMutex
	chunks   map[chunk.Coord]*chunk.Chunk
	modCount uint64 // bumped on every add/remove

	stats *profiling.Stats
}

func NewStore(stats *profiling.Stats) *Store {
	return &Store{
		chunks: make(map[chunk.Coord]*chunk.Chunk),
		stats:  stats,
	}
}

// Get returns the chunk at coord, if loaded.
func (s *Store) Get(coord chunk.Coord) (*chunk.Chunk, bool) {
	s.mu.RLock()
	c, ok := s.chunks[coord]
	s.mu.RUnlock()
	return c, ok
}

// GetOrCreate returns the chunk at coord, allocating it with newChunk when missing.
// created is true only for the caller whose chunk was installed.
func (s *Store) GetOrCreate(coord chunk.Coord, newChunk func() *chunk.Chunk) (c *chunk.Chunk, created bool) {
	s.mu.RLock()
	c, ok := s.chunks[coord]
	s.mu.RUnlock()
	if ok {
		return c, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another goroutine may have installed it while we waited for the write lock.
	if existing, ok := s.chunks[coord]; ok {
		return existing, false
	}
	c = newChunk()
	s.chunks[coord] = c
	s.modCount++
	return c, true
}

// Add installs c unless its coordinate is already taken. It reports whether c was added.
func (s *Store) Add(c *chunk.Chunk) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[c.Coord()]; ok {
		return false
	}
	s.chunks[c.Coord()] = c
	s.modCount++
	return true
}

func (s *Store) Has(coord chunk.Coord) bool {
	s.mu.RLock()
	_, ok := s.chunks[coord]
	s.mu.RUnlock()
	return ok
}

// Remove drops coord only if it still maps to c, so a stale unload cannot evict a
// chunk that was reloaded in the meantime.
func (s *Store) Remove(c *chunk.Chunk) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.chunks[c.Coord()]; !ok || cur != c {
		return false
	}
	delete(s.chunks, c.Coord())
	s.modCount++
	return true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// All returns every loaded chunk ordered by coordinate.
func (s *Store) All() []*chunk.Chunk {
	s.mu.RLock()
	out := make([]*chunk.Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		out = append(out, c)
	}
	s.mu.RUnlock()
	sortByCoord(out)
	return out
}

// AppendInRadius appends the loaded chunks in the square of the given radius around
// center into dst, nearest ring first.
func (s *Store) AppendInRadius(center chunk.Coord, radius int, dst []*chunk.Chunk) []*chunk.Chunk {
	defer s.stats.Track("world.AppendInRadius")()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for r := 0; r <= radius; r++ {
		for _, coord := range ring(center, r) {
			if c, ok := s.chunks[coord]; ok {
				dst = append(dst, c)
			}
		}
	}
	return dst
}

// FarChunks lists loaded chunks outside radius of center. Removal is left to the
// unloader so unsaved data and GPU buffers are handled first.
func (s *Store) FarChunks(center chunk.Coord, radius int) []*chunk.Chunk {
	defer s.stats.Track("world.FarChunks")()
	s.mu.RLock()
	var out []*chunk.Chunk
	for coord, c := range s.chunks {
		if coord.Chebyshev(center) > radius {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()
	sortByCoord(out)
	return out
}

// ModCount increases on any add or remove.
func (s *Store) ModCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modCount
}

func sortByCoord(cs []*chunk.Chunk) {
	sort.Slice(cs, func(i, j int) bool {
		a, b := cs[i].Coord(), cs[j].Coord()
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Z < b.Z
	})
}
