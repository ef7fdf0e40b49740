package world

import (
	"sync"
	"testing"

	"meshpipe/internal/chunk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetOrCreateOnce(t *testing.T) {
	s := NewStore(nil)
	coord := chunk.Coord{X: 3, Z: -2}

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	got := make([]*chunk.Chunk, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, fresh := s.GetOrCreate(coord, func() *chunk.Chunk { return chunk.New(coord, testHeight, 0, nil) })
			got[i] = c
			if fresh {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	for _, c := range got {
		assert.Same(t, got[0], c)
	}
	assert.Equal(t, uint64(1), s.ModCount())
}

func TestStoreAddAndRemove(t *testing.T) {
	s := NewStore(nil)
	a := chunk.New(chunk.Coord{}, testHeight, 0, nil)
	b := chunk.New(chunk.Coord{}, testHeight, 0, nil)

	require.True(t, s.Add(a))
	assert.False(t, s.Add(b), "coordinate already taken")
	assert.False(t, s.Remove(b), "remove must not evict a different chunk")
	assert.True(t, s.Has(chunk.Coord{}))

	assert.True(t, s.Remove(a))
	assert.False(t, s.Has(chunk.Coord{}))
	assert.Equal(t, uint64(2), s.ModCount())
}

func TestStoreRadiusQueries(t *testing.T) {
	s := NewStore(nil)
	for x := -3; x <= 3; x++ {
		for z := -3; z <= 3; z++ {
			s.Add(chunk.New(chunk.Coord{X: x, Z: z}, testHeight, 0, nil))
		}
	}

	near := s.AppendInRadius(chunk.Coord{}, 1, nil)
	require.Len(t, near, 9)
	assert.Equal(t, chunk.Coord{}, near[0].Coord(), "center comes first")

	far := s.FarChunks(chunk.Coord{}, 2)
	assert.Len(t, far, 49-25)
	for _, c := range far {
		assert.Equal(t, 3, c.Coord().Chebyshev(chunk.Coord{}))
	}
	assert.Len(t, s.All(), 49)
}

func TestRingOrder(t *testing.T) {
	assert.Equal(t, []chunk.Coord{{}}, ring(chunk.Coord{}, 0))

	r1 := ring(chunk.Coord{}, 1)
	assert.Len(t, r1, 8)
	seen := map[chunk.Coord]bool{}
	for _, c := range r1 {
		assert.False(t, seen[c], "duplicate %v", c)
		seen[c] = true
		assert.Equal(t, 1, c.Chebyshev(chunk.Coord{}))
	}
	assert.Len(t, ring(chunk.Coord{X: 5, Z: 5}, 3), 24)
}
