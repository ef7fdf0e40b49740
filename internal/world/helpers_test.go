package world

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"meshpipe/internal/block"
	"meshpipe/internal/chunk"

	"github.com/stretchr/testify/require"
)

const testHeight = 8

// flatGen lays two layers of stone under a grass layer and one flower per chunk.
type flatGen struct {
	populated atomic.Int32
	features  atomic.Int32
}

func (g *flatGen) Populate(c *chunk.Chunk) {
	g.populated.Add(1)
	c.Populate(func(set func(x, y, z int, t block.Type)) {
		for x := 0; x < chunk.Width; x++ {
			for z := 0; z < chunk.Depth; z++ {
				set(x, 0, z, block.Stone)
				set(x, 1, z, block.Stone)
				set(x, 2, z, block.Grass)
			}
		}
	})
}

func (g *flatGen) PopulateFeatures(c *chunk.Chunk) {
	g.features.Add(1)
	c.Populate(func(set func(x, y, z int, t block.Type)) { set(8, 3, 8, block.Flower) })
}

var errSaveFailed = errors.New("disk full")

// memSaver keeps saved chunks in memory.
type memSaver struct {
	mu     sync.Mutex
	data   map[chunk.Coord][]block.Type
	saves  int
	fail   bool
	loadFn func(chunk.Coord) ([]block.Type, error)
}

func newMemSaver() *memSaver {
	return &memSaver{data: make(map[chunk.Coord][]block.Type)}
}

func (m *memSaver) SaveChunk(_ context.Context, snap *chunk.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errSaveFailed
	}
	blocks := make([]block.Type, len(snap.Blocks()))
	copy(blocks, snap.Blocks())
	m.data[snap.Metadata().Coord] = blocks
	m.saves++
	return nil
}

func (m *memSaver) LoadChunk(_ context.Context, coord chunk.Coord) ([]block.Type, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadFn != nil {
		return m.loadFn(coord)
	}
	return m.data[coord], nil
}

func (m *memSaver) setFail(v bool) {
	m.mu.Lock()
	m.fail = v
	m.mu.Unlock()
}

func (m *memSaver) saved(coord chunk.Coord) ([]block.Type, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[coord], m.saves
}

// populated returns a flat chunk in BLOCKS_POPULATED.
func populated(t *testing.T, coord chunk.Coord) *chunk.Chunk {
	t.Helper()
	c := chunk.New(coord, testHeight, 0, nil)
	require.True(t, c.State().TransitionState(chunk.Empty, chunk.Created))
	(&flatGen{}).Populate(c)
	require.True(t, c.State().TransitionState(chunk.Created, chunk.BlocksPopulated))
	return c
}

// recordingQueue stands in for the mesh scheduler and the streamer.
type recordingQueue struct {
	mu        sync.Mutex
	meshes    []chunk.Coord
	generated map[chunk.Coord]bool
}

func newRecordingQueue() *recordingQueue {
	return &recordingQueue{generated: make(map[chunk.Coord]bool)}
}

func (q *recordingQueue) Enqueue(coord chunk.Coord) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.meshes = append(q.meshes, coord)
	return true, nil
}

func (q *recordingQueue) Request(coord chunk.Coord, render bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.generated[coord]; ok {
		return false
	}
	q.generated[coord] = render
	return true
}

func (q *recordingQueue) enqueued() []chunk.Coord {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]chunk.Coord(nil), q.meshes...)
}
