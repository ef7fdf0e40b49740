package world

import (
	"context"
	"sync"
	"testing"
	"time"

	"meshpipe/internal/chunk"
	"meshpipe/internal/gpu"
	"meshpipe/internal/meshing"
	"meshpipe/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMesher returns an empty mesh, or the queued errors first.
type fakeMesher struct {
	mu      sync.Mutex
	calls   []chunk.Coord
	errs    []error
	started chan chunk.Coord
	hold    chan struct{}
}

func (m *fakeMesher) GenerateChunkMesh(ctx context.Context, c *chunk.Chunk) (*meshing.MeshData, error) {
	if m.started != nil {
		m.started <- c.Coord()
	}
	if m.hold != nil {
		<-m.hold
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c.Coord())
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return nil, err
	}
	return &meshing.MeshData{}, nil
}

func (m *fakeMesher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type submission struct {
	coord    chunk.Coord
	priority int
}

type fakeUploads struct {
	mu   sync.Mutex
	subs []submission
}

func (f *fakeUploads) Submit(c *chunk.Chunk, _ *meshing.MeshData, priority int) *gpu.Future {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, submission{coord: c.Coord(), priority: priority})
	return nil
}

func (f *fakeUploads) submitted() []submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submission(nil), f.subs...)
}

func storeWith(t *testing.T, coords ...chunk.Coord) *Store {
	t.Helper()
	s := NewStore(nil)
	for _, c := range coords {
		require.True(t, s.Add(populated(t, c)))
	}
	return s
}

func TestSchedulerBuildsAndSubmits(t *testing.T) {
	store := storeWith(t, chunk.Coord{X: 2, Z: 1})
	mesher := &fakeMesher{}
	uploads := &fakeUploads{}
	s := NewScheduler(2, 8, store, mesher, uploads, nil)
	defer s.Shutdown()
	s.Priority = func(c chunk.Coord) int { return c.Dist2(chunk.Coord{}) }

	queued, err := s.Enqueue(chunk.Coord{X: 2, Z: 1})
	require.NoError(t, err)
	require.True(t, queued)

	require.Eventually(t, func() bool { return len(uploads.submitted()) == 1 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, submission{coord: chunk.Coord{X: 2, Z: 1}, priority: 5}, uploads.submitted()[0])
}

func TestSchedulerSkipsUnknownChunks(t *testing.T) {
	mesher := &fakeMesher{}
	s := NewScheduler(1, 8, NewStore(nil), mesher, &fakeUploads{}, nil)
	queued, err := s.Enqueue(chunk.Coord{X: 9})
	require.NoError(t, err)
	require.True(t, queued)
	require.Eventually(t, func() bool { return s.Pending() == 0 }, 5*time.Second, time.Millisecond)
	s.Shutdown()
	assert.Zero(t, mesher.callCount())
}

func TestSchedulerDedupesRemovesAndRollsBack(t *testing.T) {
	coords := []chunk.Coord{{X: 0}, {X: 1}, {X: 2}}
	store := storeWith(t, coords...)
	mesher := &fakeMesher{started: make(chan chunk.Coord, 8), hold: make(chan struct{})}
	uploads := &fakeUploads{}
	s := NewScheduler(1, 1, store, mesher, uploads, nil)

	_, err := s.Enqueue(coords[0])
	require.NoError(t, err)
	assert.Equal(t, coords[0], <-mesher.started, "the only worker is now busy")

	queued, err := s.Enqueue(coords[1])
	require.NoError(t, err)
	assert.True(t, queued)
	queued, err = s.Enqueue(coords[1])
	require.NoError(t, err)
	assert.False(t, queued, "already queued")

	_, err = s.Enqueue(coords[2])
	assert.ErrorIs(t, err, errQueueFull)
	assert.Equal(t, 1, s.Pending(), "the rejected job was rolled back")

	assert.True(t, s.Remove(coords[1]))
	assert.False(t, s.Remove(coords[1]))

	close(mesher.hold)
	require.Eventually(t, func() bool { return len(uploads.submitted()) == 1 }, 5*time.Second, time.Millisecond)
	s.Shutdown()
	assert.Equal(t, 1, mesher.callCount(), "the removed job never ran")
}

func TestSchedulerRequeuesDiscardedResults(t *testing.T) {
	store := storeWith(t, chunk.Coord{})
	mesher := &fakeMesher{errs: []error{pipeline.ErrDiscarded}}
	uploads := &fakeUploads{}
	s := NewScheduler(1, 4, store, mesher, uploads, nil)
	defer s.Shutdown()

	_, err := s.Enqueue(chunk.Coord{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(uploads.submitted()) == 1 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, 2, mesher.callCount())
}

func TestSchedulerDoesNotRequeueFailures(t *testing.T) {
	store := storeWith(t, chunk.Coord{})
	failure := &pipeline.GenerationError{Coord: chunk.Coord{}, Err: assert.AnError}
	mesher := &fakeMesher{errs: []error{failure}}
	uploads := &fakeUploads{}
	s := NewScheduler(1, 4, store, mesher, uploads, nil)

	_, err := s.Enqueue(chunk.Coord{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return mesher.callCount() == 1 }, 5*time.Second, time.Millisecond)
	s.Shutdown()
	assert.Empty(t, uploads.submitted())
	assert.Equal(t, 1, mesher.callCount())
}

func TestSchedulerStopped(t *testing.T) {
	s := NewScheduler(1, 1, NewStore(nil), &fakeMesher{}, &fakeUploads{}, nil)
	s.Shutdown()
	_, err := s.Enqueue(chunk.Coord{})
	assert.ErrorIs(t, err, ErrSchedulerStopped)
}
