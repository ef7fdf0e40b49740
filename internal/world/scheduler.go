package world

import (
	"context"
	"errors"
	"sync"

	"meshpipe/internal/chunk"
	"meshpipe/internal/gpu"
	"meshpipe/internal/meshing"
	"meshpipe/internal/pipeline"

	"go.uber.org/zap"
)

// ErrSchedulerStopped is returned by Enqueue after Shutdown.
var ErrSchedulerStopped = errors.New("mesh scheduler stopped")

// MeshGenerator produces a mesh for a MESH_DIRTY chunk.
type MeshGenerator interface {
	GenerateChunkMesh(ctx context.Context, c *chunk.Chunk) (*meshing.MeshData, error)
}

// UploadSubmitter accepts finished meshes for the GPU thread.
type UploadSubmitter interface {
	Submit(c *chunk.Chunk, mesh *meshing.MeshData, priority int) *gpu.Future
}

type meshJob struct {
	coord chunk.Coord
	token uint64
}

// Scheduler runs mesh generation on a fixed set of workers and forwards results to
// the uploader. Each coordinate is queued at most once.
type Scheduler struct {
	jobQueue chan meshJob
	workers  int
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	pending map[chunk.Coord]uint64
	seq     uint64

	chunks   pipeline.ChunkLookup
	gen      MeshGenerator
	uploader UploadSubmitter
	log      *zap.Logger

	// Priority orders uploads; lower is sooner. Nil means FIFO.
	Priority func(chunk.Coord) int
}

func NewScheduler(workers, queueSize int, chunks pipeline.ChunkLookup, gen MeshGenerator, uploader UploadSubmitter, log *zap.Logger) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		jobQueue: make(chan meshJob, queueSize),
		workers:  workers,
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[chunk.Coord]uint64),
		chunks:   chunks,
		gen:      gen,
		uploader: uploader,
		log:      log.Named("scheduler"),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Enqueue queues a mesh build for coord. It reports false when coord is already
// queued, or with an error when the queue is full or the scheduler stopped.
func (s *Scheduler) Enqueue(coord chunk.Coord) (bool, error) {
	if s.ctx.Err() != nil {
		return false, ErrSchedulerStopped
	}
	s.mu.Lock()
	if _, ok := s.pending[coord]; ok {
		s.mu.Unlock()
		return false, nil
	}
	s.seq++
	job := meshJob{coord: coord, token: s.seq}
	s.pending[coord] = job.token
	s.mu.Unlock()

	select {
	case s.jobQueue <- job:
		return true, nil
	default:
		// queue full: rollback so a later pass can retry
		s.mu.Lock()
		if s.pending[coord] == job.token {
			delete(s.pending, coord)
		}
		s.mu.Unlock()
		return false, errQueueFull
	}
}

var errQueueFull = errors.New("mesh queue full")

// Remove drops a queued build for coord. A job already picked up by a worker runs
// to completion and is discarded by the chunk's state.
func (s *Scheduler) Remove(coord chunk.Coord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[coord]; !ok {
		return false
	}
	delete(s.pending, coord)
	return true
}

// Pending is the number of builds queued but not yet started.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Shutdown stops the workers and waits for in-flight builds.
func (s *Scheduler) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case job := <-s.jobQueue:
			if s.claim(job) {
				s.build(job.coord)
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// claim removes job from the pending set unless it was removed or superseded.
func (s *Scheduler) claim(job meshJob) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok, ok := s.pending[job.coord]; !ok || tok != job.token {
		return false
	}
	delete(s.pending, job.coord)
	return true
}

func (s *Scheduler) build(coord chunk.Coord) {
	c, ok := s.chunks.Get(coord)
	if !ok || c.State().HasAnyState(chunk.Unloading, chunk.Unloaded) {
		return
	}
	mesh, err := s.gen.GenerateChunkMesh(s.ctx, c)
	switch {
	case err == nil:
		prio := 0
		if s.Priority != nil {
			prio = s.Priority(coord)
		}
		s.uploader.Submit(c, mesh, prio)
	case errors.Is(err, pipeline.ErrDiscarded), chunk.ShouldRetry(err):
		if _, qerr := s.Enqueue(coord); qerr != nil && !errors.Is(qerr, ErrSchedulerStopped) {
			s.log.Debug("requeue deferred", zap.Stringer("coord", coord), zap.Error(qerr))
		}
	default:
		// Generation failures and rejected starts leave the chunk MESH_DIRTY or in a
		// state the next sweep will pick up.
		s.log.Debug("mesh build skipped", zap.Stringer("coord", coord), zap.Error(err))
	}
}
