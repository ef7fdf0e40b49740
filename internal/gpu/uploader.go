package gpu

import (
	"container/heap"
	"errors"
	"fmt"
	"sync"
	"time"

	"meshpipe/internal/chunk"
	"meshpipe/internal/meshing"
	"meshpipe/internal/profiling"

	"go.uber.org/zap"
)

var (
	ErrPending         = errors.New("upload still pending")
	ErrUploadCancelled = errors.New("upload cancelled")
	ErrStale           = errors.New("mesh is no longer ready for upload")
	ErrSuperseded      = errors.New("upload superseded by a newer mesh")
	ErrClosed          = errors.New("uploader closed")
)

type request struct {
	c        *chunk.Chunk
	mesh     *meshing.MeshData
	priority int
	seq      uint64
	fut      *Future
	index    int
}

// requestQueue orders by priority (lower first), then submission order.
type requestQueue []*request

func (q requestQueue) Len() int { return len(q) }
func (q requestQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].seq < q[j].seq
}
func (q requestQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *requestQueue) Push(x any) {
	r := x.(*request)
	r.index = len(*q)
	*q = append(*q, r)
}
func (q *requestQueue) Pop() any {
	old := *q
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	r.index = -1
	*q = old[:n-1]
	return r
}

type release struct {
	coord chunk.Coord
	done  func()
}

// UploaderStats counts upload outcomes.
type UploaderStats struct {
	Uploaded   uint64
	Stale      uint64
	Cancelled  uint64
	Superseded uint64
	Failed     uint64
	Released   uint64
}

// Uploader moves finished meshes onto the GPU. Submit, Cancel and ScheduleRelease are
// safe from any goroutine; ProcessUploads and Close belong to the GPU thread.
type Uploader struct {
	dev    Device
	pool   *BufferPool
	budget int
	log    *zap.Logger
	stats  *profiling.Stats

	mu      sync.Mutex
	queue   requestQueue
	pending map[chunk.Coord]*request
	cleanup []release
	seq     uint64
	closed  bool
	counts  UploaderStats

	residentMu sync.RWMutex
	resident   map[chunk.Coord]Handle

	// OnUploaded runs on the GPU thread after a handle becomes resident.
	OnUploaded func(c *chunk.Chunk, h Handle)
}

// NewUploader drains at most budget entries per ProcessUploads call.
func NewUploader(dev Device, pool *BufferPool, budget int, log *zap.Logger, stats *profiling.Stats) *Uploader {
	if budget <= 0 {
		budget = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Uploader{
		dev:      dev,
		pool:     pool,
		budget:   budget,
		log:      log,
		stats:    stats,
		pending:  make(map[chunk.Coord]*request),
		resident: make(map[chunk.Coord]Handle),
	}
}

// Submit queues mesh for c and returns immediately. A newer submission for the same
// chunk supersedes a pending one.
func (u *Uploader) Submit(c *chunk.Chunk, mesh *meshing.MeshData, priority int) *Future {
	fut := newFuture()
	if c == nil || mesh == nil {
		fut.resolve(Handle{}, errors.New("gpu: nil chunk or mesh"))
		return fut
	}

	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		fut.resolve(Handle{}, ErrClosed)
		return fut
	}
	var superseded *request
	if old, ok := u.pending[c.Coord()]; ok {
		heap.Remove(&u.queue, old.index)
		superseded = old
		u.counts.Superseded++
	}
	u.seq++
	r := &request{c: c, mesh: mesh, priority: priority, seq: u.seq, fut: fut}
	heap.Push(&u.queue, r)
	u.pending[c.Coord()] = r
	u.mu.Unlock()

	if superseded != nil {
		superseded.fut.resolve(Handle{}, ErrSuperseded)
	}
	return fut
}

// Cancel drops a pending upload for coord; its future resolves with ErrUploadCancelled.
func (u *Uploader) Cancel(coord chunk.Coord) bool {
	u.mu.Lock()
	r, ok := u.pending[coord]
	if ok {
		heap.Remove(&u.queue, r.index)
		delete(u.pending, coord)
		u.counts.Cancelled++
	}
	u.mu.Unlock()
	if ok {
		r.fut.resolve(Handle{}, ErrUploadCancelled)
	}
	return ok
}

// ScheduleRelease hands coord's resident buffer to the GPU cleanup queue. done runs
// on the GPU thread once the buffer is back in the pool.
func (u *Uploader) ScheduleRelease(coord chunk.Coord, done func()) {
	u.mu.Lock()
	u.cleanup = append(u.cleanup, release{coord: coord, done: done})
	u.mu.Unlock()
}

// Pending is the number of queued uploads.
func (u *Uploader) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.queue)
}

// Resident returns the handle currently on the GPU for coord.
func (u *Uploader) Resident(coord chunk.Coord) (Handle, bool) {
	u.residentMu.RLock()
	defer u.residentMu.RUnlock()
	h, ok := u.resident[coord]
	return h, ok
}

// Residents lists every resident handle.
func (u *Uploader) Residents() []Handle {
	u.residentMu.RLock()
	defer u.residentMu.RUnlock()
	out := make([]Handle, 0, len(u.resident))
	for _, h := range u.resident {
		out = append(out, h)
	}
	return out
}

func (u *Uploader) Stats() UploaderStats {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.counts
}

// ProcessUploads runs the cleanup queue, then pops at most budget entries and
// uploads them. It returns how many entries were popped. GPU thread only.
func (u *Uploader) ProcessUploads() int {
	defer u.stats.Track("gpu.ProcessUploads")()
	u.processReleases()

	n := 0
	for ; n < u.budget; n++ {
		u.mu.Lock()
		if len(u.queue) == 0 {
			u.mu.Unlock()
			break
		}
		r := heap.Pop(&u.queue).(*request)
		delete(u.pending, r.c.Coord())
		u.mu.Unlock()

		h, err := u.upload(r)
		u.count(err)
		r.fut.resolve(h, err)
		if err == nil && u.OnUploaded != nil {
			u.OnUploaded(r.c, h)
		}
	}
	return n
}

func (u *Uploader) count(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	switch {
	case err == nil:
		u.counts.Uploaded++
	case errors.Is(err, ErrStale):
		u.counts.Stale++
	case errors.Is(err, ErrUploadCancelled):
		u.counts.Cancelled++
	default:
		u.counts.Failed++
	}
}

func (u *Uploader) upload(r *request) (Handle, error) {
	c := r.c
	sc := c.State()
	cur := sc.CurrentStates()
	if cur.HasAny(chunk.Unloading, chunk.Unloaded) {
		return Handle{}, ErrUploadCancelled
	}
	if !cur.IsReadyForUpload() {
		return Handle{}, fmt.Errorf("chunk %s in %s: %w", c.Coord(), cur, ErrStale)
	}

	h := Handle{
		Coord:       c.Coord(),
		LOD:         r.mesh.LOD(),
		IndexCount:  r.mesh.IndexCount(),
		CutoutStart: r.mesh.CutoutStart(),
		Primitive:   Triangles,
		Origin:      ChunkOrigin(c.Coord()),
		Fingerprint: r.mesh.Fingerprint(),
	}
	if !r.mesh.Empty() {
		start := time.Now()
		buf, err := u.pool.Acquire(r.mesh.VertexBytes(), r.mesh.IndexBytes())
		if err == nil {
			err = u.dev.Upload(buf, r.mesh.Vertices(), r.mesh.Indices())
			if err != nil {
				u.pool.Release(buf)
			}
		}
		if err != nil {
			u.stats.RecordFailure(profiling.OpBufferUpload)
			u.log.Error("mesh upload failed", zap.Stringer("coord", c.Coord()), zap.Error(err))
			if sc.TransitionState(chunk.MeshCPUReady, chunk.MeshDirty) {
				sc.Dirty().MarkMeshDirty()
			}
			return Handle{}, fmt.Errorf("upload chunk %s: %w", c.Coord(), err)
		}
		h.Buffer = buf
		u.stats.Record(profiling.OpBufferUpload, time.Since(start))
		u.stats.AddBytes(profiling.OpBufferUpload, r.mesh.MemoryFootprint())
	}

	sc.Dirty().ClearMeshDirty()
	if err := sc.TryTransition(chunk.MeshCPUReady, chunk.MeshGPUUploaded); err != nil {
		// An edit or unload won the race after the readiness check.
		sc.Dirty().MarkMeshDirty()
		u.pool.Release(h.Buffer)
		if errors.Is(err, chunk.ErrTerminal) || sc.HasState(chunk.Unloading) {
			return Handle{}, ErrUploadCancelled
		}
		return Handle{}, fmt.Errorf("chunk %s: %w", c.Coord(), ErrStale)
	}

	u.residentMu.Lock()
	old, had := u.resident[h.Coord]
	u.resident[h.Coord] = h
	u.residentMu.Unlock()
	if had {
		u.pool.Release(old.Buffer)
	}
	return h, nil
}

func (u *Uploader) processReleases() {
	u.mu.Lock()
	work := u.cleanup
	u.cleanup = nil
	u.mu.Unlock()

	for _, rel := range work {
		u.residentMu.Lock()
		h, ok := u.resident[rel.coord]
		delete(u.resident, rel.coord)
		u.residentMu.Unlock()
		if ok {
			u.pool.Release(h.Buffer)
		}
		u.mu.Lock()
		u.counts.Released++
		u.mu.Unlock()
		if rel.done != nil {
			rel.done()
		}
	}
}

// Close cancels everything pending, releases resident buffers and drains the pool.
// GPU thread only.
func (u *Uploader) Close() {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return
	}
	u.closed = true
	queued := u.queue
	u.queue = nil
	u.pending = make(map[chunk.Coord]*request)
	u.mu.Unlock()

	for _, r := range queued {
		r.fut.resolve(Handle{}, ErrClosed)
	}
	u.processReleases()

	u.residentMu.Lock()
	resident := u.resident
	u.resident = make(map[chunk.Coord]Handle)
	u.residentMu.Unlock()
	for _, h := range resident {
		u.pool.Release(h.Buffer)
	}
	u.pool.Drain()
}
