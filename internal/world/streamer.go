package world

import (
	"context"
	"fmt"
	"sync"
	"time"

	"meshpipe/internal/block"
	"meshpipe/internal/chunk"
	"meshpipe/internal/profiling"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
)

// Generator fills freshly created chunks with block data.
type Generator interface {
	Populate(c *chunk.Chunk)
	PopulateFeatures(c *chunk.Chunk)
}

// Saver persists and restores chunk block data.
type Saver interface {
	// SaveChunk durably stores the snapshot's blocks.
	SaveChunk(ctx context.Context, snap *chunk.Snapshot) error
	// LoadChunk returns previously saved blocks, or nil when the chunk was never saved.
	LoadChunk(ctx context.Context, coord chunk.Coord) ([]block.Type, error)
}

// StreamerOptions configure a Streamer.
type StreamerOptions struct {
	Height         int
	Seed           int64
	Features       bool
	Workers        int
	MaxPending     int
	MaxJobsPerCall int
	Logger         *zap.Logger
	Stats          *profiling.Stats
}

// Streamer generates or loads chunks on a worker pool and installs them in the store.
type Streamer struct {
	store *Store
	gen   Generator
	saver Saver
	opts  StreamerOptions
	log   *zap.Logger

	pool   pond.Pool
	ctx    context.Context
	cancel context.CancelFunc

	pendingMu sync.Mutex
	// pending maps a queued coordinate to whether it should be meshed once installed.
	pending map[chunk.Coord]bool

	// OnGenerated runs on the worker after c is installed. render is false for
	// border-ring chunks that only provide neighbour data.
	OnGenerated func(c *chunk.Chunk, render bool)
}

func NewStreamer(store *Store, gen Generator, saver Saver, opts StreamerOptions) *Streamer {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxJobsPerCall <= 0 {
		opts.MaxJobsPerCall = 256
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = 4096
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Streamer{
		store:  store,
		gen:    gen,
		saver:  saver,
		opts:   opts,
		log:    log.Named("streamer"),
		ctx:    ctx,
		cancel: cancel,
		pool: pond.NewPool(opts.Workers,
			pond.WithContext(ctx),
			pond.WithQueueSize(opts.MaxPending),
			pond.WithNonBlocking(true)),
		pending: make(map[chunk.Coord]bool),
	}
}

// Close stops the generation workers and waits for running jobs.
func (s *Streamer) Close() {
	s.cancel()
	s.pool.StopAndWait()
}

// Pending is the number of queued or running generation jobs.
func (s *Streamer) Pending() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return len(s.pending)
}

// StreamAround queues missing chunks within radius of center, nearest ring first.
// It returns how many jobs were queued.
func (s *Streamer) StreamAround(center chunk.Coord, radius int) int {
	defer s.opts.Stats.Track("world.StreamAround")()
	return s.requestRings(center, 0, radius, true)
}

// requestRings queues rings from..to (Chebyshev distance) around center, stopping at
// the per-call job budget.
func (s *Streamer) requestRings(center chunk.Coord, from, to int, render bool) int {
	pushed := 0
	for r := from; r <= to; r++ {
		for _, coord := range ring(center, r) {
			if pushed >= s.opts.MaxJobsPerCall {
				return pushed
			}
			if s.Request(coord, render) {
				pushed++
			}
		}
	}
	return pushed
}

// Request queues generation of coord unless it is loaded, already pending or the
// pending cap is reached. A pending border request is upgraded when render is set.
func (s *Streamer) Request(coord chunk.Coord, render bool) bool {
	if s.store.Has(coord) {
		return false
	}

	s.pendingMu.Lock()
	if prev, ok := s.pending[coord]; ok {
		s.pending[coord] = prev || render
		s.pendingMu.Unlock()
		return false
	}
	if len(s.pending) >= s.opts.MaxPending {
		s.pendingMu.Unlock()
		return false
	}
	s.pending[coord] = render
	s.pendingMu.Unlock()

	if err := s.pool.Go(func() { s.run(coord) }); err != nil {
		// queue full or stopped: rollback
		s.pendingMu.Lock()
		delete(s.pending, coord)
		s.pendingMu.Unlock()
		return false
	}
	return true
}

func (s *Streamer) run(coord chunk.Coord) {
	c, err := s.Generate(s.ctx, coord)

	s.pendingMu.Lock()
	render := s.pending[coord]
	delete(s.pending, coord)
	s.pendingMu.Unlock()

	if err != nil {
		if s.ctx.Err() == nil {
			s.log.Error("chunk generation failed", zap.Stringer("coord", coord), zap.Error(err))
		}
		return
	}
	if c != nil && s.OnGenerated != nil {
		s.OnGenerated(c, render)
	}
}

// Generate builds coord synchronously, from saved data when available, and installs
// it. It returns nil without error when the chunk was already loaded.
func (s *Streamer) Generate(ctx context.Context, coord chunk.Coord) (*chunk.Chunk, error) {
	if s.store.Has(coord) {
		return nil, nil
	}
	defer s.opts.Stats.Track("world.Generate")()

	c := chunk.New(coord, s.opts.Height, s.opts.Seed, s.log)
	sc := c.State()
	if err := sc.TryTransition(chunk.Empty, chunk.Created); err != nil {
		return nil, err
	}

	loaded, err := s.load(ctx, c)
	if err != nil {
		return nil, err
	}
	if !loaded {
		s.gen.Populate(c)
	}
	if err := sc.TryTransition(chunk.Created, chunk.BlocksPopulated); err != nil {
		return nil, err
	}
	if loaded || s.opts.Features {
		if !loaded {
			s.gen.PopulateFeatures(c)
		}
		if err := sc.TryTransition(chunk.BlocksPopulated, chunk.FeaturesPopulated); err != nil {
			return nil, err
		}
		c.MarkFeaturesPopulated()
	}

	if !s.store.Add(c) {
		// Lost the race to another request for the same coordinate.
		return nil, nil
	}
	return c, nil
}

// load restores saved blocks into c. A read failure is logged and generation takes
// over, since the saved copy is only authoritative when readable.
func (s *Streamer) load(ctx context.Context, c *chunk.Chunk) (bool, error) {
	if s.saver == nil {
		return false, nil
	}
	start := time.Now()
	blocks, err := s.saver.LoadChunk(ctx, c.Coord())
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		s.opts.Stats.RecordFailure(profiling.OpSerialization)
		s.log.Warn("saved chunk unreadable, regenerating", zap.Stringer("coord", c.Coord()), zap.Error(err))
		return false, nil
	}
	if blocks == nil {
		return false, nil
	}
	if err := c.LoadBlocks(blocks); err != nil {
		return false, fmt.Errorf("restore chunk %s: %w", c.Coord(), err)
	}
	s.opts.Stats.Record(profiling.OpSerialization, time.Since(start))
	return true, nil
}

// ring lists the coordinates at Chebyshev distance r from center, walking the top
// edge, the right edge, the bottom edge backwards and the left edge upwards.
func ring(center chunk.Coord, r int) []chunk.Coord {
	if r == 0 {
		return []chunk.Coord{center}
	}
	x0, x1 := center.X-r, center.X+r
	z0, z1 := center.Z-r, center.Z+r
	out := make([]chunk.Coord, 0, 8*r)
	for x := x0; x <= x1; x++ {
		out = append(out, chunk.Coord{X: x, Z: z0})
	}
	for z := z0 + 1; z <= z1-1; z++ {
		out = append(out, chunk.Coord{X: x1, Z: z})
	}
	for x := x1; x >= x0; x-- {
		out = append(out, chunk.Coord{X: x, Z: z1})
	}
	for z := z1 - 1; z >= z0+1; z-- {
		out = append(out, chunk.Coord{X: x0, Z: z})
	}
	return out
}
