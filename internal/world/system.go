package world

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"meshpipe/internal/block"
	"meshpipe/internal/chunk"
	"meshpipe/internal/config"
	"meshpipe/internal/gpu"
	"meshpipe/internal/meshcache"
	"meshpipe/internal/meshing"
	"meshpipe/internal/pipeline"
	"meshpipe/internal/profiling"
	"meshpipe/internal/texture"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrChunkNotLoaded is returned for block access outside the loaded region.
var ErrChunkNotLoaded = errors.New("chunk not loaded")

// Deps are the collaborators a System is built around.
type Deps struct {
	Device    gpu.Device // required
	Generator Generator  // required
	Saver     Saver
	Resolver  texture.Resolver
	Logger    *zap.Logger
	Stats     *profiling.Stats
}

// System is the per-world mesh pipeline context. Everything that used to be global
// render state lives here; build one per world and tear it down with Close.
type System struct {
	ID  uuid.UUID
	cfg config.Config
	log *zap.Logger

	stats    *profiling.Stats
	store    *Store
	cache    *meshcache.Cache
	pool     *gpu.BufferPool
	uploader *gpu.Uploader
	adapter  *pipeline.Adapter
	meshes   *Scheduler
	streamer *Streamer
	nb       *Coordinator
	unloader *Unloader

	focus atomic.Pointer[chunk.Coord]
}

func NewSystem(cfg *config.Config, deps Deps) (*System, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if deps.Device == nil {
		return nil, errors.New("world: gpu device required")
	}
	if deps.Generator == nil {
		return nil, errors.New("world: generator required")
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	stats := deps.Stats
	if stats == nil {
		stats = profiling.NewStats()
	}

	id := uuid.New()
	log = log.With(zap.String("world", id.String()))
	s := &System{
		ID:    id,
		cfg:   *cfg,
		log:   log,
		stats: stats,
		store: NewStore(stats),
		cache: meshcache.New(),
	}
	s.cfg.Normalize()
	p := s.cfg.Pipeline

	s.pool = gpu.NewBufferPool(deps.Device, p.MaxFreeBuffers)
	s.uploader = gpu.NewUploader(deps.Device, s.pool, p.UploadBudget, log.Named("gpu"), stats)
	s.adapter = pipeline.New(pipeline.Options{
		Resolver:      deps.Resolver,
		Cache:         s.cache,
		Stats:         stats,
		Logger:        log.Named("pipeline"),
		Chunks:        s.store,
		DisableGreedy: p.DisableGreedy,
	})
	s.meshes = NewScheduler(p.MeshWorkers, p.MeshQueueSize, s.store, s.adapter, s.uploader, log)
	s.streamer = NewStreamer(s.store, deps.Generator, deps.Saver, StreamerOptions{
		Height:         s.cfg.World.Height,
		Seed:           s.cfg.World.Seed,
		Features:       s.cfg.Terrain.Features,
		Workers:        p.GenerationWorkers,
		MaxPending:     p.MaxPending,
		MaxJobsPerCall: p.MaxJobsPerCall,
		Logger:         log,
		Stats:          stats,
	})
	s.nb = NewCoordinator(s.store, s.meshes, s.streamer, log)
	s.unloader = NewUnloader(s.store, deps.Saver, s.meshes, s.uploader, s.cache, stats, log)

	s.focus.Store(&chunk.Coord{})
	s.meshes.Priority = func(c chunk.Coord) int { return c.Dist2(s.Focus()) }
	s.streamer.OnGenerated = s.onGenerated
	s.uploader.OnUploaded = s.onUploaded
	s.cache.OnInvalidate = func(coord chunk.Coord) {
		if c, ok := s.store.Get(coord); ok && c.State().MarkMeshDirty() {
			s.nb.enqueue(coord)
		}
	}

	log.Info("world system ready",
		zap.Int("render_distance", s.cfg.World.RenderDistance),
		zap.Int("border_distance", s.cfg.World.BorderDistance),
		zap.Int("height", s.cfg.World.Height))
	return s, nil
}

func (s *System) Store() *Store              { return s.store }
func (s *System) Stats() *profiling.Stats    { return s.stats }
func (s *System) Cache() *meshcache.Cache    { return s.cache }
func (s *System) Uploader() *gpu.Uploader    { return s.uploader }
func (s *System) Coordinator() *Coordinator  { return s.nb }
func (s *System) Config() config.Config      { return s.cfg }
func (s *System) Focus() chunk.Coord         { return *s.focus.Load() }
func (s *System) Streamer() *Streamer        { return s.streamer }
func (s *System) Scheduler() *Scheduler      { return s.meshes }
func (s *System) Adapter() *pipeline.Adapter { return s.adapter }

// Block reads a block at world coordinates.
func (s *System) Block(x, y, z int) (block.Type, error) {
	defer s.stats.Time(profiling.OpBlockRead)()
	coord, lx, lz := chunk.FromBlock(x, z)
	c, ok := s.store.Get(coord)
	if !ok || !c.State().CurrentStates().HasBlocks() {
		return block.Air, fmt.Errorf("block (%d,%d,%d): %w", x, y, z, ErrChunkNotLoaded)
	}
	return c.Block(lx, y, lz), nil
}

// SetBlock edits a block at world coordinates and schedules the affected remeshes.
func (s *System) SetBlock(x, y, z int, t block.Type) error {
	defer s.stats.Time(profiling.OpBlockWrite)()
	coord, lx, lz := chunk.FromBlock(x, z)
	c, ok := s.store.Get(coord)
	if !ok || !c.State().CurrentStates().HasBlocks() {
		s.stats.RecordFailure(profiling.OpBlockWrite)
		return fmt.Errorf("set block (%d,%d,%d): %w", x, y, z, ErrChunkNotLoaded)
	}
	changed, err := c.SetBlock(lx, y, lz, t)
	if err != nil {
		s.stats.RecordFailure(profiling.OpBlockWrite)
		return err
	}
	if changed {
		s.nb.OnBlockChanged(coord, lx, y, lz)
	}
	return nil
}

// InvalidateChunk drops cached meshes for coord and forces a rebuild.
func (s *System) InvalidateChunk(coord chunk.Coord) bool {
	return s.cache.InvalidateChunk(coord)
}

// UpdateResult summarizes one Update pass.
type UpdateResult struct {
	Requested int
	Border    int
	Meshing   int
	Unloaded  int
	Errors    []error
}

// Update moves the focus, streams chunks in, schedules meshes and unloads chunks
// beyond the unload radius. Safe to call from the game loop goroutine.
func (s *System) Update(ctx context.Context, focus chunk.Coord) UpdateResult {
	defer s.stats.Track("world.Update")()
	s.focus.Store(&focus)
	w := s.cfg.World

	var res UpdateResult
	res.Requested = s.streamer.StreamAround(focus, w.RenderDistance)
	res.Border = s.nb.EnsureBorderRing(focus, w.RenderDistance, w.BorderDistance)

	for _, c := range s.store.All() {
		dist := focus.Chebyshev(c.Coord())
		sc := c.State()
		if dist > w.RenderDistance {
			if sc.HasState(chunk.Active) {
				sc.TransitionState(chunk.Active, chunk.Ready)
			}
			continue
		}
		if sc.HasState(chunk.Ready) {
			sc.TransitionState(chunk.Ready, chunk.Active)
		}
		if s.applyLOD(c, dist) || s.nb.ensureMeshed(c) {
			res.Meshing++
		}
		if dist < w.RenderDistance && sc.CurrentStates().HasMesh() {
			res.Meshing += len(s.nb.EnsureNeighborsRenderable(c.Coord()))
		}
	}

	res.Unloaded, res.Errors = s.unloader.UnloadFar(ctx, focus, w.UnloadRadius())
	return res
}

// applyLOD updates the chunk's target LOD and requests a rebuild when it changed on
// a chunk that already has a mesh.
func (s *System) applyLOD(c *chunk.Chunk, dist int) bool {
	lod := min(s.cfg.Pipeline.LODFor(dist), meshing.MaxLOD)
	if !c.SetTargetLOD(lod) || !c.State().CurrentStates().HasMesh() {
		return false
	}
	if !c.State().MarkMeshDirty() {
		return false
	}
	return s.nb.enqueue(c.Coord())
}

func (s *System) onGenerated(c *chunk.Chunk, render bool) {
	if render {
		s.nb.ensureMeshed(c)
	}
	// Border faces of already meshed neighbours were built against missing data.
	for _, nc := range c.Coord().Neighbors() {
		n, ok := s.store.Get(nc)
		if !ok || !n.State().CurrentStates().HasMesh() {
			continue
		}
		if n.State().MarkMeshDirty() {
			s.nb.enqueue(nc)
		}
	}
}

// onUploaded promotes a freshly uploaded chunk to READY. GPU thread.
func (s *System) onUploaded(c *chunk.Chunk, _ gpu.Handle) {
	sc := c.State()
	if !sc.TransitionState(chunk.MeshGPUUploaded, chunk.Ready) {
		return
	}
	if c.Coord().Chebyshev(s.Focus()) <= s.cfg.World.RenderDistance {
		sc.TransitionState(chunk.Ready, chunk.Active)
	}
}

// ProcessFrame drains the upload queue within the frame budget. GPU thread only.
func (s *System) ProcessFrame() int {
	defer s.stats.Track("world.ProcessFrame")()
	return s.uploader.ProcessUploads()
}

// Renderables returns the resident handles within render distance, nearest first.
func (s *System) Renderables() []gpu.Handle {
	focus := s.Focus()
	rd := s.cfg.World.RenderDistance
	all := s.uploader.Residents()
	out := all[:0]
	for _, h := range all {
		if h.Coord.Chebyshev(focus) <= rd {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].Coord.Dist2(focus), out[j].Coord.Dist2(focus)
		if di != dj {
			return di < dj
		}
		if out[i].Coord.X != out[j].Coord.X {
			return out[i].Coord.X < out[j].Coord.X
		}
		return out[i].Coord.Z < out[j].Coord.Z
	})
	return out
}

// SaveAll writes every chunk with unsaved edits.
func (s *System) SaveAll(ctx context.Context) error {
	var errs []error
	for _, c := range s.store.All() {
		if err := s.unloader.Save(ctx, c); err != nil {
			errs = append(errs, fmt.Errorf("save chunk %s: %w", c.Coord(), err))
		}
	}
	return errors.Join(errs...)
}

// Close stops the workers, saves unsaved chunks and releases every GPU resource.
// It must run on the GPU thread.
func (s *System) Close(ctx context.Context) error {
	s.streamer.Close()
	s.meshes.Shutdown()
	err := s.SaveAll(ctx)
	s.uploader.Close()
	s.log.Info("world system closed", zap.String("stats", s.stats.Summary()))
	return err
}
