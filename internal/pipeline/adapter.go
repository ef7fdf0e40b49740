package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meshpipe/internal/chunk"
	"meshpipe/internal/meshcache"
	"meshpipe/internal/meshing"
	"meshpipe/internal/profiling"
	"meshpipe/internal/texture"

	"go.uber.org/zap"
)

// ErrDiscarded reports that a finished mesh was thrown away because the chunk was
// edited or unloaded while it was being built. The chunk is left MESH_DIRTY (or
// unloading) and the result must not be uploaded.
var ErrDiscarded = errors.New("mesh discarded: chunk changed during generation")

// GenerationError wraps a generator failure. The chunk is back in MESH_DIRTY.
type GenerationError struct {
	Coord chunk.Coord
	LOD   int
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate mesh for chunk %s (lod %d): %v", e.Coord, e.LOD, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ChunkLookup resolves loaded chunks for neighbour sampling.
type ChunkLookup interface {
	Get(coord chunk.Coord) (*chunk.Chunk, bool)
}

// Options configure an Adapter. Every field is optional.
type Options struct {
	Resolver      texture.Resolver
	Cache         *meshcache.Cache
	Stats         *profiling.Stats
	Logger        *zap.Logger
	Chunks        ChunkLookup
	DisableGreedy bool
}

// Adapter runs the generators for one chunk and drives its state around the run.
// It is safe for concurrent use by mesh workers.
type Adapter struct {
	opts Options
	log  *zap.Logger
}

func New(opts Options) *Adapter {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Resolver == nil {
		opts.Resolver = texture.DefaultAtlas()
	}
	return &Adapter{opts: opts, log: log}
}

// GenerateChunkMesh moves c from MESH_DIRTY through MESH_GENERATING to MESH_CPU_READY
// and returns the payload. A rejected start transition is returned as the chunk's
// TransitionError; generator failures come back as *GenerationError.
func (a *Adapter) GenerateChunkMesh(ctx context.Context, c *chunk.Chunk) (*meshing.MeshData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sc := c.State()
	if err := sc.TryTransition(chunk.MeshDirty, chunk.MeshGenerating); err != nil {
		a.log.Warn("mesh generation not started",
			zap.Stringer("coord", c.Coord()),
			zap.Stringer("current", sc.CurrentStates()),
			zap.Error(err))
		return nil, err
	}
	start := time.Now()
	defer a.opts.Stats.Track("pipeline.Generate")()

	src := a.neighborhood(c)
	lod := c.TargetLOD()
	fp := src.Fingerprint()

	var mesh *meshing.MeshData
	hit := false
	if a.opts.Cache != nil {
		mesh, hit = a.opts.Cache.GetIfFresh(c.Coord(), lod, fp)
	}
	if !hit {
		var err error
		mesh, err = a.generate(src, lod, fp)
		if err != nil {
			return nil, a.fail(c, lod, err)
		}
		if a.opts.Cache != nil {
			a.opts.Cache.Put(c.Coord(), lod, mesh)
		}
	}

	if c.EditStamp() != src.Stamp() {
		if sc.TryTransition(chunk.MeshGenerating, chunk.MeshDirty) == nil {
			sc.Dirty().MarkMeshDirty()
		}
		return nil, ErrDiscarded
	}
	if err := sc.TryTransition(chunk.MeshGenerating, chunk.MeshCPUReady); err != nil {
		a.log.Debug("mesh result discarded", zap.Stringer("coord", c.Coord()), zap.Error(err))
		return nil, ErrDiscarded
	}

	a.opts.Stats.Record(profiling.OpMeshGeneration, time.Since(start))
	a.opts.Stats.AddTriangles(mesh.TriangleCount())
	return mesh, nil
}

func (a *Adapter) generate(src meshing.BlockSource, lod int, fp uint64) (mesh *meshing.MeshData, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator panic: %v", r)
		}
	}()
	return meshing.Generate(src, meshing.Options{
		Resolver:      a.opts.Resolver,
		LOD:           lod,
		DisableGreedy: a.opts.DisableGreedy,
		Fingerprint:   fp,
	})
}

func (a *Adapter) fail(c *chunk.Chunk, lod int, cause error) error {
	sc := c.State()
	if sc.TransitionState(chunk.MeshGenerating, chunk.MeshDirty) {
		sc.Dirty().MarkMeshDirty()
	}
	a.opts.Stats.RecordFailure(profiling.OpMeshGeneration)
	a.log.Error("mesh generation failed", zap.Stringer("coord", c.Coord()), zap.Int("lod", lod), zap.Error(cause))
	return &GenerationError{Coord: c.Coord(), LOD: lod, Err: cause}
}

// neighborhood snapshots c and whichever edge neighbours have block data.
func (a *Adapter) neighborhood(c *chunk.Chunk) *chunk.Neighborhood {
	var sides [4]*chunk.Snapshot
	if a.opts.Chunks != nil {
		for i, nc := range c.Coord().Neighbors() {
			n, ok := a.opts.Chunks.Get(nc)
			if ok && n.State().CurrentStates().HasBlocks() {
				sides[i] = n.Snapshot()
			}
		}
	}
	return chunk.NewNeighborhood(c.Snapshot(), sides)
}
