package world

import (
	"meshpipe/internal/chunk"

	"go.uber.org/zap"
)

// MeshQueue is the part of the scheduler the coordinator needs.
type MeshQueue interface {
	Enqueue(coord chunk.Coord) (bool, error)
}

// GenerationQueue is the part of the streamer the coordinator needs.
type GenerationQueue interface {
	Request(coord chunk.Coord, render bool) bool
}

// Coordinator keeps meshes consistent across chunk borders.
type Coordinator struct {
	chunks *Store
	meshes MeshQueue
	gen    GenerationQueue
	log    *zap.Logger
}

func NewCoordinator(chunks *Store, meshes MeshQueue, gen GenerationQueue, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{chunks: chunks, meshes: meshes, gen: gen, log: log.Named("neighbors")}
}

// OnBlockChanged re-enqueues the edited chunk and, when (lx, lz) lies on a border,
// marks the neighbour across that border MESH_DIRTY and enqueues it as well. It
// returns the neighbours that were invalidated.
func (n *Coordinator) OnBlockChanged(coord chunk.Coord, lx, ly, lz int) []chunk.Coord {
	n.enqueue(coord)

	var touched []chunk.Coord
	nb := coord.Neighbors()
	if lx == 0 {
		touched = n.invalidate(nb[chunk.NeighborWest], touched)
	} else if lx == chunk.Width-1 {
		touched = n.invalidate(nb[chunk.NeighborEast], touched)
	}
	if lz == 0 {
		touched = n.invalidate(nb[chunk.NeighborNorth], touched)
	} else if lz == chunk.Depth-1 {
		touched = n.invalidate(nb[chunk.NeighborSouth], touched)
	}
	if len(touched) > 0 {
		n.log.Debug("border edit invalidated neighbours",
			zap.Stringer("coord", coord), zap.Int("y", ly), zap.Int("count", len(touched)))
	}
	return touched
}

func (n *Coordinator) invalidate(coord chunk.Coord, touched []chunk.Coord) []chunk.Coord {
	c, ok := n.chunks.Get(coord)
	if !ok || !c.State().MarkMeshDirty() {
		return touched
	}
	n.enqueue(coord)
	return append(touched, coord)
}

// EnsureNeighborsRenderable schedules a mesh build for every loaded neighbour of
// coord that has block data but no mesh yet. It returns the coordinates scheduled.
func (n *Coordinator) EnsureNeighborsRenderable(coord chunk.Coord) []chunk.Coord {
	var scheduled []chunk.Coord
	for _, nc := range coord.Neighbors() {
		c, ok := n.chunks.Get(nc)
		if !ok {
			continue
		}
		if n.ensureMeshed(c) {
			scheduled = append(scheduled, nc)
		}
	}
	return scheduled
}

// ensureMeshed moves a populated, never-meshed chunk to MESH_DIRTY and enqueues it.
// Chunks already in a mesh phase are only re-enqueued when dirty.
func (n *Coordinator) ensureMeshed(c *chunk.Chunk) bool {
	st := c.State().CurrentStates()
	switch {
	case !st.HasBlocks(), st.HasMesh():
		return false
	case st.Has(chunk.MeshDirty):
		return n.enqueue(c.Coord())
	}
	if !c.State().MarkMeshDirty() {
		return false
	}
	return n.enqueue(c.Coord())
}

// EnsureBorderRing requests generation, without meshing, of the chunks between
// renderDistance and renderDistance+borderDistance around center. It returns how
// many were requested.
func (n *Coordinator) EnsureBorderRing(center chunk.Coord, renderDistance, borderDistance int) int {
	requested := 0
	for r := renderDistance + 1; r <= renderDistance+borderDistance; r++ {
		for _, coord := range ring(center, r) {
			if n.gen.Request(coord, false) {
				requested++
			}
		}
	}
	return requested
}

func (n *Coordinator) enqueue(coord chunk.Coord) bool {
	queued, err := n.meshes.Enqueue(coord)
	if err != nil {
		n.log.Debug("mesh enqueue deferred", zap.Stringer("coord", coord), zap.Error(err))
	}
	return queued
}
