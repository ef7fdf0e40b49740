package chunk

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"meshpipe/internal/block"

	"go.uber.org/zap"
)

// Metadata describes a chunk to geometry generators and the save subsystem.
type Metadata struct {
	Coord             Coord
	Height            int
	Seed              int64
	CreatedTime       time.Time
	LastModified      time.Time
	FeaturesPopulated bool
}

// Chunk is a Width x height x Depth column of blocks plus its lifecycle state.
type Chunk struct {
	coord   Coord
	height  int
	seed    int64
	created time.Time

	mu     sync.RWMutex
	blocks []block.Type

	state     *StateContainer
	stamp     atomic.Uint64
	modified  atomic.Int64
	features  atomic.Bool
	targetLOD atomic.Int32
}

// New allocates an all-air chunk in the Empty state.
func New(coord Coord, height int, seed int64, log *zap.Logger) *Chunk {
	if height <= 0 {
		panic(fmt.Sprintf("chunk: invalid height %d", height))
	}
	if log == nil {
		log = zap.NewNop()
	}
	now := time.Now()
	c := &Chunk{
		coord:   coord,
		height:  height,
		seed:    seed,
		created: now,
		blocks:  make([]block.Type, Width*height*Depth),
		state:   NewStateContainer(coord, log),
	}
	c.modified.Store(now.UnixNano())
	return c
}

func (c *Chunk) Coord() Coord { return c.coord }
func (c *Chunk) Height() int  { return c.height }

// State returns the atomic lifecycle container.
func (c *Chunk) State() *StateContainer { return c.state }

// Dirty returns the dirty tracker owned by the state container.
func (c *Chunk) Dirty() *DirtyTracker { return c.state.Dirty() }

// index mirrors the x-major layout of the section arrays: x, then y, then z.
func (c *Chunk) index(x, y, z int) int {
	return x*c.height*Depth + y*Depth + z
}

func (c *Chunk) inside(x, y, z int) bool {
	return x >= 0 && x < Width && y >= 0 && y < c.height && z >= 0 && z < Depth
}

// Block returns the block at local coordinates, or Air outside the chunk.
func (c *Chunk) Block(x, y, z int) block.Type {
	if !c.inside(x, y, z) {
		return block.Air
	}
	c.mu.RLock()
	t := c.blocks[c.index(x, y, z)]
	c.mu.RUnlock()
	return t
}

// SetBlock applies a player/world edit. It bumps the edit stamp, flags unsaved data
// and requests a remesh. changed is false when the block already had that type.
func (c *Chunk) SetBlock(x, y, z int, t block.Type) (changed bool, err error) {
	if !c.inside(x, y, z) {
		return false, fmt.Errorf("chunk %s: local (%d,%d,%d) out of bounds", c.coord, x, y, z)
	}
	if !t.Valid() {
		return false, fmt.Errorf("chunk %s: unknown block type %d", c.coord, uint16(t))
	}
	// The lock orders the edit against BeginUnload: either the edit lands first and
	// the chunk stays resident as unsaved, or the unload wins and the edit is refused.
	c.mu.Lock()
	if c.state.HasAnyState(Unloading, Unloaded) {
		c.mu.Unlock()
		return false, fmt.Errorf("chunk %s: edit while unloading: %w", c.coord, ErrTerminal)
	}
	idx := c.index(x, y, z)
	prev := c.blocks[idx]
	if prev == t {
		c.mu.Unlock()
		return false, nil
	}
	if err := c.state.TryAdd(DataModified); err != nil {
		c.mu.Unlock()
		return false, fmt.Errorf("chunk %s: edit not recorded: %w", c.coord, err)
	}
	c.blocks[idx] = t
	c.stamp.Add(1)
	c.state.Dirty().MarkDataDirty()
	c.mu.Unlock()

	c.modified.Store(time.Now().UnixNano())
	c.state.MarkMeshDirty()
	return true, nil
}

// Populate hands a raw setter to generation code. Generated content is not an
// unsaved edit, so no dirty flags are raised.
func (c *Chunk) Populate(fill func(set func(x, y, z int, t block.Type))) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fill(func(x, y, z int, t block.Type) {
		if c.inside(x, y, z) {
			c.blocks[c.index(x, y, z)] = t
		}
	})
	c.stamp.Add(1)
}

// LoadBlocks replaces the block array with previously saved content.
func (c *Chunk) LoadBlocks(blocks []block.Type) error {
	if len(blocks) != len(c.blocks) {
		return fmt.Errorf("chunk %s: saved block count %d, want %d", c.coord, len(blocks), len(c.blocks))
	}
	c.mu.Lock()
	copy(c.blocks, blocks)
	c.stamp.Add(1)
	c.mu.Unlock()
	return nil
}

// MarkFeaturesPopulated records that decoration passes ran.
func (c *Chunk) MarkFeaturesPopulated() {
	c.features.Store(true)
}

// EditStamp increases on every block mutation.
func (c *Chunk) EditStamp() uint64 {
	return c.stamp.Load()
}

// MarkSaved clears the data-dirty markers, unless another edit landed after the
// snapshot with the given stamp was taken.
func (c *Chunk) MarkSaved(stamp uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stamp.Load() != stamp {
		return false
	}
	c.state.Dirty().ClearDataDirty()
	if c.state.HasState(DataModified) {
		c.state.RemoveState(DataModified)
	}
	return true
}

// TargetLOD is the level of detail the scheduler last asked for.
func (c *Chunk) TargetLOD() int { return int(c.targetLOD.Load()) }

// SetTargetLOD stores a new LOD and reports whether it changed.
func (c *Chunk) SetTargetLOD(lod int) bool {
	return c.targetLOD.Swap(int32(lod)) != int32(lod)
}

// Metadata returns a copy of the descriptive fields.
func (c *Chunk) Metadata() Metadata {
	return Metadata{
		Coord:             c.coord,
		Height:            c.height,
		Seed:              c.seed,
		CreatedTime:       c.created,
		LastModified:      time.Unix(0, c.modified.Load()),
		FeaturesPopulated: c.features.Load(),
	}
}

// Snapshot copies the blocks under the read lock. Generators work on snapshots so a
// concurrent edit can never tear a mesh.
func (c *Chunk) Snapshot() *Snapshot {
	c.mu.RLock()
	blocks := make([]block.Type, len(c.blocks))
	copy(blocks, c.blocks)
	stamp := c.stamp.Load()
	c.mu.RUnlock()
	return &Snapshot{meta: c.Metadata(), stamp: stamp, blocks: blocks}
}

// BeginUnload moves the chunk from its single lifecycle flag to Unloading. Unsaved
// chunks are refused. It holds the block lock so no edit can slip in between the
// unsaved check and the transition.
func (c *Chunk) BeginUnload() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < maxCASRetries; i++ {
		cur := c.state.CurrentStates()
		if cur.Has(Unloading) {
			return nil
		}
		if cur.Has(DataModified) || c.Dirty().IsDataDirty() {
			return &TransitionError{Coord: c.coord, From: Empty, To: Unloading, Current: cur, Err: ErrUnsaved}
		}
		from := cur.Lifecycle().States()[0]
		err := c.state.TryTransition(from, Unloading)
		if err == nil {
			return nil
		}
		if !ChangedUnder(err, cur) {
			return err
		}
	}
	return &TransitionError{Coord: c.coord, From: Empty, To: Unloading, Current: c.state.CurrentStates(), Err: ErrContention}
}
