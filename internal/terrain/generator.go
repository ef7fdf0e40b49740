package terrain

import (
	"math"
	"math/rand/v2"

	"meshpipe/internal/block"
	"meshpipe/internal/chunk"
	"meshpipe/internal/config"

	"github.com/aquilax/go-perlin"
)

// Generator is a heightmap terrain populator. It is safe for concurrent use; the
// noise tables are read-only after construction.
type Generator struct {
	seed    int64
	cfg     config.Terrain
	noise   *perlin.Perlin
	detail  *perlin.Perlin
	treeTop int
}

func NewGenerator(seed int64, cfg config.Terrain) *Generator {
	if cfg.Scale <= 0 {
		cfg.Scale = config.DefaultTerrain().Scale
	}
	return &Generator{
		seed:    seed,
		cfg:     cfg,
		noise:   perlin.NewPerlin(2, 2, 3, seed),
		detail:  perlin.NewPerlin(2, 2, 2, seed+1),
		treeTop: 6,
	}
}

// HeightAt computes the surface block Y at world X,Z.
func (g *Generator) HeightAt(worldX, worldZ int) int {
	x := float64(worldX) / g.cfg.Scale
	z := float64(worldZ) / g.cfg.Scale
	n := g.noise.Noise2D(x, z) + 0.25*g.detail.Noise2D(x*4, z*4)
	h := float64(g.cfg.BaseHeight) + n*g.cfg.Amplitude
	return max(int(math.Floor(h)), 0)
}

// Populate fills c from the heightmap: bedrock floor, dirt, a grass or sand cap and
// water up to sea level.
func (g *Generator) Populate(c *chunk.Chunk) {
	top := c.Height() - 1
	coord := c.Coord()
	c.Populate(func(set func(x, y, z int, t block.Type)) {
		for lx := 0; lx < chunk.Width; lx++ {
			for lz := 0; lz < chunk.Depth; lz++ {
				h := min(g.HeightAt(coord.X*chunk.Width+lx, coord.Z*chunk.Depth+lz), top)
				set(lx, 0, lz, block.Bedrock)
				for y := 1; y < h; y++ {
					if y < h-3 {
						set(lx, y, lz, block.Stone)
					} else {
						set(lx, y, lz, block.Dirt)
					}
				}
				if h > 0 {
					if h <= g.cfg.SeaLevel {
						set(lx, h, lz, block.Sand)
					} else {
						set(lx, h, lz, block.Grass)
					}
				}
				for y := h + 1; y <= min(g.cfg.SeaLevel, top); y++ {
					set(lx, y, lz, block.WaterSource)
				}
			}
		}
	})
}

// PopulateFeatures decorates grass columns with trees, flowers and tall grass.
// Placement is deterministic per chunk and seed. Trees stay two blocks away from
// the chunk border so their leaves never cross into a neighbour.
func (g *Generator) PopulateFeatures(c *chunk.Chunk) {
	coord := c.Coord()
	rng := rand.New(rand.NewPCG(uint64(g.seed), uint64(int64(coord.X)<<32^int64(uint32(coord.Z)))))
	top := c.Height() - 1
	c.Populate(func(set func(x, y, z int, t block.Type)) {
		for lx := 0; lx < chunk.Width; lx++ {
			for lz := 0; lz < chunk.Depth; lz++ {
				h := g.HeightAt(coord.X*chunk.Width+lx, coord.Z*chunk.Depth+lz)
				if h <= g.cfg.SeaLevel || h+1 > top {
					continue
				}
				roll := rng.Float64()
				inner := lx >= 2 && lx < chunk.Width-2 && lz >= 2 && lz < chunk.Depth-2
				switch {
				case inner && roll < g.cfg.TreeChance && h+g.treeTop+1 <= top:
					g.tree(set, lx, h+1, lz)
				case roll < g.cfg.TreeChance+0.02:
					set(lx, h+1, lz, block.Flower)
				case roll < g.cfg.TreeChance+0.10:
					set(lx, h+1, lz, block.TallGrass)
				}
			}
		}
	})
}

// tree places a dirt trunk under a leaf crown; there is no log block type.
func (g *Generator) tree(set func(x, y, z int, t block.Type), x, base, z int) {
	trunk := g.treeTop - 2
	for y := base; y < base+trunk; y++ {
		set(x, y, z, block.Dirt)
	}
	for dy := trunk - 1; dy <= trunk+1; dy++ {
		r := 2
		if dy == trunk+1 {
			r = 1
		}
		for dx := -r; dx <= r; dx++ {
			for dz := -r; dz <= r; dz++ {
				if dx == 0 && dz == 0 && dy < trunk {
					continue
				}
				set(x+dx, base+dy, z+dz, block.Leaves)
			}
		}
	}
}
