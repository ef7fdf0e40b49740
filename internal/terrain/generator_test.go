package terrain

import (
	"testing"

	"meshpipe/internal/block"
	"meshpipe/internal/chunk"
	"meshpipe/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChunk(coord chunk.Coord) *chunk.Chunk {
	return chunk.New(coord, 96, 3, nil)
}

func TestHeightDeterministic(t *testing.T) {
	a := NewGenerator(42, config.DefaultTerrain())
	b := NewGenerator(42, config.DefaultTerrain())
	for x := -40; x < 40; x += 7 {
		for z := -40; z < 40; z += 5 {
			assert.Equal(t, a.HeightAt(x, z), b.HeightAt(x, z))
			assert.GreaterOrEqual(t, a.HeightAt(x, z), 0)
		}
	}
}

func TestPopulateColumns(t *testing.T) {
	cfg := config.DefaultTerrain()
	g := NewGenerator(7, cfg)
	c := newChunk(chunk.Coord{X: 2, Z: -1})
	g.Populate(c)

	for lx := 0; lx < chunk.Width; lx++ {
		for lz := 0; lz < chunk.Depth; lz++ {
			h := g.HeightAt(2*chunk.Width+lx, -chunk.Depth+lz)
			require.Equal(t, block.Bedrock, c.Block(lx, 0, lz))
			surface := c.Block(lx, h, lz)
			if h <= cfg.SeaLevel {
				assert.Equal(t, block.Sand, surface)
				if h < cfg.SeaLevel {
					assert.Equal(t, block.WaterSource, c.Block(lx, cfg.SeaLevel, lz))
				}
			} else {
				assert.Equal(t, block.Grass, surface)
				assert.Equal(t, block.Air, c.Block(lx, h+1, lz))
			}
		}
	}
	assert.False(t, c.Dirty().IsDataDirty())
}

func TestFeaturesStayInsideChunkAndRepeat(t *testing.T) {
	cfg := config.DefaultTerrain()
	cfg.SeaLevel = 1
	cfg.TreeChance = 0.2
	g := NewGenerator(11, cfg)

	build := func() *chunk.Chunk {
		c := newChunk(chunk.Coord{X: 5, Z: 5})
		g.Populate(c)
		g.PopulateFeatures(c)
		return c
	}
	a, b := build(), build()
	assert.Equal(t, a.Snapshot().Blocks(), b.Snapshot().Blocks(), "same seed, same decoration")

	counts := map[block.Type]int{}
	for _, bt := range a.Snapshot().Blocks() {
		counts[bt]++
	}
	assert.Positive(t, counts[block.Leaves])
	assert.Positive(t, counts[block.Flower]+counts[block.TallGrass])
}
