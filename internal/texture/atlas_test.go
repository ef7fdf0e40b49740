package texture

import (
	"testing"

	"meshpipe/internal/block"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridAtlasFaceUV(t *testing.T) {
	a := DefaultAtlas()

	top := a.FaceUV(block.Grass, block.FaceTop)
	side := a.FaceUV(block.Grass, block.FaceEast)
	bottom := a.FaceUV(block.Grass, block.FaceBottom)
	assert.NotEqual(t, top, side)
	assert.Equal(t, a.FaceUV(block.Dirt, block.FaceTop), bottom)

	assert.InDelta(t, 0.125, top.Width(), 1e-6)
	assert.InDelta(t, 0.125, top.Height(), 1e-6)
	assert.InDelta(t, 3*0.125, top.U1, 1e-6)
	assert.InDelta(t, 0, top.V1, 1e-6)

	water := a.FaceUV(block.WaterSource, block.FaceTop)
	assert.InDelta(t, 0, water.U1, 1e-6)
	assert.InDelta(t, 0.125, water.V1, 1e-6)
}

func TestGridAtlasUnknownBlockFallsBack(t *testing.T) {
	a := DefaultAtlas()
	assert.Equal(t, UVRect{U1: 0, V1: 0, U2: 0.125, V2: 0.125}, a.FaceUV(block.Air, block.FaceNorth))
}

func TestGridAtlasAlphaTest(t *testing.T) {
	a := DefaultAtlas()
	assert.True(t, a.RequiresAlphaTest(block.Leaves))
	assert.True(t, a.RequiresAlphaTest(block.TallGrass))
	assert.False(t, a.RequiresAlphaTest(block.Stone))
	assert.False(t, a.RequiresAlphaTest(block.WaterSource))
}

func TestNewGridAtlasValidates(t *testing.T) {
	_, err := NewGridAtlas(0, 4, nil)
	require.Error(t, err)
	_, err = NewGridAtlas(2, 2, map[block.Type]Tiles{block.Stone: All(4)})
	require.Error(t, err)
}
