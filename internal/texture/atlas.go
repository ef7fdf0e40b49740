package texture

import (
	"fmt"

	"meshpipe/internal/block"
)

// UVRect is a normalized atlas region. U1,V1 is the lower corner.
type UVRect struct {
	U1, V1, U2, V2 float32
}

// Width and Height of the rect in UV units.
func (r UVRect) Width() float32  { return r.U2 - r.U1 }
func (r UVRect) Height() float32 { return r.V2 - r.V1 }

// Resolver maps a block face onto the texture atlas.
type Resolver interface {
	FaceUV(t block.Type, f block.Face) UVRect
	RequiresAlphaTest(t block.Type) bool
}

// Tiles names the atlas tile used on each face group of a block, the way block
// definitions split textures into top, bottom and side.
type Tiles struct {
	Top, Bottom, Side int
}

// All uses one tile on every face.
func All(tile int) Tiles { return Tiles{Top: tile, Bottom: tile, Side: tile} }

// GridAtlas is a square-tiled atlas of Columns x Rows equally sized tiles.
type GridAtlas struct {
	columns, rows int
	tiles         map[block.Type]Tiles
	fallback      int
}

// NewGridAtlas builds an atlas. Tiles are numbered row-major from the lower left.
func NewGridAtlas(columns, rows int, tiles map[block.Type]Tiles) (*GridAtlas, error) {
	if columns <= 0 || rows <= 0 {
		return nil, fmt.Errorf("atlas grid %dx%d is empty", columns, rows)
	}
	out := make(map[block.Type]Tiles, len(tiles))
	for t, ts := range tiles {
		for _, idx := range []int{ts.Top, ts.Bottom, ts.Side} {
			if idx < 0 || idx >= columns*rows {
				return nil, fmt.Errorf("block %s: tile %d outside %dx%d atlas", t, idx, columns, rows)
			}
		}
		out[t] = ts
	}
	return &GridAtlas{columns: columns, rows: rows, tiles: out}, nil
}

// DefaultAtlas lays out every built-in block on an 8x8 grid.
func DefaultAtlas() *GridAtlas {
	a, err := NewGridAtlas(8, 8, map[block.Type]Tiles{
		block.Stone:        All(1),
		block.Dirt:         All(2),
		block.Grass:        {Top: 3, Bottom: 2, Side: 4},
		block.Sand:         All(5),
		block.Bedrock:      All(6),
		block.Leaves:       All(7),
		block.WaterSource:  All(8),
		block.WaterFlowing: All(9),
		block.WaterFalling: All(9),
		block.TallGrass:    All(10),
		block.Flower:       All(11),
	})
	if err != nil {
		panic(err)
	}
	return a
}

// Tile returns the atlas tile index for a face; unknown blocks get tile 0.
func (a *GridAtlas) Tile(t block.Type, f block.Face) int {
	ts, ok := a.tiles[t]
	if !ok {
		return a.fallback
	}
	switch f {
	case block.FaceTop:
		return ts.Top
	case block.FaceBottom:
		return ts.Bottom
	default:
		return ts.Side
	}
}

// FaceUV implements Resolver.
func (a *GridAtlas) FaceUV(t block.Type, f block.Face) UVRect {
	idx := a.Tile(t, f)
	col := idx % a.columns
	row := idx / a.columns
	du := 1 / float32(a.columns)
	dv := 1 / float32(a.rows)
	return UVRect{
		U1: float32(col) * du,
		V1: float32(row) * dv,
		U2: float32(col+1) * du,
		V2: float32(row+1) * dv,
	}
}

// RequiresAlphaTest implements Resolver.
func (a *GridAtlas) RequiresAlphaTest(t block.Type) bool {
	return t.Properties().AlphaTest
}
