package meshing

import (
	"math"

	"meshpipe/internal/block"

	"github.com/go-gl/mathgl/mgl32"
)

var invSqrt2 = float32(1 / math.Sqrt2)

// crossBlocks emits two perpendicular double-sided diagonal quads per cross-shaped
// block. Foliage never takes part in culling or merging.
func crossBlocks(src BlockSource, e *faceEmitter) error {
	w, h, d := src.Size()
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			for z := 0; z < d; z++ {
				t := src.Block(x, y, z)
				if t.Properties().Shape != block.ShapeCross {
					continue
				}
				if err := e.cross(t, float32(x), float32(y), float32(z)); err != nil {
					return &GeometryError{Face: block.NumFaces, Block: t, X: x, Y: y, Z: z, Reason: err.Error()}
				}
			}
		}
	}
	return nil
}

func (e *faceEmitter) cross(t block.Type, x, y, z float32) error {
	tile := e.resolver.FaceUV(t, block.FaceSouth)
	cutout := e.resolver.RequiresAlphaTest(t)
	planes := [2]struct {
		corners [4]mgl32.Vec3
		normal  mgl32.Vec3
	}{
		{
			corners: [4]mgl32.Vec3{{x, y, z}, {x + 1, y, z + 1}, {x + 1, y + 1, z + 1}, {x, y + 1, z}},
			normal:  mgl32.Vec3{-invSqrt2, 0, invSqrt2},
		},
		{
			corners: [4]mgl32.Vec3{{x + 1, y, z}, {x, y, z + 1}, {x, y + 1, z + 1}, {x + 1, y + 1, z}},
			normal:  mgl32.Vec3{-invSqrt2, 0, -invSqrt2},
		},
	}
	for _, p := range planes {
		err := e.b.AddQuad(Quad{
			Corners:     p.corners,
			Normal:      p.normal,
			Tile:        tile,
			RepeatU:     1,
			RepeatV:     1,
			Face:        block.NumFaces,
			Cutout:      cutout,
			DoubleSided: true,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
