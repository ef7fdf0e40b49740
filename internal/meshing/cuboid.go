package meshing

import "meshpipe/internal/block"

// cuboidCubes emits one quad per visible face with no merging. It is the reference the
// greedy pass is measured against and the fallback when merging is turned off.
func cuboidCubes(src BlockSource, e *faceEmitter) error {
	w, h, d := src.Size()
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			for z := 0; z < d; z++ {
				t := src.Block(x, y, z)
				if t.Properties().Shape != block.ShapeCube {
					continue
				}
				for f := block.Face(0); f < block.NumFaces; f++ {
					if !faceVisible(src, t, x, y, z, f) {
						continue
					}
					e.b.CountFaces(1)
					axis := f.Axis()
					p := [3]int{x, y, z}
					k := e.key(src, t, x, y, z, f)
					if err := e.rect(f, p[axis], p[planeAxes[axis][0]], p[planeAxes[axis][1]], 1, 1, k); err != nil {
						return &GeometryError{Face: f, Block: t, X: x, Y: y, Z: z, Reason: err.Error()}
					}
				}
			}
		}
	}
	return nil
}
