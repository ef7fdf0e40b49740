package meshing

import (
	"fmt"

	"meshpipe/internal/block"
	"meshpipe/internal/chunk"
)

// BlockSource samples block data in chunk-local coordinates. Coordinates outside the
// chunk may resolve to loaded neighbours; InBounds reports whether data exists there.
type BlockSource interface {
	Block(x, y, z int) block.Type
	InBounds(x, y, z int) bool
	Size() (w, h, d int)
	Metadata() chunk.Metadata
}

// MaxLOD is the coarsest supported level (cells of 16 blocks).
const MaxLOD = 4

// GeometryError rejects malformed generator input.
type GeometryError struct {
	Face    block.Face
	Block   block.Type
	X, Y, Z int
	Reason  string
}

func (e *GeometryError) Error() string {
	face := "any"
	if e.Face < block.NumFaces {
		face = e.Face.String()
	}
	return fmt.Sprintf("meshing: %s at (%d,%d,%d), face %s: %s", e.Block, e.X, e.Y, e.Z, face, e.Reason)
}

// lodSource downsamples another source into cells of scale^3 blocks. A cell takes the
// first cube-shaped block found scanning from the top, so surfaces keep their material.
type lodSource struct {
	src     BlockSource
	scale   int
	w, h, d int
}

func newLODSource(src BlockSource, lod int) *lodSource {
	s := 1 << lod
	w, h, d := src.Size()
	return &lodSource{src: src, scale: s, w: ceilDiv(w, s), h: ceilDiv(h, s), d: ceilDiv(d, s)}
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

func (l *lodSource) Size() (w, h, d int)      { return l.w, l.h, l.d }
func (l *lodSource) Metadata() chunk.Metadata { return l.src.Metadata() }

func (l *lodSource) InBounds(x, y, z int) bool {
	return l.src.InBounds(x*l.scale, y*l.scale, z*l.scale)
}

func (l *lodSource) Block(x, y, z int) block.Type {
	s := l.scale
	for by := y*s + s - 1; by >= y*s; by-- {
		for bx := x * s; bx < x*s+s; bx++ {
			for bz := z * s; bz < z*s+s; bz++ {
				if !l.src.InBounds(bx, by, bz) {
					continue
				}
				if t := l.src.Block(bx, by, bz); t.Properties().Shape == block.ShapeCube {
					return t
				}
			}
		}
	}
	return block.Air
}
