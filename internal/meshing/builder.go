package meshing

import (
	"fmt"
	"math"
	"sync"

	"meshpipe/internal/block"
	"meshpipe/internal/chunk"
	"meshpipe/internal/texture"

	"github.com/go-gl/mathgl/mgl32"
)

// Quad is one rectangle handed to the builder. Corners run c0 (u0,v0), c1 (u1,v0),
// c2 (u1,v1), c3 (u0,v1); the builder picks the winding that faces Normal.
type Quad struct {
	Corners     [4]mgl32.Vec3
	Normal      mgl32.Vec3
	Tile        texture.UVRect
	RepeatU     float32
	RepeatV     float32
	Face        block.Face // block.NumFaces for cross quads
	Cutout      bool
	DoubleSided bool
}

type part struct {
	vertices []float32
	indices  []uint32
}

func (p *part) reset() {
	p.vertices = p.vertices[:0]
	p.indices = p.indices[:0]
}

// Builder accumulates quads into opaque and cutout ranges.
type Builder struct {
	opaque    part
	cutout    part
	quads     int
	faces     int
	faceQuads [block.NumFaces + 1]int
}

var builderPool = sync.Pool{
	New: func() any {
		return &Builder{
			opaque: part{vertices: make([]float32, 0, 4096), indices: make([]uint32, 0, 1024)},
			cutout: part{vertices: make([]float32, 0, 256), indices: make([]uint32, 0, 64)},
		}
	},
}

// NewBuilder takes a builder from the pool. Call Release when done.
func NewBuilder() *Builder {
	b := builderPool.Get().(*Builder)
	b.reset()
	return b
}

// Release returns the builder's scratch buffers to the pool. Built meshes own copies
// and are unaffected.
func (b *Builder) Release() {
	if b == nil {
		return
	}
	builderPool.Put(b)
}

func (b *Builder) reset() {
	b.opaque.reset()
	b.cutout.reset()
	b.quads = 0
	b.faces = 0
	b.faceQuads = [block.NumFaces + 1]int{}
}

// CountFaces records visible unit faces that were folded into merged quads.
func (b *Builder) CountFaces(n int) { b.faces += n }

// AddQuad appends q. Degenerate or non-finite quads are rejected.
func (b *Builder) AddQuad(q Quad) error {
	for _, c := range q.Corners {
		for _, v := range c {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return fmt.Errorf("non-finite corner %v", c)
			}
		}
	}
	cross := q.Corners[1].Sub(q.Corners[0]).Cross(q.Corners[3].Sub(q.Corners[0]))
	if cross.Len() < 1e-6 {
		return fmt.Errorf("degenerate quad %v", q.Corners)
	}

	dst := &b.opaque
	if q.Cutout {
		dst = &b.cutout
	}
	flip := cross.Dot(q.Normal) < 0
	b.emit(dst, q, q.Normal, flip)
	if q.DoubleSided {
		b.emit(dst, q, q.Normal.Mul(-1), !flip)
	}

	b.quads++
	if q.Face <= block.NumFaces {
		b.faceQuads[q.Face]++
	}
	return nil
}

func (b *Builder) emit(p *part, q Quad, n mgl32.Vec3, flip bool) {
	base := uint32(len(p.vertices) / VertexStride)
	uvs := [4][2]float32{{0, 0}, {q.RepeatU, 0}, {q.RepeatU, q.RepeatV}, {0, q.RepeatV}}
	for i, c := range q.Corners {
		p.vertices = append(p.vertices,
			c[0], c[1], c[2],
			n[0], n[1], n[2],
			uvs[i][0], uvs[i][1],
			q.Tile.U1, q.Tile.V1, q.Tile.U2, q.Tile.V2,
		)
	}
	if flip {
		p.indices = append(p.indices, base, base+2, base+1, base, base+3, base+2)
	} else {
		p.indices = append(p.indices, base, base+1, base+2, base, base+2, base+3)
	}
}

// Build copies the accumulated geometry into an immutable MeshData.
func (b *Builder) Build(origin chunk.Coord, lod int, fingerprint uint64) *MeshData {
	nv := len(b.opaque.vertices) + len(b.cutout.vertices)
	ni := len(b.opaque.indices) + len(b.cutout.indices)
	vertices := make([]float32, 0, nv)
	indices := make([]uint32, 0, ni)

	vertices = append(vertices, b.opaque.vertices...)
	vertices = append(vertices, b.cutout.vertices...)
	indices = append(indices, b.opaque.indices...)
	shift := uint32(len(b.opaque.vertices) / VertexStride)
	for _, i := range b.cutout.indices {
		indices = append(indices, i+shift)
	}

	return &MeshData{
		vertices:    vertices,
		indices:     indices,
		cutoutStart: len(b.opaque.indices),
		quads:       b.quads,
		faces:       b.faces,
		faceQuads:   b.faceQuads,
		lod:         lod,
		fingerprint: fingerprint,
		origin:      origin,
	}
}
