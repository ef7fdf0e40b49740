package meshing

import (
	"testing"

	"meshpipe/internal/block"
	"meshpipe/internal/chunk"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotOf(height int, fill func(set func(x, y, z int, t block.Type))) *chunk.Snapshot {
	c := chunk.New(chunk.Coord{}, height, 0, nil)
	c.Populate(fill)
	return c.Snapshot()
}

func generate(t *testing.T, src BlockSource, opts Options) *MeshData {
	t.Helper()
	m, err := Generate(src, opts)
	require.NoError(t, err)
	return m
}

func TestSingleBlockMesh(t *testing.T) {
	src := snapshotOf(4, func(set func(x, y, z int, t block.Type)) { set(1, 1, 1, block.Grass) })
	m := generate(t, src, Options{})
	assert.Equal(t, 6, m.Quads())
	assert.Equal(t, 24, m.VertexCount())
	assert.Equal(t, 12, m.TriangleCount())
	assert.Len(t, m.Vertices(), 24*VertexStride)
	for f := block.Face(0); f < block.NumFaces; f++ {
		assert.Equal(t, 1, m.QuadsFacing(f), f.String())
	}
}

func TestTwoBlocksSeparated(t *testing.T) {
	src := snapshotOf(4, func(set func(x, y, z int, t block.Type)) {
		set(0, 0, 0, block.Stone)
		set(2, 0, 0, block.Stone)
	})
	m := generate(t, src, Options{})
	assert.Equal(t, 12, m.Quads())
}

func TestTwoBlocksTouchingGreedy(t *testing.T) {
	src := snapshotOf(4, func(set func(x, y, z int, t block.Type)) {
		set(0, 0, 0, block.Stone)
		set(1, 0, 0, block.Stone)
	})
	m := generate(t, src, Options{})
	assert.Equal(t, 6, m.Quads(), "union is a 2x1x1 cuboid")
	assert.Equal(t, 10, m.Faces())
}

func flatLayer(set func(x, y, z int, t block.Type)) {
	for x := 0; x < chunk.Width; x++ {
		for z := 0; z < chunk.Depth; z++ {
			set(x, 0, z, block.Grass)
		}
	}
}

func TestFlatSurfaceSingleTopQuad(t *testing.T) {
	m := generate(t, snapshotOf(8, flatLayer), Options{})
	assert.Equal(t, 1, m.QuadsFacing(block.FaceTop))
	assert.Equal(t, 6, m.Quads())
	assert.Equal(t, 256*2+16*4, m.Faces())
}

func TestFlatSurfaceUVsTileAcrossSpan(t *testing.T) {
	m := generate(t, snapshotOf(8, flatLayer), Options{})
	v := m.Vertices()
	var maxU, maxV float32
	for i := 0; i < m.VertexCount(); i++ {
		n := v[i*VertexStride+NormalOffset+1]
		if n != 1 {
			continue
		}
		maxU = max(maxU, v[i*VertexStride+UVOffset])
		maxV = max(maxV, v[i*VertexStride+UVOffset+1])
	}
	assert.Equal(t, float32(16), maxU)
	assert.Equal(t, float32(16), maxV)
}

func TestCheckerboardDoesNotMerge(t *testing.T) {
	src := snapshotOf(4, func(set func(x, y, z int, t block.Type)) {
		for x := 0; x < chunk.Width; x++ {
			for z := 0; z < chunk.Depth; z++ {
				bt := block.Stone
				if (x+z)%2 == 1 {
					bt = block.Dirt
				}
				set(x, 0, z, bt)
			}
		}
	})
	m := generate(t, src, Options{})
	assert.Equal(t, 256, m.QuadsFacing(block.FaceTop))
	assert.Equal(t, 256, m.QuadsFacing(block.FaceBottom))
}

func TestDisableGreedyEmitsPerFace(t *testing.T) {
	m := generate(t, snapshotOf(8, flatLayer), Options{DisableGreedy: true})
	assert.Equal(t, 256, m.QuadsFacing(block.FaceTop))
	assert.Equal(t, m.Faces(), m.Quads())
}

func TestCrossChunkFaceCulling(t *testing.T) {
	center := chunk.New(chunk.Coord{}, 4, 0, nil)
	center.Populate(func(set func(x, y, z int, t block.Type)) { set(chunk.Width-1, 0, 0, block.Stone) })
	east := chunk.New(chunk.Coord{X: 1}, 4, 0, nil)
	east.Populate(func(set func(x, y, z int, t block.Type)) { set(0, 0, 0, block.Stone) })

	alone := generate(t, center.Snapshot(), Options{})
	assert.Equal(t, 6, alone.Quads(), "unloaded neighbour counts as visible")

	n := chunk.NewNeighborhood(center.Snapshot(), [4]*chunk.Snapshot{chunk.NeighborEast: east.Snapshot()})
	m := generate(t, n, Options{})
	assert.Equal(t, 5, m.Quads())
	assert.Zero(t, m.QuadsFacing(block.FaceEast))
}

func TestCrossBlocks(t *testing.T) {
	src := snapshotOf(4, func(set func(x, y, z int, t block.Type)) {
		set(3, 1, 3, block.TallGrass)
		set(3, 0, 3, block.Dirt)
	})
	m := generate(t, src, Options{})
	assert.Equal(t, 2, m.CrossQuads())
	assert.Equal(t, 6, m.QuadsFacing(block.FaceTop)+m.QuadsFacing(block.FaceBottom)+
		m.QuadsFacing(block.FaceEast)+m.QuadsFacing(block.FaceWest)+
		m.QuadsFacing(block.FaceSouth)+m.QuadsFacing(block.FaceNorth), "foliage does not hide the dirt top")
	assert.Equal(t, 6*6, m.CutoutStart(), "opaque dirt first")
	assert.Equal(t, 6*6+2*2*6, m.IndexCount(), "cross quads are double-sided")

	lod := generate(t, src, Options{LOD: 1})
	assert.Zero(t, lod.CrossQuads())
}

func TestWaterCulling(t *testing.T) {
	src := snapshotOf(4, func(set func(x, y, z int, t block.Type)) {
		set(0, 0, 0, block.WaterSource)
		set(1, 0, 0, block.WaterFlowing)
		set(2, 0, 0, block.Stone)
	})
	m := generate(t, src, Options{DisableGreedy: true})
	// water/water faces are hidden, water faces against stone hidden, stone face
	// against water visible.
	assert.Equal(t, 1, m.QuadsFacing(block.FaceEast), "only stone's outer east face")
	assert.Equal(t, 2, m.QuadsFacing(block.FaceWest), "water at x=0 and stone against water")
}

func TestWaterFaceAgainstFoliageIsDrawn(t *testing.T) {
	src := snapshotOf(4, func(set func(x, y, z int, t block.Type)) {
		set(0, 0, 0, block.WaterSource)
		set(1, 0, 0, block.TallGrass)
	})
	m := generate(t, src, Options{DisableGreedy: true})
	// a cross plant does not cover the water's east face, so culling it would leave a hole
	assert.Equal(t, 1, m.QuadsFacing(block.FaceEast))
	assert.Positive(t, m.CrossQuads())
}

func TestFluidSurfaceInset(t *testing.T) {
	src := snapshotOf(4, func(set func(x, y, z int, t block.Type)) { set(0, 0, 0, block.WaterSource) })
	m := generate(t, src, Options{})
	v := m.Vertices()
	found := false
	for i := 0; i < m.VertexCount(); i++ {
		if v[i*VertexStride+NormalOffset+1] == 1 {
			assert.InDelta(t, 0.875, v[i*VertexStride+1], 1e-6)
			found = true
		}
	}
	assert.True(t, found)
}

func TestWindingFacesNormal(t *testing.T) {
	src := snapshotOf(4, func(set func(x, y, z int, t block.Type)) {
		set(1, 1, 1, block.Stone)
		set(5, 1, 5, block.Flower)
	})
	m := generate(t, src, Options{})
	v, idx := m.Vertices(), m.Indices()
	pos := func(i uint32) mgl32.Vec3 {
		o := int(i) * VertexStride
		return mgl32.Vec3{v[o], v[o+1], v[o+2]}
	}
	for tri := 0; tri < len(idx); tri += 3 {
		a, b, c := pos(idx[tri]), pos(idx[tri+1]), pos(idx[tri+2])
		o := int(idx[tri]) * VertexStride
		n := mgl32.Vec3{v[o+3], v[o+4], v[o+5]}
		assert.Greater(t, b.Sub(a).Cross(c.Sub(a)).Dot(n), float32(0), "triangle %d", tri/3)
	}
}

func TestLODDownsamples(t *testing.T) {
	m := generate(t, snapshotOf(8, flatLayer), Options{LOD: 1, Fingerprint: 99})
	assert.Equal(t, 1, m.LOD())
	assert.Equal(t, uint64(99), m.Fingerprint())
	assert.Equal(t, 1, m.QuadsFacing(block.FaceTop))

	v := m.Vertices()
	var maxX float32
	for i := 0; i < m.VertexCount(); i++ {
		maxX = max(maxX, v[i*VertexStride])
	}
	assert.Equal(t, float32(chunk.Width), maxX, "cells are scaled back to block units")

	_, err := Generate(snapshotOf(8, flatLayer), Options{LOD: MaxLOD + 1})
	assert.Error(t, err)
}

func TestGeometryErrors(t *testing.T) {
	blocks := make([]block.Type, chunk.Width*2*chunk.Depth)
	blocks[5] = block.Type(999)
	src := chunk.NewSnapshot(chunk.Metadata{Height: 2}, blocks)

	_, err := Generate(src, Options{})
	var ge *GeometryError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, block.Type(999), ge.Block)
	assert.Equal(t, [3]int{0, 0, 5}, [3]int{ge.X, ge.Y, ge.Z})
	assert.Contains(t, ge.Error(), "unregistered")

	_, err = Generate(nil, Options{})
	assert.Error(t, err)
}

func TestBuilderRejectsDegenerateQuad(t *testing.T) {
	b := NewBuilder()
	defer b.Release()
	err := b.AddQuad(Quad{Normal: mgl32.Vec3{0, 1, 0}})
	assert.Error(t, err)
	assert.True(t, b.Build(chunk.Coord{}, 0, 0).Empty())
}

func BenchmarkGenerate_FullSurface(b *testing.B) {
	src := snapshotOf(64, flatLayer)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Generate(src, Options{})
	}
}

func BenchmarkGenerate_Checkerboard(b *testing.B) {
	src := snapshotOf(64, func(set func(x, y, z int, t block.Type)) {
		for x := 0; x < chunk.Width; x++ {
			for y := 0; y < 32; y++ {
				for z := 0; z < chunk.Depth; z++ {
					if (x+y+z)%2 == 0 {
						set(x, y, z, block.Stone)
					}
				}
			}
		}
	})
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Generate(src, Options{})
	}
}
