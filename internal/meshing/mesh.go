package meshing

import (
	"meshpipe/internal/block"
	"meshpipe/internal/chunk"
)

// Vertex layout: position.xyz, normal.xyz, uv (in tile repeats), tile rect u1 v1 u2 v2.
// The shader samples tile.xy + fract(uv) * (tile.zw - tile.xy), so one merged quad
// repeats its texture once per block.
const (
	VertexStride   = 12
	PositionOffset = 0
	NormalOffset   = 3
	UVOffset       = 6
	TileOffset     = 8
)

// MeshData is a finished, immutable mesh payload. Callers must treat the slices
// returned by Vertices and Indices as read-only.
type MeshData struct {
	vertices    []float32
	indices     []uint32
	cutoutStart int
	quads       int
	faces       int
	faceQuads   [block.NumFaces + 1]int
	lod         int
	fingerprint uint64
	origin      chunk.Coord
}

func (m *MeshData) Vertices() []float32 { return m.vertices }
func (m *MeshData) Indices() []uint32   { return m.indices }

// VertexCount is the number of interleaved vertices.
func (m *MeshData) VertexCount() int { return len(m.vertices) / VertexStride }

func (m *MeshData) IndexCount() int    { return len(m.indices) }
func (m *MeshData) TriangleCount() int { return len(m.indices) / 3 }

// CutoutStart is the first index of the alpha-tested range. Opaque geometry is
// [0, CutoutStart), cutout geometry [CutoutStart, IndexCount).
func (m *MeshData) CutoutStart() int { return m.cutoutStart }

// Quads counts emitted quads (after greedy merging).
func (m *MeshData) Quads() int { return m.quads }

// Faces counts visible unit faces before merging.
func (m *MeshData) Faces() int { return m.faces }

// QuadsFacing counts quads emitted for one face direction.
func (m *MeshData) QuadsFacing(f block.Face) int {
	if f > block.NumFaces {
		return 0
	}
	return m.faceQuads[f]
}

// CrossQuads counts quads emitted by the cross-shape pass.
func (m *MeshData) CrossQuads() int { return m.faceQuads[block.NumFaces] }

func (m *MeshData) LOD() int             { return m.lod }
func (m *MeshData) Fingerprint() uint64  { return m.fingerprint }
func (m *MeshData) Origin() chunk.Coord  { return m.origin }
func (m *MeshData) Empty() bool          { return len(m.indices) == 0 }
func (m *MeshData) VertexBytes() int     { return 4 * len(m.vertices) }
func (m *MeshData) IndexBytes() int      { return 4 * len(m.indices) }
func (m *MeshData) MemoryFootprint() int { return m.VertexBytes() + m.IndexBytes() }
