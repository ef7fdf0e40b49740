package gpu

import (
	"meshpipe/internal/chunk"

	"github.com/go-gl/mathgl/mgl32"
)

// Buffer is one vertex/index buffer pair plus its vertex array, sized to a pool class.
type Buffer struct {
	VAO, VBO, EBO uint32
	Class         int // vertex capacity in bytes; the index buffer holds Class/4
}

// Valid reports whether the buffer names a GPU allocation.
func (b Buffer) Valid() bool { return b.VBO != 0 }

// Device is the graphics API boundary. Every method must be called on the thread that
// owns the GPU context.
type Device interface {
	CreateBuffer(vertexBytes, indexBytes int) (Buffer, error)
	Upload(buf Buffer, vertices []float32, indices []uint32) error
	DestroyBuffer(buf Buffer)
}

// Primitive is the draw topology of a handle.
type Primitive uint8

const (
	Triangles Primitive = iota
)

// Handle is a resident mesh: the buffer plus everything a draw call needs.
type Handle struct {
	Coord       chunk.Coord
	LOD         int
	Buffer      Buffer
	IndexCount  int
	CutoutStart int
	First       int
	Primitive   Primitive
	Origin      mgl32.Vec3 // world-space translation of the chunk-local vertices
	Fingerprint uint64
}

// ChunkOrigin is the world-space corner of a chunk column.
func ChunkOrigin(c chunk.Coord) mgl32.Vec3 {
	return mgl32.Vec3{float32(c.X * chunk.Width), 0, float32(c.Z * chunk.Depth)}
}
