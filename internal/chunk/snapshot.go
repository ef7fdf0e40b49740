package chunk

import (
	"encoding/binary"
	"unsafe"

	"meshpipe/internal/block"

	"github.com/cespare/xxhash/v2"
)

// Snapshot is an immutable copy of a chunk's blocks.
type Snapshot struct {
	meta   Metadata
	stamp  uint64
	blocks []block.Type
}

// NewSnapshot wraps raw blocks (x-major, then y, then z). Used by tests and loaders.
func NewSnapshot(meta Metadata, blocks []block.Type) *Snapshot {
	return &Snapshot{meta: meta, blocks: blocks}
}

func (s *Snapshot) Size() (w, h, d int)   { return Width, s.meta.Height, Depth }
func (s *Snapshot) Metadata() Metadata   { return s.meta }
func (s *Snapshot) Stamp() uint64        { return s.stamp }
func (s *Snapshot) Blocks() []block.Type { return s.blocks }

// InBounds reports whether (x, y, z) is inside this chunk.
func (s *Snapshot) InBounds(x, y, z int) bool {
	return x >= 0 && x < Width && y >= 0 && y < s.meta.Height && z >= 0 && z < Depth
}

// Block returns Air outside the chunk.
func (s *Snapshot) Block(x, y, z int) block.Type {
	if !s.InBounds(x, y, z) {
		return block.Air
	}
	return s.blocks[x*s.meta.Height*Depth+y*Depth+z]
}

func (s *Snapshot) raw() []byte {
	if len(s.blocks) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s.blocks[0])), len(s.blocks)*int(unsafe.Sizeof(block.Air)))
}

// Fingerprint hashes the block content.
func (s *Snapshot) Fingerprint() uint64 {
	return xxhash.Sum64(s.raw())
}

// Encode serialises the blocks as little-endian uint16 values.
func (s *Snapshot) Encode() []byte {
	out := make([]byte, 2*len(s.blocks))
	for i, t := range s.blocks {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(t))
	}
	return out
}

// DecodeBlocks reverses Encode.
func DecodeBlocks(data []byte) []block.Type {
	out := make([]block.Type, len(data)/2)
	for i := range out {
		out[i] = block.Type(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return out
}
