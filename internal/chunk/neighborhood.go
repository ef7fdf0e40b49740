package chunk

import (
	"meshpipe/internal/block"

	"github.com/cespare/xxhash/v2"
)

// Neighborhood samples a chunk plus its four edge neighbours, so face culling can look
// one block across each border. A nil side means that neighbour is not loaded.
type Neighborhood struct {
	center *Snapshot
	sides  [numNeighbors]*Snapshot
}

// NewNeighborhood combines a center snapshot with side snapshots in Neighbor* order.
func NewNeighborhood(center *Snapshot, sides [4]*Snapshot) *Neighborhood {
	return &Neighborhood{center: center, sides: sides}
}

func (n *Neighborhood) Size() (w, h, d int) { return n.center.Size() }
func (n *Neighborhood) Metadata() Metadata  { return n.center.Metadata() }
func (n *Neighborhood) Stamp() uint64       { return n.center.Stamp() }
func (n *Neighborhood) Center() *Snapshot   { return n.center }

// side resolves a local coordinate outside the center to a loaded neighbour.
func (n *Neighborhood) side(x, y, z int) (*Snapshot, int, int, bool) {
	inX := x >= 0 && x < Width
	inZ := z >= 0 && z < Depth
	var idx int
	switch {
	case x >= Width && inZ:
		idx, x = NeighborEast, x-Width
	case x < 0 && inZ:
		idx, x = NeighborWest, x+Width
	case z >= Depth && inX:
		idx, z = NeighborSouth, z-Depth
	case z < 0 && inX:
		idx, z = NeighborNorth, z+Depth
	default:
		return nil, 0, 0, false
	}
	s := n.sides[idx]
	if s == nil || !s.InBounds(x, y, z) {
		return nil, 0, 0, false
	}
	return s, x, z, true
}

// InBounds reports whether block data is available at (x, y, z).
func (n *Neighborhood) InBounds(x, y, z int) bool {
	if n.center.InBounds(x, y, z) {
		return true
	}
	_, _, _, ok := n.side(x, y, z)
	return ok
}

func (n *Neighborhood) Block(x, y, z int) block.Type {
	if n.center.InBounds(x, y, z) {
		return n.center.Block(x, y, z)
	}
	if s, sx, sz, ok := n.side(x, y, z); ok {
		return s.Block(sx, y, sz)
	}
	return block.Air
}

// Fingerprint covers the center blocks and the neighbour slabs facing it, which is
// everything the generated geometry depends on.
func (n *Neighborhood) Fingerprint() uint64 {
	d := xxhash.New()
	_, _ = d.Write(n.center.raw())
	var buf [2]byte
	for i, s := range n.sides {
		if s == nil {
			_, _ = d.Write([]byte{byte(i), 0})
			continue
		}
		_, _ = d.Write([]byte{byte(i), 1})
		_, h, _ := s.Size()
		for y := 0; y < h; y++ {
			for k := 0; k < Width; k++ {
				var t block.Type
				switch i {
				case NeighborEast:
					t = s.Block(0, y, k)
				case NeighborWest:
					t = s.Block(Width-1, y, k)
				case NeighborSouth:
					t = s.Block(k, y, 0)
				case NeighborNorth:
					t = s.Block(k, y, Depth-1)
				}
				buf[0], buf[1] = byte(t), byte(t>>8)
				_, _ = d.Write(buf[:])
			}
		}
	}
	return d.Sum64()
}
