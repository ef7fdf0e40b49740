package chunk

import "fmt"

const (
	// Width and Depth are the fixed horizontal chunk dimensions.
	Width = 16
	Depth = 16
)

// Coord is the integer (x, z) identity of a chunk column.
type Coord struct {
	X, Z int
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Z)
}

// Offset returns the coordinate dx, dz chunks away.
func (c Coord) Offset(dx, dz int) Coord {
	return Coord{X: c.X + dx, Z: c.Z + dz}
}

// Dist2 is the squared chunk distance between c and o.
func (c Coord) Dist2(o Coord) int {
	dx := c.X - o.X
	dz := c.Z - o.Z
	return dx*dx + dz*dz
}

// Chebyshev is the ring index of o around c.
func (c Coord) Chebyshev(o Coord) int {
	return max(abs(c.X-o.X), abs(c.Z-o.Z))
}

// Neighbor directions in the horizontal plane, in a fixed order used by Neighborhood.
const (
	NeighborEast = iota // +X
	NeighborWest        // -X
	NeighborSouth       // +Z
	NeighborNorth       // -Z
	numNeighbors
)

var neighborOffsets = [numNeighbors][2]int{
	NeighborEast:  {1, 0},
	NeighborWest:  {-1, 0},
	NeighborSouth: {0, 1},
	NeighborNorth: {0, -1},
}

// Neighbors returns the four edge-adjacent coordinates in Neighbor* order.
func (c Coord) Neighbors() [numNeighbors]Coord {
	var out [numNeighbors]Coord
	for i, o := range neighborOffsets {
		out[i] = c.Offset(o[0], o[1])
	}
	return out
}

// FromBlock converts world block x, z into the owning chunk and local coordinates.
func FromBlock(x, z int) (Coord, int, int) {
	cx := floorDiv(x, Width)
	cz := floorDiv(z, Depth)
	return Coord{X: cx, Z: cz}, x - cx*Width, z - cz*Depth
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
