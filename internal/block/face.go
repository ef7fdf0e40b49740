package block

import "github.com/go-gl/mathgl/mgl32"

// Face identifies one of the six axis-aligned block faces.
type Face uint8

const (
	FaceEast   Face = iota // +X
	FaceWest               // -X
	FaceTop                // +Y
	FaceBottom             // -Y
	FaceSouth              // +Z
	FaceNorth              // -Z
	NumFaces
)

var faceOffsets = [NumFaces][3]int{
	FaceEast:   {1, 0, 0},
	FaceWest:   {-1, 0, 0},
	FaceTop:    {0, 1, 0},
	FaceBottom: {0, -1, 0},
	FaceSouth:  {0, 0, 1},
	FaceNorth:  {0, 0, -1},
}

// Offset returns the integer step towards the neighbour across this face.
func (f Face) Offset() (dx, dy, dz int) {
	o := faceOffsets[f]
	return o[0], o[1], o[2]
}

// Normal returns the outward unit normal.
func (f Face) Normal() mgl32.Vec3 {
	o := faceOffsets[f]
	return mgl32.Vec3{float32(o[0]), float32(o[1]), float32(o[2])}
}

// Axis returns the index (0=x,1=y,2=z) of the axis the face is perpendicular to.
func (f Face) Axis() int {
	return int(f) / 2
}

// Positive reports whether the face points along the positive axis direction.
func (f Face) Positive() bool {
	return f%2 == 0
}

func (f Face) String() string {
	switch f {
	case FaceEast:
		return "east"
	case FaceWest:
		return "west"
	case FaceTop:
		return "top"
	case FaceBottom:
		return "bottom"
	case FaceSouth:
		return "south"
	case FaceNorth:
		return "north"
	default:
		return "invalid"
	}
}
