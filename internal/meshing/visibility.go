package meshing

import "meshpipe/internal/block"

// faceVisible decides whether the f face of owner at (x, y, z) is drawn. Missing
// neighbour data counts as visible so unloaded borders never open seams.
func faceVisible(src BlockSource, owner block.Type, x, y, z int, f block.Face) bool {
	dx, dy, dz := f.Offset()
	nx, ny, nz := x+dx, y+dy, z+dz
	if !src.InBounds(nx, ny, nz) {
		return true
	}
	n := src.Block(nx, ny, nz)
	switch {
	case n.IsAir():
		return true
	case !n.Transparent():
		return false
	case owner.Transparent() && (n == owner || block.SameBody(owner, n)):
		// water against water, or any transparent cube against itself
		return false
	}
	// A transparent owner still draws against a different transparent neighbour:
	// cross plants do not cover the face.
	return true
}

// topInset lowers a fluid surface that is not covered by more of the same body.
func topInset(src BlockSource, owner block.Type, x, y, z int) float32 {
	fl := owner.Properties().Fluid
	if !fl.IsFluid() {
		return 0
	}
	if src.InBounds(x, y+1, z) && block.SameBody(owner, src.Block(x, y+1, z)) {
		return 0
	}
	return 1 - fl.SurfaceHeight()
}
