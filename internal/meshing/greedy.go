package meshing

import (
	"meshpipe/internal/block"
	"meshpipe/internal/texture"

	"github.com/go-gl/mathgl/mgl32"
)

// planeAxes maps the axis a face is perpendicular to onto its in-plane (u, v) axes.
// v is vertical for side faces so textures stay upright.
var planeAxes = [3][2]int{
	0: {2, 1},
	1: {0, 2},
	2: {0, 1},
}

// maskKey is what two faces must share to merge.
type maskKey struct {
	set   bool
	t     block.Type
	uv    texture.UVRect
	alpha bool
	inset float32
}

// faceEmitter turns merged rectangles into builder quads.
type faceEmitter struct {
	b        *Builder
	resolver texture.Resolver
	scale    float32
}

func (e *faceEmitter) key(src BlockSource, t block.Type, x, y, z int, f block.Face) maskKey {
	k := maskKey{
		set:   true,
		t:     t,
		uv:    e.resolver.FaceUV(t, f),
		alpha: e.resolver.RequiresAlphaTest(t),
	}
	if f == block.FaceTop {
		k.inset = topInset(src, t, x, y, z)
	}
	return k
}

// rect emits the w x h rectangle at in-plane origin (u0, v0) of slice s.
func (e *faceEmitter) rect(f block.Face, s, u0, v0, w, h int, k maskKey) error {
	axis := f.Axis()
	ua, va := planeAxes[axis][0], planeAxes[axis][1]
	plane := float32(s)
	if f.Positive() {
		plane = float32(s + 1)
	}
	plane -= k.inset

	at := func(u, v int) mgl32.Vec3 {
		var p mgl32.Vec3
		p[axis] = plane * e.scale
		p[ua] = float32(u) * e.scale
		p[va] = float32(v) * e.scale
		return p
	}
	return e.b.AddQuad(Quad{
		Corners: [4]mgl32.Vec3{at(u0, v0), at(u0+w, v0), at(u0+w, v0+h), at(u0, v0+h)},
		Normal:  f.Normal(),
		Tile:    k.uv,
		RepeatU: float32(w) * e.scale,
		RepeatV: float32(h) * e.scale,
		Face:    f,
		Cutout:  k.alpha,
	})
}

// greedyCubes meshes every cube-shaped block with per-slice greedy merging.
func greedyCubes(src BlockSource, e *faceEmitter) error {
	w, h, d := src.Size()
	dims := [3]int{w, h, d}
	var mask []maskKey

	for f := block.Face(0); f < block.NumFaces; f++ {
		axis := f.Axis()
		ua, va := planeAxes[axis][0], planeAxes[axis][1]
		nu, nv := dims[ua], dims[va]
		if cap(mask) < nu*nv {
			mask = make([]maskKey, nu*nv)
		}
		mask = mask[:nu*nv]

		for s := 0; s < dims[axis]; s++ {
			visible := 0
			for v := 0; v < nv; v++ {
				for u := 0; u < nu; u++ {
					var p [3]int
					p[axis], p[ua], p[va] = s, u, v
					t := src.Block(p[0], p[1], p[2])
					if t.Properties().Shape != block.ShapeCube || !faceVisible(src, t, p[0], p[1], p[2], f) {
						mask[v*nu+u] = maskKey{}
						continue
					}
					mask[v*nu+u] = e.key(src, t, p[0], p[1], p[2], f)
					visible++
				}
			}
			if visible == 0 {
				continue
			}
			e.b.CountFaces(visible)

			for v := 0; v < nv; v++ {
				for u := 0; u < nu; {
					k := mask[v*nu+u]
					if !k.set {
						u++
						continue
					}
					width := 1
					for u+width < nu && mask[v*nu+u+width] == k {
						width++
					}
					height := 1
				grow:
					for v+height < nv {
						row := (v + height) * nu
						for x := u; x < u+width; x++ {
							if mask[row+x] != k {
								break grow
							}
						}
						height++
					}
					if err := e.rect(f, s, u, v, width, height, k); err != nil {
						var p [3]int
						p[axis], p[ua], p[va] = s, u, v
						return &GeometryError{Face: f, Block: k.t, X: p[0], Y: p[1], Z: p[2], Reason: err.Error()}
					}
					for dv := 0; dv < height; dv++ {
						row := (v + dv) * nu
						for x := u; x < u+width; x++ {
							mask[row+x] = maskKey{}
						}
					}
					u += width
				}
			}
		}
	}
	return nil
}
