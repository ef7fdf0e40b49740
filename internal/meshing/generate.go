package meshing

import (
	"errors"
	"fmt"

	"meshpipe/internal/block"
	"meshpipe/internal/texture"
)

// Options control one generation run.
type Options struct {
	// Resolver supplies atlas UVs; nil uses texture.DefaultAtlas.
	Resolver texture.Resolver
	// LOD downsamples by 2^LOD. Cross blocks are only emitted at LOD 0.
	LOD int
	// DisableGreedy emits one quad per visible face.
	DisableGreedy bool
	// Fingerprint is stored on the result for cache freshness checks.
	Fingerprint uint64
}

var defaultResolver = texture.DefaultAtlas()

// Generate runs the cube pass (greedy or per-face) and the cross pass over src.
func Generate(src BlockSource, opts Options) (*MeshData, error) {
	if src == nil {
		return nil, errors.New("meshing: nil block source")
	}
	if opts.LOD < 0 || opts.LOD > MaxLOD {
		return nil, fmt.Errorf("meshing: lod %d outside [0,%d]", opts.LOD, MaxLOD)
	}
	if err := validate(src); err != nil {
		return nil, err
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = defaultResolver
	}

	b := NewBuilder()
	defer b.Release()

	sampled := src
	scale := float32(1)
	if opts.LOD > 0 {
		sampled = newLODSource(src, opts.LOD)
		scale = float32(int(1) << opts.LOD)
	}
	e := &faceEmitter{b: b, resolver: resolver, scale: scale}

	cubes := greedyCubes
	if opts.DisableGreedy {
		cubes = cuboidCubes
	}
	if err := cubes(sampled, e); err != nil {
		return nil, err
	}
	if opts.LOD == 0 {
		if err := crossBlocks(src, e); err != nil {
			return nil, err
		}
	}
	return b.Build(src.Metadata().Coord, opts.LOD, opts.Fingerprint), nil
}

// validate rejects sources with impossible dimensions or unregistered block types.
func validate(src BlockSource) error {
	w, h, d := src.Size()
	if w <= 0 || h <= 0 || d <= 0 {
		return &GeometryError{Face: block.NumFaces, Reason: fmt.Sprintf("invalid source size %dx%dx%d", w, h, d)}
	}
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			for z := 0; z < d; z++ {
				if t := src.Block(x, y, z); !t.Valid() {
					return &GeometryError{Face: block.NumFaces, Block: t, X: x, Y: y, Z: z, Reason: "unregistered block type"}
				}
			}
		}
	}
	return nil
}
