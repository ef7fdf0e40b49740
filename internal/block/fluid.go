package block

// FluidKind discriminates the water variants.
type FluidKind uint8

const (
	FluidNone FluidKind = iota
	FluidSource
	FluidFlowing
	FluidFalling
)

func (k FluidKind) String() string {
	switch k {
	case FluidSource:
		return "source"
	case FluidFlowing:
		return "flowing"
	case FluidFalling:
		return "falling"
	default:
		return "none"
	}
}

// Fluid is the tagged fluid state of a block. Level is 1..8, 8 being a full block.
type Fluid struct {
	Kind  FluidKind
	Level uint8
}

// IsFluid reports whether the block carries any fluid variant.
func (f Fluid) IsFluid() bool {
	return f.Kind != FluidNone
}

// SurfaceHeight is the top of the fluid column inside its cell, in block units.
func (f Fluid) SurfaceHeight() float32 {
	switch f.Kind {
	case FluidSource:
		return 0.875
	case FluidFlowing:
		return float32(f.Level) / 9
	case FluidFalling:
		return 1
	default:
		return 0
	}
}

// SameBody reports whether two blocks belong to one contiguous fluid body, so the
// face between them is hidden regardless of variant.
func SameBody(a, b Type) bool {
	return a.Properties().Fluid.IsFluid() && b.Properties().Fluid.IsFluid()
}
