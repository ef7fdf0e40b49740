package block

import "fmt"

// Type identifies a block kind stored in a chunk.
type Type uint16

const (
	Air Type = iota
	Stone
	Dirt
	Grass
	Sand
	Bedrock
	Leaves
	WaterSource
	WaterFlowing
	WaterFalling
	TallGrass
	Flower
	numTypes
)

// Shape selects the geometry generator for a block.
type Shape uint8

const (
	ShapeNone  Shape = iota // air, never meshed
	ShapeCube               // full cuboid, greedy-mergeable
	ShapeCross              // two diagonal double-sided quads
)

// Properties describes how a block participates in meshing.
type Properties struct {
	Name        string
	Shape       Shape
	Transparent bool
	AlphaTest   bool
	Fluid       Fluid
}

var registry = [numTypes]Properties{
	Air:          {Name: "air", Shape: ShapeNone, Transparent: true},
	Stone:        {Name: "stone", Shape: ShapeCube},
	Dirt:         {Name: "dirt", Shape: ShapeCube},
	Grass:        {Name: "grass", Shape: ShapeCube},
	Sand:         {Name: "sand", Shape: ShapeCube},
	Bedrock:      {Name: "bedrock", Shape: ShapeCube},
	Leaves:       {Name: "leaves", Shape: ShapeCube, AlphaTest: true},
	WaterSource:  {Name: "water_source", Shape: ShapeCube, Transparent: true, Fluid: Fluid{Kind: FluidSource, Level: 8}},
	WaterFlowing: {Name: "water_flowing", Shape: ShapeCube, Transparent: true, Fluid: Fluid{Kind: FluidFlowing, Level: 7}},
	WaterFalling: {Name: "water_falling", Shape: ShapeCube, Transparent: true, Fluid: Fluid{Kind: FluidFalling, Level: 8}},
	TallGrass:    {Name: "tall_grass", Shape: ShapeCross, Transparent: true, AlphaTest: true},
	Flower:       {Name: "flower", Shape: ShapeCross, Transparent: true, AlphaTest: true},
}

// Valid reports whether t is a registered block type.
func (t Type) Valid() bool {
	return t < numTypes
}

// Properties returns the registered properties of t. Unknown types report ShapeNone.
func (t Type) Properties() Properties {
	if !t.Valid() {
		return Properties{Name: "unknown"}
	}
	return registry[t]
}

// IsAir is shorthand for t == Air.
func (t Type) IsAir() bool {
	return t == Air
}

// Transparent reports whether faces behind this block stay visible.
func (t Type) Transparent() bool {
	return t.Properties().Transparent
}

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("block(%d)", uint16(t))
	}
	return registry[t].Name
}

// Count returns the number of registered block types.
func Count() int {
	return int(numTypes)
}
