package config

// Terrain holds the demo generator settings.
type Terrain struct {
	SeaLevel   int     `yaml:"sea_level"`
	BaseHeight int     `yaml:"base_height"`
	Amplitude  float64 `yaml:"amplitude"`
	Scale      float64 `yaml:"scale"` // blocks per noise unit
	Features   bool    `yaml:"features"`
	TreeChance float64 `yaml:"tree_chance"`
}

func DefaultTerrain() Terrain {
	return Terrain{
		SeaLevel:   40,
		BaseHeight: 44,
		Amplitude:  14,
		Scale:      48,
		Features:   true,
		TreeChance: 0.01,
	}
}

func (t *Terrain) normalize(height int) {
	if t.Scale <= 0 {
		t.Scale = 48
	}
	if t.Amplitude < 0 {
		t.Amplitude = 0
	}
	t.SeaLevel = min(max(t.SeaLevel, 1), height-1)
	t.BaseHeight = min(max(t.BaseHeight, 1), height-1)
	t.TreeChance = min(max(t.TreeChance, 0), 1)
}
