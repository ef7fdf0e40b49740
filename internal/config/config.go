package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable consulted when Load gets an empty path.
const EnvPath = "MESHPIPE_CONFIG"

// Config is the root of the YAML configuration.
type Config struct {
	World    World    `yaml:"world"`
	Terrain  Terrain  `yaml:"terrain"`
	Pipeline Pipeline `yaml:"pipeline"`
	Logging  Logging  `yaml:"logging"`
	Metrics  Metrics  `yaml:"metrics"`
	Storage  Storage  `yaml:"storage"`
}

// World sizes the loaded region around the focus point.
type World struct {
	Height         int   `yaml:"height"`
	Seed           int64 `yaml:"seed"`
	RenderDistance int   `yaml:"render_distance"` // in chunks
	BorderDistance int   `yaml:"border_distance"` // generated but unmeshed rings beyond render distance
	UnloadMargin   int   `yaml:"unload_margin"`   // extra rings kept before unloading
}

// Pipeline tunes the workers and the GPU upload budget.
type Pipeline struct {
	GenerationWorkers int   `yaml:"generation_workers"`
	MeshWorkers       int   `yaml:"mesh_workers"`
	MeshQueueSize     int   `yaml:"mesh_queue_size"`
	MaxPending        int   `yaml:"max_pending"`
	MaxJobsPerCall    int   `yaml:"max_jobs_per_call"`
	UploadBudget      int   `yaml:"upload_budget"` // uploads drained per frame
	MaxFreeBuffers    int   `yaml:"max_free_buffers"`
	DisableGreedy     bool  `yaml:"disable_greedy"`
	LODDistances      []int `yaml:"lod_distances"` // chunk distance at which each LOD above 0 starts
}

type Logging struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Metrics struct {
	Addr string `yaml:"addr"` // empty disables the /metrics endpoint
}

type Storage struct {
	Path string `yaml:"path"` // empty keeps the save database in memory
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		World: World{
			Height:         128,
			Seed:           1,
			RenderDistance: 8,
			BorderDistance: 1,
			UnloadMargin:   2,
		},
		Terrain: DefaultTerrain(),
		Pipeline: Pipeline{
			GenerationWorkers: 4,
			MeshWorkers:       4,
			MeshQueueSize:     1024,
			MaxPending:        4096,
			MaxJobsPerCall:    256,
			UploadBudget:      8,
			MaxFreeBuffers:    16,
			LODDistances:      []int{12, 20},
		},
		Logging: Logging{Level: "info"},
		Metrics: Metrics{Addr: ":2112"},
	}
}

// Load reads a YAML file over the defaults. An empty path falls back to
// $MESHPIPE_CONFIG; if that is unset too the defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Normalize clamps values into workable ranges.
func (c *Config) Normalize() {
	c.World.RenderDistance = ClampRenderDistance(c.World.RenderDistance)
	if c.World.Height <= 0 {
		c.World.Height = 128
	}
	c.World.BorderDistance = max(c.World.BorderDistance, 1)
	c.World.UnloadMargin = max(c.World.UnloadMargin, 0)

	p := &c.Pipeline
	p.GenerationWorkers = max(p.GenerationWorkers, 1)
	p.MeshWorkers = max(p.MeshWorkers, 1)
	p.MeshQueueSize = max(p.MeshQueueSize, 1)
	p.MaxPending = max(p.MaxPending, 1)
	p.MaxJobsPerCall = max(p.MaxJobsPerCall, 1)
	p.UploadBudget = max(p.UploadBudget, 1)
	p.MaxFreeBuffers = max(p.MaxFreeBuffers, 0)

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = envAddr("MESHPIPE_METRICS_PORT")
	}
	c.Terrain.normalize(c.World.Height)
}

// ClampRenderDistance keeps the render distance between 2 and 50 chunks.
func ClampRenderDistance(distance int) int {
	if distance < 2 {
		distance = 2
	}
	if distance > 50 {
		distance = 50
	}
	return distance
}

// UnloadRadius is the ring beyond which chunks are unloaded.
func (w World) UnloadRadius() int {
	return w.RenderDistance + w.BorderDistance + w.UnloadMargin
}

// LODFor picks the level of detail for a chunk at the given ring distance.
func (p Pipeline) LODFor(distance int) int {
	lod := 0
	for i, d := range p.LODDistances {
		if distance >= d {
			lod = i + 1
		}
	}
	return lod
}

func envAddr(envVar string) string {
	if v := os.Getenv(envVar); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			return ":" + v
		}
	}
	return ""
}
