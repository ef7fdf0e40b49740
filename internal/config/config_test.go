package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutPath(t *testing.T) {
	t.Setenv(EnvPath, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesAndClamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meshpipe.yaml")
	data := []byte(`
world:
  height: 64
  render_distance: 99
pipeline:
  upload_budget: 0
  mesh_workers: 2
terrain:
  sea_level: 500
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.World.Height)
	assert.Equal(t, 50, cfg.World.RenderDistance)
	assert.Equal(t, 1, cfg.Pipeline.UploadBudget)
	assert.Equal(t, 2, cfg.Pipeline.MeshWorkers)
	assert.Equal(t, 63, cfg.Terrain.SeaLevel)
	// untouched keys keep their defaults
	assert.Equal(t, Default().Pipeline.MeshQueueSize, cfg.Pipeline.MeshQueueSize)
}

func TestLoadFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("world:\n  seed: 42\n"), 0o644))
	t.Setenv(EnvPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.World.Seed)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("world: [1, 2"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestClampRenderDistance(t *testing.T) {
	assert.Equal(t, 2, ClampRenderDistance(0))
	assert.Equal(t, 12, ClampRenderDistance(12))
	assert.Equal(t, 50, ClampRenderDistance(51))
}

func TestLODFor(t *testing.T) {
	p := Pipeline{LODDistances: []int{4, 8}}
	assert.Equal(t, 0, p.LODFor(0))
	assert.Equal(t, 0, p.LODFor(3))
	assert.Equal(t, 1, p.LODFor(4))
	assert.Equal(t, 2, p.LODFor(9))
}

func TestUnloadRadius(t *testing.T) {
	w := World{RenderDistance: 8, BorderDistance: 1, UnloadMargin: 2}
	assert.Equal(t, 11, w.UnloadRadius())
}
