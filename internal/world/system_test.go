package world

import (
	"context"
	"testing"
	"time"

	"meshpipe/internal/block"
	"meshpipe/internal/chunk"
	"meshpipe/internal/config"
	"meshpipe/internal/gpu/gputest"
	"meshpipe/internal/profiling"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.World.Height = testHeight
	cfg.World.RenderDistance = 2
	cfg.World.BorderDistance = 1
	cfg.World.UnloadMargin = 0
	cfg.Pipeline.GenerationWorkers = 2
	cfg.Pipeline.MeshWorkers = 2
	cfg.Pipeline.UploadBudget = 4
	cfg.Pipeline.LODDistances = nil
	return cfg
}

func newTestSystem(t *testing.T) (*System, *gputest.Device, *memSaver) {
	t.Helper()
	dev := gputest.NewDevice()
	saver := newMemSaver()
	sys, err := NewSystem(testConfig(), Deps{Device: dev, Generator: &flatGen{}, Saver: saver})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Close(context.Background()) })
	return sys, dev, saver
}

// settle runs frames until every chunk within render distance is drawn from an
// up-to-date mesh.
func settle(t *testing.T, sys *System, focus chunk.Coord) {
	t.Helper()
	ctx := context.Background()
	rd := sys.Config().World.RenderDistance
	want := (2*rd + 1) * (2*rd + 1)
	require.Eventually(t, func() bool {
		sys.Update(ctx, focus)
		sys.ProcessFrame()
		if len(sys.Renderables()) != want {
			return false
		}
		for _, c := range sys.Store().AppendInRadius(focus, rd, nil) {
			if !c.State().HasAnyState(chunk.Ready, chunk.Active) {
				return false
			}
		}
		return true
	}, 10*time.Second, 2*time.Millisecond)
}

func TestNewSystemRequiresDeps(t *testing.T) {
	_, err := NewSystem(nil, Deps{Generator: &flatGen{}})
	assert.Error(t, err)
	_, err = NewSystem(nil, Deps{Device: gputest.NewDevice()})
	assert.Error(t, err)
}

func TestSystemStreamsMeshesAndUploads(t *testing.T) {
	sys, dev, _ := newTestSystem(t)
	settle(t, sys, chunk.Coord{})

	require.Eventually(t, func() bool {
		sys.Update(context.Background(), chunk.Coord{})
		return sys.Store().Len() == 25+24
	}, 10*time.Second, 2*time.Millisecond, "render square plus one border ring")
	border, ok := sys.Store().Get(chunk.Coord{X: 3})
	require.True(t, ok)
	assert.True(t, border.State().HasState(chunk.FeaturesPopulated), "border chunks stay unmeshed")
	_, resident := sys.Uploader().Resident(chunk.Coord{X: 3})
	assert.False(t, resident)

	center, _ := sys.Store().Get(chunk.Coord{})
	assert.True(t, center.State().HasState(chunk.Active))
	assert.Greater(t, dev.Uploads(), 0)

	handles := sys.Renderables()
	assert.Equal(t, chunk.Coord{}, handles[0].Coord, "nearest first")
	assert.NotZero(t, handles[0].IndexCount)
}

func TestSystemBorderEditRemeshesNeighbour(t *testing.T) {
	sys, _, _ := newTestSystem(t)
	settle(t, sys, chunk.Coord{})

	west, _ := sys.Store().Get(chunk.Coord{X: -1})
	before, ok := sys.Uploader().Resident(west.Coord())
	require.True(t, ok)

	// Removing the grass at the west edge of (0,0) exposes a face of (-1,0).
	require.NoError(t, sys.SetBlock(0, 2, 5, block.Air))
	got, err := sys.Block(0, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, block.Air, got)

	settle(t, sys, chunk.Coord{})
	after, ok := sys.Uploader().Resident(west.Coord())
	require.True(t, ok)
	assert.NotEqual(t, before.Fingerprint, after.Fingerprint)
	assert.Greater(t, after.IndexCount, before.IndexCount)
}

func TestSystemBlockAccessOutsideWorld(t *testing.T) {
	sys, _, _ := newTestSystem(t)
	_, err := sys.Block(1000, 0, 1000)
	assert.ErrorIs(t, err, ErrChunkNotLoaded)
	assert.ErrorIs(t, sys.SetBlock(1000, 0, 1000, block.Stone), ErrChunkNotLoaded)
}

func TestSystemUnloadsAndRestoresEdits(t *testing.T) {
	sys, _, saver := newTestSystem(t)
	settle(t, sys, chunk.Coord{})
	require.NoError(t, sys.SetBlock(5, 3, 5, block.Sand))

	far := chunk.Coord{X: 40}
	require.Eventually(t, func() bool {
		sys.Update(context.Background(), far)
		sys.ProcessFrame()
		return !sys.Store().Has(chunk.Coord{})
	}, 10*time.Second, 2*time.Millisecond)

	blocks, _ := saver.saved(chunk.Coord{})
	require.NotNil(t, blocks, "edited chunk was saved before unloading")
	_, resident := sys.Uploader().Resident(chunk.Coord{})
	assert.False(t, resident)

	settle(t, sys, chunk.Coord{})
	got, err := sys.Block(5, 3, 5)
	require.NoError(t, err)
	assert.Equal(t, block.Sand, got)
}

func TestSystemCloseSavesEdits(t *testing.T) {
	dev := gputest.NewDevice()
	saver := newMemSaver()
	sys, err := NewSystem(testConfig(), Deps{Device: dev, Generator: &flatGen{}, Saver: saver})
	require.NoError(t, err)
	settle(t, sys, chunk.Coord{})
	require.NoError(t, sys.SetBlock(1, 3, 1, block.Dirt))

	require.NoError(t, sys.Close(context.Background()))
	_, saves := saver.saved(chunk.Coord{})
	assert.Equal(t, 1, saves)
	assert.Zero(t, dev.Live(), "every buffer destroyed on close")
	assert.Zero(t, sys.Stats().Snapshot().Ops[profiling.OpBlockWrite].Failures)
}

func TestIdleFramesLogNoRejections(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sys, err := NewSystem(testConfig(), Deps{
		Device:    gputest.NewDevice(),
		Generator: &flatGen{},
		Saver:     newMemSaver(),
		Logger:    zap.New(core),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Close(context.Background()) })

	ctx := context.Background()
	settle(t, sys, chunk.Coord{})
	require.Eventually(t, func() bool {
		sys.Update(ctx, chunk.Coord{})
		return sys.Store().Len() == 25+24 && sys.Streamer().Pending() == 0
	}, 10*time.Second, 2*time.Millisecond)
	settle(t, sys, chunk.Coord{})
	logs.TakeAll()

	for i := 0; i < 10; i++ {
		res := sys.Update(ctx, chunk.Coord{})
		require.Empty(t, res.Errors)
		sys.ProcessFrame()
	}
	assert.Zero(t, logs.FilterMessage("state transition rejected").Len())
	assert.Empty(t, logs.TakeAll(), "idle frames should stay quiet at warn level")
}
