package world

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meshpipe/internal/chunk"
	"meshpipe/internal/profiling"

	"go.uber.org/zap"
)

var (
	// ErrUnsafeUnload marks an unload aborted because dirty data could not be saved.
	ErrUnsafeUnload = errors.New("unload would lose unsaved chunk data")
	// ErrSaverUnavailable is the cause when a dirty chunk is unloaded without a saver.
	ErrSaverUnavailable = errors.New("no saver configured")
)

// UnloadError reports why a chunk stayed resident.
type UnloadError struct {
	Coord chunk.Coord
	Err   error
}

func (e *UnloadError) Error() string {
	return fmt.Sprintf("unload chunk %s: %v", e.Coord, e.Err)
}

func (e *UnloadError) Unwrap() error { return e.Err }

// ReleaseQueue hands GPU resources to the GPU thread for destruction.
type ReleaseQueue interface {
	Cancel(coord chunk.Coord) bool
	ScheduleRelease(coord chunk.Coord, done func())
}

// MeshDequeuer drops queued mesh builds.
type MeshDequeuer interface {
	Remove(coord chunk.Coord) bool
}

// MeshInvalidator drops cached meshes of a chunk.
type MeshInvalidator interface {
	InvalidateChunk(coord chunk.Coord) bool
}

// Unloader tears chunks down: save, dequeue, hand buffers to the GPU thread, drop.
type Unloader struct {
	store    *Store
	saver    Saver
	meshes   MeshDequeuer
	releases ReleaseQueue
	cache    MeshInvalidator
	stats    *profiling.Stats
	log      *zap.Logger
}

func NewUnloader(store *Store, saver Saver, meshes MeshDequeuer, releases ReleaseQueue, cache MeshInvalidator, stats *profiling.Stats, log *zap.Logger) *Unloader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Unloader{
		store:    store,
		saver:    saver,
		meshes:   meshes,
		releases: releases,
		cache:    cache,
		stats:    stats,
		log:      log.Named("unload"),
	}
}

// Save writes c's blocks if they changed since the last save. A concurrent edit
// after the snapshot keeps the chunk dirty.
func (u *Unloader) Save(ctx context.Context, c *chunk.Chunk) error {
	if !c.Dirty().IsDataDirty() && !c.State().HasState(chunk.DataModified) {
		return nil
	}
	if u.saver == nil {
		return ErrSaverUnavailable
	}
	start := time.Now()
	snap := c.Snapshot()
	if err := u.saver.SaveChunk(ctx, snap); err != nil {
		u.stats.RecordFailure(profiling.OpSerialization)
		return err
	}
	u.stats.Record(profiling.OpSerialization, time.Since(start))
	if !c.MarkSaved(snap.Stamp()) {
		return fmt.Errorf("chunk %s edited during save", c.Coord())
	}
	return nil
}

// Unload saves c when needed and starts its teardown. The chunk leaves the store
// once its GPU buffers are released on the GPU thread. A failed save aborts the
// unload and leaves the chunk resident and fully usable.
func (u *Unloader) Unload(ctx context.Context, c *chunk.Chunk) error {
	coord := c.Coord()
	sc := c.State()
	if sc.HasAnyState(chunk.Unloading, chunk.Unloaded) {
		return nil
	}
	if err := u.Save(ctx, c); err != nil {
		u.log.Warn("unload aborted, chunk stays resident", zap.Stringer("coord", coord), zap.Error(err))
		return &UnloadError{Coord: coord, Err: fmt.Errorf("%w: %w", ErrUnsafeUnload, err)}
	}

	if err := c.BeginUnload(); err != nil {
		// An edit slipped in after the save; the next pass will save again.
		return &UnloadError{Coord: coord, Err: err}
	}

	if u.meshes != nil {
		u.meshes.Remove(coord)
	}
	if u.cache != nil {
		u.cache.InvalidateChunk(coord)
	}
	if u.releases == nil {
		u.finish(c)
		return nil
	}
	if u.releases.Cancel(coord) {
		u.log.Debug("pending upload cancelled", zap.Stringer("coord", coord))
	}
	u.releases.ScheduleRelease(coord, func() { u.finish(c) })
	return nil
}

// finish runs once no GPU resource refers to c.
func (u *Unloader) finish(c *chunk.Chunk) {
	if !c.State().TransitionState(chunk.Unloading, chunk.Unloaded) {
		return
	}
	u.store.Remove(c)
}

// UnloadFar unloads every chunk outside radius of center and returns the errors of
// chunks that had to stay resident.
func (u *Unloader) UnloadFar(ctx context.Context, center chunk.Coord, radius int) (unloaded int, errs []error) {
	defer u.stats.Track("world.UnloadFar")()
	for _, c := range u.store.FarChunks(center, radius) {
		if c.State().HasAnyState(chunk.Unloading, chunk.Unloaded) {
			continue
		}
		if err := u.Unload(ctx, c); err != nil {
			errs = append(errs, err)
			continue
		}
		unloaded++
	}
	return unloaded, errs
}
