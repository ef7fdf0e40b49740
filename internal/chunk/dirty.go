package chunk

import "sync/atomic"

// DirtyTracker holds the two independent dirty markers of a chunk.
type DirtyTracker struct {
	data atomic.Bool
	mesh atomic.Bool
}

// MarkDataDirty flags unsaved block edits.
func (d *DirtyTracker) MarkDataDirty() { d.data.Store(true) }

// MarkMeshDirty flags stale geometry.
func (d *DirtyTracker) MarkMeshDirty() { d.mesh.Store(true) }

// ClearDataDirty is called after a successful save.
func (d *DirtyTracker) ClearDataDirty() { d.data.Store(false) }

// ClearMeshDirty is called after a successful upload.
func (d *DirtyTracker) ClearMeshDirty() { d.mesh.Store(false) }

func (d *DirtyTracker) IsDataDirty() bool { return d.data.Load() }
func (d *DirtyTracker) IsMeshDirty() bool { return d.mesh.Load() }
