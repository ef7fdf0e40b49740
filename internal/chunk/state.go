package chunk

import "strings"

// State is a single lifecycle flag. Empty is not stored; it is present exactly
// when a set carries no flags at all.
type State uint8

const (
	Empty State = iota
	Created
	BlocksPopulated
	FeaturesPopulated
	MeshDirty
	MeshGenerating
	MeshCPUReady
	MeshGPUUploaded
	Ready
	Active
	DataModified
	Unloading
	Unloaded
	numStates
)

var stateNames = [numStates]string{
	Empty:             "EMPTY",
	Created:           "CREATED",
	BlocksPopulated:   "BLOCKS_POPULATED",
	FeaturesPopulated: "FEATURES_POPULATED",
	MeshDirty:         "MESH_DIRTY",
	MeshGenerating:    "MESH_GENERATING",
	MeshCPUReady:      "MESH_CPU_READY",
	MeshGPUUploaded:   "MESH_GPU_UPLOADED",
	Ready:             "READY",
	Active:            "ACTIVE",
	DataModified:      "DATA_MODIFIED",
	Unloading:         "UNLOADING",
	Unloaded:          "UNLOADED",
}

func (s State) String() string {
	if s >= numStates {
		return "INVALID"
	}
	return stateNames[s]
}

// Valid reports whether s is a known flag.
func (s State) Valid() bool {
	return s < numStates
}

// AllStates lists every flag in declaration order.
func AllStates() []State {
	out := make([]State, 0, numStates)
	for s := Empty; s < numStates; s++ {
		out = append(out, s)
	}
	return out
}

func (s State) bit() StateSet {
	if s == Empty || s >= numStates {
		return 0
	}
	return 1 << s
}

// StateSet is an immutable bitmask of flags.
type StateSet uint32

const (
	meshPhaseMask = StateSet(1<<MeshDirty | 1<<MeshGenerating | 1<<MeshCPUReady | 1<<MeshGPUUploaded)
	renderMask    = StateSet(1<<MeshGPUUploaded | 1<<MeshGenerating | 1<<MeshCPUReady)
)

// SetOf builds a set from flags. Empty contributes nothing.
func SetOf(states ...State) StateSet {
	var s StateSet
	for _, st := range states {
		s |= st.bit()
	}
	return s
}

// Has reports whether st is present. Has(Empty) is true only for the zero set.
func (s StateSet) Has(st State) bool {
	if st == Empty {
		return s == 0
	}
	return s&st.bit() != 0
}

// HasAny reports whether at least one of states is present.
func (s StateSet) HasAny(states ...State) bool {
	for _, st := range states {
		if s.Has(st) {
			return true
		}
	}
	return false
}

// HasAll reports whether every one of states is present.
func (s StateSet) HasAll(states ...State) bool {
	for _, st := range states {
		if !s.Has(st) {
			return false
		}
	}
	return true
}

func (s StateSet) with(st State) StateSet    { return s | st.bit() }
func (s StateSet) without(st State) StateSet { return s &^ st.bit() }

// States returns the flags in declaration order, or [Empty] for the zero set.
func (s StateSet) States() []State {
	if s == 0 {
		return []State{Empty}
	}
	out := make([]State, 0, 4)
	for st := Created; st < numStates; st++ {
		if s.Has(st) {
			out = append(out, st)
		}
	}
	return out
}

// Lifecycle returns the set without the orthogonal DataModified marker.
func (s StateSet) Lifecycle() StateSet {
	return s.without(DataModified)
}

// MeshPhase returns the single mesh-phase flag present, if any.
func (s StateSet) MeshPhase() (State, bool) {
	for _, st := range []State{MeshDirty, MeshGenerating, MeshCPUReady, MeshGPUUploaded} {
		if s.Has(st) {
			return st, true
		}
	}
	return Empty, false
}

// IsRenderable: a mesh (possibly stale) is available and the chunk is not going away.
func (s StateSet) IsRenderable() bool {
	return s&renderMask != 0 && !s.Has(Unloading) && !s.Has(Unloaded)
}

// IsReadyForUpload: a fresh CPU mesh exists and nothing newer is building.
func (s StateSet) IsReadyForUpload() bool {
	return s.Has(MeshCPUReady) && !s.Has(MeshGenerating) && !s.Has(Unloading) && !s.Has(Unloaded)
}

func (s StateSet) String() string {
	states := s.States()
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = st.String()
	}
	return "{" + strings.Join(names, "|") + "}"
}

// HasBlocks reports whether block data has been populated and is still owned by the
// chunk, so neighbours may sample it.
func (s StateSet) HasBlocks() bool {
	lc := s.Lifecycle()
	return lc != 0 && !lc.HasAny(Created, Unloading, Unloaded)
}

// HasMesh reports whether a mesh was produced at some point and is not being torn
// down. Unlike IsRenderable it includes Ready and Active.
func (s StateSet) HasMesh() bool {
	return s.IsRenderable() || (s.HasAny(Ready, Active) && !s.HasAny(Unloading, Unloaded))
}
