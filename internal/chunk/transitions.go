package chunk

// transitionGraph is the static from -> {to} validity table.
var transitionGraph = [numStates]StateSet{
	Empty:             SetOf(Created, Unloading),
	Created:           SetOf(BlocksPopulated, Unloading),
	BlocksPopulated:   SetOf(FeaturesPopulated, MeshDirty, Unloading),
	FeaturesPopulated: SetOf(MeshDirty, Unloading),
	MeshDirty:         SetOf(MeshGenerating, Unloading),
	MeshGenerating:    SetOf(MeshCPUReady, MeshDirty, Unloading),
	MeshCPUReady:      SetOf(MeshGPUUploaded, MeshDirty, Unloading),
	MeshGPUUploaded:   SetOf(Ready, MeshDirty, Unloading),
	Ready:             SetOf(Active, MeshDirty, Unloading),
	Active:            SetOf(Ready, MeshDirty, Unloading),
	Unloading:         SetOf(Unloaded),
	Unloaded:          0,
}

// CanTransition reports whether from -> to is an edge of the transition graph.
func CanTransition(from, to State) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	return transitionGraph[from].Has(to) && to != Empty
}

// Successors returns the valid destinations of from.
func Successors(from State) []State {
	if !from.Valid() || transitionGraph[from] == 0 {
		return nil
	}
	return transitionGraph[from].States()
}

// Predecessors returns every state with an edge into to.
func Predecessors(to State) []State {
	var out []State
	for from := Empty; from < numStates; from++ {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// admit checks whether to may join remaining (the set after removing the source flag).
func admit(remaining StateSet, to State) error {
	switch {
	case !to.Valid() || to == Empty:
		return ErrInvalidState
	case remaining.Has(Unloaded):
		return ErrTerminal
	case remaining.Has(Unloading):
		return ErrIncompatible
	case to == Unloading && remaining != 0:
		return ErrIncompatible
	case to == Unloaded:
		// Only reachable by transition out of Unloading.
		if remaining != 0 {
			return ErrIncompatible
		}
	case to.bit()&meshPhaseMask != 0 && remaining&meshPhaseMask != 0:
		return ErrIncompatible
	}
	return nil
}
