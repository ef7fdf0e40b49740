package chunk

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// maxCASRetries bounds the read-compute-swap loop. Losing this many races in a row
// surfaces ErrContention instead of spinning.
const maxCASRetries = 64

// StateContainer is the lock-free lifecycle state of one chunk. Every mutation is a
// compare-and-swap over an immutable bitmask snapshot.
type StateContainer struct {
	coord Coord
	bits  atomic.Uint32
	dirty DirtyTracker
	log   *zap.Logger
}

// NewStateContainer returns a container in the Empty state.
func NewStateContainer(coord Coord, log *zap.Logger) *StateContainer {
	if log == nil {
		log = zap.NewNop()
	}
	return &StateContainer{coord: coord, log: log}
}

// Dirty exposes the owned dirty tracker.
func (sc *StateContainer) Dirty() *DirtyTracker { return &sc.dirty }

// CurrentStates returns an immutable snapshot.
func (sc *StateContainer) CurrentStates() StateSet {
	return StateSet(sc.bits.Load())
}

func (sc *StateContainer) HasState(st State) bool { return sc.CurrentStates().Has(st) }

func (sc *StateContainer) HasAnyState(states ...State) bool {
	return sc.CurrentStates().HasAny(states...)
}

func (sc *StateContainer) HasAllStates(states ...State) bool {
	return sc.CurrentStates().HasAll(states...)
}

func (sc *StateContainer) IsRenderable() bool { return sc.CurrentStates().IsRenderable() }
func (sc *StateContainer) IsReadyForUpload() bool { return sc.CurrentStates().IsReadyForUpload() }
func (sc *StateContainer) IsUnloaded() bool { return sc.CurrentStates().Has(Unloaded) }

// TransitionState replaces from with to. It fails without side effects when from is
// absent, the edge is not in the graph, or to cannot coexist with the rest of the set.
// Rejections are logged.
func (sc *StateContainer) TransitionState(from, to State) bool {
	err := sc.TryTransition(from, to)
	if err != nil {
		sc.reject(err)
		return false
	}
	return true
}

// TryTransition is TransitionState without logging; the error says why it was rejected.
func (sc *StateContainer) TryTransition(from, to State) error {
	return sc.update(from, to, func(cur StateSet) (StateSet, error) {
		if cur.Has(Unloaded) {
			return 0, ErrTerminal
		}
		present := cur.Has(from)
		if from == Empty {
			present = cur.Lifecycle() == 0
		}
		if !present {
			return 0, ErrNotPresent
		}
		if !CanTransition(from, to) {
			return 0, ErrNotInGraph
		}
		remaining := cur.without(from)
		if err := admit(remaining, to); err != nil {
			return 0, err
		}
		return remaining.with(to), nil
	})
}

// AddState adds a flag outside the linear transition chain (DataModified, mostly).
// It still passes the coexistence check.
func (sc *StateContainer) AddState(st State) bool {
	err := sc.TryAdd(st)
	if err != nil {
		sc.reject(err)
		return false
	}
	return true
}

// TryAdd is AddState without logging.
func (sc *StateContainer) TryAdd(st State) error {
	return sc.update(Empty, st, func(cur StateSet) (StateSet, error) {
		if cur.Has(Unloaded) {
			return 0, ErrTerminal
		}
		if st == Unloaded {
			return 0, ErrNotInGraph
		}
		if cur.Has(st) {
			return cur, nil
		}
		if err := admit(cur, st); err != nil {
			return 0, err
		}
		return cur.with(st), nil
	})
}

// RemoveState drops a flag. Removing an absent flag or touching an unloaded chunk fails.
func (sc *StateContainer) RemoveState(st State) bool {
	err := sc.update(st, Empty, func(cur StateSet) (StateSet, error) {
		if cur.Has(Unloaded) {
			return 0, ErrTerminal
		}
		if st == Empty || !st.Valid() {
			return 0, ErrInvalidState
		}
		if !cur.Has(st) {
			return 0, ErrNotPresent
		}
		return cur.without(st), nil
	})
	if err != nil {
		sc.reject(err)
		return false
	}
	return true
}

func (sc *StateContainer) update(from, to State, next func(StateSet) (StateSet, error)) error {
	for i := 0; i < maxCASRetries; i++ {
		old := sc.bits.Load()
		cand, err := next(StateSet(old))
		if err != nil {
			return &TransitionError{Coord: sc.coord, From: from, To: to, Current: StateSet(old), Err: err}
		}
		if uint32(cand) == old || sc.bits.CompareAndSwap(old, uint32(cand)) {
			return nil
		}
	}
	return &TransitionError{Coord: sc.coord, From: from, To: to, Current: sc.CurrentStates(), Err: ErrContention}
}

func (sc *StateContainer) reject(err error) {
	te, ok := err.(*TransitionError)
	if !ok {
		sc.log.Warn("state mutation rejected", zap.Stringer("coord", sc.coord), zap.Error(err))
		return
	}
	sc.log.Warn("state transition rejected",
		zap.Stringer("coord", te.Coord),
		zap.Stringer("from", te.From),
		zap.Stringer("attempted", te.To),
		zap.Stringer("current", te.Current),
		zap.Error(te.Err))
}

// MarkMeshDirty moves whatever mesh-relevant state the chunk is in to MeshDirty and
// flags the dirty tracker. It reports false when the chunk is not meshable yet
// (Empty/Created) or is unloading.
func (sc *StateContainer) MarkMeshDirty() bool {
	for i := 0; i < maxCASRetries; i++ {
		cur := sc.CurrentStates()
		if cur.Has(MeshDirty) {
			sc.dirty.MarkMeshDirty()
			return true
		}
		from, ok := sc.remeshSource(cur)
		if !ok {
			return false
		}
		err := sc.TryTransition(from, MeshDirty)
		if err == nil {
			sc.dirty.MarkMeshDirty()
			return true
		}
		if !ChangedUnder(err, cur) {
			sc.reject(err)
			return false
		}
	}
	sc.reject(&TransitionError{Coord: sc.coord, From: Empty, To: MeshDirty, Current: sc.CurrentStates(), Err: ErrContention})
	return false
}

func (sc *StateContainer) remeshSource(cur StateSet) (State, bool) {
	for _, st := range meshDirtySources {
		if cur.Has(st) {
			return st, true
		}
	}
	return Empty, false
}

var meshDirtySources = Predecessors(MeshDirty)

// ChangedUnder reports whether a rejection happened against a different set than the
// caller observed, meaning another writer got there first and a re-read may succeed.
func ChangedUnder(err error, observed StateSet) bool {
	te, ok := err.(*TransitionError)
	if !ok {
		return false
	}
	return te.Current != observed || te.Err == ErrContention
}

// LifecycleState returns the single non-orthogonal flag of the current set, or Empty.
func (sc *StateContainer) LifecycleState() State {
	states := sc.CurrentStates().Lifecycle().States()
	return states[0]
}
