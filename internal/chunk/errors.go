package chunk

import (
	"errors"
	"fmt"
)

var (
	ErrNotPresent   = errors.New("source state not present")
	ErrNotInGraph   = errors.New("transition not in graph")
	ErrIncompatible = errors.New("destination state cannot coexist with current set")
	ErrTerminal     = errors.New("chunk is unloaded")
	ErrInvalidState = errors.New("invalid state flag")
	ErrContention   = errors.New("state update lost too many compare-and-swap races")
	ErrUnsaved      = errors.New("chunk has unsaved modifications")
)

// TransitionError describes a rejected state mutation. It is an expected outcome of
// scheduling races, reported as a value and never escalated.
type TransitionError struct {
	Coord   Coord
	From    State
	To      State
	Current StateSet
	Err     error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("chunk %s: %s -> %s rejected in %s: %v", e.Coord, e.From, e.To, e.Current, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// ShouldRetry tells a scheduler whether a rejected mutation is worth retrying in the
// same pass. Only CAS contention qualifies; semantic rejections wait for the next pass.
func ShouldRetry(err error) bool {
	return errors.Is(err, ErrContention)
}
