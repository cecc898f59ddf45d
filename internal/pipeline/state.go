package pipeline

import "fmt"

// State is the single current position of one submission flow. There is one
// current value, never a set of flags, so combinations like "uploading" and
// "done" at once cannot be represented.
type State int

const (
	StateIdle State = iota
	StateExtracting
	StateValidating
	StateUploading
	StateSubmitting
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExtracting:
		return "extracting"
	case StateValidating:
		return "validating"
	case StateUploading:
		return "uploading"
	case StateSubmitting:
		return "submitting"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions lists every legal move. Reset is the only way out of done and
// error, and any state may Reset back to idle.
var transitions = map[State][]State{
	StateIdle:       {StateExtracting, StateValidating},
	StateExtracting: {StateIdle, StateError},
	StateValidating: {StateUploading, StateSubmitting, StateError},
	StateUploading:  {StateSubmitting, StateError},
	StateSubmitting: {StateDone, StateError},
	StateDone:       {},
	StateError:      {},
}

func canTransition(from, to State) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
