package core

// State is the orchestrator's position in a run. It only moves forward:
// a tool call from an earlier phase leaves it where it is, and after
// normalization every tool but normalization itself is refused.
type State int

const (
	StateIdle State = iota
	StateSearching
	StateFetching
	StateExtracting
	StateNormalizing
	StateDone
	StateEmptyResult
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearching:
		return "searching"
	case StateFetching:
		return "fetching"
	case StateExtracting:
		return "extracting"
	case StateNormalizing:
		return "normalizing"
	case StateDone:
		return "done"
	case StateEmptyResult:
		return "empty_result"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateEmptyResult
}
