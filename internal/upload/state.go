package upload

// State is a step of the upload state machine.
type State int

// Upload states. Failed is absorbing and reachable from every non-terminal
// state.
const (
	StateIdle State = iota
	StateInitializing
	StateUploading
	StateCompleting
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateInitializing: "initializing",
	StateUploading:    "uploading",
	StateCompleting:   "completing",
	StateDone:         "done",
	StateFailed:       "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}

	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
