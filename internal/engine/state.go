package engine

import "fmt"

// State is the reconciliation state of a session.
//
//	idle --StartInitialBuffering / ResetAndCatchUp--> buffering
//	buffering --CatchUp--> fetching
//	fetching --(success or failure)--> live
//	live --ResetAndCatchUp--> buffering
//
// Reset and SetDialog return any state to idle.
type State int

const (
	StateIdle State = iota
	StateBuffering
	StateFetching
	StateLive
)

var stateNames = map[State]string{
	StateIdle:      "idle",
	StateBuffering: "buffering",
	StateFetching:  "fetching",
	StateLive:      "live",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText renders the state name for JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
