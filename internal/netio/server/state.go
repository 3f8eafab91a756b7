package server

// LifecycleState is the server's coarse-grained state machine, per
// spec.md §4.8: Initializing -> Loading -> Ready -> Running.
type LifecycleState uint8

const (
	Initializing LifecycleState = iota
	Loading
	Ready
	Running
)

func (s LifecycleState) String() string {
	switch s {
	case Initializing:
		return "Initializing"
	case Loading:
		return "Loading"
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	default:
		return "Unknown"
	}
}

// validTransitions encodes the only state changes advance permits.
var validTransitions = map[LifecycleState][]LifecycleState{
	Initializing: {Loading},
	Loading:      {Ready},
	Ready:        {Running},
	Running:      {},
}

func canTransition(from, to LifecycleState) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
