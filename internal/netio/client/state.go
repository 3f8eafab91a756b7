package client

// ConnectionState is the client's coarse-grained state machine, per
// spec.md §4.10: Disconnected -> Connecting -> Connected -> Playing, with
// a Reconnecting branch that can be entered from Connected or Playing and
// returns either to Connected or back to Disconnected.
type ConnectionState uint8

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Playing
	Reconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Playing:
		return "Playing"
	case Reconnecting:
		return "Reconnecting"
	default:
		return "Unknown"
	}
}

// TimeoutLevel classifies how stale the connection's last-seen traffic is,
// per spec.md §4.10's UI escalation thresholds.
type TimeoutLevel uint8

const (
	TimeoutNone TimeoutLevel = iota
	TimeoutIndicator
	TimeoutBanner
	TimeoutFullUI
)

func (l TimeoutLevel) String() string {
	switch l {
	case TimeoutNone:
		return "None"
	case TimeoutIndicator:
		return "Indicator"
	case TimeoutBanner:
		return "Banner"
	case TimeoutFullUI:
		return "FullUI"
	default:
		return "Unknown"
	}
}

// PendingActionState is where a tracked Input sits in its lifecycle, per
// spec.md:140's pending-action tracker.
type PendingActionState uint8

const (
	ActionPending PendingActionState = iota
	ActionConfirmed
	ActionRejected
	ActionTimedOut
)

func (s PendingActionState) String() string {
	switch s {
	case ActionPending:
		return "Pending"
	case ActionConfirmed:
		return "Confirmed"
	case ActionRejected:
		return "Rejected"
	case ActionTimedOut:
		return "TimedOut"
	default:
		return "Unknown"
	}
}

// resolved reports whether s is a terminal state eligible for retention-window eviction.
func (s PendingActionState) resolved() bool {
	return s == ActionConfirmed || s == ActionRejected || s == ActionTimedOut
}

var validTransitions = map[ConnectionState][]ConnectionState{
	Disconnected: {Connecting},
	Connecting:   {Connected, Disconnected},
	Connected:    {Playing, Reconnecting, Disconnected},
	Playing:      {Reconnecting, Disconnected},
	Reconnecting: {Connected, Disconnected},
}

func canTransition(from, to ConnectionState) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
