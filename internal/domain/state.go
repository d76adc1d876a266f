package domain

// EngineState is the trading engine lifecycle state.
type EngineState int

const (
	StateStopped EngineState = iota
	StateStarting
	StateRunning
	StateStopping
	StateError
)

func (s EngineState) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// CanTransition reports whether moving to next is a legal lifecycle step.
// The only legal ring is Stopped→Starting→Running→Stopping→Stopped;
// Error is reachable from any non-terminal state.
func (s EngineState) CanTransition(next EngineState) bool {
	if next == StateError {
		return s != StateStopped && s != StateError
	}
	switch s {
	case StateStopped:
		return next == StateStarting
	case StateStarting:
		return next == StateRunning
	case StateRunning:
		return next == StateStopping
	case StateStopping:
		return next == StateStopped
	default:
		return false
	}
}
