package orchestrator

// AppState is the lifecycle state the orchestrator keeps per app id.
type AppState int

const (
	StateIdle AppState = iota
	StateStarting
	StateRunning
	StateStopping
	// StateFailed is left after a failed launch; the next launch starts over.
	StateFailed
)

func (s AppState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateFailed:
		return "Failed"
	default:
		return "Invalid"
	}
}

// stopPhase is one step of the graceful-then-forced shutdown sequence.
type stopPhase int

const (
	phaseGraceful stopPhase = iota
	phaseForced
)

func (p stopPhase) String() string {
	if p == phaseGraceful {
		return "graceful"
	}
	return "forced"
}
