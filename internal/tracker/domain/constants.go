package domain

// State is the lifecycle state of a video job
type State string

// Job state constants
const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Progress milestones reported while a job is driven
const (
	ProgressQueued    = 0
	ProgressSubmitted = 25
	ProgressDone      = 100
)

// IsTerminal reports whether no further transitions can happen from s
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// rank orders states along the only allowed path.
func (s State) rank() int {
	switch s {
	case StatePending:
		return 0
	case StateProcessing:
		return 1
	case StateCompleted, StateFailed:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether moving from s to next keeps the lifecycle monotonic
func (s State) CanTransition(next State) bool {
	if s.IsTerminal() {
		return false
	}
	return next.rank() >= s.rank() && next.rank() >= 0
}
