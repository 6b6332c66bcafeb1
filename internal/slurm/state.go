package slurm

import "strings"

// JobState is a Slurm job lifecycle state.
type JobState string

const (
	StatePending     JobState = "PENDING"
	StatePendingHeld JobState = "PENDING_HELD"
	StateRunning     JobState = "RUNNING"
	StateCompleting  JobState = "COMPLETING"
	StateSuspended   JobState = "SUSPENDED"
	StateCompleted   JobState = "COMPLETED"
	StateFailed      JobState = "FAILED"
	StateTimeout     JobState = "TIMEOUT"
	StateCancelled   JobState = "CANCELLED"
	StateNodeFail    JobState = "NODE_FAIL"
	StatePreempted   JobState = "PREEMPTED"
	StateOutOfMemory JobState = "OUT_OF_MEMORY"
	StateUnknown     JobState = "UNKNOWN"
)

// Category groups states for notification purposes.
type Category int

const (
	NonTerminal Category = iota
	TerminalSuccess
	TerminalFailure
)

// String returns a human-readable category name.
func (c Category) String() string {
	switch c {
	case TerminalSuccess:
		return "terminal-success"
	case TerminalFailure:
		return "terminal-failure"
	default:
		return "non-terminal"
	}
}

var knownStates = map[JobState]bool{
	StatePending:     true,
	StatePendingHeld: true,
	StateRunning:     true,
	StateCompleting:  true,
	StateSuspended:   true,
	StateCompleted:   true,
	StateFailed:      true,
	StateTimeout:     true,
	StateCancelled:   true,
	StateNodeFail:    true,
	StatePreempted:   true,
	StateOutOfMemory: true,
	StateUnknown:     true,
}

// ParseState normalizes the text Slurm tools print for a job state.
// squeue may append qualifiers ("CANCELLED by 1000") and the simulator
// reports held jobs as "PENDING (Held)".
func ParseState(raw string) JobState {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return StateUnknown
	}
	if strings.HasPrefix(s, "PENDING") && strings.Contains(s, "HELD") {
		return StatePendingHeld
	}
	if i := strings.IndexAny(s, " +("); i > 0 {
		s = s[:i]
	}
	st := JobState(s)
	if knownStates[st] {
		return st
	}
	return StateUnknown
}

// Category classifies the state. CANCELLED is user initiated and counts
// as non-terminal.
func (s JobState) Category() Category {
	switch s {
	case StateCompleted:
		return TerminalSuccess
	case StateFailed, StateTimeout, StateNodeFail, StateOutOfMemory:
		return TerminalFailure
	default:
		return NonTerminal
	}
}

// IsTerminal reports whether no further transition is expected.
func (s JobState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimeout, StateCancelled,
		StateNodeFail, StatePreempted, StateOutOfMemory:
		return true
	}
	return false
}

// Display returns the label shown in tables.
func (s JobState) Display() string {
	if s == StatePendingHeld {
		return "PENDING (Held)"
	}
	return string(s)
}

// String implements fmt.Stringer.
func (s JobState) String() string {
	return string(s)
}
