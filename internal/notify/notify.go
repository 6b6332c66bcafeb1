// Package notify decides which job state changes deserve the user's
// attention. It only classifies; the dashboard owns dispatch.
package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rileyhilliard/slurmterm/internal/slurm"
)

// Kind is the outcome of classifying a transition.
type Kind int

const (
	KindNone Kind = iota
	KindCompleted
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindCompleted:
		return "completed"
	case KindFailed:
		return "failed"
	default:
		return "none"
	}
}

// Classify maps a state change to a notification kind. Cancellation is
// user initiated and never notifies.
func Classify(old, new slurm.JobState) Kind {
	if old == new {
		return KindNone
	}
	switch new.Category() {
	case slurm.TerminalSuccess:
		return KindCompleted
	case slurm.TerminalFailure:
		return KindFailed
	default:
		return KindNone
	}
}

// Disappeared classifies a job that left the queue. A job last seen
// RUNNING is assumed to have completed. This is approximate: Slurm gives
// no way to tell a finished job from one purged by the controller.
func Disappeared(old slurm.JobState) Kind {
	if old == slurm.StateRunning {
		return KindCompleted
	}
	return KindNone
}

// Event is one notification-worthy change.
type Event struct {
	ID      uuid.UUID
	JobID   string
	JobName string
	From    slurm.JobState
	To      slurm.JobState
	Kind    Kind
	// Implicit marks events inferred from a job leaving the queue; To is
	// then UNKNOWN.
	Implicit bool
	At       time.Time
}

// Transition builds an event for an observed state change, or returns
// false when the change is not worth reporting.
func Transition(old, new slurm.JobSnapshot, at time.Time) (Event, bool) {
	kind := Classify(old.State, new.State)
	if kind == KindNone {
		return Event{}, false
	}
	return Event{
		ID:      uuid.New(),
		JobID:   new.ID,
		JobName: new.Name,
		From:    old.State,
		To:      new.State,
		Kind:    kind,
		At:      at,
	}, true
}

// Vanished builds an event for a job that is no longer listed.
func Vanished(old slurm.JobSnapshot, at time.Time) (Event, bool) {
	kind := Disappeared(old.State)
	if kind == KindNone {
		return Event{}, false
	}
	return Event{
		ID:       uuid.New(),
		JobID:    old.ID,
		JobName:  old.Name,
		From:     old.State,
		To:       slurm.StateUnknown,
		Kind:     kind,
		Implicit: true,
		At:       at,
	}, true
}

// Message is the status line text for the event.
func (e Event) Message() string {
	name := e.JobName
	if name == "" {
		name = "job"
	}
	switch e.Kind {
	case KindCompleted:
		if e.Implicit {
			return fmt.Sprintf("%s (%s) finished", name, e.JobID)
		}
		return fmt.Sprintf("%s (%s) completed", name, e.JobID)
	case KindFailed:
		return fmt.Sprintf("%s (%s) ended %s", name, e.JobID, e.To.Display())
	}
	return ""
}

// Policy says which kinds the user asked to hear about.
type Policy struct {
	OnComplete bool
	OnFail     bool
	Bell       bool
}

// Allows reports whether the event should be dispatched.
func (p Policy) Allows(e Event) bool {
	switch e.Kind {
	case KindCompleted:
		return p.OnComplete
	case KindFailed:
		return p.OnFail
	}
	return false
}

// Filter returns the events the policy allows, in order.
func (p Policy) Filter(events []Event) []Event {
	var out []Event
	for _, e := range events {
		if p.Allows(e) {
			out = append(out, e)
		}
	}
	return out
}
