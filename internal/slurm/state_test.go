package slurm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseState(t *testing.T) {
	tests := []struct {
		raw  string
		want JobState
	}{
		{"RUNNING", StateRunning},
		{"running", StateRunning},
		{"  PENDING ", StatePending},
		{"PENDING (Held)", StatePendingHeld},
		{"PENDING_HELD", StatePendingHeld},
		{"CANCELLED by 1000", StateCancelled},
		{"COMPLETING+", StateCompleting},
		{"OUT_OF_MEMORY", StateOutOfMemory},
		{"", StateUnknown},
		{"BOOT_FAIL", StateUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseState(tt.raw))
		})
	}
}

func TestJobState_Category(t *testing.T) {
	tests := []struct {
		state JobState
		want  Category
	}{
		{StateCompleted, TerminalSuccess},
		{StateFailed, TerminalFailure},
		{StateTimeout, TerminalFailure},
		{StateNodeFail, TerminalFailure},
		{StateOutOfMemory, TerminalFailure},
		{StateCancelled, NonTerminal},
		{StatePreempted, NonTerminal},
		{StateRunning, NonTerminal},
		{StatePending, NonTerminal},
		{StateUnknown, NonTerminal},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Category())
		})
	}
}

func TestJobState_IsTerminal(t *testing.T) {
	assert.True(t, StateCancelled.IsTerminal())
	assert.True(t, StatePreempted.IsTerminal())
	assert.True(t, StateCompleted.IsTerminal())
	assert.False(t, StateRunning.IsTerminal())
	assert.False(t, StateCompleting.IsTerminal())
	assert.False(t, StatePendingHeld.IsTerminal())
}

func TestJobState_Display(t *testing.T) {
	assert.Equal(t, "PENDING (Held)", StatePendingHeld.Display())
	assert.Equal(t, "RUNNING", StateRunning.Display())
}
