package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/slurmterm/internal/slurm"
)

func loadedQueue(t *testing.T, src *fakeSource) (Model, *testHarness) {
	t.Helper()
	m, h := newTestModel(t, src)
	m, _ = update(m, queueResult(m,
		job("1001", "train", slurm.StateRunning),
		job("1002", "eval", slurm.StatePending),
		job("1003", "prep", slurm.StatePending),
	))
	return m, h
}

func TestMonitor_SelectAndClear(t *testing.T) {
	m, _ := loadedQueue(t, newFakeSource())

	m, _ = press(m, KeySelect)
	assert.Equal(t, []string{"1001"}, m.queue.Selected())
	assert.Equal(t, selectedMark, m.queueTable.Rows()[0][colMark])

	m, _ = press(m, "j")
	m, _ = press(m, KeySelect)
	assert.Equal(t, []string{"1001", "1002"}, m.queue.Selected())

	m, _ = press(m, KeySelect)
	assert.Equal(t, []string{"1001"}, m.queue.Selected())

	m, _ = press(m, KeyClearSel)
	assert.Empty(t, m.queue.Selected())
	assert.Equal(t, " ", m.queueTable.Rows()[0][colMark])
}

func TestMonitor_CancelSelection(t *testing.T) {
	src := newFakeSource()
	m, _ := loadedQueue(t, src)
	m, _ = press(m, KeySelect)
	m, _ = press(m, "j")
	m, _ = press(m, KeySelect)

	m, cmd := press(m, KeyCancel)
	require.NotNil(t, cmd)
	msg := cmd()
	m, _ = update(m, msg)

	assert.Equal(t, []string{"cancel 1001", "cancel 1002"}, src.Calls())
	assert.Equal(t, "Cancelled 2 jobs", m.toast.text)
	assert.Equal(t, levelSuccess, m.toast.level)
	assert.Empty(t, m.queue.Selected())
}

func TestMonitor_ActionOnCursorRow(t *testing.T) {
	src := newFakeSource()
	m, _ := loadedQueue(t, src)
	m, _ = press(m, "j")
	m, _ = press(m, "j")

	m, cmd := press(m, KeyRelease)
	require.NotNil(t, cmd)
	m, _ = update(m, cmd())

	assert.Equal(t, []string{"release 1003"}, src.Calls())
	assert.Equal(t, "Released job 1003", m.toast.text)
}

func TestMonitor_ActionRefused(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		refuse   []string
		selected []string
		expect   string
	}{
		{
			name:   "hold hint",
			key:    KeyHold,
			refuse: []string{"1001"},
			expect: "Failed to hold job 1001 (is it PENDING?)",
		},
		{
			name:   "release hint",
			key:    KeyRelease,
			refuse: []string{"1001"},
			expect: "Failed to release job 1001 (is it held?)",
		},
		{
			name:   "cancel has no hint",
			key:    KeyCancel,
			refuse: []string{"1001"},
			expect: "Failed to cancel job 1001",
		},
		{
			name:     "several failures",
			key:      KeyHold,
			refuse:   []string{"1001", "1002", "1003"},
			selected: []string{"1001", "1002", "1003"},
			expect:   "Failed to hold job 1001 (is it PENDING?) (and 2 more)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			for _, id := range tt.refuse {
				src.refuse[id] = true
			}
			m, _ := loadedQueue(t, src)
			for _, id := range tt.selected {
				m.queue.ToggleSelected(id)
			}

			m, cmd := press(m, tt.key)
			require.NotNil(t, cmd)
			m, _ = update(m, cmd())

			assert.Equal(t, tt.expect, m.toast.text)
			assert.Equal(t, levelError, m.toast.level)
		})
	}
}

func TestMonitor_ActionWithoutJobs(t *testing.T) {
	src := newFakeSource()
	m, _ := newTestModel(t, src)

	m, _ = press(m, KeyCancel)
	assert.Equal(t, "No job selected", m.toast.text)
	assert.Empty(t, src.Calls())
}

func TestMonitor_Filter(t *testing.T) {
	m, _ := loadedQueue(t, newFakeSource())

	m, _ = press(m, KeyFilter)
	require.True(t, m.filtering)

	for _, r := range "PEND" {
		m, _ = press(m, string(r))
	}
	assert.Len(t, m.queueTable.Rows(), 2)
	assert.Equal(t, "2 job(s) shown", m.status[TabMonitor].text)

	m, _ = press(m, KeyQuit)
	assert.False(t, m.quitting, "q types into the filter")

	m, _ = press(m, "enter")
	assert.False(t, m.filtering)
	assert.Equal(t, "PENDq", m.queue.Filter())
	assert.Empty(t, m.queueTable.Rows())

	m, _ = press(m, "esc")
	assert.Empty(t, m.queue.Filter())
	assert.Len(t, m.queueTable.Rows(), 3)
}

func TestMonitor_FilteredPollRebuilds(t *testing.T) {
	m, _ := loadedQueue(t, newFakeSource())
	m.queue.SetFilter("train")
	m.rebuildQueue()
	require.Len(t, m.queueTable.Rows(), 1)

	m, _ = update(m, queueResult(m,
		job("1001", "train", slurm.StateRunning),
		job("1004", "train-2", slurm.StatePending),
	))
	assert.Len(t, m.queueTable.Rows(), 2)
}

func TestMonitor_CursorClampedWhenRowsShrink(t *testing.T) {
	m, _ := loadedQueue(t, newFakeSource())
	m, _ = press(m, "end")
	require.Equal(t, 2, m.queueTable.Cursor())

	m, _ = update(m, queueResult(m, job("1001", "train", slurm.StateRunning)))
	assert.Equal(t, 0, m.queueTable.Cursor())
	assert.Equal(t, "1001", m.cursorJobID())
}
