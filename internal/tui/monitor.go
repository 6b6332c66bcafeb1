package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/slurmterm/internal/diff"
	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/notify"
	"github.com/rileyhilliard/slurmterm/internal/poller"
	"github.com/rileyhilliard/slurmterm/internal/slurm"
	"github.com/rileyhilliard/slurmterm/internal/ui"
)

var queueColumns = []ui.TableColumn{
	{Title: " ", Width: 1},
	{Title: "JOBID", Width: 10},
	{Title: "NAME", Width: 20},
	{Title: "PARTITION", Width: 10},
	{Title: "STATE", Width: 14},
	{Title: "TIME", Width: 11},
	{Title: "NODES", Width: 6},
	{Title: "REASON", Width: 20},
}

// Column positions in a queue row.
const (
	colMark = 0
	colID   = 1
)

const selectedMark = "●"

// jobAction is one of the job control keys.
type jobAction struct {
	verb string
	done string
	// hint explains the usual reason Slurm refuses the action.
	hint string
	run  func(slurm.Source, context.Context, string) (bool, error)
}

var jobActions = map[string]jobAction{
	KeyCancel:  {verb: "cancel", done: "Cancelled", run: slurm.Source.Cancel},
	KeyHold:    {verb: "hold", done: "Held", hint: " (is it PENDING?)", run: slurm.Source.Hold},
	KeyRelease: {verb: "release", done: "Released", hint: " (is it held?)", run: slurm.Source.Release},
}

func queueFetch(src slurm.Source, user string) poller.FetchFunc[[]slurm.JobSnapshot] {
	return func(ctx context.Context) ([]slurm.JobSnapshot, error) {
		return src.ListJobs(ctx, user)
	}
}

// handleQueue applies one queue poll. Failures keep the table as it was.
func (m *Model) handleQueue(msg poller.ResultMsg[[]slurm.JobSnapshot]) tea.Cmd {
	if !m.queuePoll.Accept(msg) {
		return nil
	}
	if msg.Err != nil {
		m.setStatus(TabMonitor, pollFailure("Queue poll", msg.Err), levelError)
		return nil
	}

	res := m.queue.Apply(msg.Value)
	switch {
	case res.Rebuild:
		m.rebuildQueue()
	case !res.Ops.Empty():
		m.applyOps(res.Ops)
	}
	m.setShown()
	return m.dispatch(res.Events)
}

// applyOps patches the table rows in place: removed rows are dropped,
// updated rows re-rendered and added rows appended in source order.
func (m *Model) applyOps(ops diff.JobOps) {
	removed := make(map[string]bool, len(ops.Removed))
	for _, id := range ops.Removed {
		removed[id] = true
	}
	updated := make(map[string]slurm.JobSnapshot, len(ops.Updated))
	for _, u := range ops.Updated {
		updated[u.New.ID] = u.New
	}

	rows := m.queueTable.Rows()
	next := make([]table.Row, 0, len(rows)+len(ops.Added))
	for _, r := range rows {
		id := r[colID]
		if removed[id] {
			continue
		}
		if j, ok := updated[id]; ok {
			r = m.jobRow(j)
		}
		next = append(next, r)
	}
	for _, j := range ops.Added {
		next = append(next, m.jobRow(j))
	}
	m.setQueueRows(next)
}

// rebuildQueue renders every visible job again.
func (m *Model) rebuildQueue() {
	jobs := m.queue.Visible()
	rows := make([]table.Row, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, m.jobRow(j))
	}
	m.setQueueRows(rows)
}

func (m *Model) setQueueRows(rows []table.Row) {
	m.queueTable.SetRows(rows)
	if m.queueTable.Cursor() >= len(rows) && len(rows) > 0 {
		m.queueTable.SetCursor(len(rows) - 1)
	}
}

func (m *Model) setShown() {
	m.setStatus(TabMonitor, fmt.Sprintf("%d job(s) shown", len(m.queueTable.Rows())), levelInfo)
}

func (m *Model) jobRow(j slurm.JobSnapshot) table.Row {
	mark := " "
	if m.queue.IsSelected(j.ID) {
		mark = selectedMark
	}
	return table.Row{mark, j.ID, j.Name, j.Partition, j.State.Display(), j.TimeUsed, j.Nodes, j.Reason}
}

// cursorJobID returns the job under the table cursor, or "".
func (m Model) cursorJobID() string {
	row := m.queueTable.SelectedRow()
	if len(row) <= colID {
		return ""
	}
	return row[colID]
}

// dispatch logs queue events and alerts on the ones the user asked for.
func (m *Model) dispatch(events []notify.Event) tea.Cmd {
	for _, e := range events {
		m.log.Info("job %s %s: %s -> %s (event %s)", e.JobID, e.Kind, e.From, e.To, e.ID)
	}
	allowed := m.policy.Filter(events)
	if len(allowed) == 0 {
		return nil
	}

	lvl := levelSuccess
	texts := make([]string, 0, len(allowed))
	for _, e := range allowed {
		texts = append(texts, e.Message())
		if e.Kind == notify.KindFailed {
			lvl = levelError
		}
	}
	cmds := []tea.Cmd{m.flash(strings.Join(texts, " · "), lvl)}
	if m.policy.Bell {
		ring := m.bell
		cmds = append(cmds, func() tea.Msg {
			ring()
			return nil
		})
	}
	return tea.Batch(cmds...)
}

// handleMonitorKey handles keys specific to the queue table.
func (m Model) handleMonitorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	k := msg.String()

	switch k {
	case KeyFilter:
		m.filtering = true
		cmd = m.filter.Focus()
	case KeyBack:
		if m.queue.Filter() != "" {
			m.filter.SetValue("")
			m.applyFilter()
		}
	case KeySelect:
		m.toggleSelected()
	case KeyClearSel:
		m.queue.ClearSelection()
		m.rebuildQueue()
	case KeyInspect:
		cmd = m.inspect(m.cursorJobID())
	default:
		if a, ok := jobActions[k]; ok {
			cmd = m.runAction(a)
		} else {
			m.queueTable, cmd = m.queueTable.Update(msg)
		}
	}
	return m, cmd
}

// handleFilterKey edits the filter. The table follows every keystroke.
func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyBack:
		m.filter.SetValue("")
		m.filtering = false
		m.filter.Blur()
		m.applyFilter()
		return m, nil
	case KeyInspect:
		m.filtering = false
		m.filter.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m *Model) applyFilter() {
	m.queue.SetFilter(m.filter.Value())
	m.rebuildQueue()
	m.setShown()
}

func (m *Model) toggleSelected() {
	id := m.cursorJobID()
	if id == "" {
		return
	}
	m.queue.ToggleSelected(id)
	j, ok := m.queue.Get(id)
	if !ok {
		return
	}
	rows := append([]table.Row(nil), m.queueTable.Rows()...)
	rows[m.queueTable.Cursor()] = m.jobRow(j)
	m.setQueueRows(rows)
}

// runAction applies a job action to the selection, or to the cursor row
// when nothing is selected.
func (m *Model) runAction(a jobAction) tea.Cmd {
	ids := m.queue.Selected()
	if len(ids) == 0 {
		if id := m.cursorJobID(); id != "" {
			ids = []string{id}
		}
	}
	if len(ids) == 0 {
		return m.flash("No job selected", levelWarn)
	}

	parent, src, timeout := m.ctx, m.src, m.cfg.General.SubprocessTimeout
	return func() tea.Msg {
		results := make([]actionResult, 0, len(ids))
		for _, id := range ids {
			ctx, cancel := context.WithTimeout(parent, timeout)
			ok, err := a.run(src, ctx, id)
			cancel()
			results = append(results, actionResult{id: id, ok: ok, err: err})
		}
		return actionMsg{action: a, results: results}
	}
}

// handleAction reports an action's outcome and refreshes the queue when
// anything changed.
func (m *Model) handleAction(msg actionMsg) tea.Cmd {
	a := msg.action
	var done, failures []string
	for _, r := range msg.results {
		switch {
		case r.err != nil:
			m.log.Warn("%s %s: %s", a.verb, r.id, errors.Summary(r.err))
			failures = append(failures, fmt.Sprintf("Failed to %s job %s: %s", a.verb, r.id, errors.Summary(r.err)))
		case !r.ok:
			failures = append(failures, fmt.Sprintf("Failed to %s job %s%s", a.verb, r.id, a.hint))
		default:
			done = append(done, r.id)
		}
	}

	m.queue.ClearSelection()
	m.rebuildQueue()

	var cmds []tea.Cmd
	switch {
	case len(failures) > 1:
		cmds = append(cmds, m.flash(fmt.Sprintf("%s (and %d more)", failures[0], len(failures)-1), levelError))
	case len(failures) == 1:
		cmds = append(cmds, m.flash(failures[0], levelError))
	case len(done) == 1:
		cmds = append(cmds, m.flash(fmt.Sprintf("%s job %s", a.done, done[0]), levelSuccess))
	default:
		cmds = append(cmds, m.flash(fmt.Sprintf("%s %d jobs", a.done, len(done)), levelSuccess))
	}
	if len(done) > 0 && m.tab == TabMonitor {
		if cmd, ok := m.queuePoll.Refresh(); ok {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}
