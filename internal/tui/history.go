package tui

import (
	"context"
	"fmt"
	"regexp"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/slurmterm/internal/poller"
	"github.com/rileyhilliard/slurmterm/internal/slurm"
	"github.com/rileyhilliard/slurmterm/internal/ui"
)

var historyColumns = []ui.TableColumn{
	{Title: "JOBID", Width: 10},
	{Title: "NAME", Width: 20},
	{Title: "PARTITION", Width: 10},
	{Title: "STATE", Width: 12},
	{Title: "ELAPSED", Width: 11},
	{Title: "CPU", Width: 11},
	{Title: "MAXRSS", Width: 10},
	{Title: "EXIT", Width: 6},
}

func historyFetch(src slurm.Source, user, since string) poller.FetchFunc[[]slurm.AccountingRow] {
	return func(ctx context.Context) ([]slurm.AccountingRow, error) {
		return src.AccountingRows(ctx, user, since)
	}
}

// handleHistory replaces the whole table on every poll.
func (m *Model) handleHistory(msg poller.ResultMsg[[]slurm.AccountingRow]) tea.Cmd {
	if !m.histPoll.Accept(msg) {
		return nil
	}
	if msg.Err != nil {
		m.setStatus(TabHistory, pollFailure("History poll", msg.Err), levelError)
		return nil
	}

	rows := make([]table.Row, 0, len(msg.Value))
	for _, r := range msg.Value {
		rows = append(rows, table.Row{r.JobID, r.Name, r.Partition, r.State, r.Elapsed, r.TotalCPU, dash(r.MaxRSS), r.ExitCode})
	}
	m.histTable.SetRows(rows)
	if m.histTable.Cursor() >= len(rows) && len(rows) > 0 {
		m.histTable.SetCursor(len(rows) - 1)
	}
	m.setStatus(TabHistory, fmt.Sprintf("%d completed jobs (%s)", len(rows), windowLabel(m.cfg.General.HistoryWindow)), levelInfo)
	return nil
}

var relativeWindow = regexp.MustCompile(`^now-(\d+)\s*([a-z]+?)s?$`)

// windowLabel describes a sacct -S value: "now-7days" reads "last 7 days".
func windowLabel(since string) string {
	if since == "" {
		return "all time"
	}
	m := relativeWindow.FindStringSubmatch(since)
	if m == nil {
		return "since " + since
	}
	unit := m[2]
	if m[1] != "1" {
		unit += "s"
	}
	return fmt.Sprintf("last %s %s", m[1], unit)
}
