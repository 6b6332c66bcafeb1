package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/rileyhilliard/slurmterm/internal/poller"
	"github.com/rileyhilliard/slurmterm/internal/slurm"
	"github.com/rileyhilliard/slurmterm/internal/ui"
)

var partitionColumns = []ui.TableColumn{
	{Title: "PARTITION", Width: 12},
	{Title: "AVAIL", Width: 6},
	{Title: "TIMELIMIT", Width: 12},
	{Title: "NODES", Width: 6},
	{Title: "STATE", Width: 10},
	{Title: "CPUS", Width: 5},
	{Title: "MEMORY", Width: 10},
	{Title: "GRES", Width: 14},
	{Title: "NODELIST", Width: 24},
}

var nodeColumns = []ui.TableColumn{
	{Title: "NODE", Width: 12},
	{Title: "STATE", Width: 12},
	{Title: "CPUS", Width: 10},
	{Title: "LOAD", Width: 6},
	{Title: "MEMORY", Width: 10},
	{Title: "FREE", Width: 10},
	{Title: "GRES", Width: 16},
	{Title: "PARTITIONS", Width: 20},
}

// hardwareFetch runs sinfo and scontrol show nodes side by side. Either
// failing fails the poll.
func hardwareFetch(src slurm.Source) poller.FetchFunc[hardwareSnapshot] {
	return func(ctx context.Context) (hardwareSnapshot, error) {
		var (
			wg                sync.WaitGroup
			snap              hardwareSnapshot
			partErr, nodesErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			snap.Partitions, partErr = src.SinfoRows(ctx)
		}()
		go func() {
			defer wg.Done()
			snap.Nodes, nodesErr = src.NodeRows(ctx)
		}()
		wg.Wait()

		if partErr != nil {
			return hardwareSnapshot{}, partErr
		}
		if nodesErr != nil {
			return hardwareSnapshot{}, nodesErr
		}
		return snap, nil
	}
}

func (m *Model) handleHardware(msg poller.ResultMsg[hardwareSnapshot]) tea.Cmd {
	if !m.hwPoll.Accept(msg) {
		return nil
	}
	if msg.Err != nil {
		m.setStatus(TabHardware, pollFailure("Hardware poll", msg.Err), levelError)
		return nil
	}
	m.hw = msg.Value
	m.hwView.SetContent(renderHardware(m.hw))
	m.setStatus(TabHardware, fmt.Sprintf("%d partition row(s) · %d node(s)", len(m.hw.Partitions), len(m.hw.Nodes)), levelInfo)
	return nil
}

// renderHardware lays out the partition summary above the node list.
func renderHardware(hw hardwareSnapshot) string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Partitions"))
	b.WriteString("\n")
	rows := make([][]string, 0, len(hw.Partitions))
	for _, p := range hw.Partitions {
		rows = append(rows, []string{
			p.Partition, p.Avail, p.TimeLimit, p.Nodes, p.State,
			p.CPUs, humanMB(p.MemoryMB), dash(p.Gres), p.NodeList,
		})
	}
	b.WriteString(ui.RenderSimpleTable(partitionColumns, rows))

	b.WriteString("\n")
	b.WriteString(TitleStyle.Render("Nodes"))
	b.WriteString("\n")
	rows = rows[:0]
	for _, n := range hw.Nodes {
		rows = append(rows, []string{
			n["NodeName"],
			n["State"],
			cpuUsage(n),
			dash(n["CPULoad"]),
			humanMB(n["RealMemory"]),
			humanMB(n["FreeMem"]),
			dash(n["Gres"]),
			dash(n["Partitions"]),
		})
	}
	b.WriteString(ui.RenderSimpleTable(nodeColumns, rows))
	return b.String()
}

// cpuUsage renders allocated over total CPUs.
func cpuUsage(n slurm.NodeRow) string {
	total := n["CPUTot"]
	if total == "" {
		return "-"
	}
	alloc := n["CPUAlloc"]
	if alloc == "" {
		alloc = "0"
	}
	return alloc + "/" + total
}

// humanMB renders a megabyte count from Slurm ("65536", "128000+")
// in binary units. Anything unparsable is shown as is.
func humanMB(s string) string {
	s = strings.TrimSpace(s)
	mb, err := strconv.ParseUint(strings.TrimRight(s, "+"), 10, 64)
	if err != nil {
		return dash(s)
	}
	return humanize.IBytes(mb * 1024 * 1024)
}

func dash(s string) string {
	switch strings.TrimSpace(s) {
	case "", "(null)", "N/A":
		return "-"
	}
	return s
}
