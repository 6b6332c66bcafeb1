package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/metrics"
	"github.com/rileyhilliard/slurmterm/internal/slurm"
	"github.com/rileyhilliard/slurmterm/internal/templates"
	"github.com/rileyhilliard/slurmterm/internal/ui"
)

// Lines the inspector draws above its log viewport, and the extra lines
// the resubmit panel takes while open.
const (
	inspectorFixedLines = 15
	formLines           = 5
)

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	switch m.tab {
	case TabMonitor:
		b.WriteString(m.renderMonitor())
	case TabInspector:
		b.WriteString(m.renderInspector())
	case TabHardware:
		b.WriteString(m.hwView.View())
	case TabHistory:
		b.WriteString(m.histTable.View())
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// renderHeader renders the title, cluster and tab bar.
func (m Model) renderHeader() string {
	cluster := m.cluster
	if cluster == "" {
		cluster = "…"
	}
	title := TitleStyle.Render("slurmterm")
	where := lipgloss.NewStyle().
		Foreground(ColorTextSecondary).
		Render(fmt.Sprintf(" | %s · %s", cluster, m.user))

	tabs := make([]string, 0, len(tabNames))
	for i, name := range tabNames {
		label := fmt.Sprintf("%d %s", i+1, name)
		if Tab(i) == m.tab {
			tabs = append(tabs, TabActiveStyle.Render(label))
		} else {
			tabs = append(tabs, TabStyle.Render(label))
		}
	}
	return HeaderStyle.Render(title+where) + "\n" + strings.Join(tabs, "")
}

func (m Model) renderMonitor() string {
	var top string
	switch {
	case m.filtering:
		top = m.filter.View()
	case m.queue.Filter() != "":
		top = LabelStyle.Render("filter") + ValueStyle.Render(m.queue.Filter())
	default:
		top = ui.MutedStyle().Render(fmt.Sprintf("%d selected", len(m.queue.Selected())))
	}
	return top + "\n" + m.queueTable.View()
}

// renderInspector renders the job's fields, usage graphs and log.
func (m Model) renderInspector() string {
	in := m.insp
	if in == nil {
		return ui.MutedStyle().Render("No job inspected yet")
	}
	if !in.loaded {
		if in.missing {
			return ui.ErrorStyle().Render(fmt.Sprintf("could not fetch details for job %s", in.jobID))
		}
		return ui.MutedStyle().Render(fmt.Sprintf("Loading job %s…", in.jobID))
	}

	d := in.detail
	field := func(label, value string) string {
		if value == "" {
			value = "-"
		}
		return LabelStyle.Render(label) + ValueStyle.Render(value)
	}

	lines := []string{
		field("Job", d.ID+" · "+d.Name),
		LabelStyle.Render("State") + ui.RenderState(d.State),
		field("Partition", d.Partition),
		field("User", d.User),
		field("Nodes", nodes(d)),
		field("Resources", resources(d)),
		field("Work dir", d.WorkDir),
		field("Stdout", d.StdoutPath),
		field("Stderr", d.StderrPath),
		LabelStyle.Render("Time") + m.timeBar(d),
		"",
	}

	graph := m.width - 12
	if graph < 10 {
		graph = 10
	}
	lines = append(lines,
		ui.RenderMetricLine("CPU", in.window.Values(metrics.CPU), graph),
		ui.RenderMetricLine("MEM", in.window.Values(metrics.Memory), graph),
		ui.RenderMetricLine("GPU", in.window.Values(metrics.GPU), graph),
	)

	if in.form != nil {
		lines = append(lines, m.renderForm(*in.form))
	}

	value := in.stream.String()
	if in.logPath != "" {
		value += " " + in.logPath
	}
	lines = append(lines, SectionHeader("Log", value, m.width), in.view.View())
	return strings.Join(lines, "\n")
}

func (m Model) timeBar(d slurm.JobDetail) string {
	p, ok := m.sampler.Progress(d)
	if !ok {
		return ui.RenderTimeBar("", "", 0, 0)
	}
	return ui.RenderTimeBar(slurm.FormatDuration(p.Elapsed), slurm.FormatDuration(p.Total), p.Fraction(), 20)
}

func nodes(d slurm.JobDetail) string {
	count := d.NodeCount.String()
	switch {
	case d.Nodes == "":
		return count
	case count == "":
		return d.Nodes
	}
	return fmt.Sprintf("%s (%s)", count, d.Nodes)
}

// resources summarizes the job's request as "4 tasks × 8 cpus · 64G · a100:2".
func resources(d slurm.JobDetail) string {
	var parts []string
	if n := d.TasksPerNode.Int64(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d tasks", n))
	}
	if n := d.CPUsPerTask.Int64(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d cpus/task", n))
	}
	if mb := d.MemoryMB.Int64(); mb > 0 {
		parts = append(parts, slurm.FormatMemoryMB(mb))
	}
	if g := d.GresDisplay(); g != "" {
		parts = append(parts, g)
	}
	return strings.Join(parts, " · ")
}

// renderForm shows the command the resubmit form would run.
func (m Model) renderForm(f templates.Form) string {
	cmdline := "sbatch"
	params, err := f.Params()
	if err == nil {
		var args []string
		args, err = slurm.SbatchArgs(f.Command, params)
		if err == nil {
			cmdline += " " + strings.Join(args, " ")
		}
	}
	if err != nil {
		cmdline = ui.ErrorStyle().Render(errors.Summary(err))
	}
	body := TitleStyle.Render("Resubmit") + "\n" +
		ValueStyle.Render(cmdline) + "\n" +
		ui.MutedStyle().Render("enter submit · t save as template · esc cancel")
	return PanelStyle.Width(max(m.width-2, 20)).Render(body)
}

// renderFooter shows the toast, or the tab's status, above the key hints.
func (m Model) renderFooter() string {
	st := m.status[m.tab]
	if m.toast.text != "" {
		st = m.toast.status
	}
	line := statusStyle(st.level).Render(st.text)
	return line + "\n" + FooterStyle.Render(strings.Join(m.hints(), " | "))
}

func (m Model) hints() []string {
	switch m.tab {
	case TabMonitor:
		if m.filtering {
			return []string{"enter keep filter", "esc clear"}
		}
		return []string{"q quit", "enter inspect", "space select", "c cancel", "h hold", "u release", "/ filter", "? help"}
	case TabInspector:
		return []string{"esc back", "o stdout/stderr", "s resubmit", "r refresh", "? help"}
	}
	return []string{"q quit", "esc back", "r refresh", "tab next", "? help"}
}
