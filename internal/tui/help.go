package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// HelpBinding represents a single keyboard shortcut entry.
type HelpBinding struct {
	Key  string
	Desc string
}

// helpBindings defines all keyboard shortcuts shown in the help overlay.
var helpBindings = []HelpBinding{
	{Key: "q / Ctrl+C", Desc: "Quit"},
	{Key: "1-4 / Tab", Desc: "Switch tab"},
	{Key: "r", Desc: "Refresh now"},
	{Key: "Ctrl+R", Desc: "Reload config file"},
	{Key: "up / k", Desc: "Previous row"},
	{Key: "down / j", Desc: "Next row"},
	{Key: "Enter", Desc: "Inspect job"},
	{Key: "Space", Desc: "Select job"},
	{Key: "x", Desc: "Clear selection"},
	{Key: "c / h / u", Desc: "Cancel, hold or release"},
	{Key: "/", Desc: "Filter jobs"},
	{Key: "o", Desc: "Toggle stdout / stderr"},
	{Key: "s", Desc: "Resubmit inspected job"},
	{Key: "t", Desc: "Save resubmit form as template"},
	{Key: "Esc", Desc: "Back / close"},
	{Key: "?", Desc: "Toggle this help"},
}

// Help overlay styles
var (
	helpBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorAccent).
			Background(ColorSurfaceBg).
			Padding(1, 2)

	helpTitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true).
			MarginBottom(1)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Bold(true).
			Width(14)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary)
)

// renderHelpOverlay renders a centered help box with keyboard shortcuts.
func (m Model) renderHelpOverlay() string {
	var lines []string
	lines = append(lines, helpTitleStyle.Render("Keyboard Shortcuts"), "")
	for _, binding := range helpBindings {
		lines = append(lines, helpKeyStyle.Render(binding.Key)+helpDescStyle.Render(binding.Desc))
	}
	lines = append(lines, "", LabelStyle.Render("Press ? to close"))

	helpBox := helpBoxStyle.Render(strings.Join(lines, "\n"))
	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		helpBox,
		lipgloss.WithWhitespaceChars(" "),
	)
}
