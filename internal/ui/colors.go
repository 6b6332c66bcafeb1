package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/rileyhilliard/slurmterm/internal/slurm"
)

// Semantic colors for status indication
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// Status symbols
const (
	SymbolPass    = "✓"
	SymbolFail    = "✗"
	SymbolWarning = "⚠"
)

// Thresholds for metric severity levels, in percent.
const (
	WarningThreshold  = 60.0
	CriticalThreshold = 80.0
)

// DisableColors switches lipgloss to plain ASCII output.
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// ThresholdColor returns a color for a percentage:
//   - below 60%: green
//   - 60-80%: yellow
//   - 80% and up: red
func ThresholdColor(percent float64) lipgloss.Color {
	switch {
	case percent >= CriticalThreshold:
		return ColorError
	case percent >= WarningThreshold:
		return ColorWarning
	default:
		return ColorSuccess
	}
}

// StateColor returns the color a job state is drawn in.
func StateColor(s slurm.JobState) lipgloss.Color {
	switch s {
	case slurm.StateRunning, slurm.StateCompleting:
		return ColorInfo
	case slurm.StatePending, slurm.StatePendingHeld, slurm.StateSuspended:
		return ColorWarning
	case slurm.StateCancelled, slurm.StatePreempted, slurm.StateUnknown:
		return ColorMuted
	}
	switch s.Category() {
	case slurm.TerminalSuccess:
		return ColorSuccess
	case slurm.TerminalFailure:
		return ColorError
	}
	return ColorPrimary
}

// RenderState renders the state's table label in its color.
func RenderState(s slurm.JobState) string {
	return lipgloss.NewStyle().Foreground(StateColor(s)).Render(s.Display())
}

// MutedStyle is used for secondary text such as hints and timings.
func MutedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ColorMuted)
}

// SuccessStyle is used for passing checks.
func SuccessStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ColorSuccess)
}

// WarningStyle is used for warnings.
func WarningStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ColorWarning)
}

// ErrorStyle is used for inline error text.
func ErrorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ColorError)
}
