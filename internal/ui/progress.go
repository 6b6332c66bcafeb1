package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Progress bar block characters.
const (
	progressFilled = '█'
	progressEmpty  = '░'
)

// RenderProgressBar creates a progress bar visualization.
// The percent parameter should be 0-100 (values outside this range are clamped).
// The width parameter is the width of the bar itself, excluding brackets
// and the percentage.
// Output format: [████████░░░░]  67%
func RenderProgressBar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	percent = clampPercent(percent)

	filled := int(percent / 100 * float64(width))

	var sb strings.Builder
	sb.Grow(width*3 + 2)
	sb.WriteRune('[')
	sb.WriteString(strings.Repeat(string(progressFilled), filled))
	sb.WriteString(strings.Repeat(string(progressEmpty), width-filled))
	sb.WriteRune(']')

	style := lipgloss.NewStyle().Foreground(ThresholdColor(percent))
	return style.Render(sb.String()) + " " + formatPercent(percent)
}

// RenderTimeBar renders elapsed wall time against the limit:
// "[██░░] 25%  00:15:00 / 01:00:00". A zero limit renders "no time limit".
func RenderTimeBar(elapsed, limit string, fraction float64, width int) string {
	if limit == "" {
		return MutedStyle().Render("no time limit")
	}
	return RenderProgressBar(fraction*100, width) + "  " + elapsed + " / " + limit
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%3.0f%%", p)
}
