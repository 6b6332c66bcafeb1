package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Sparkline block characters representing 8 vertical levels (lowest to highest).
const sparklineBlocks = "▁▂▃▄▅▆▇█"

var sparklineBlockRunes = []rune(sparklineBlocks)

// RenderSparkline draws the most recent width percentages on a fixed
// 0-100 scale, so a flat 5% line sits at the bottom rather than mid-height.
// The color follows the last value's threshold.
func RenderSparkline(data []float64, width int) string {
	if len(data) == 0 || width <= 0 {
		return ""
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}

	var sb strings.Builder
	sb.Grow(len(data) * 3)

	top := len(sparklineBlockRunes) - 1
	for _, v := range data {
		level := int(clampPercent(v) / 100 * float64(top))
		sb.WriteRune(sparklineBlockRunes[level])
	}

	last := data[len(data)-1]
	return lipgloss.NewStyle().Foreground(ThresholdColor(last)).Render(sb.String())
}

// RenderMetricLine renders "LABEL sparkline  NN%" padded to a fixed label
// width. An empty series renders the label with "n/a".
func RenderMetricLine(label string, data []float64, width int) string {
	head := padRight(label, 5)
	if len(data) == 0 {
		return head + MutedStyle().Render("n/a")
	}
	last := clampPercent(data[len(data)-1])
	value := lipgloss.NewStyle().Foreground(ThresholdColor(last)).Render(formatPercent(last))
	return head + RenderSparkline(data, width) + " " + value
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
