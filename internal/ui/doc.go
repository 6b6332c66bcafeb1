// Package ui holds the rendering helpers shared by the dashboard and the
// plain CLI commands.
//
// # Color Scheme
//
// Colors are ANSI codes so they degrade on limited terminals:
//
//	ColorSuccess   (green)  - completed jobs, healthy metrics
//	ColorError     (red)    - failed jobs, critical metrics
//	ColorWarning   (yellow) - pending jobs, elevated metrics
//	ColorInfo      (cyan)   - running jobs
//	ColorMuted     (gray)   - cancelled jobs, secondary text
//
// Use DisableColors() for --no-color output.
//
// # Metrics
//
// Sparklines and progress bars take percentages (0-100) and pick their
// color from the same thresholds:
//
//	ui.RenderSparkline([]float64{10, 40, 95}, 30)  // ▁▄█ in red
//	ui.RenderProgressBar(67.5, 20)                 // [█████████████░░░░░░░]  68%
package ui
