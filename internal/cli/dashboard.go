package cli

import (
	"context"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/rileyhilliard/slurmterm/internal/config"
	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/logger"
	"github.com/rileyhilliard/slurmterm/internal/templates"
	"github.com/rileyhilliard/slurmterm/internal/tui"
)

// dashboardOptions are the root command's inputs.
type dashboardOptions struct {
	ConfigPath string
	Source     sourceFlags
	Since      string
}

// logFileName is written under the state directory while the TUI runs.
const logFileName = "slurmterm.log"

// dashboardCommand starts the TUI dashboard.
func dashboardCommand(opts dashboardOptions) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New(errors.ErrIO,
			"slurmterm needs an interactive terminal",
			"Use 'slurmterm jobs' or 'slurmterm jobs --json' for plain output")
	}

	// The dashboard owns the screen, so log lines go to a file.
	logPath := stateLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrIO,
			"Couldn't create the log directory",
			"Check permissions on "+filepath.Dir(logPath))
	}
	f, err := tea.LogToFile(logPath, "slurmterm")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrIO,
			"Couldn't open the log file "+logPath, "")
	}
	defer f.Close()

	log := logger.NewEnvLogger("[slurmterm]")
	logger.SetDefault(log)

	cfg, err := loadConfig(opts.ConfigPath, opts.Source, opts.Since, log)
	if err != nil {
		return err
	}

	src, err := openSource(cfg, opts.Source.Demo, log)
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridge := tui.NewBridge(nil)
	model := tui.New(tui.Options{
		Source:    src,
		Config:    cfg,
		User:      src.CurrentUser(),
		Cluster:   src.Cluster,
		Bridge:    bridge,
		Templates: templates.NewStore(templates.ResolveDir(cfg.Templates.Dir)),
		Logger:    log,
		Context:   ctx,
		Reload: func() (*config.Config, error) {
			return loadConfig(opts.ConfigPath, opts.Source, opts.Since, log)
		},
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	bridge.Attach(p)
	_, err = p.Run()
	return err
}

// stateLogPath returns $XDG_STATE_HOME/slurmterm/slurmterm.log, falling
// back to ~/.local/state.
func stateLogPath() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "slurmterm", logFileName)
	}
	return filepath.Join(config.ExpandTilde("~/.local/state"), "slurmterm", logFileName)
}
