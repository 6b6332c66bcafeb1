package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/slurmterm/internal/ui"
	"github.com/rileyhilliard/slurmterm/internal/util"
)

// Global flags
var (
	cfgFile  string
	noColor  bool
	srcFlags sourceFlags
)

// Root-only flags
var sinceFlag string

// rootCmd launches the dashboard when run without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "slurmterm",
	Short: "Terminal dashboard for Slurm",
	Long: `slurmterm watches your Slurm jobs from the terminal.

It polls the queue, shows live job metrics and logs, and lets you cancel,
hold, release and resubmit jobs without leaving the dashboard.

Examples:
  slurmterm                    # dashboard for your jobs
  slurmterm --demo             # simulated cluster, no Slurm needed
  slurmterm --host login1      # run Slurm tools on a login node over SSH
  slurmterm jobs --json        # one queue snapshot for scripts`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor || os.Getenv("NO_COLOR") != "" {
			ui.DisableColors()
		}
	},
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return dashboardCommand(dashboardOptions{
			ConfigPath: cfgFile,
			Source:     srcFlags,
			Since:      sinceFlag,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/slurmterm/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	addSourceFlags(rootCmd, &srcFlags)

	rootCmd.Flags().StringVar(&sinceFlag, "since", "", "history window passed to sacct -S (e.g., now-2days)")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if isUnknownCommandError(err) {
			if name := extractUnknownCommand(err); name != "" {
				fmt.Fprintln(os.Stderr, unknownCommandMessage(name))
				os.Exit(1)
			}
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// unknownCommandMessage explains an unknown command, suggesting close
// matches among the real ones.
func unknownCommandMessage(name string) string {
	var names []string
	for _, c := range rootCmd.Commands() {
		if c.IsAvailableCommand() {
			names = append(names, c.Name())
		}
	}
	msg := fmt.Sprintf("Unknown command %q.", name)
	if similar := util.SuggestSimilar(name, names, 3); len(similar) > 0 {
		msg += " Did you mean " + strings.Join(similar, " or ") + "?"
	}
	return msg + " Run 'slurmterm --help' to see the available commands."
}

// isUnknownCommandError reports whether cobra rejected the command line
// itself rather than a command failing.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

// extractUnknownCommand pulls the quoted command name out of cobra's
// `unknown command "foo" for "slurmterm"` message.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}
