package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/slurmterm/internal/config"
	"github.com/rileyhilliard/slurmterm/internal/doctor"
	"github.com/rileyhilliard/slurmterm/internal/logger"
	"github.com/rileyhilliard/slurmterm/internal/templates"
	"github.com/rileyhilliard/slurmterm/internal/ui"
)

var (
	doctorJSON bool
	doctorFix  bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose config, connection and Slurm tool problems",
	Long: `Check everything slurmterm needs: the config file, the login host
connection, the Slurm command-line tools, the controller and the saved
templates.

Examples:
  slurmterm doctor
  slurmterm doctor --host hpc-login
  slurmterm doctor --fix`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorCommand(cmd.OutOrStdout(), doctorOptions{
			ConfigPath: cfgFile,
			Host:       srcFlags.Host,
			Fix:        doctorFix,
			JSON:       doctorJSON,
		})
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output in JSON format")
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "attempt automatic fixes where possible")
}

// doctorOptions are the doctor command's inputs.
type doctorOptions struct {
	ConfigPath string
	Host       string
	Fix        bool
	JSON       bool
	Dial       doctor.DialFunc
}

// DoctorOutput represents the JSON output for doctor command.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput represents a category of check results.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput summarizes the check results.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	Fixable  int  `json:"fixable"`
	AllClear bool `json:"all_clear"`
}

// doctorCommand runs the checks. The Slurm checks only run once a
// connection is open; a broken config falls back to the defaults so the
// rest of the report is still useful.
func doctorCommand(w io.Writer, opts doctorOptions) error {
	cfg, _, err := config.LoadOrDefault(opts.ConfigPath, logger.Noop())
	if err != nil || config.Validate(cfg) != nil {
		cfg = config.DefaultConfig()
	}
	host := cfg.General.LoginHost
	if opts.Host != "" {
		host = opts.Host
	}

	checks := doctor.NewConfigChecks(opts.ConfigPath)

	conn := &doctor.ConnectionCheck{
		Host:    host,
		Timeout: cfg.General.SubprocessTimeout,
		Dial:    opts.Dial,
	}
	defer conn.Close()
	checks = append(checks, conn)
	results := doctor.RunAll(checks)

	if conn.Runner != nil {
		slurmChecks := doctor.NewSlurmChecks(conn.Runner, cfg.General.SubprocessTimeout)
		checks = append(checks, slurmChecks...)
		results = append(results, doctor.RunAll(slurmChecks)...)
	}

	store := templates.NewStore(templates.ResolveDir(cfg.Templates.Dir))
	tmplCheck := &doctor.TemplatesCheck{Store: store}
	checks = append(checks, tmplCheck)
	results = append(results, tmplCheck.Run())

	if opts.Fix {
		results = doctor.FixAll(checks, results)
	}

	if opts.JSON {
		return WriteJSONSuccess(w, doctorReport(checks, results))
	}
	renderDoctorText(w, checks, results, opts.Fix)
	return nil
}

// doctorReport groups results by category in report order.
func doctorReport(checks []doctor.Check, results []doctor.CheckResult) DoctorOutput {
	grouped := make(map[string][]doctor.CheckResult)
	for i, check := range checks {
		grouped[check.Category()] = append(grouped[check.Category()], results[i])
	}

	out := DoctorOutput{Categories: make([]CategoryOutput, 0, len(grouped))}
	for _, cat := range doctor.CategoryOrder {
		if rs, ok := grouped[cat]; ok {
			out.Categories = append(out.Categories, CategoryOutput{Name: cat, Results: rs})
		}
	}

	counts := doctor.CountByStatus(results)
	out.Summary = SummaryOutput{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		Fixable:  doctor.FixableCount(results),
		AllClear: !doctor.HasIssues(results),
	}
	return out
}

func renderDoctorText(w io.Writer, checks []doctor.Check, results []doctor.CheckResult, fixed bool) {
	headerStyle := lipgloss.NewStyle().Bold(true)
	mutedStyle := ui.MutedStyle()

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("slurmterm diagnostic report"))
	fmt.Fprintln(w)

	report := doctorReport(checks, results)
	for _, cat := range report.Categories {
		fmt.Fprintln(w, headerStyle.Render(cat.Name))
		for _, result := range cat.Results {
			renderCheckResult(w, result, mutedStyle)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("━", 60))
	if !doctor.HasIssues(results) {
		fmt.Fprintf(w, "%s %s\n", ui.SuccessStyle().Render(ui.SymbolPass), doctor.Summary(results))
		return
	}
	fmt.Fprintf(w, "%s %s\n", ui.ErrorStyle().Render(ui.SymbolFail), doctor.Summary(results))
	if n := doctor.FixableCount(results); n > 0 && !fixed {
		fmt.Fprintf(w, "\n  Run with %s to attempt automatic fixes where possible.\n", mutedStyle.Render("--fix"))
	}
}

func renderCheckResult(w io.Writer, result doctor.CheckResult, mutedStyle lipgloss.Style) {
	var symbol string
	var style lipgloss.Style
	switch result.Status {
	case doctor.StatusPass:
		symbol, style = ui.SymbolPass, ui.SuccessStyle()
	case doctor.StatusWarn:
		symbol, style = ui.SymbolWarning, ui.WarningStyle()
	default:
		symbol, style = ui.SymbolFail, ui.ErrorStyle()
	}

	fmt.Fprintf(w, "  %s %s\n", style.Render(symbol), result.Message)
	if result.Suggestion == "" || result.Status == doctor.StatusPass {
		return
	}
	for _, line := range strings.Split(result.Suggestion, "\n") {
		fmt.Fprintf(w, "    %s\n", mutedStyle.Render(line))
	}
}
