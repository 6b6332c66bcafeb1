package doctor

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/exec"
)

// RequiredTools are the Slurm programs the dashboard cannot work without.
var RequiredTools = []string{"squeue", "sacct", "scontrol", "sinfo", "sbatch", "scancel"}

// OptionalTools degrade a single feature when missing.
var OptionalTools = map[string]string{
	"sstat": "live CPU and memory of running jobs",
	"srun":  "GPU sampling in the inspector",
}

// optionalOrder keeps the optional checks in a stable order.
var optionalOrder = []string{"sstat", "srun"}

// ToolCheck verifies that a Slurm program runs where slurmterm runs it.
type ToolCheck struct {
	Tool     string
	Optional bool
	Runner   exec.Runner
	Timeout  time.Duration
}

func (c *ToolCheck) Name() string     { return "tool_" + c.Tool }
func (c *ToolCheck) Category() string { return CategorySlurm }

func (c *ToolCheck) Run() CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	where := c.Runner.Describe()
	res, err := c.Runner.Run(ctx, c.Tool, "--version")
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     c.failStatus(),
			Message:    fmt.Sprintf("%s: %s", c.Tool, errors.Summary(err)),
			Suggestion: suggestionOf(err),
		}
	}
	if missing := exec.MissingToolError(c.Tool, where, res); missing != nil {
		result := CheckResult{
			Name:       c.Name(),
			Status:     c.failStatus(),
			Message:    fmt.Sprintf("%s not found (%s)", c.Tool, where),
			Suggestion: suggestionOf(missing),
		}
		if c.Optional {
			result.Suggestion = "Without it slurmterm can't show " + OptionalTools[c.Tool]
		}
		return result
	}

	version := firstLine(string(res.Stdout))
	if version == "" {
		version = "installed"
	}
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%s: %s", c.Tool, version),
	}
}

func (c *ToolCheck) Fix() error { return nil }

func (c *ToolCheck) failStatus() CheckStatus {
	if c.Optional {
		return StatusWarn
	}
	return StatusFail
}

// ControllerCheck asks slurmctld whether it is up with `scontrol ping`.
type ControllerCheck struct {
	Runner  exec.Runner
	Timeout time.Duration
}

func (c *ControllerCheck) Name() string     { return "controller" }
func (c *ControllerCheck) Category() string { return CategorySlurm }

func (c *ControllerCheck) Run() CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	res, err := c.Runner.Run(ctx, "scontrol", "ping")
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Controller: " + errors.Summary(err),
			Suggestion: suggestionOf(err),
		}
	}

	out := strings.TrimSpace(string(res.Stdout))
	if !res.OK() || !strings.Contains(out, "UP") {
		detail := firstLine(string(res.Stderr))
		if detail == "" {
			detail = firstLine(out)
		}
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Controller is not responding: " + detail,
			Suggestion: "Ask your cluster admins whether slurmctld is down",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: firstLine(out),
	}
}

func (c *ControllerCheck) Fix() error { return nil }

// NewSlurmChecks returns the tool and controller checks run through r.
func NewSlurmChecks(r exec.Runner, timeout time.Duration) []Check {
	checks := make([]Check, 0, len(RequiredTools)+len(optionalOrder)+1)
	for _, tool := range RequiredTools {
		checks = append(checks, &ToolCheck{Tool: tool, Runner: r, Timeout: timeout})
	}
	for _, tool := range optionalOrder {
		checks = append(checks, &ToolCheck{Tool: tool, Optional: true, Runner: r, Timeout: timeout})
	}
	return append(checks, &ControllerCheck{Runner: r, Timeout: timeout})
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func suggestionOf(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Suggestion
	}
	return ""
}
