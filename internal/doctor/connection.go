package doctor

import (
	"fmt"
	"time"

	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/exec"
)

// DialFunc opens a runner on a login host.
type DialFunc func(host string, timeout time.Duration) (exec.Runner, error)

// DialSSH is the DialFunc used outside tests.
func DialSSH(host string, timeout time.Duration) (exec.Runner, error) {
	r, err := exec.DialSSH(host, timeout)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ConnectionCheck opens the runner the Slurm checks use. With no login
// host the tools run locally. After Run, Runner is set when it connected.
type ConnectionCheck struct {
	Host    string
	Timeout time.Duration
	Dial    DialFunc

	Runner exec.Runner
}

func (c *ConnectionCheck) Name() string     { return "connection" }
func (c *ConnectionCheck) Category() string { return CategoryConnection }

func (c *ConnectionCheck) Run() CheckResult {
	if c.Runner != nil {
		_ = c.Runner.Close()
		c.Runner = nil
	}

	if c.Host == "" {
		c.Runner = exec.NewLocal()
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "Running Slurm tools locally",
		}
	}

	dial := c.Dial
	if dial == nil {
		dial = DialSSH
	}
	r, err := dial(c.Host, c.Timeout)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    errors.Summary(err),
			Suggestion: suggestionOf(err),
		}
	}

	c.Runner = r
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Connected to %s over SSH", c.Host),
	}
}

func (c *ConnectionCheck) Fix() error { return nil }

// Close releases the runner, if any.
func (c *ConnectionCheck) Close() error {
	if c.Runner == nil {
		return nil
	}
	return c.Runner.Close()
}
