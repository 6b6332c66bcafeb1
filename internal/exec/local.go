package exec

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"

	"github.com/rileyhilliard/slurmterm/internal/errors"
)

// Local runs commands on this machine.
type Local struct{}

// NewLocal returns a runner for the local machine.
func NewLocal() *Local {
	return &Local{}
}

// Run executes name with args. A missing binary yields exit 127 with a
// "command not found" stderr rather than an error.
func (l *Local) Run(ctx context.Context, name string, args ...string) (Result, error) {
	command := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	runErr := command.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), ExitCode: -1},
			errors.WrapWithCode(ctxErr, codeFor(ctxErr),
				fmt.Sprintf("%s did not finish in time", name),
				"Raise general.subprocess_timeout if the controller is slow")
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if stderrors.As(runErr, &exitErr) {
			return Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), ExitCode: exitErr.ExitCode()}, nil
		}
		if stderrors.Is(runErr, exec.ErrNotFound) {
			return Result{Stderr: []byte(name + ": command not found"), ExitCode: ExitNotFound}, nil
		}
		return Result{ExitCode: -1}, errors.WrapWithCode(runErr, errors.ErrExec,
			fmt.Sprintf("Couldn't run %s", name),
			"Make sure the Slurm tools are installed and on PATH")
	}

	return Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil
}

// Describe implements Runner.
func (l *Local) Describe() string {
	return "local"
}

// Close implements Runner.
func (l *Local) Close() error {
	return nil
}

func codeFor(ctxErr error) string {
	if stderrors.Is(ctxErr, context.DeadlineExceeded) {
		return errors.ErrTimeout
	}
	return errors.ErrExec
}
