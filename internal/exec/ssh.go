package exec

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/util"
	"github.com/rileyhilliard/slurmterm/pkg/sshutil"
)

// SSH runs commands on a login node. Each argument is single-quoted so the
// remote shell sees exactly the argv a local run would.
type SSH struct {
	client sshutil.SSHClient
}

// NewSSH wraps an established SSH client.
func NewSSH(client sshutil.SSHClient) *SSH {
	return &SSH{client: client}
}

// DialSSH connects to host and returns a runner for it.
func DialSSH(host string, timeout time.Duration) (*SSH, error) {
	client, err := sshutil.Dial(host, timeout)
	if err != nil {
		return nil, err
	}
	return NewSSH(client), nil
}

// Run executes the command remotely. The SSH session cannot be interrupted
// mid-command, so on ctx expiry Run returns immediately and the session
// finishes in the background.
func (s *SSH) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := buildCommand(name, args)

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		stdout, stderr, code, err := s.client.Exec(cmd)
		done <- outcome{Result{Stdout: stdout, Stderr: stderr, ExitCode: code}, err}
	}()

	select {
	case <-ctx.Done():
		return Result{ExitCode: -1}, errors.WrapWithCode(ctx.Err(), codeFor(ctx.Err()),
			fmt.Sprintf("%s on %s did not finish in time", name, s.client.GetHost()),
			"Raise general.subprocess_timeout if the login node is slow")
	case o := <-done:
		if o.err != nil {
			return Result{ExitCode: -1}, o.err
		}
		return o.res, nil
	}
}

// Describe implements Runner.
func (s *SSH) Describe() string {
	return s.client.GetHost()
}

// Close closes the underlying connection.
func (s *SSH) Close() error {
	return s.client.Close()
}

func buildCommand(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, util.ShellQuote(name))
	for _, a := range args {
		parts = append(parts, util.ShellQuote(a))
	}
	return strings.Join(parts, " ")
}
