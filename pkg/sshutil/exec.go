package sshutil

import (
	"bytes"
	stderrors "errors"
	"fmt"

	"github.com/rileyhilliard/slurmterm/internal/errors"
	"golang.org/x/crypto/ssh"
)

// Exec runs a command on the remote host and returns the output.
// Returns stdout, stderr, exit code, and any error.
// Exit code is -1 if the command couldn't be executed at all.
func (c *Client) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.NewSession()
	if err != nil {
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try restarting slurmterm.")
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	if err := session.Run(cmd); err != nil {
		var exitErr *ssh.ExitError
		if stderrors.As(err, &exitErr) {
			return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitErr.ExitStatus(), nil
		}
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to execute command: %s", cmd),
			"Check if the command exists on the login node.")
	}

	return stdoutBuf.Bytes(), stderrBuf.Bytes(), 0, nil
}
