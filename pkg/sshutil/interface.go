// Package sshutil connects to cluster login nodes over SSH.
package sshutil

// SSHClient defines the interface for SSH command execution.
// Both the real Client and the mock in sshutil/testing satisfy it.
type SSHClient interface {
	// Exec runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	// A non-zero exit code with nil error means the command ran but failed.
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)

	// Close closes the SSH connection.
	Close() error

	// GetHost returns the original host/alias used to connect.
	GetHost() string
}

var _ SSHClient = (*Client)(nil)
