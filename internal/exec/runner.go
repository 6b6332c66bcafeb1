// Package exec runs Slurm command-line tools, either locally or on a
// cluster login node over SSH.
package exec

import "context"

// ExitNotFound is the exit code reported when the binary does not exist,
// matching what a shell would return.
const ExitNotFound = 127

// Result is the outcome of a command that ran (possibly unsuccessfully).
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// OK reports a zero exit code.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Runner executes a program with arguments. Args are passed as a list and
// never interpreted by a local shell.
//
// A non-zero exit is reported in Result with a nil error. The error is
// reserved for commands that could not run or were cut off by ctx; when
// ctx expires the returned error wraps context.DeadlineExceeded.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
	// Describe names where commands run, for status lines and logs.
	Describe() string
	Close() error
}
