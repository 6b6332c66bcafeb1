package exec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rileyhilliard/slurmterm/internal/errors"
)

// commandNotFoundPatterns match the "command not found" messages of the
// common shells. They only apply with exit code 127.
var commandNotFoundPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bash: (\S+): command not found`),
	regexp.MustCompile(`(?i)zsh: command not found: (\S+)`),
	regexp.MustCompile(`(?i)sh: \d+: (\S+): not found`),
	regexp.MustCompile(`(?i)(\S+): command not found`),
	regexp.MustCompile(`(?i)(\S+): not found`),
}

// IsCommandNotFound reports whether a result means the program is missing,
// and the program name when stderr names it.
func IsCommandNotFound(stderr string, exitCode int) (string, bool) {
	if exitCode != ExitNotFound {
		return "", false
	}
	for _, pattern := range commandNotFoundPatterns {
		if matches := pattern.FindStringSubmatch(stderr); len(matches) > 1 {
			return matches[1], true
		}
	}
	return "", true
}

// MissingToolError explains a missing Slurm binary on where (a host or
// "local"). It returns nil when the result is not a command-not-found.
func MissingToolError(name, where string, res Result) error {
	found, missing := IsCommandNotFound(string(res.Stderr), res.ExitCode)
	if !missing {
		return nil
	}
	if found == "" {
		found = name
	}
	found = strings.TrimSuffix(found, ":")

	suggestion := fmt.Sprintf(`'%s' isn't on PATH for %s.

Run slurmterm on a cluster login node, pass --host to run the Slurm tools
over SSH, or try --demo to explore with simulated data.`, found, where)

	return errors.New(errors.ErrSlurm,
		fmt.Sprintf("'%s' not found (%s)", found, where),
		suggestion)
}
