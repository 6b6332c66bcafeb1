package slurm

import (
	"regexp"
	"strings"

	"github.com/rileyhilliard/slurmterm/internal/errors"
)

var (
	jobIDRe    = regexp.MustCompile(`^\d+(_\d+)?$`)
	paramKeyRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)
	filterRe   = regexp.MustCompile(`^[a-zA-Z0-9_.@:+/-]+$`)
	jobNameRe  = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.@:+/-]*$`)
)

// MaxJobNameLength is the longest job name accepted.
const MaxJobNameLength = 200

// ValidateJobID trims id and checks it is a numeric job id with an
// optional _N array task suffix.
func ValidateJobID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if !jobIDRe.MatchString(id) {
		return "", errors.Validation("Invalid job ID: %q", id)
	}
	return id, nil
}

// ValidateParam checks an sbatch/srun option before it reaches argv.
func ValidateParam(p Param) error {
	if !paramKeyRe.MatchString(p.Key) {
		return errors.Validation("Unsafe parameter key: %q", p.Key)
	}
	return ValidateParamValue(p.Value)
}

// ValidateParamValue rejects NUL bytes and line breaks.
func ValidateParamValue(v string) error {
	if strings.ContainsAny(v, "\x00\n\r") {
		return errors.Validation("Parameter value contains invalid characters: %q", v)
	}
	return nil
}

// ValidateFilter checks a sacct -u / -S argument.
func ValidateFilter(kind, v string) error {
	if !filterRe.MatchString(v) {
		return errors.Validation("Invalid %s filter: %q", kind, v)
	}
	return nil
}

// ValidateJobName trims name and checks it is usable as --job-name.
func ValidateJobName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.Validation("Job name must not be empty")
	}
	if len(name) > MaxJobNameLength {
		return "", errors.Validation("Job name too long (max %d chars)", MaxJobNameLength)
	}
	if !jobNameRe.MatchString(name) {
		return "", errors.Validation("Job name contains invalid characters (use letters, digits, dots, underscores, @, colons, +, /, hyphens)")
	}
	return name, nil
}
