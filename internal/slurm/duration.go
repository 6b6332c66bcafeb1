package slurm

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rileyhilliard/slurmterm/internal/errors"
)

// ParseDuration parses a Slurm time string (SS, MM:SS, HH:MM:SS or
// D-HH:MM:SS, optional fraction on the last component) into whole seconds.
func ParseDuration(s string) (int64, error) {
	f, err := ParseDurationSeconds(s)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// ParseDurationSeconds is ParseDuration keeping fractional seconds.
func ParseDurationSeconds(s string) (float64, error) {
	orig := s
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.Validation("Empty time string")
	}

	var days int64
	if i := strings.IndexByte(s, '-'); i >= 0 {
		d, err := parseUint(s[:i])
		if err != nil {
			return 0, errors.Validation("Invalid time format: %q", orig)
		}
		days = d
		s = s[i+1:]
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, errors.Validation("Invalid time format: %q", orig)
	}

	lastText := parts[len(parts)-1]
	last, err := strconv.ParseFloat(lastText, 64)
	if err != nil || strings.Trim(lastText, "0123456789.") != "" {
		return 0, errors.Validation("Invalid time format: %q", orig)
	}

	total := float64(days * 86400)
	multipliers := []int64{3600, 60}[3-len(parts):]
	for i, p := range parts[:len(parts)-1] {
		n, err := parseUint(p)
		if err != nil {
			return 0, errors.Validation("Invalid time format: %q", orig)
		}
		total += float64(n * multipliers[i])
	}
	return total + last, nil
}

// FormatDuration renders seconds as HH:MM:SS, or D-HH:MM:SS from one day up.
// Negative input renders as zero.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	days := seconds / 86400
	rem := seconds % 86400
	h, m, s := rem/3600, rem%3600/60, rem%60
	if days > 0 {
		return fmt.Sprintf("%d-%02d:%02d:%02d", days, h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

var memoryRe = regexp.MustCompile(`(?i)^\s*(\d+)\s*([KMGT]?)B?\s*$`)

var memoryMultipliers = map[string]float64{
	"":  1,
	"K": 1.0 / 1024,
	"M": 1,
	"G": 1024,
	"T": 1024 * 1024,
}

// ParseMemoryMB parses a memory request like "4G" or "512" into megabytes.
// A bare number is megabytes; any positive input yields at least 1.
func ParseMemoryMB(s string) (int64, error) {
	m := memoryRe.FindStringSubmatch(s)
	if m == nil {
		return 0, errors.Validation("Invalid memory format: %q", s)
	}
	value, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, errors.Validation("Invalid memory format: %q", s)
	}
	if value == 0 {
		return 0, nil
	}
	scaled := float64(value) * memoryMultipliers[strings.ToUpper(m[2])]
	if scaled >= math.MaxInt64 {
		return 0, errors.Validation("Invalid memory format: %q", s)
	}
	mb := int64(scaled)
	if mb < 1 {
		mb = 1
	}
	return mb, nil
}

// FormatMemoryMB renders megabytes the way a --mem request is written:
// whole gigabytes as "NG", anything else as "NM".
func FormatMemoryMB(mb int64) string {
	if mb >= 1024 && mb%1024 == 0 {
		return fmt.Sprintf("%dG", mb/1024)
	}
	return fmt.Sprintf("%dM", mb)
}

func parseUint(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty component")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit %q", r)
		}
	}
	return strconv.ParseInt(s, 10, 64)
}
