package config

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// ExpandTilde replaces ~ or ~/path with the user's home directory.
// Does not support ~username syntax - just ~ for the current user.
func ExpandTilde(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}

	return path
}

// Expand replaces ${USER} and ${HOME} in s, then expands a leading ~.
// Used for local paths such as templates.dir.
func Expand(s string) string {
	if s == "" {
		return s
	}

	result := s
	if strings.Contains(result, "${USER}") {
		result = strings.ReplaceAll(result, "${USER}", CurrentUser())
	}
	if strings.Contains(result, "${HOME}") {
		result = strings.ReplaceAll(result, "${HOME}", getHome())
	}
	return ExpandTilde(result)
}

// CurrentUser returns the login name of the person running slurmterm.
// Environment variables win over the password database, matching what
// the Slurm tools report for --user.
func CurrentUser() string {
	for _, key := range []string{"LOGNAME", "USER", "LNAME", "USERNAME"} {
		if name := os.Getenv(key); name != "" {
			return name
		}
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// ResolveUser returns the configured user, or the current user when unset.
func (c *Config) ResolveUser() string {
	if c.General.User != "" {
		return c.General.User
	}
	return CurrentUser()
}

func getHome() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	return "~"
}
