package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rileyhilliard/slurmterm/internal/errors"
)

// historyWindowRe mirrors the characters sacct accepts for -S.
var historyWindowRe = regexp.MustCompile(`^[a-zA-Z0-9_.@:+/-]+$`)

// loginHostRe accepts SSH aliases, hostnames and user@host forms.
var loginHostRe = regexp.MustCompile(`^[a-zA-Z0-9_.@:-]+$`)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but slurmterm only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade slurmterm or lower the version field")
	}

	intervals := []struct {
		name  string
		value time.Duration
	}{
		{"poll.monitor", cfg.Poll.Monitor},
		{"poll.inspector", cfg.Poll.Inspector},
		{"poll.hardware", cfg.Poll.Hardware},
		{"poll.history", cfg.Poll.History},
	}
	for _, iv := range intervals {
		if iv.value < MinPollInterval {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("%s is %s, minimum is %s", iv.name, iv.value, MinPollInterval),
				"Slurm controllers don't like being hammered; pick a longer interval")
		}
	}

	if cfg.General.SubprocessTimeout <= 0 {
		return errors.New(errors.ErrConfig,
			"general.subprocess_timeout must be positive",
			"Use a duration like 30s")
	}

	if cfg.General.HistoryWindow != "" && !historyWindowRe.MatchString(cfg.General.HistoryWindow) {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("general.history_window %q contains characters sacct won't accept", cfg.General.HistoryWindow),
			"Use a value like now-7days or 2024-01-01")
	}

	if cfg.General.LoginHost != "" && !loginHostRe.MatchString(cfg.General.LoginHost) {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("general.login_host %q is not a valid host or SSH alias", cfg.General.LoginHost),
			"Use an alias from ~/.ssh/config or user@host")
	}

	if cfg.GPU.Enabled && strings.TrimSpace(cfg.GPU.Command) == "" {
		return errors.New(errors.ErrConfig,
			"gpu.enabled is set but gpu.command is empty",
			"Set gpu.command to nvidia-smi or disable GPU sampling")
	}

	return nil
}
