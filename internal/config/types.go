package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// MinPollInterval is the shortest poll interval accepted for any tab.
const MinPollInterval = 500 * time.Millisecond

// Config represents the complete slurmterm configuration file.
type Config struct {
	Version       int                `yaml:"version" mapstructure:"version"`
	Poll          PollConfig         `yaml:"poll" mapstructure:"poll"`
	General       GeneralConfig      `yaml:"general" mapstructure:"general"`
	GPU           GPUConfig          `yaml:"gpu" mapstructure:"gpu"`
	Notifications NotificationConfig `yaml:"notifications" mapstructure:"notifications"`
	Templates     TemplatesConfig    `yaml:"templates" mapstructure:"templates"`
}

// PollConfig holds the refresh interval of each dashboard tab.
type PollConfig struct {
	Monitor   time.Duration `yaml:"monitor" mapstructure:"monitor"`
	Inspector time.Duration `yaml:"inspector" mapstructure:"inspector"`
	Hardware  time.Duration `yaml:"hardware" mapstructure:"hardware"`
	History   time.Duration `yaml:"history" mapstructure:"history"`
}

// GeneralConfig holds settings shared by every Slurm call.
type GeneralConfig struct {
	// SubprocessTimeout bounds every Slurm command invocation.
	SubprocessTimeout time.Duration `yaml:"subprocess_timeout" mapstructure:"subprocess_timeout"`

	// HistoryWindow is passed to sacct -S (e.g. "now-7days").
	HistoryWindow string `yaml:"history_window" mapstructure:"history_window"`

	// User whose jobs are shown. Empty means the current user.
	User string `yaml:"user" mapstructure:"user"`

	// LoginHost is an SSH alias for a cluster login node. When set, Slurm
	// commands run there instead of locally.
	LoginHost string `yaml:"login_host" mapstructure:"login_host"`
}

// GPUConfig controls live GPU sampling in the inspector.
type GPUConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Command string `yaml:"command" mapstructure:"command"`
}

// NotificationConfig controls which job transitions raise an alert.
type NotificationConfig struct {
	OnComplete bool `yaml:"on_complete" mapstructure:"on_complete"`
	OnFail     bool `yaml:"on_fail" mapstructure:"on_fail"`

	// Bell rings the terminal bell along with the status toast.
	Bell bool `yaml:"bell" mapstructure:"bell"`
}

// TemplatesConfig locates the job template store.
type TemplatesConfig struct {
	// Dir overrides the template directory. SLURMTERM_TEMPLATES_DIR wins over it.
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Poll: PollConfig{
			Monitor:   3 * time.Second,
			Inspector: 3 * time.Second,
			Hardware:  30 * time.Second,
			History:   60 * time.Second,
		},
		General: GeneralConfig{
			SubprocessTimeout: 30 * time.Second,
			HistoryWindow:     "now-7days",
		},
		GPU: GPUConfig{
			Enabled: false,
			Command: "nvidia-smi",
		},
		Notifications: NotificationConfig{
			OnComplete: false,
			OnFail:     false,
			Bell:       true,
		},
	}
}
