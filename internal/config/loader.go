package config

import (
	"os"
	"path/filepath"

	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/logger"
	"github.com/spf13/viper"
)

const (
	// ConfigEnv overrides the config file location.
	ConfigEnv = "SLURMTERM_CONFIG"
	// GlobalConfigDir is the directory for the config file, relative to home.
	GlobalConfigDir = ".config/slurmterm"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yaml"
)

// Load reads config from the specified path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'slurmterm config init' to create one, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// DefaultPath returns where the config file lives when nothing overrides it.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. $SLURMTERM_CONFIG
// 3. ~/.config/slurmterm/config.yaml
//
// Returns the path to the config file, or empty string if not found.
// An explicit path that does not exist is an error; the other locations
// are optional.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	if env := os.Getenv(ConfigEnv); env != "" {
		if _, err := os.Stat(env); err == nil {
			return env, nil
		}
		return "", nil
	}

	if p := DefaultPath(); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", nil
}

// LoadOrDefault loads the config found by Find, or returns defaults when
// there is none. A config file that exists but cannot be parsed or fails
// validation is reported through log and replaced by defaults, so a typo
// never keeps the dashboard from starting.
func LoadOrDefault(explicit string, log logger.Logger) (*Config, string, error) {
	log = logger.OrDefault(log)

	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return DefaultConfig(), "", nil
	}

	cfg, err := Load(path)
	if err != nil {
		log.Warn("using default config, %s could not be loaded: %s", path, errors.Summary(err))
		return DefaultConfig(), path, nil
	}
	if err := Validate(cfg); err != nil {
		log.Warn("using default config, %s is invalid: %s", path, errors.Summary(err))
		return DefaultConfig(), path, nil
	}
	return cfg, path, nil
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	setDefaults(v, cfg)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}

	return cfg, nil
}

// setDefaults registers every default with viper so partially written
// files keep the remaining defaults after Unmarshal.
func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("version", def.Version)
	v.SetDefault("poll.monitor", def.Poll.Monitor.String())
	v.SetDefault("poll.inspector", def.Poll.Inspector.String())
	v.SetDefault("poll.hardware", def.Poll.Hardware.String())
	v.SetDefault("poll.history", def.Poll.History.String())
	v.SetDefault("general.subprocess_timeout", def.General.SubprocessTimeout.String())
	v.SetDefault("general.history_window", def.General.HistoryWindow)
	v.SetDefault("gpu.enabled", def.GPU.Enabled)
	v.SetDefault("gpu.command", def.GPU.Command)
	v.SetDefault("notifications.on_complete", def.Notifications.OnComplete)
	v.SetDefault("notifications.on_fail", def.Notifications.OnFail)
	v.SetDefault("notifications.bell", def.Notifications.Bell)
}
