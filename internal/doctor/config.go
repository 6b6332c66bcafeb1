package doctor

import (
	"fmt"

	"github.com/rileyhilliard/slurmterm/internal/config"
	"github.com/rileyhilliard/slurmterm/internal/errors"
)

// ConfigFileCheck reports which config file is in effect. No file is only
// a warning since the defaults work.
type ConfigFileCheck struct {
	ConfigPath string // Explicit path, or empty to search
}

func (c *ConfigFileCheck) Name() string     { return "config_file" }
func (c *ConfigFileCheck) Category() string { return CategoryConfig }

func (c *ConfigFileCheck) Run() CheckResult {
	path, err := config.Find(c.ConfigPath)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    errors.Summary(err),
			Suggestion: "Check the --config path or $" + config.ConfigEnv,
		}
	}

	if path == "" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "No config file, using built-in defaults",
			Suggestion: "Run 'slurmterm config init' to create one",
			Fixable:    c.ConfigPath == "" && config.DefaultPath() != "",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Config file: %s", path),
	}
}

// Fix writes the default config to the default location.
func (c *ConfigFileCheck) Fix() error {
	path := config.DefaultPath()
	if c.ConfigPath != "" || path == "" {
		return nil
	}
	return config.Write(path, config.DefaultConfig())
}

// ConfigSchemaCheck loads and validates the config file in effect.
type ConfigSchemaCheck struct {
	ConfigPath string
}

func (c *ConfigSchemaCheck) Name() string     { return "config_schema" }
func (c *ConfigSchemaCheck) Category() string { return CategoryConfig }

func (c *ConfigSchemaCheck) Run() CheckResult {
	path, err := config.Find(c.ConfigPath)
	if err != nil || path == "" {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "Built-in defaults are valid",
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    errors.Summary(err),
			Suggestion: "Check the YAML syntax in " + path,
		}
	}

	if err := config.Validate(cfg); err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    errors.Summary(err),
			Suggestion: suggestionOf(err),
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: "Config settings are valid",
	}
}

func (c *ConfigSchemaCheck) Fix() error { return nil }

// NewConfigChecks returns the config checks for an explicit path, or for
// the search order when path is empty.
func NewConfigChecks(path string) []Check {
	return []Check{
		&ConfigFileCheck{ConfigPath: path},
		&ConfigSchemaCheck{ConfigPath: path},
	}
}
