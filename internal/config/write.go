package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rileyhilliard/slurmterm/internal/errors"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape. Durations are written as strings so the
// file stays human editable.
type fileConfig struct {
	Version int `yaml:"version"`
	Poll    struct {
		Monitor   string `yaml:"monitor"`
		Inspector string `yaml:"inspector"`
		Hardware  string `yaml:"hardware"`
		History   string `yaml:"history"`
	} `yaml:"poll"`
	General struct {
		SubprocessTimeout string `yaml:"subprocess_timeout"`
		HistoryWindow     string `yaml:"history_window"`
		User              string `yaml:"user"`
		LoginHost         string `yaml:"login_host"`
	} `yaml:"general"`
	GPU           GPUConfig          `yaml:"gpu"`
	Notifications NotificationConfig `yaml:"notifications"`
	Templates     TemplatesConfig    `yaml:"templates"`
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	var fc fileConfig
	fc.Version = cfg.Version
	fc.Poll.Monitor = cfg.Poll.Monitor.String()
	fc.Poll.Inspector = cfg.Poll.Inspector.String()
	fc.Poll.Hardware = cfg.Poll.Hardware.String()
	fc.Poll.History = cfg.Poll.History.String()
	fc.General.SubprocessTimeout = cfg.General.SubprocessTimeout.String()
	fc.General.HistoryWindow = cfg.General.HistoryWindow
	fc.General.User = cfg.General.User
	fc.General.LoginHost = cfg.General.LoginHost
	fc.GPU = cfg.GPU
	fc.Notifications = cfg.Notifications
	fc.Templates = cfg.Templates

	var buf bytes.Buffer
	buf.WriteString("# slurmterm configuration\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&fc); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Write saves cfg to path, creating parent directories as needed.
func Write(path string, cfg *Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to render config", "")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to create config directory",
			"Check permissions on "+filepath.Dir(path))
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to write config file",
			"Check permissions on "+path)
	}
	return nil
}
