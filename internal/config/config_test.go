package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, 3*time.Second, cfg.Poll.Monitor)
	assert.Equal(t, 3*time.Second, cfg.Poll.Inspector)
	assert.Equal(t, 30*time.Second, cfg.Poll.Hardware)
	assert.Equal(t, 60*time.Second, cfg.Poll.History)
	assert.Equal(t, 30*time.Second, cfg.General.SubprocessTimeout)
	assert.Equal(t, "now-7days", cfg.General.HistoryWindow)
	assert.Empty(t, cfg.General.LoginHost)
	assert.False(t, cfg.GPU.Enabled)
	assert.Equal(t, "nvidia-smi", cfg.GPU.Command)
	assert.False(t, cfg.Notifications.OnComplete)
	assert.False(t, cfg.Notifications.OnFail)
	assert.True(t, cfg.Notifications.Bell)
	assert.NoError(t, Validate(cfg))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `
version: 1
poll:
  monitor: 5s
  hardware: 1m
general:
  subprocess_timeout: 10s
  history_window: now-2days
  login_host: hpc-login
gpu:
  enabled: true
notifications:
  on_fail: true
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Poll.Monitor)
	assert.Equal(t, 3*time.Second, cfg.Poll.Inspector, "unset keys keep defaults")
	assert.Equal(t, time.Minute, cfg.Poll.Hardware)
	assert.Equal(t, 60*time.Second, cfg.Poll.History)
	assert.Equal(t, 10*time.Second, cfg.General.SubprocessTimeout)
	assert.Equal(t, "now-2days", cfg.General.HistoryWindow)
	assert.Equal(t, "hpc-login", cfg.General.LoginHost)
	assert.True(t, cfg.GPU.Enabled)
	assert.Equal(t, "nvidia-smi", cfg.GPU.Command)
	assert.True(t, cfg.Notifications.OnFail)
	assert.False(t, cfg.Notifications.OnComplete)
	assert.True(t, cfg.Notifications.Bell)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poll: [unterminated"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestFind(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(ConfigEnv, "")

	t.Run("nothing found", func(t *testing.T) {
		path, err := Find("")
		require.NoError(t, err)
		assert.Empty(t, path)
	})

	t.Run("explicit missing is an error", func(t *testing.T) {
		_, err := Find(filepath.Join(home, "missing.yaml"))
		require.Error(t, err)
	})

	t.Run("global config", func(t *testing.T) {
		global := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		require.NoError(t, os.MkdirAll(filepath.Dir(global), 0o755))
		require.NoError(t, os.WriteFile(global, []byte("version: 1\n"), 0o644))

		path, err := Find("")
		require.NoError(t, err)
		assert.Equal(t, global, path)
	})

	t.Run("env overrides global", func(t *testing.T) {
		envPath := filepath.Join(home, "env.yaml")
		require.NoError(t, os.WriteFile(envPath, []byte("version: 1\n"), 0o644))
		t.Setenv(ConfigEnv, envPath)

		path, err := Find("")
		require.NoError(t, err)
		assert.Equal(t, envPath, path)
	})
}

func TestLoadOrDefault_FallsBackOnBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poll:\n  monitor: 10ms\n"), 0o644))

	log := logger.NewBufferLogger()
	cfg, used, err := LoadOrDefault(path, log)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.True(t, log.HasLevel("warn"))
}

func TestLoadOrDefault_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(ConfigEnv, "")

	cfg, used, err := LoadOrDefault("", logger.Noop())
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestWriteThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Poll.Monitor = 7 * time.Second
	cfg.General.User = "alice"
	cfg.Notifications.OnComplete = true
	require.NoError(t, Write(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
