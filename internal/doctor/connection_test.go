package doctor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/exec"
)

func TestConnectionCheck_Local(t *testing.T) {
	check := &ConnectionCheck{}
	result := check.Run()
	assert.Equal(t, StatusPass, result.Status)
	require.NotNil(t, check.Runner)
	assert.Equal(t, "local", check.Runner.Describe())
	assert.NoError(t, check.Close())
}

func TestConnectionCheck_Remote(t *testing.T) {
	runner := healthyRunner()
	var dialed string
	check := &ConnectionCheck{
		Host:    "hpc",
		Timeout: time.Second,
		Dial: func(host string, _ time.Duration) (exec.Runner, error) {
			dialed = host
			return runner, nil
		},
	}

	result := check.Run()
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, "hpc", dialed)
	assert.Equal(t, "Connected to hpc over SSH", result.Message)

	require.NoError(t, check.Close())
	assert.True(t, runner.closed)
}

func TestConnectionCheck_DialFails(t *testing.T) {
	check := &ConnectionCheck{
		Host: "hpc",
		Dial: func(string, time.Duration) (exec.Runner, error) {
			return nil, errors.New(errors.ErrSSH, "Can't reach 'hpc'", "Make sure the login node is reachable: ssh hpc")
		},
	}

	result := check.Run()
	assert.Equal(t, StatusFail, result.Status)
	assert.Equal(t, "Can't reach 'hpc'", result.Message)
	assert.Equal(t, "Make sure the login node is reachable: ssh hpc", result.Suggestion)
	assert.Nil(t, check.Runner)
	assert.NoError(t, check.Close())
}

func TestConnectionCheck_RerunClosesPrevious(t *testing.T) {
	first := healthyRunner()
	calls := 0
	check := &ConnectionCheck{
		Host: "hpc",
		Dial: func(string, time.Duration) (exec.Runner, error) {
			calls++
			if calls == 1 {
				return first, nil
			}
			return healthyRunner(), nil
		},
	}

	check.Run()
	check.Run()
	assert.True(t, first.closed)
	assert.Equal(t, 2, calls)
}
