package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/slurmterm/internal/errors"
)

func TestIsCommandNotFound(t *testing.T) {
	tests := []struct {
		name     string
		stderr   string
		exitCode int
		wantCmd  string
		wantHit  bool
	}{
		{"bash", "bash: squeue: command not found", 127, "squeue", true},
		{"zsh", "zsh: command not found: sinfo", 127, "sinfo", true},
		{"dash", "sh: 1: sacct: not found", 127, "sacct", true},
		{"local runner", "sbatch: command not found", 127, "sbatch", true},
		{"127 without message", "", 127, "", true},
		{"other exit code", "bash: squeue: command not found", 1, "", false},
		{"success", "", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, hit := IsCommandNotFound(tt.stderr, tt.exitCode)
			assert.Equal(t, tt.wantHit, hit)
			assert.Equal(t, tt.wantCmd, cmd)
		})
	}
}

func TestMissingToolError(t *testing.T) {
	err := MissingToolError("squeue", "local", Result{Stderr: []byte("squeue: command not found"), ExitCode: 127})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSlurm))
	assert.Contains(t, err.Error(), "'squeue' not found (local)")
	assert.Contains(t, err.Error(), "--demo")

	err = MissingToolError("squeue", "hpc", Result{ExitCode: 127})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'squeue' not found (hpc)")

	assert.NoError(t, MissingToolError("squeue", "local", Result{ExitCode: 1}))
}
