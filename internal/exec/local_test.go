package exec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/slurmterm/internal/errors"
)

func TestLocal_Run(t *testing.T) {
	r := NewLocal()
	res, err := r.Run(context.Background(), "echo", "hello")

	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "hello\n", string(res.Stdout))
	assert.Empty(t, res.Stderr)
}

func TestLocal_ArgsAreNotShellInterpreted(t *testing.T) {
	res, err := NewLocal().Run(context.Background(), "echo", "$HOME; rm -rf /")

	require.NoError(t, err)
	assert.Equal(t, "$HOME; rm -rf /\n", string(res.Stdout))
}

func TestLocal_NonZeroExit(t *testing.T) {
	res, err := NewLocal().Run(context.Background(), "sh", "-c", "echo oops >&2; exit 42")

	require.NoError(t, err)
	assert.Equal(t, 42, res.ExitCode)
	assert.Equal(t, "oops\n", string(res.Stderr))
	assert.False(t, res.OK())
}

func TestLocal_MissingBinary(t *testing.T) {
	res, err := NewLocal().Run(context.Background(), "slurmterm-definitely-not-a-binary")

	require.NoError(t, err)
	assert.Equal(t, ExitNotFound, res.ExitCode)
	assert.Contains(t, string(res.Stderr), "command not found")
}

func TestLocal_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewLocal().Run(ctx, "sleep", "5")

	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err))
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestLocal_Describe(t *testing.T) {
	r := NewLocal()
	assert.Equal(t, "local", r.Describe())
	assert.NoError(t, r.Close())
}
