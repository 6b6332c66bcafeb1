package exec

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/slurmterm/internal/errors"
	sshtesting "github.com/rileyhilliard/slurmterm/pkg/sshutil/testing"
)

func TestSSH_QuotesArguments(t *testing.T) {
	mock := sshtesting.NewMockClient("hpc")
	mock.SetCommandResponse(`'squeue' '--user' 'alice' '--json'`, sshtesting.CommandResponse{
		Stdout: []byte(`{"jobs":[]}`),
	})

	r := NewSSH(mock)
	res, err := r.Run(context.Background(), "squeue", "--user", "alice", "--json")

	require.NoError(t, err)
	assert.Equal(t, `{"jobs":[]}`, string(res.Stdout))
	assert.Equal(t, []string{`'squeue' '--user' 'alice' '--json'`}, mock.Commands())
}

func TestSSH_HostileArgumentStaysLiteral(t *testing.T) {
	mock := sshtesting.NewMockClient("hpc")
	r := NewSSH(mock)

	_, err := r.Run(context.Background(), "scancel", "1; rm -rf ~")
	require.NoError(t, err)
	assert.Equal(t, []string{`'scancel' '1; rm -rf ~'`}, mock.Commands())
}

func TestSSH_ExitCodeAndUnknownCommand(t *testing.T) {
	mock := sshtesting.NewMockClient("hpc")
	mock.SetCommandResponse(`^'scontrol'`, sshtesting.CommandResponse{
		Stderr:   []byte("Invalid job id specified"),
		ExitCode: 1,
	})
	r := NewSSH(mock)

	res, err := r.Run(context.Background(), "scontrol", "hold", "42")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "Invalid job id specified", string(res.Stderr))

	res, err = r.Run(context.Background(), "sinfo")
	require.NoError(t, err)
	assert.Equal(t, ExitNotFound, res.ExitCode)
}

func TestSSH_TransportError(t *testing.T) {
	mock := sshtesting.NewMockClient("hpc")
	mock.SetCommandResponse(`'sinfo'`, sshtesting.CommandResponse{Error: fmt.Errorf("connection reset")})

	_, err := NewSSH(mock).Run(context.Background(), "sinfo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestSSH_Timeout(t *testing.T) {
	mock := sshtesting.NewMockClient("hpc")
	mock.SetCommandResponse(`'squeue'`, sshtesting.CommandResponse{Delay: 2 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewSSH(mock).Run(ctx, "squeue")

	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestSSH_DescribeAndClose(t *testing.T) {
	mock := sshtesting.NewMockClient("login01")
	r := NewSSH(mock)

	assert.Equal(t, "login01", r.Describe())
	require.NoError(t, r.Close())
	assert.True(t, mock.IsClosed())
}
