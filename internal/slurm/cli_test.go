package slurm

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/exec"
	"github.com/rileyhilliard/slurmterm/internal/logger"
)

// fakeRunner answers commands by their full argv, joined with spaces.
type fakeRunner struct {
	mu        sync.Mutex
	responses map[string]exec.Result
	errs      map[string]error
	block     map[string]bool
	calls     []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		responses: make(map[string]exec.Result),
		errs:      make(map[string]error),
		block:     make(map[string]bool),
	}
}

func (f *fakeRunner) on(cmd string, res exec.Result) {
	f.responses[cmd] = res
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (exec.Result, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	f.mu.Lock()
	f.calls = append(f.calls, key)
	res, ok := f.responses[key]
	err := f.errs[key]
	block := f.block[key]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return exec.Result{ExitCode: -1}, errors.WrapWithCode(ctx.Err(), errors.ErrTimeout, name+" did not finish in time", "")
	}
	if err != nil {
		return exec.Result{ExitCode: -1}, err
	}
	if !ok {
		return exec.Result{Stderr: []byte(name + ": command not found"), ExitCode: exec.ExitNotFound}, nil
	}
	return res, nil
}

func (f *fakeRunner) Describe() string { return "fake" }
func (f *fakeRunner) Close() error     { return nil }

func (f *fakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func okResult(stdout string) exec.Result {
	return exec.Result{Stdout: []byte(stdout)}
}

func TestCLISource_ListJobs(t *testing.T) {
	r := newFakeRunner()
	r.on("squeue -u alice --json", okResult(squeueModern))
	src := NewCLISource(r, WithUser("alice"))

	jobs, err := src.ListJobs(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "1001", jobs[0].ID)
	assert.Equal(t, "alice", src.CurrentUser())
}

func TestCLISource_ListJobs_Failures(t *testing.T) {
	r := newFakeRunner()
	r.on("squeue -u alice --json", exec.Result{Stderr: []byte("slurm_load_jobs error: Unable to contact slurm controller"), ExitCode: 1})
	src := NewCLISource(r)

	_, err := src.ListJobs(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSlurm))
	assert.Contains(t, err.Error(), "squeue failed (rc=1)")

	_, err = src.ListJobs(context.Background(), "bob")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'squeue' not found (fake)")

	_, err = src.ListJobs(context.Background(), "a b")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
}

func TestCLISource_Timeout(t *testing.T) {
	r := newFakeRunner()
	r.block["squeue -u alice --json"] = true
	src := NewCLISource(r, WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := src.ListJobs(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestCLISource_JobDetails(t *testing.T) {
	r := newFakeRunner()
	r.on("scontrol show job 42 --json", okResult(`{"jobs": [{"job_id": 42, "name": "train", "job_state": ["RUNNING"]}]}`))
	r.on("scontrol show job 43 --json", exec.Result{Stderr: []byte("Invalid job id specified"), ExitCode: 1})
	src := NewCLISource(r)

	d, err := src.JobDetails(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "train", d.Name)
	assert.Equal(t, StateRunning, d.State)

	d, err = src.JobDetails(context.Background(), "43")
	require.NoError(t, err)
	assert.False(t, d.Found())

	_, err = src.JobDetails(context.Background(), "42; ls")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
}

func TestCLISource_JobControl(t *testing.T) {
	r := newFakeRunner()
	r.on("scancel 10", okResult(""))
	r.on("scontrol hold 10", exec.Result{Stderr: []byte("Job is no longer pending execution"), ExitCode: 1})
	r.on("scontrol release 10", okResult(""))
	src := NewCLISource(r, WithLogger(logger.NewBufferLogger()))
	ctx := context.Background()

	done, err := src.Cancel(ctx, "10")
	require.NoError(t, err)
	assert.True(t, done)

	done, err = src.Hold(ctx, "10")
	require.NoError(t, err)
	assert.False(t, done)

	done, err = src.Release(ctx, " 10 ")
	require.NoError(t, err)
	assert.True(t, done)

	_, err = src.Cancel(ctx, "abc")
	require.Error(t, err)
	assert.NotContains(t, r.Calls(), "scancel abc")
}

func TestCLISource_Submit(t *testing.T) {
	r := newFakeRunner()
	r.on("sbatch --partition=gpu --exclusive job.sh", okResult("Submitted batch job 777\n"))
	r.on("sbatch ./-weird.sh", okResult("Submitted batch job 778\n"))
	r.on("sbatch broken.sh", exec.Result{Stderr: []byte("error: invalid partition\n"), ExitCode: 1})
	src := NewCLISource(r)
	ctx := context.Background()

	id, err := src.Submit(ctx, "job.sh", []Param{{Key: "partition", Value: "gpu"}, {Key: "exclusive"}})
	require.NoError(t, err)
	assert.Equal(t, "777", id)

	id, err = src.Submit(ctx, "-weird.sh", nil)
	require.NoError(t, err)
	assert.Equal(t, "778", id)

	_, err = src.Submit(ctx, "broken.sh", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sbatch failed (rc=1): error: invalid partition")

	calls := len(r.Calls())
	_, err = src.Submit(ctx, "job.sh", []Param{{Key: "comment", Value: "a\nb"}})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
	assert.Len(t, r.Calls(), calls, "invalid params never reach sbatch")
}

func TestSbatchArgs(t *testing.T) {
	args, err := SbatchArgs("run.sh", []Param{{Key: "time", Value: "01:00:00"}, {Key: "mem", Value: "4G"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"--time=01:00:00", "--mem=4G", "run.sh"}, args)

	_, err = SbatchArgs("  ", nil)
	assert.Error(t, err)
}

func TestCLISource_ClusterInfo(t *testing.T) {
	r := newFakeRunner()
	r.on("scontrol show config", okResult("ClusterName = hpc\n"))
	r.on("sinfo -h -o %P", okResult("debug*\ngpu\n"))
	r.on("sinfo -h -o "+SinfoFormat, okResult("gpu|up|1-00:00:00|2|idle|gpu[1-2]|32|128000|gpu:4\n"))
	r.on("scontrol show nodes", okResult("NodeName=gpu1 State=IDLE\n\nNodeName=gpu2 State=MIXED\n"))
	src := NewCLISource(r)
	ctx := context.Background()

	assert.Equal(t, "hpc", src.ClusterName(ctx))

	parts, err := src.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"debug", "gpu"}, parts)

	rows, err := src.SinfoRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "gpu[1-2]", rows[0].NodeList)

	nodes, err := src.NodeRows(ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestCLISource_ClusterNameUnknownOnFailure(t *testing.T) {
	src := NewCLISource(newFakeRunner())
	assert.Equal(t, "unknown", src.ClusterName(context.Background()))
}

func TestCLISource_AccountingRows(t *testing.T) {
	r := newFakeRunner()
	r.on("sacct -n -P --format="+SacctFormat+" -u alice -S now-7days", okResult("1|a|gpu|COMPLETED|00:01:00|00:00:30|10M|0:0\n1.batch|batch|gpu|COMPLETED|00:01:00|00:00:30|10M|0:0\n"))
	r.on("sacct -n -P --format="+SacctFormat, okResult(""))
	src := NewCLISource(r)
	ctx := context.Background()

	rows, err := src.AccountingRows(ctx, "alice", "now-7days")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0].JobID)

	rows, err = src.AccountingRows(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = src.AccountingRows(ctx, "alice", "now; rm")
	assert.Error(t, err)
}

func TestCLISource_LiveMetrics_BatchFallback(t *testing.T) {
	r := newFakeRunner()
	r.on("sstat -n -P --format="+SstatFormat+" -j 55", okResult(""))
	r.on("sstat -n -P --format="+SstatFormat+" -j 55.batch", okResult("00:05:00|900M|1800M\n"))
	src := NewCLISource(r)

	s, err := src.LiveMetrics(context.Background(), "55")
	require.NoError(t, err)
	assert.Equal(t, LiveSample{AveCPU: "00:05:00", MaxRSS: "900M", MaxVMSize: "1800M"}, s)
	assert.Equal(t, []string{
		"sstat -n -P --format=" + SstatFormat + " -j 55",
		"sstat -n -P --format=" + SstatFormat + " -j 55.batch",
	}, r.Calls())
}

func TestCLISource_LiveMetrics_NoData(t *testing.T) {
	r := newFakeRunner()
	r.on("sstat -n -P --format="+SstatFormat+" -j 56", exec.Result{ExitCode: 1})
	r.on("sstat -n -P --format="+SstatFormat+" -j 56.batch", okResult("||\n"))
	src := NewCLISource(r)

	s, err := src.LiveMetrics(context.Background(), "56")
	require.NoError(t, err)
	assert.True(t, s.Empty())
}

func TestCLISource_GPUUtilization(t *testing.T) {
	r := newFakeRunner()
	r.on("srun --jobid=9 --overlap gpu-query --query-gpu=utilization.gpu --format=csv,noheader,nounits", okResult("40\n60\n"))
	src := NewCLISource(r, WithGPUCommand("gpu-query"))

	vals, err := src.GPUUtilization(context.Background(), "9")
	require.NoError(t, err)
	assert.Equal(t, []float64{40, 60}, vals)
}
