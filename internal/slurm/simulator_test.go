package slurm

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestSimulator(t *testing.T, opts ...SimOption) (*Simulator, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]SimOption{SimDir(t.TempDir()), SimClock(clock.Now)}, opts...)
	sim, err := NewSimulator(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sim.Close() })
	return sim, clock
}

func findJob(jobs []JobSnapshot, id string) (JobSnapshot, bool) {
	for _, j := range jobs {
		if j.ID == id {
			return j, true
		}
	}
	return JobSnapshot{}, false
}

func TestSimulator_InitialJobs(t *testing.T) {
	sim, _ := newTestSimulator(t)

	jobs, err := sim.ListJobs(context.Background(), "")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(jobs), 8)

	assert.Equal(t, "100001", jobs[0].ID)
	assert.Equal(t, "100008", jobs[7].ID)
	for _, j := range jobs {
		assert.NotEqual(t, StateUnknown, j.State, j.ID)
		_, err := os.Stat(j.StdoutPath)
		assert.NoError(t, err, "stdout log for %s", j.ID)
		_, err = os.Stat(j.StderrPath)
		assert.NoError(t, err, "stderr log for %s", j.ID)
	}
}

func TestSimulator_Deterministic(t *testing.T) {
	a, _ := newTestSimulator(t)
	b, _ := newTestSimulator(t)

	ja, err := a.ListJobs(context.Background(), "")
	require.NoError(t, err)
	jb, err := b.ListJobs(context.Background(), "")
	require.NoError(t, err)

	require.Equal(t, len(ja), len(jb))
	for i := range ja {
		assert.Equal(t, ja[i].ID, jb[i].ID)
		assert.Equal(t, ja[i].Name, jb[i].Name)
		assert.Equal(t, ja[i].State, jb[i].State)
		assert.Equal(t, ja[i].TimeUsed, jb[i].TimeUsed)
	}
}

func TestSimulator_SubmitHoldRelease(t *testing.T) {
	sim, clock := newTestSimulator(t)
	ctx := context.Background()

	id, err := sim.Submit(ctx, "train.sh", []Param{{Key: "job-name", Value: "mine"}})
	require.NoError(t, err)
	assert.Equal(t, "100009", id)

	held, err := sim.Hold(ctx, id)
	require.NoError(t, err)
	assert.True(t, held)

	clock.Advance(20 * time.Second)
	for i := 0; i < 50; i++ {
		jobs, err := sim.ListJobs(ctx, "")
		require.NoError(t, err)
		j, ok := findJob(jobs, id)
		require.True(t, ok)
		require.Equal(t, StatePendingHeld, j.State, "held jobs never start")
		assert.Equal(t, "mine", j.Name)
	}

	released, err := sim.Release(ctx, id)
	require.NoError(t, err)
	assert.True(t, released)

	released, err = sim.Release(ctx, id)
	require.NoError(t, err)
	assert.False(t, released, "releasing twice is refused")
}

func TestSimulator_HoldOnlyPending(t *testing.T) {
	sim, _ := newTestSimulator(t)
	ctx := context.Background()

	jobs, err := sim.ListJobs(ctx, "")
	require.NoError(t, err)
	for _, j := range jobs {
		held, err := sim.Hold(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, j.State == StatePending, held, "job %s in %s", j.ID, j.State)
	}

	held, err := sim.Hold(ctx, "999")
	require.NoError(t, err)
	assert.False(t, held)

	_, err = sim.Hold(ctx, "not-an-id")
	assert.Error(t, err)
}

func TestSimulator_CancelThenAgeOut(t *testing.T) {
	sim, clock := newTestSimulator(t)
	ctx := context.Background()

	id, err := sim.Submit(ctx, "job.sh", nil)
	require.NoError(t, err)

	done, err := sim.Cancel(ctx, id)
	require.NoError(t, err)
	assert.True(t, done)

	jobs, err := sim.ListJobs(ctx, "")
	require.NoError(t, err)
	j, ok := findJob(jobs, id)
	require.True(t, ok)
	assert.Equal(t, StateCancelled, j.State)

	clock.Advance(31 * time.Second)
	jobs, err = sim.ListJobs(ctx, "")
	require.NoError(t, err)
	_, ok = findJob(jobs, id)
	assert.False(t, ok, "finished jobs leave the queue after 30s")

	done, err = sim.Cancel(ctx, id)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestSimulator_QueueStaysBounded(t *testing.T) {
	sim, clock := newTestSimulator(t)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		clock.Advance(3 * time.Second)
		jobs, err := sim.ListJobs(ctx, "")
		require.NoError(t, err)
		require.LessOrEqual(t, len(jobs), 13)

		seen := map[string]bool{}
		for _, j := range jobs {
			require.False(t, seen[j.ID], "duplicate id %s", j.ID)
			seen[j.ID] = true
		}
	}
}

func TestSimulator_JobDetails(t *testing.T) {
	sim, _ := newTestSimulator(t)
	ctx := context.Background()

	d, err := sim.JobDetails(ctx, "100001")
	require.NoError(t, err)
	require.True(t, d.Found())
	assert.Equal(t, "100001", d.ID)
	assert.NotEmpty(t, d.Name)
	assert.Contains(t, []int64{60, 120, 240, 1440}, d.TimeLimit.Int64())
	assert.Positive(t, d.CPUsPerTask.Int64())
	assert.Positive(t, d.MemoryMB.Int64())
	assert.Positive(t, d.SubmitTime.Int64())
	assert.Contains(t, d.StdoutPath, "slurm-100001.out")
	assert.Contains(t, d.StderrPath, "slurm-100001.err")
	for _, ch := range []string{"cpu", "mem", "gpu"} {
		require.Len(t, d.History[ch], 30, ch)
		for _, v := range d.History[ch] {
			assert.True(t, v >= 0 && v <= 100)
		}
	}

	d, err = sim.JobDetails(ctx, "1")
	require.NoError(t, err)
	assert.False(t, d.Found())
}

func TestSimulator_LiveMetrics(t *testing.T) {
	sim, _ := newTestSimulator(t)
	ctx := context.Background()

	jobs, err := sim.ListJobs(ctx, "")
	require.NoError(t, err)

	for _, j := range jobs {
		s, err := sim.LiveMetrics(ctx, j.ID)
		require.NoError(t, err)
		if j.State == StateRunning {
			assert.False(t, s.Empty(), j.ID)
			assert.Contains(t, s.AveCPU, "%")
			mem, err := ParseMemoryMB(s.MaxRSS)
			require.NoError(t, err)
			assert.LessOrEqual(t, mem, int64(simMemoryMB))
		} else {
			assert.True(t, s.Empty(), j.ID)
		}
	}
}

func TestSimulator_RunningJobsWriteLogs(t *testing.T) {
	sim, _ := newTestSimulator(t)
	ctx := context.Background()

	jobs, err := sim.ListJobs(ctx, "")
	require.NoError(t, err)

	var running JobSnapshot
	for _, j := range jobs {
		if j.State == StateRunning {
			running = j
			break
		}
	}
	if running.ID == "" {
		t.Skip("no running job with this seed")
	}

	before, err := os.ReadFile(running.StdoutPath)
	require.NoError(t, err)
	_, err = sim.ListJobs(ctx, "")
	require.NoError(t, err)
	after, err := os.ReadFile(running.StdoutPath)
	require.NoError(t, err)
	assert.Greater(t, len(after), len(before))
}

func TestSimulator_ClusterViews(t *testing.T) {
	sim, _ := newTestSimulator(t)
	ctx := context.Background()

	assert.Equal(t, "demo-cluster", sim.ClusterName(ctx))

	parts, err := sim.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"debug", "batch", "gpu", "bigmem"}, parts)

	rows, err := sim.SinfoRows(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 6)

	nodes, err := sim.NodeRows(ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, 46)

	acct, err := sim.AccountingRows(ctx, "alice", "now-7days")
	require.NoError(t, err)
	require.Len(t, acct, 15)
	for _, row := range acct {
		assert.NotContains(t, row.JobID, ".")
		if row.State == "COMPLETED" {
			assert.Equal(t, "0:0", row.ExitCode)
		}
	}

	_, err = sim.AccountingRows(ctx, "a b", "")
	assert.Error(t, err)
}

func TestSimulator_SubmitValidates(t *testing.T) {
	sim, _ := newTestSimulator(t)

	_, err := sim.Submit(context.Background(), "job.sh", []Param{{Key: "bad key"}})
	assert.Error(t, err)
}

// zeroSource makes every draw the minimum: first choice, zero probability roll.
type zeroSource struct{}

func (zeroSource) Int63() int64 { return 0 }
func (zeroSource) Seed(int64)   {}

func TestSimulator_FixedSequence(t *testing.T) {
	sim, clock := newTestSimulator(t, SimRandSource(zeroSource{}), SimJobs(2))
	ctx := context.Background()

	jobs, err := sim.ListJobs(ctx, "")
	require.NoError(t, err)
	require.Len(t, jobs, 3, "a zero roll always spawns while under the cap")
	for _, j := range jobs {
		assert.Equal(t, StateRunning, j.State)
		assert.Equal(t, "train_resnet50", j.Name)
		assert.Equal(t, "debug", j.Partition)
	}
	assert.Equal(t, "00:00:03", jobs[0].TimeUsed)

	clock.Advance(21 * time.Second)
	jobs, err = sim.ListJobs(ctx, "")
	require.NoError(t, err)
	for _, j := range jobs[:3] {
		assert.Equal(t, StateCompleted, j.State, "running jobs past 20s finish on a zero roll")
	}

	clock.Advance(10 * time.Second)
	jobs, err = sim.ListJobs(ctx, "")
	require.NoError(t, err)
	for _, j := range jobs {
		assert.NotContains(t, []string{"100001", "100002", "100003"}, j.ID)
	}
}
