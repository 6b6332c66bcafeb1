package slurm

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set"
	"github.com/google/uuid"

	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/logger"
)

var simPartitions = []string{"debug", "batch", "gpu", "bigmem"}

var simJobNames = []string{
	"train_resnet50", "preprocess_data", "eval_model", "hyperopt_search",
	"feature_extract", "run_simulation", "postprocess", "benchmark_v2",
	"data_augment", "inference_batch",
}

var simUsers = []string{"matte", "alice", "bob"}

var simReasons = []string{"None", "Resources", "Priority", "QOSMaxJobsPerUserLimit", "Dependency"}

type simProfile struct {
	cpusPerTask string
	memoryMB    string
	gres        string
}

var simProfiles = map[string]simProfile{
	"debug":  {"4", "16000", ""},
	"batch":  {"16", "64000", ""},
	"gpu":    {"8", "32000", "gpu:a100:1"},
	"bigmem": {"32", "256000", ""},
}

// simMemoryMB is the job memory the simulated sstat readings are scaled to.
const simMemoryMB = 32000

const (
	simInitialJobs   = 8
	simFirstJobID    = 100001
	simHistoryPoints = 30
	simHistoryCap    = 60
	simMaxJobs       = 12
	simTickSeconds   = 3
)

type simJob struct {
	id         string
	name       string
	partition  string
	state      JobState
	user       string
	elapsed    int64
	nodes      string
	reason     string
	nodeList   string
	born       time.Time
	submitted  time.Time
	logPath    string
	logCounter int
	timeLimit  int64 // minutes
	metrics    map[string][]float64
}

// Simulator is an in-memory cluster for demo mode and tests. Jobs move
// through states on every ListJobs call, and running jobs append lines to
// real log files under a temporary directory.
type Simulator struct {
	mu        sync.Mutex
	rng       *rand.Rand
	now       func() time.Time
	nextID    int
	jobs      map[string]*simJob
	order     []string
	cancelled mapset.Set
	held      mapset.Set
	dir       string
	user      string
	log       logger.Logger
}

// SimOption configures a Simulator.
type SimOption func(*simSettings)

type simSettings struct {
	seed int64
	src  rand.Source
	jobs int
	now  func() time.Time
	dir  string
	user string
	log  logger.Logger
}

// SimSeed sets the random seed (default 42).
func SimSeed(seed int64) SimOption {
	return func(s *simSettings) { s.seed = seed }
}

// SimRandSource replaces the seeded generator, so tests can feed a fixed
// sequence. It wins over SimSeed.
func SimRandSource(src rand.Source) SimOption {
	return func(s *simSettings) { s.src = src }
}

// SimJobs sets how many jobs exist at start (default 8).
func SimJobs(n int) SimOption {
	return func(s *simSettings) { s.jobs = n }
}

// SimClock injects the clock used for job ages.
func SimClock(now func() time.Time) SimOption {
	return func(s *simSettings) { s.now = now }
}

// SimDir sets the directory for log files instead of a fresh temp dir.
func SimDir(dir string) SimOption {
	return func(s *simSettings) { s.dir = dir }
}

// SimUser sets the user reported by CurrentUser.
func SimUser(user string) SimOption {
	return func(s *simSettings) { s.user = user }
}

// SimLogger sets the logger.
func SimLogger(l logger.Logger) SimOption {
	return func(s *simSettings) { s.log = l }
}

// NewSimulator builds a simulated cluster. Call Close to remove its log files.
func NewSimulator(opts ...SimOption) (*Simulator, error) {
	settings := simSettings{
		seed: 42,
		jobs: simInitialJobs,
		now:  time.Now,
		user: "matte",
		log:  logger.Noop(),
	}
	for _, opt := range opts {
		opt(&settings)
	}

	dir := settings.dir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "slurmterm-demo-"+uuid.NewString())
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrIO,
			"Couldn't create the demo log directory", "Check that the temp directory is writable")
	}

	src := settings.src
	if src == nil {
		src = rand.NewSource(settings.seed)
	}

	s := &Simulator{
		rng:       rand.New(src),
		now:       settings.now,
		nextID:    simFirstJobID,
		jobs:      make(map[string]*simJob),
		cancelled: mapset.NewSet(),
		held:      mapset.NewSet(),
		dir:       dir,
		user:      settings.user,
		log:       settings.log,
	}
	for i := 0; i < settings.jobs; i++ {
		if _, err := s.spawn(""); err != nil {
			return nil, err
		}
	}
	return s, nil
}

var _ Source = (*Simulator)(nil)

// Dir returns the directory holding the simulated log files.
func (s *Simulator) Dir() string {
	return s.dir
}

// Close removes the simulated log files.
func (s *Simulator) Close() error {
	return os.RemoveAll(s.dir)
}

// CurrentUser implements Source.
func (s *Simulator) CurrentUser() string {
	return s.user
}

// ClusterName implements Source.
func (s *Simulator) ClusterName(context.Context) string {
	return "demo-cluster"
}

// ListJobs implements Source. Every call advances the simulation one tick;
// jobs of every user are listed.
func (s *Simulator) ListJobs(ctx context.Context, _ string) ([]JobSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "squeue (simulated) interrupted")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick()
	out := make([]JobSnapshot, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.snapshot(s.jobs[id]))
	}
	return out, nil
}

func (s *Simulator) snapshot(j *simJob) JobSnapshot {
	state := j.state.Display()
	if s.held.Contains(j.id) {
		state = "PENDING (Held)"
	}
	return JobSnapshot{
		ID:         j.id,
		Name:       j.name,
		Partition:  j.partition,
		State:      ParseState(state),
		TimeUsed:   FormatDuration(j.elapsed),
		Nodes:      j.nodes,
		Reason:     j.reason,
		User:       j.user,
		StdoutPath: j.logPath,
		StderrPath: errPath(j.logPath),
		NodeList:   j.nodeList,
	}
}

// JobDetails implements Source. The detail is built as the loose map
// scontrol would produce and decoded like a real one.
func (s *Simulator) JobDetails(_ context.Context, jobID string) (JobDetail, error) {
	id, err := ValidateJobID(jobID)
	if err != nil {
		return JobDetail{}, err
	}

	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return JobDetail{}, nil
	}
	profile, ok := simProfiles[j.partition]
	if !ok {
		profile = simProfiles["batch"]
	}
	state := j.state.Display()
	if s.held.Contains(id) {
		state = "PENDING (Held)"
	}
	history := make(map[string]interface{}, len(j.metrics))
	for k, v := range j.metrics {
		history[k] = append([]float64(nil), v...)
	}
	raw := map[string]interface{}{
		"job_id":                  id,
		"name":                    j.name,
		"job_state":               state,
		"partition":               j.partition,
		"user_name":               j.user,
		"working_directory":       fmt.Sprintf("/home/%s/projects/%s", j.user, j.name),
		"submit_time":             map[string]interface{}{"number": float64(j.submitted.Unix()), "set": true, "infinite": false},
		"nodes":                   j.nodeList,
		"node_count":              j.nodes,
		"standard_output":         j.logPath,
		"standard_error":          errPath(j.logPath),
		"command":                 fmt.Sprintf("/home/%s/projects/%s/run.sh", j.user, j.name),
		"time_limit":              j.timeLimit,
		"run_time":                j.elapsed,
		"cpus_per_task":           profile.cpusPerTask,
		"minimum_memory_per_node": profile.memoryMB,
		"gres_detail":             profile.gres,
		"slurmterm_metrics":       history,
	}
	s.mu.Unlock()

	return DecodeDetail(raw)
}

// Cancel implements Source.
func (s *Simulator) Cancel(_ context.Context, jobID string) (bool, error) {
	id, err := ValidateJobID(jobID)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false, nil
	}
	s.cancelled.Add(id)
	s.held.Remove(id)
	j.state = StateCancelled
	return true, nil
}

// Hold implements Source. Only pending jobs can be held.
func (s *Simulator) Hold(_ context.Context, jobID string) (bool, error) {
	id, err := ValidateJobID(jobID)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.state != StatePending {
		return false, nil
	}
	s.held.Add(id)
	return true, nil
}

// Release implements Source.
func (s *Simulator) Release(_ context.Context, jobID string) (bool, error) {
	id, err := ValidateJobID(jobID)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.held.Contains(id) {
		return false, nil
	}
	s.held.Remove(id)
	return true, nil
}

// Submit implements Source. Arguments are validated exactly as for sbatch;
// the new job starts PENDING.
func (s *Simulator) Submit(_ context.Context, script string, params []Param) (string, error) {
	if _, err := SbatchArgs(script, params); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.spawn(StatePending)
	if err != nil {
		return "", err
	}
	for _, p := range params {
		if p.Key == "job-name" && p.Value != "" {
			j.name = p.Value
		}
		if p.Key == "partition" && p.Value != "" {
			j.partition = p.Value
		}
	}
	return j.id, nil
}

// Partitions implements Source.
func (s *Simulator) Partitions(context.Context) ([]string, error) {
	return append([]string(nil), simPartitions...), nil
}

// SinfoRows implements Source.
func (s *Simulator) SinfoRows(context.Context) ([]SinfoRow, error) {
	return []SinfoRow{
		{"debug", "up", "00:30:00", "4", "idle", "node[001-004]", "16", "64000", "(null)"},
		{"batch", "up", "7-00:00:00", "20", "mixed", "node[005-024]", "64", "256000", "(null)"},
		{"batch", "up", "7-00:00:00", "8", "allocated", "node[025-032]", "64", "256000", "(null)"},
		{"gpu", "up", "3-00:00:00", "8", "mixed", "gpu[001-008]", "32", "128000", "gpu:a100:4"},
		{"gpu", "up", "3-00:00:00", "4", "idle", "gpu[009-012]", "32", "128000", "gpu:a100:4"},
		{"bigmem", "up", "2-00:00:00", "2", "idle", "bigmem[001-002]", "128", "1024000", "(null)"},
	}, nil
}

// NodeRows implements Source with randomized loads.
func (s *Simulator) NodeRows(context.Context) ([]NodeRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var nodes []NodeRow
	node := func(name, state, cpus, mem, gres, partition, load, free string) {
		nodes = append(nodes, NodeRow{
			"NodeName": name, "State": state, "CPUTot": cpus, "RealMemory": mem,
			"Gres": gres, "Partitions": partition, "CPULoad": load, "FreeMem": free,
		})
	}

	for i := 1; i <= 4; i++ {
		node(fmt.Sprintf("node%03d", i), "IDLE", "16", "64000", "(null)", "debug",
			fmt.Sprintf("%.2f", s.uniform(0, 1)), "62000")
	}
	for i := 5; i <= 32; i++ {
		state := pick(s.rng, []string{"MIXED", "ALLOCATED", "IDLE"})
		load := "0.00"
		if state != "IDLE" {
			load = fmt.Sprintf("%.2f", s.uniform(10, 60))
		}
		node(fmt.Sprintf("node%03d", i), state, "64", "256000", "(null)", "batch",
			load, strconv.Itoa(s.intn(50000, 250000)))
	}
	for i := 1; i <= 12; i++ {
		state := pick(s.rng, []string{"MIXED", "IDLE"})
		load := "0.00"
		if state == "MIXED" {
			load = fmt.Sprintf("%.2f", s.uniform(5, 30))
		}
		node(fmt.Sprintf("gpu%03d", i), state, "32", "128000", "gpu:a100:4", "gpu",
			load, strconv.Itoa(s.intn(60000, 120000)))
	}
	for i := 1; i <= 2; i++ {
		node(fmt.Sprintf("bigmem%03d", i), "IDLE", "128", "1024000", "(null)", "bigmem",
			"0.00", "1020000")
	}
	return nodes, nil
}

// AccountingRows implements Source with fifteen finished jobs.
func (s *Simulator) AccountingRows(_ context.Context, user, since string) ([]AccountingRow, error) {
	if user != "" {
		if err := ValidateFilter("user", user); err != nil {
			return nil, err
		}
	}
	if since != "" {
		if err := ValidateFilter("time", since); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	states := []string{
		"COMPLETED", "COMPLETED", "COMPLETED", "COMPLETED", "COMPLETED", "COMPLETED",
		"FAILED", "FAILED", "TIMEOUT", "CANCELLED",
	}
	rows := make([]AccountingRow, 0, 15)
	for i := 0; i < 15; i++ {
		elapsed := int64(s.intn(120, 86400))
		cpu := int64(float64(elapsed) * s.uniform(0.3, 1.0) * float64(s.intn(1, 16)))
		state := pick(s.rng, states)
		exit := "0:0"
		if state != "COMPLETED" {
			exit = fmt.Sprintf("%d:0", s.intn(1, 127))
		}
		rows = append(rows, AccountingRow{
			JobID:     strconv.Itoa(99900 + i),
			Name:      pick(s.rng, simJobNames),
			Partition: pick(s.rng, simPartitions),
			State:     state,
			Elapsed:   FormatDuration(elapsed),
			TotalCPU:  FormatDuration(cpu),
			MaxRSS:    fmt.Sprintf("%dM", s.intn(500, 64000)),
			ExitCode:  exit,
		})
	}
	return rows, nil
}

// LiveMetrics implements Source from the job's simulated metric history.
// Only running jobs report data.
func (s *Simulator) LiveMetrics(_ context.Context, jobID string) (LiveSample, error) {
	id, err := ValidateJobID(jobID)
	if err != nil {
		return LiveSample{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.state != StateRunning {
		return LiveSample{}, nil
	}
	cpu := last(j.metrics["cpu"], 50)
	memMB := int(last(j.metrics["mem"], 50) / 100 * simMemoryMB)
	return LiveSample{
		AveCPU:    fmt.Sprintf("%.0f%%", cpu),
		MaxRSS:    fmt.Sprintf("%dM", memMB),
		MaxVMSize: fmt.Sprintf("%dM", memMB+s.intn(1000, 5000)),
	}, nil
}

// GPUUtilization implements Source. Running jobs on GPU partitions report
// their latest simulated reading.
func (s *Simulator) GPUUtilization(_ context.Context, jobID string) ([]float64, error) {
	id, err := ValidateJobID(jobID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.state != StateRunning || simProfiles[j.partition].gres == "" {
		return nil, nil
	}
	return []float64{last(j.metrics["gpu"], 0)}, nil
}

// spawn adds a job. An empty state picks RUNNING, PENDING or COMPLETING
// with weights 3:2:1. Callers hold s.mu (or own s exclusively).
func (s *Simulator) spawn(state JobState) (*simJob, error) {
	id := strconv.Itoa(s.nextID)
	s.nextID++

	if state == "" {
		state = pick(s.rng, []JobState{
			StateRunning, StateRunning, StateRunning,
			StatePending, StatePending, StateCompleting,
		})
	}

	logPath := filepath.Join(s.dir, fmt.Sprintf("slurm-%s.out", id))
	now := s.now()
	header := fmt.Sprintf("=== SLURM Job %s ===\nStarted at: %s\nWorking directory: /home/%s/project\n\n",
		id, now.Format("2006-01-02T15:04:05"), s.user)
	if err := os.WriteFile(logPath, []byte(header), 0o644); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrIO, "Couldn't write demo log file", "")
	}
	if err := os.WriteFile(errPath(logPath), []byte(fmt.Sprintf("=== SLURM Job %s stderr ===\n", id)), 0o644); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrIO, "Couldn't write demo log file", "")
	}

	j := &simJob{
		id:        id,
		name:      pick(s.rng, simJobNames),
		partition: pick(s.rng, simPartitions),
		state:     state,
		user:      pick(s.rng, simUsers),
		nodes:     strconv.Itoa(s.intn(1, 8)),
		born:      now,
		submitted: now.Add(-time.Duration(s.intn(60, 3600)) * time.Second),
		logPath:   logPath,
		timeLimit: pick(s.rng, []int64{60, 120, 240, 1440}),
	}
	if state == StateRunning {
		j.elapsed = int64(s.intn(0, 36000))
		j.reason = "None"
	} else {
		j.reason = pick(s.rng, simReasons)
	}
	j.nodeList = fmt.Sprintf("node[%03d-%03d]", s.intn(1, 50), s.intn(51, 100))
	j.metrics = s.initialMetrics()

	s.jobs[id] = j
	s.order = append(s.order, id)
	return j, nil
}

// initialMetrics builds smooth random walks so charts are never empty.
func (s *Simulator) initialMetrics() map[string][]float64 {
	channels := []struct {
		key          string
		base, spread float64
	}{
		{"cpu", 55, 25},
		{"mem", 50, 20},
		{"gpu", 45, 30},
	}
	out := make(map[string][]float64, len(channels))
	for _, c := range channels {
		v := s.uniform(c.base-c.spread, c.base+c.spread)
		history := []float64{v}
		for i := 1; i < simHistoryPoints; i++ {
			v = clamp(v + s.uniform(-5, 5))
			history = append(history, v)
		}
		out[c.key] = history
	}
	return out
}

// tick advances every job one poll interval.
//
// Running jobs gain elapsed time, walk their metrics and write a log line;
// after 20s they finish with 8% chance per tick (COMPLETED 2:1 over FAILED
// and TIMEOUT), after 15s they start COMPLETING with 5% chance. COMPLETING
// jobs complete with 40% chance. PENDING jobs start after 10s with 15%
// chance. Held and cancelled jobs do not transition. Finished jobs leave
// the queue 30s after spawning, and a new job may appear while fewer than
// twelve exist.
func (s *Simulator) tick() {
	now := s.now()
	var remove []string

	for _, id := range s.order {
		j := s.jobs[id]
		age := now.Sub(j.born).Seconds()

		if !s.cancelled.Contains(id) && !s.held.Contains(id) {
			s.advance(j, age)
		}

		switch j.state {
		case StateCompleted, StateFailed, StateTimeout, StateCancelled:
			if age > 30 {
				remove = append(remove, id)
			}
		}
	}

	for _, id := range remove {
		delete(s.jobs, id)
		s.cancelled.Remove(id)
		s.held.Remove(id)
	}
	if len(remove) > 0 {
		kept := s.order[:0]
		for _, id := range s.order {
			if _, ok := s.jobs[id]; ok {
				kept = append(kept, id)
			}
		}
		s.order = kept
	}

	if len(s.jobs) < simMaxJobs && s.rng.Float64() < 0.2 {
		if _, err := s.spawn(""); err != nil {
			s.log.Warn("demo: %s", errors.Summary(err))
		}
	}
}

func (s *Simulator) advance(j *simJob, age float64) {
	switch j.state {
	case StateRunning:
		j.elapsed += simTickSeconds
		for _, key := range []string{"cpu", "mem", "gpu"} {
			series := append(j.metrics[key], clamp(last(j.metrics[key], 50)+s.uniform(-10, 10)))
			if len(series) > simHistoryCap {
				series = series[len(series)-simHistoryCap:]
			}
			j.metrics[key] = series
		}
		s.writeLogLine(j)
		if age > 20 && s.rng.Float64() < 0.08 {
			j.state = pick(s.rng, []JobState{StateCompleted, StateCompleted, StateFailed, StateTimeout})
		} else if age > 15 && s.rng.Float64() < 0.05 {
			j.state = StateCompleting
		}
	case StateCompleting:
		if s.rng.Float64() < 0.4 {
			j.state = StateCompleted
		}
	case StatePending:
		if age > 10 && s.rng.Float64() < 0.15 {
			j.state = StateRunning
			j.reason = "None"
		}
	}
}

func (s *Simulator) writeLogLine(j *simJob) {
	j.logCounter++
	n := j.logCounter

	var line string
	switch s.rng.Intn(7) {
	case 0:
		line = fmt.Sprintf("Epoch %d/100 - loss: %.4f - val_loss: %.4f - lr: 0.001", n, s.uniform(0.01, 2.0), s.uniform(0.1, 2.5))
	case 1:
		line = fmt.Sprintf("Processing batch %d/500 [%d%%] ETA: %ds", n, min(100, n*2), s.intn(5, 300))
	case 2:
		line = fmt.Sprintf("Checkpoint saved to /scratch/model_epoch_%d.pt", n)
	case 3:
		line = fmt.Sprintf("GPU memory: %dMB / 16384MB  |  Utilization: %d%%", s.intn(2000, 15000), s.intn(30, 99))
	case 4:
		line = fmt.Sprintf("INFO: Worker %d finished task %d in %.2fs", s.intn(0, 7), n, float64(s.intn(5, 300)))
	case 5:
		line = fmt.Sprintf("Loading dataset shard %d/10 (%dMB)", n, s.intn(100, 5000))
	default:
		line = fmt.Sprintf("Evaluating on validation set... accuracy: %.2f%%", s.uniform(60, 99))
	}

	if err := appendLine(j.logPath, line); err != nil {
		s.log.Debug("demo log %s: %v", j.logPath, err)
	}
	if s.rng.Float64() < 0.1 {
		if err := appendLine(errPath(j.logPath), "WARNING: "+line); err != nil {
			s.log.Debug("demo log %s: %v", errPath(j.logPath), err)
		}
	}
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	_, err = f.WriteString(line + "\n")
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func errPath(out string) string {
	if out == "" {
		return ""
	}
	return strings.TrimSuffix(out, ".out") + ".err"
}

// uniform returns a float in [lo, hi).
func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// intn returns an int in [lo, hi].
func (s *Simulator) intn(lo, hi int) int {
	return lo + s.rng.Intn(hi-lo+1)
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.Intn(len(items))]
}

func last(series []float64, fallback float64) float64 {
	if len(series) == 0 {
		return fallback
	}
	return series[len(series)-1]
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
