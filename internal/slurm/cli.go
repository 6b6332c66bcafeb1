package slurm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/exec"
	"github.com/rileyhilliard/slurmterm/internal/logger"
)

// DefaultTimeout bounds each Slurm command when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// CLISource implements Source with the Slurm command-line tools.
type CLISource struct {
	runner     exec.Runner
	timeout    time.Duration
	user       string
	gpuCommand string
	log        logger.Logger
}

// CLIOption configures a CLISource.
type CLIOption func(*CLISource)

// WithTimeout bounds every command. Non-positive values keep the default.
func WithTimeout(d time.Duration) CLIOption {
	return func(s *CLISource) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithUser sets the user reported by CurrentUser.
func WithUser(user string) CLIOption {
	return func(s *CLISource) {
		s.user = user
	}
}

// WithGPUCommand sets the program run under srun to sample GPU usage.
func WithGPUCommand(cmd string) CLIOption {
	return func(s *CLISource) {
		if cmd != "" {
			s.gpuCommand = cmd
		}
	}
}

// WithLogger sets the logger used for command tracing.
func WithLogger(l logger.Logger) CLIOption {
	return func(s *CLISource) {
		s.log = l
	}
}

// NewCLISource returns a Source that runs Slurm tools through r.
func NewCLISource(r exec.Runner, opts ...CLIOption) *CLISource {
	s := &CLISource{
		runner:     r,
		timeout:    DefaultTimeout,
		gpuCommand: "nvidia-smi",
		log:        logger.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Source = (*CLISource)(nil)

// run executes one command under the source timeout. Missing binaries are
// turned into an error; other non-zero exits are left to the caller.
func (s *CLISource) run(ctx context.Context, name string, args ...string) (exec.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.runner.Run(ctx, name, args...)
	s.log.Debug("%s %s: rc=%d in %s", name, strings.Join(args, " "), res.ExitCode, time.Since(start).Round(time.Millisecond))
	if err != nil {
		return res, err
	}
	if missing := exec.MissingToolError(name, s.runner.Describe(), res); missing != nil {
		return res, missing
	}
	return res, nil
}

// output runs a command and returns stdout, treating a non-zero exit as
// an error.
func (s *CLISource) output(ctx context.Context, name string, args ...string) (string, error) {
	res, err := s.run(ctx, name, args...)
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", commandFailed(name, res)
	}
	return string(res.Stdout), nil
}

func commandFailed(name string, res exec.Result) error {
	msg := fmt.Sprintf("%s failed (rc=%d)", name, res.ExitCode)
	if stderr := strings.TrimSpace(string(res.Stderr)); stderr != "" {
		msg += ": " + stderr
	}
	return errors.New(errors.ErrSlurm, msg, "")
}

// CurrentUser implements Source.
func (s *CLISource) CurrentUser() string {
	return s.user
}

// ClusterName implements Source. Any failure reports "unknown".
func (s *CLISource) ClusterName(ctx context.Context) string {
	out, err := s.output(ctx, "scontrol", "show", "config")
	if err != nil {
		s.log.Warn("cluster name: %s", errors.Summary(err))
		return "unknown"
	}
	return ParseClusterName(out)
}

// ListJobs implements Source.
func (s *CLISource) ListJobs(ctx context.Context, user string) ([]JobSnapshot, error) {
	if user == "" {
		user = s.user
	}
	if err := ValidateFilter("user", user); err != nil {
		return nil, err
	}
	out, err := s.output(ctx, "squeue", "-u", user, "--json")
	if err != nil {
		return nil, err
	}
	return ParseSqueue([]byte(out))
}

// JobDetails implements Source. scontrol exits non-zero for unknown jobs,
// which is reported as not found rather than an error.
func (s *CLISource) JobDetails(ctx context.Context, jobID string) (JobDetail, error) {
	id, err := ValidateJobID(jobID)
	if err != nil {
		return JobDetail{}, err
	}
	res, err := s.run(ctx, "scontrol", "show", "job", id, "--json")
	if err != nil {
		return JobDetail{}, err
	}
	if !res.OK() {
		s.log.Debug("job %s not found: %s", id, strings.TrimSpace(string(res.Stderr)))
		return JobDetail{}, nil
	}
	return ParseDetailJSON(res.Stdout)
}

// Cancel implements Source.
func (s *CLISource) Cancel(ctx context.Context, jobID string) (bool, error) {
	return s.control(ctx, jobID, "scancel")
}

// Hold implements Source.
func (s *CLISource) Hold(ctx context.Context, jobID string) (bool, error) {
	return s.control(ctx, jobID, "scontrol", "hold")
}

// Release implements Source.
func (s *CLISource) Release(ctx context.Context, jobID string) (bool, error) {
	return s.control(ctx, jobID, "scontrol", "release")
}

func (s *CLISource) control(ctx context.Context, jobID, name string, args ...string) (bool, error) {
	id, err := ValidateJobID(jobID)
	if err != nil {
		return false, err
	}
	res, err := s.run(ctx, name, append(args, id)...)
	if err != nil {
		return false, err
	}
	if !res.OK() {
		s.log.Info("%s %s refused: %s", name, id, strings.TrimSpace(string(res.Stderr)))
	}
	return res.OK(), nil
}

// Submit implements Source. Parameters become --key=value arguments in
// the order given; the job id is the last word sbatch prints.
func (s *CLISource) Submit(ctx context.Context, script string, params []Param) (string, error) {
	args, err := SbatchArgs(script, params)
	if err != nil {
		return "", err
	}
	res, err := s.run(ctx, "sbatch", args...)
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", errors.New(errors.ErrSlurm,
			fmt.Sprintf("sbatch failed (rc=%d): %s", res.ExitCode, strings.TrimSpace(string(res.Stderr))),
			"")
	}
	return ParseSbatchJobID(string(res.Stdout))
}

// SbatchArgs validates params and builds the sbatch argument list. A script
// path starting with "-" is prefixed with "./" so it is never read as a flag.
func SbatchArgs(script string, params []Param) ([]string, error) {
	if strings.TrimSpace(script) == "" {
		return nil, errors.Validation("script path is empty")
	}
	args := make([]string, 0, len(params)+1)
	for _, p := range params {
		if err := ValidateParam(p); err != nil {
			return nil, err
		}
		args = append(args, p.Arg())
	}
	if strings.HasPrefix(script, "-") {
		script = "./" + script
	}
	return append(args, script), nil
}

// Partitions implements Source.
func (s *CLISource) Partitions(ctx context.Context) ([]string, error) {
	out, err := s.output(ctx, "sinfo", "-h", "-o", "%P")
	if err != nil {
		return nil, err
	}
	return ParsePartitions(out), nil
}

// SinfoRows implements Source.
func (s *CLISource) SinfoRows(ctx context.Context) ([]SinfoRow, error) {
	out, err := s.output(ctx, "sinfo", "-h", "-o", SinfoFormat)
	if err != nil {
		return nil, err
	}
	return ParseSinfo(out), nil
}

// NodeRows implements Source.
func (s *CLISource) NodeRows(ctx context.Context) ([]NodeRow, error) {
	out, err := s.output(ctx, "scontrol", "show", "nodes")
	if err != nil {
		return nil, err
	}
	return ParseNodes(out), nil
}

// AccountingRows implements Source. Empty user or since omit the filter.
func (s *CLISource) AccountingRows(ctx context.Context, user, since string) ([]AccountingRow, error) {
	args := []string{"-n", "-P", "--format=" + SacctFormat}
	if user != "" {
		if err := ValidateFilter("user", user); err != nil {
			return nil, err
		}
		args = append(args, "-u", user)
	}
	if since != "" {
		if err := ValidateFilter("time", since); err != nil {
			return nil, err
		}
		args = append(args, "-S", since)
	}
	out, err := s.output(ctx, "sacct", args...)
	if err != nil {
		return nil, err
	}
	return ParseSacct(out), nil
}

// LiveMetrics implements Source. The bare job id is tried first, then the
// .batch step that most Slurm versions require for batch jobs. No data is
// an empty sample, not an error.
func (s *CLISource) LiveMetrics(ctx context.Context, jobID string) (LiveSample, error) {
	id, err := ValidateJobID(jobID)
	if err != nil {
		return LiveSample{}, err
	}
	for _, step := range []string{id, id + ".batch"} {
		res, err := s.run(ctx, "sstat", "-n", "-P", "--format="+SstatFormat, "-j", step)
		if err != nil {
			return LiveSample{}, err
		}
		if !res.OK() {
			continue
		}
		if sample, ok := ParseSstat(string(res.Stdout)); ok {
			return sample, nil
		}
	}
	return LiveSample{}, nil
}

// GPUUtilization implements Source by running the GPU query inside the
// job's allocation.
func (s *CLISource) GPUUtilization(ctx context.Context, jobID string) ([]float64, error) {
	id, err := ValidateJobID(jobID)
	if err != nil {
		return nil, err
	}
	out, err := s.output(ctx, "srun", "--jobid="+id, "--overlap", s.gpuCommand,
		"--query-gpu=utilization.gpu", "--format=csv,noheader,nounits")
	if err != nil {
		return nil, err
	}
	return ParseGPUUtilization(out)
}
