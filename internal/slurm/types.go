// Package slurm talks to the Slurm workload manager.
//
// Source is the boundary the dashboard consumes. CLISource implements it by
// running squeue, sinfo, scontrol, sacct, sstat, sbatch and friends through a
// exec.Runner (locally or on a login node over SSH); Simulator implements
// it with a seeded in-memory cluster for demos and tests.
package slurm

import (
	"context"
	"strings"
)

// JobSnapshot is one row of a queue poll. It is a value: a fresh slice is
// produced by every poll.
type JobSnapshot struct {
	ID        string
	Name      string
	Partition string
	State     JobState
	TimeUsed  string
	Nodes     string
	Reason    string
	User      string

	WorkDir    string
	StdoutPath string
	StderrPath string
	SubmitTime string
	NodeList   string
}

// DiffKey is the tuple of fields whose change makes a row worth redrawing.
type DiffKey struct {
	State    JobState
	TimeUsed string
	Reason   string
	Nodes    string
}

// DiffKey returns the comparable view of the fields the queue diff watches.
func (j JobSnapshot) DiffKey() DiffKey {
	return DiffKey{State: j.State, TimeUsed: j.TimeUsed, Reason: j.Reason, Nodes: j.Nodes}
}

// Matches reports whether filter occurs in the name, id, state or
// partition, ignoring case. An empty filter matches everything.
func (j JobSnapshot) Matches(filter string) bool {
	f := strings.ToLower(strings.TrimSpace(filter))
	if f == "" {
		return true
	}
	for _, field := range []string{j.Name, j.ID, j.State.Display(), j.Partition} {
		if strings.Contains(strings.ToLower(field), f) {
			return true
		}
	}
	return false
}

// SinfoRow is one line of `sinfo -o "%P|%a|%l|%D|%T|%N|%c|%m|%G"`.
type SinfoRow struct {
	Partition string
	Avail     string
	TimeLimit string
	Nodes     string
	State     string
	NodeList  string
	CPUs      string
	MemoryMB  string
	Gres      string
}

// NodeRow is one node block of `scontrol show nodes`, as key=value pairs
// (NodeName, State, CPUTot, CPULoad, RealMemory, FreeMem, Gres, Partitions...).
type NodeRow map[string]string

// AccountingRow is one main-job line of sacct.
type AccountingRow struct {
	JobID     string
	Name      string
	Partition string
	State     string
	Elapsed   string
	TotalCPU  string
	MaxRSS    string
	ExitCode  string
}

// LiveSample is one sstat reading for a running job.
type LiveSample struct {
	AveCPU    string
	MaxRSS    string
	MaxVMSize string
}

// Empty reports whether sstat returned nothing usable.
func (l LiveSample) Empty() bool {
	return l.AveCPU == "" && l.MaxRSS == "" && l.MaxVMSize == ""
}

// Param is one sbatch option. An empty Value renders as a bare flag.
type Param struct {
	Key   string
	Value string
}

// Arg renders the parameter as a command-line argument.
func (p Param) Arg() string {
	if p.Value == "" {
		return "--" + p.Key
	}
	return "--" + p.Key + "=" + p.Value
}

// Source is everything the dashboard needs from the cluster.
//
// Polling calls return an error for failures and timeouts; the caller
// decides whether to surface it. Job control calls return false with a
// nil error when Slurm refused the action (job already left the state),
// and an error only for validation failures, timeouts or an unusable
// transport. Submit returns an error for any failure.
type Source interface {
	CurrentUser() string
	ClusterName(ctx context.Context) string

	ListJobs(ctx context.Context, user string) ([]JobSnapshot, error)
	// JobDetails returns an empty JobDetail and nil error when the job is unknown.
	JobDetails(ctx context.Context, jobID string) (JobDetail, error)

	Cancel(ctx context.Context, jobID string) (bool, error)
	Hold(ctx context.Context, jobID string) (bool, error)
	Release(ctx context.Context, jobID string) (bool, error)
	Submit(ctx context.Context, script string, params []Param) (string, error)

	Partitions(ctx context.Context) ([]string, error)
	SinfoRows(ctx context.Context) ([]SinfoRow, error)
	NodeRows(ctx context.Context) ([]NodeRow, error)
	AccountingRows(ctx context.Context, user, since string) ([]AccountingRow, error)
	LiveMetrics(ctx context.Context, jobID string) (LiveSample, error)
	GPUUtilization(ctx context.Context, jobID string) ([]float64, error)
}
