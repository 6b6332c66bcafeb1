package tui

import (
	"github.com/rileyhilliard/slurmterm/internal/slurm"
	"github.com/rileyhilliard/slurmterm/internal/tail"
)

// LogChunkMsg carries text read by the log tailer.
type LogChunkMsg struct {
	Chunk tail.Chunk
}

// clusterMsg carries the cluster name, fetched once at startup.
type clusterMsg struct {
	name string
}

// actionMsg reports a cancel, hold or release over one or more jobs.
type actionMsg struct {
	action  jobAction
	results []actionResult
}

type actionResult struct {
	id  string
	ok  bool
	err error
}

// submitMsg reports a resubmission from the inspector.
type submitMsg struct {
	id  string
	err error
}

// templateSavedMsg reports saving the resubmit form as a template.
type templateSavedMsg struct {
	name string
	err  error
}

// clearToastMsg expires the toast with the given sequence number.
type clearToastMsg struct {
	seq int
}

// detailSnapshot is one inspector poll: the job's details plus, for
// running jobs without a supplied history, one live usage reading.
type detailSnapshot struct {
	Detail slurm.JobDetail
	Live   slurm.LiveSample
	GPU    []float64
}

// hardwareSnapshot is one hardware poll.
type hardwareSnapshot struct {
	Partitions []slurm.SinfoRow
	Nodes      []slurm.NodeRow
}
