package metrics

import (
	"time"

	"github.com/rileyhilliard/slurmterm/internal/slurm"
)

// Mode is how one detail poll feeds the window.
type Mode int

const (
	// ModeNone means the poll produces no samples.
	ModeNone Mode = iota
	// ModeDirect mirrors the history the source supplied.
	ModeDirect
	// ModeDerived appends one sample parsed from live usage.
	ModeDerived
)

func (m Mode) String() string {
	switch m {
	case ModeDirect:
		return "direct"
	case ModeDerived:
		return "derived"
	default:
		return "none"
	}
}

// Sample is one reading for every channel.
type Sample struct {
	CPU    float64
	Memory float64
	GPU    float64
}

// Sampler turns job details and live usage into window samples.
type Sampler struct {
	// GPUEnabled allows querying GPUs for jobs that requested them.
	GPUEnabled bool
	// FallbackMB replaces a missing memory request. Zero uses
	// MemoryFallbackMB.
	FallbackMB int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Mode picks direct mode when the detail carries a history, derived mode
// for running jobs, and nothing otherwise.
func (s Sampler) Mode(d slurm.JobDetail) Mode {
	switch {
	case len(d.History) > 0:
		return ModeDirect
	case d.State == slurm.StateRunning:
		return ModeDerived
	default:
		return ModeNone
	}
}

// WantsGPU reports whether a derived poll should query GPU utilisation.
func (s Sampler) WantsGPU(d slurm.JobDetail) bool {
	return s.GPUEnabled && d.HasGPU()
}

// Mirror copies the detail's history into w, replacing each channel.
// Channels the detail does not mention are left empty.
func (s Sampler) Mirror(w *Window, d slurm.JobDetail) {
	w.Reset()
	for _, ch := range Channels {
		if values, ok := d.History[string(ch)]; ok {
			w.Mirror(ch, values)
		}
	}
}

// Derive parses one live reading. gpu holds per-device utilisation and is
// ignored unless WantsGPU holds for the job.
func (s Sampler) Derive(d slurm.JobDetail, live slurm.LiveSample, gpu []float64) Sample {
	total := int(d.MemoryMB.Int64())
	if total <= 0 {
		total = s.FallbackMB
	}
	if total <= 0 {
		total = MemoryFallbackMB
	}

	var elapsed float64
	if run := s.RunSeconds(d); run > 0 {
		elapsed = float64(run)
	}

	sample := Sample{
		CPU:    CPUPercent(live.AveCPU, elapsed),
		Memory: MemoryPercent(live.MaxRSS, total),
	}
	if s.WantsGPU(d) {
		sample.GPU = GPUPercent(gpu)
	}
	return sample
}

// RunSeconds returns the job's run time, derived from its start time when
// the source did not report one.
func (s Sampler) RunSeconds(d slurm.JobDetail) int64 {
	if !d.RunTime.IsZero() {
		return d.RunTime.Int64()
	}
	start := d.StartTime.Int64()
	if start <= 0 {
		return 0
	}
	run := s.now().Unix() - start
	if run < 0 {
		return 0
	}
	return run
}

// Progress returns time-limit usage for the job.
func (s Sampler) Progress(d slurm.JobDetail) (TimeProgress, bool) {
	run := int64(-1)
	if !d.RunTime.IsZero() {
		run = d.RunTime.Int64()
	}
	return Progress(d.TimeLimit.Int64(), run, d.StartTime.Int64(), s.now())
}

func (s Sampler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
