package metrics

import (
	"strconv"
	"strings"

	"github.com/rileyhilliard/slurmterm/internal/slurm"
)

// MemoryFallbackMB is the total used for memory percentages when the job
// reports no memory request.
const MemoryFallbackMB = 64000

// MemoryPercent converts an sstat size such as "1234M" or "5G" into a
// share of totalMB. K, M and G are binary units relative to megabytes and
// a bare number is bytes. Unparseable input or a non-positive total is 0.
func MemoryPercent(rss string, totalMB int) float64 {
	rss = strings.TrimSpace(rss)
	if rss == "" || totalMB <= 0 {
		return 0
	}

	scale := 1.0 / (1024 * 1024)
	switch {
	case strings.HasSuffix(rss, "G"):
		scale, rss = 1024, strings.TrimSuffix(rss, "G")
	case strings.HasSuffix(rss, "M"):
		scale, rss = 1, strings.TrimSuffix(rss, "M")
	case strings.HasSuffix(rss, "K"):
		scale, rss = 1.0/1024, strings.TrimSuffix(rss, "K")
	}

	n, err := strconv.ParseFloat(rss, 64)
	if err != nil {
		return 0
	}
	return Clamp(n * scale / float64(totalMB) * 100)
}

// CPUPercent converts an sstat AveCPU reading into a utilisation figure.
// "N%" is taken literally. Otherwise the value is accumulated CPU time
// ([D-][HH:]MM:SS[.fff]) divided by the wall-clock seconds the job has
// run. Without a positive elapsed time the result is 0.
func CPUPercent(cpu string, elapsedSeconds float64) float64 {
	cpu = strings.TrimSpace(cpu)
	if cpu == "" {
		return 0
	}
	if strings.HasSuffix(cpu, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(cpu, "%"), 64)
		if err != nil {
			return 0
		}
		return Clamp(v)
	}

	if elapsedSeconds <= 0 || !strings.Contains(cpu, ":") {
		return 0
	}
	secs, err := slurm.ParseDurationSeconds(cpu)
	if err != nil || secs <= 0 {
		return 0
	}
	return Clamp(secs / elapsedSeconds * 100)
}

// GPUPercent averages per-device utilisation. No devices is 0.
func GPUPercent(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return Clamp(sum / float64(len(values)))
}
