package metrics

import "time"

// TimeProgress is how much of a job's time limit has been used.
type TimeProgress struct {
	Total   int64 // seconds
	Elapsed int64 // seconds, never above Total
}

// Fraction returns Elapsed/Total in [0, 1].
func (p TimeProgress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Elapsed) / float64(p.Total)
}

// Remaining returns the seconds left before the limit.
func (p TimeProgress) Remaining() int64 {
	return p.Total - p.Elapsed
}

// Progress computes time-limit usage. limitMinutes is the job's limit;
// runSeconds is the reported run time, or negative when the source did
// not report one, in which case it is derived from startUnix. A zero
// limit means unlimited or unset and yields ok=false so no bar is drawn.
func Progress(limitMinutes, runSeconds, startUnix int64, now time.Time) (TimeProgress, bool) {
	total := limitMinutes * 60
	if total <= 0 {
		return TimeProgress{}, false
	}

	run := runSeconds
	if run < 0 {
		run = 0
		if startUnix > 0 {
			run = now.Unix() - startUnix
			if run < 0 {
				run = 0
			}
		}
	}
	if run > total {
		run = total
	}
	return TimeProgress{Total: total, Elapsed: run}, true
}
