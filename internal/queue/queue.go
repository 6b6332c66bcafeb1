// Package queue holds the dashboard's view of the job queue between polls.
package queue

import (
	"sort"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set"

	"github.com/rileyhilliard/slurmterm/internal/diff"
	"github.com/rileyhilliard/slurmterm/internal/notify"
	"github.com/rileyhilliard/slurmterm/internal/slurm"
)

// Result describes what changed in one Apply.
type Result struct {
	Ops diff.JobOps
	// Rebuild is set when a filter is active. The caller should redraw
	// from Visible instead of applying Ops row by row.
	Rebuild bool
	Events  []notify.Event
}

// Changed reports whether the caller has anything to redraw.
func (r Result) Changed() bool {
	return r.Rebuild || !r.Ops.Empty()
}

// View is the last known queue snapshot plus the user's selection and
// filter. It is owned by a single goroutine and is not safe for
// concurrent use.
type View struct {
	jobs     []slurm.JobSnapshot
	byID     map[string]slurm.JobSnapshot
	selected mapset.Set
	filter   string
	now      func() time.Time
}

// Option configures a View.
type Option func(*View)

// WithClock sets the time stamped on events.
func WithClock(now func() time.Time) Option {
	return func(v *View) {
		v.now = now
	}
}

// New returns an empty view.
func New(opts ...Option) *View {
	v := &View{
		byID:     make(map[string]slurm.JobSnapshot),
		selected: mapset.NewSet(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Apply replaces the snapshot with jobs, prunes the selection to jobs
// still listed, and reports the diff and any notification events.
func (v *View) Apply(jobs []slurm.JobSnapshot) Result {
	ops := diff.Jobs(v.jobs, jobs)
	at := v.now()

	var events []notify.Event
	for _, u := range ops.Updated {
		if ev, ok := notify.Transition(u.Old, u.New, at); ok {
			events = append(events, ev)
		}
	}
	for _, id := range ops.Removed {
		if ev, ok := notify.Vanished(v.byID[id], at); ok {
			events = append(events, ev)
		}
	}

	v.jobs = append([]slurm.JobSnapshot(nil), jobs...)
	v.byID = make(map[string]slurm.JobSnapshot, len(jobs))
	for _, j := range jobs {
		v.byID[j.ID] = j
	}
	v.prune()

	return Result{
		Ops:     ops,
		Rebuild: v.filter != "",
		Events:  events,
	}
}

func (v *View) prune() {
	for _, item := range v.selected.ToSlice() {
		if _, ok := v.byID[item.(string)]; !ok {
			v.selected.Remove(item)
		}
	}
}

// Jobs returns the full snapshot in source order.
func (v *View) Jobs() []slurm.JobSnapshot {
	return append([]slurm.JobSnapshot(nil), v.jobs...)
}

// Len returns the number of jobs in the snapshot.
func (v *View) Len() int {
	return len(v.jobs)
}

// Get returns a job from the snapshot.
func (v *View) Get(id string) (slurm.JobSnapshot, bool) {
	j, ok := v.byID[id]
	return j, ok
}

// Visible returns the jobs matching the filter, in source order.
func (v *View) Visible() []slurm.JobSnapshot {
	if v.filter == "" {
		return v.Jobs()
	}
	var out []slurm.JobSnapshot
	for _, j := range v.jobs {
		if j.Matches(v.filter) {
			out = append(out, j)
		}
	}
	return out
}

// SetFilter sets the substring filter. Surrounding whitespace is ignored.
func (v *View) SetFilter(filter string) {
	v.filter = strings.TrimSpace(filter)
}

// Filter returns the active filter.
func (v *View) Filter() string {
	return v.filter
}

// ToggleSelected flips the selection of a listed job and reports whether
// it is now selected. Unknown ids are ignored.
func (v *View) ToggleSelected(id string) bool {
	if _, ok := v.byID[id]; !ok {
		return false
	}
	if v.selected.Contains(id) {
		v.selected.Remove(id)
		return false
	}
	v.selected.Add(id)
	return true
}

// IsSelected reports whether id is selected.
func (v *View) IsSelected(id string) bool {
	return v.selected.Contains(id)
}

// Selected returns the selected ids, sorted.
func (v *View) Selected() []string {
	ids := make([]string, 0, v.selected.Cardinality())
	for _, item := range v.selected.ToSlice() {
		ids = append(ids, item.(string))
	}
	sort.Strings(ids)
	return ids
}

// ClearSelection deselects everything.
func (v *View) ClearSelection() {
	v.selected.Clear()
}
