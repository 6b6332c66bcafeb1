// Package diff computes row-level changes between two keyed snapshots so
// views can apply the minimum set of mutations instead of rebuilding.
package diff

import "github.com/rileyhilliard/slurmterm/internal/slurm"

// Update pairs the previous and current value of a row that changed.
type Update[V any] struct {
	Old V
	New V
}

// Ops is the result of comparing two snapshots.
//
// Removed follows the old snapshot's order; Added and Updated follow the
// new snapshot's order, which is the order the source reported.
type Ops[K comparable, V any] struct {
	Removed []K
	Added   []V
	Updated []Update[V]
}

// Empty reports whether applying the ops would change nothing.
func (o Ops[K, V]) Empty() bool {
	return len(o.Removed) == 0 && len(o.Added) == 0 && len(o.Updated) == 0
}

// Len returns the total number of operations.
func (o Ops[K, V]) Len() int {
	return len(o.Removed) + len(o.Added) + len(o.Updated)
}

// Compute diffs old against new. Rows are matched by key; rows present in
// both are reported as updated only when equal returns false. Duplicate
// keys in new are treated as one row, the first occurrence winning.
func Compute[K comparable, V any](old, new []V, key func(V) K, equal func(a, b V) bool) Ops[K, V] {
	var ops Ops[K, V]

	prev := make(map[K]V, len(old))
	for _, v := range old {
		prev[key(v)] = v
	}
	next := make(map[K]struct{}, len(new))

	for _, v := range new {
		k := key(v)
		if _, dup := next[k]; dup {
			continue
		}
		next[k] = struct{}{}

		was, ok := prev[k]
		switch {
		case !ok:
			ops.Added = append(ops.Added, v)
		case !equal(was, v):
			ops.Updated = append(ops.Updated, Update[V]{Old: was, New: v})
		}
	}

	seen := make(map[K]struct{}, len(old))
	for _, v := range old {
		k := key(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := next[k]; !ok {
			ops.Removed = append(ops.Removed, k)
		}
	}

	return ops
}

// JobOps is the diff of two job queue snapshots.
type JobOps = Ops[string, slurm.JobSnapshot]

// Jobs diffs queue snapshots by job id. A row counts as updated when its
// state, time used, reason or node count changed.
func Jobs(old, new []slurm.JobSnapshot) JobOps {
	return Compute(old, new,
		func(j slurm.JobSnapshot) string { return j.ID },
		func(a, b slurm.JobSnapshot) bool { return a.DiffKey() == b.DiffKey() },
	)
}
