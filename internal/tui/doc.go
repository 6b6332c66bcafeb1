// Package tui is the slurmterm dashboard.
//
// The dashboard has four tabs, each backed by its own poller.Poller:
//
//	Monitor    - the user's queue, diffed into the table on every poll
//	Inspector  - one job: details, time progress, metric sparklines and
//	             a live view of its stdout or stderr file
//	Hardware   - partitions and nodes, fetched concurrently
//	History    - finished jobs from accounting, rebuilt on every poll
//
// Only the visible tab polls. Leaving a tab stops its poller; a result
// that was already in flight is dropped when it arrives because its
// generation no longer matches. The inspector's log tailer runs on its
// own goroutine and hands chunks to the program through a Bridge, where
// they are accepted or dropped by generation in the same way.
//
// Every Slurm call runs inside a tea.Cmd, so Update never blocks.
package tui
