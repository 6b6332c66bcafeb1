// Package cli implements the slurmterm command-line interface.
//
// The package is organized around Cobra commands, each delegating to a
// plain function (jobsCommand, submitCommand, ...) that takes its inputs
// and an io.Writer, so commands can be exercised without cobra.
//
// # Command Structure
//
// The root command "slurmterm" starts the dashboard; subcommands cover
// the one-shot operations:
//
//	slurmterm                         - Interactive dashboard
//	slurmterm jobs [--json]           - One queue snapshot
//	slurmterm submit [script]         - Submit with sbatch, optionally from a template
//	slurmterm template [list|show|save|delete]
//	slurmterm config [init|show]
//	slurmterm version
//
// # Sources
//
// Every command that talks to the cluster goes through openSource, which
// returns the simulator for --demo, the Slurm tools on a login node over
// SSH when --host or general.login_host is set, or the local Slurm tools.
//
// # Flag Handling
//
// Global flags (--config, --no-color, --demo, --user, --host) are defined
// on the root command and available to all subcommands. --user and --host
// override the matching config keys; --since (root only) overrides
// general.history_window.
package cli
