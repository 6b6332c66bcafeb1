package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/slurmterm/internal/logger"
	"github.com/rileyhilliard/slurmterm/internal/slurm"
	"github.com/rileyhilliard/slurmterm/internal/ui"
	"github.com/rileyhilliard/slurmterm/internal/util"
)

var jobsJSON bool

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Print one snapshot of the job queue",
	Long: `Print the current queue once and exit.

Examples:
  slurmterm jobs
  slurmterm jobs --user alice
  slurmterm jobs --json | jq '.data[].id'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		err := withSource(func(src *clusterSource) error {
			return jobsCommand(cmd.Context(), w, src, jobsJSON)
		})
		if err != nil && jobsJSON {
			_ = WriteJSONFromError(w, err)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.Flags().BoolVar(&jobsJSON, "json", false, "output in JSON format")
}

// jobColumns lay out the plain-text queue listing.
var jobColumns = []ui.TableColumn{
	{Title: "JOBID", Width: 10},
	{Title: "NAME", Width: 20},
	{Title: "PARTITION", Width: 10},
	{Title: "STATE", Width: 14},
	{Title: "TIME", Width: 11},
	{Title: "NODES", Width: 6},
	{Title: "REASON", Width: 20},
}

// JobOutput is one job in `jobs --json` output.
type JobOutput struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Partition  string `json:"partition"`
	State      string `json:"state"`
	TimeUsed   string `json:"time_used"`
	Nodes      string `json:"nodes"`
	Reason     string `json:"reason,omitempty"`
	User       string `json:"user,omitempty"`
	WorkDir    string `json:"work_dir,omitempty"`
	StdoutPath string `json:"stdout,omitempty"`
	StderrPath string `json:"stderr,omitempty"`
}

// withSource loads config, opens the cluster source for the duration of
// fn and closes it afterwards.
func withSource(fn func(src *clusterSource) error) error {
	log := logger.NewEnvLogger("[slurmterm]")
	cfg, err := loadConfig(cfgFile, srcFlags, "", log)
	if err != nil {
		return err
	}
	src, err := openSource(cfg, srcFlags.Demo, log)
	if err != nil {
		return err
	}
	defer src.Close()
	return fn(src)
}

// jobsCommand lists the queue of the source's user.
func jobsCommand(ctx context.Context, w io.Writer, src slurm.Source, asJSON bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	user := src.CurrentUser()
	jobs, err := src.ListJobs(ctx, user)
	if err != nil {
		return err
	}

	if asJSON {
		out := make([]JobOutput, 0, len(jobs))
		for _, j := range jobs {
			out = append(out, JobOutput{
				ID:         j.ID,
				Name:       j.Name,
				Partition:  j.Partition,
				State:      j.State.Display(),
				TimeUsed:   j.TimeUsed,
				Nodes:      j.Nodes,
				Reason:     j.Reason,
				User:       j.User,
				WorkDir:    j.WorkDir,
				StdoutPath: j.StdoutPath,
				StderrPath: j.StderrPath,
			})
		}
		return WriteJSONSuccess(w, out)
	}

	if len(jobs) == 0 {
		fmt.Fprintf(w, "No jobs in the queue for %s\n", user)
		return nil
	}

	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{j.ID, j.Name, j.Partition, j.State.Display(), j.TimeUsed, j.Nodes, j.Reason})
	}
	fmt.Fprint(w, ui.RenderSimpleTable(jobColumns, rows))
	fmt.Fprintf(w, "%d %s\n", len(jobs), util.Pluralize(len(jobs), "job", "jobs"))
	return nil
}
