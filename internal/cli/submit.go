package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/slurmterm/internal/config"
	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/slurm"
	"github.com/rileyhilliard/slurmterm/internal/templates"
)

// submitOptions are the submit command's inputs.
type submitOptions struct {
	Script      string
	Template    string
	Params      []string
	Interactive bool
	DryRun      bool
}

var submitOpts submitOptions

var submitCmd = &cobra.Command{
	Use:   "submit [script]",
	Short: "Submit a batch job with sbatch",
	Long: `Submit a batch script, optionally starting from a saved template.

Template fields become sbatch options. --param adds or overrides options
and --interactive opens a form to review everything before submitting.

Examples:
  slurmterm submit train.sh
  slurmterm submit train.sh --template "GPU Training"
  slurmterm submit train.sh --param partition=gpu --param time=02:00:00
  slurmterm submit --template "Quick CPU Job" --interactive`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := submitOpts
		if len(args) == 1 {
			opts.Script = args[0]
		}
		if opts.DryRun {
			return submitCommand(cmd.Context(), cmd.OutOrStdout(), nil, templateStore(), opts)
		}
		return withSource(func(src *clusterSource) error {
			return submitCommand(cmd.Context(), cmd.OutOrStdout(), src, templateStore(), opts)
		})
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringVarP(&submitOpts.Template, "template", "t", "", "start from a saved template")
	submitCmd.Flags().StringArrayVarP(&submitOpts.Params, "param", "p", nil, "extra sbatch option as key=value (repeatable)")
	submitCmd.Flags().BoolVarP(&submitOpts.Interactive, "interactive", "i", false, "review the submission in a form first")
	submitCmd.Flags().BoolVar(&submitOpts.DryRun, "dry-run", false, "print the sbatch command without submitting")
}

// templateStore opens the template store the config points at.
func templateStore() *templates.Store {
	cfg, _, err := config.LoadOrDefault(cfgFile, nil)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	return templates.NewStore(templates.ResolveDir(cfg.Templates.Dir))
}

// promptSubmitForm lets the user edit f. Tests replace it.
var promptSubmitForm = runSubmitForm

// submitCommand builds the submission and hands it to src. A nil src
// prints the sbatch command line instead.
func submitCommand(ctx context.Context, w io.Writer, src slurm.Source, store *templates.Store, opts submitOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	form := templates.Form{Mode: "sbatch", Extra: map[string]string{}}
	if opts.Template != "" {
		rec, err := store.Load(opts.Template)
		if err != nil {
			return suggestTemplate(store, opts.Template, err)
		}
		form = templates.FormFromRecord(rec)
	}
	if opts.Script != "" {
		form.Command = opts.Script
	}

	extra, err := parseParams(opts.Params)
	if err != nil {
		return err
	}

	if opts.Interactive {
		var partitions []string
		if src != nil {
			if partitions, err = src.Partitions(ctx); err != nil {
				partitions = nil
			}
		}
		if err := promptSubmitForm(&form, partitions); err != nil {
			return err
		}
	}

	if strings.TrimSpace(form.Command) == "" {
		return errors.New(errors.ErrValidation,
			"No batch script to submit",
			"Pass the script path, e.g. 'slurmterm submit job.sh', or set 'script' in the template")
	}

	params, err := form.Params()
	if err != nil {
		return err
	}
	params = append(params, extra...)

	if src == nil {
		args, err := slurm.SbatchArgs(form.Command, params)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "sbatch %s\n", strings.Join(args, " "))
		return nil
	}

	id, err := src.Submit(ctx, form.Command, params)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Submitted batch job %s\n", id)
	return nil
}

// runSubmitForm shows a huh form over the submission fields. partitions,
// when known, turn the partition field into a picker.
func runSubmitForm(f *templates.Form, partitions []string) error {
	var partition huh.Field
	if len(partitions) > 0 {
		options := make([]huh.Option[string], 0, len(partitions)+1)
		options = append(options, huh.NewOption("(cluster default)", ""))
		for _, p := range partitions {
			options = append(options, huh.NewOption(p, p))
		}
		partition = huh.NewSelect[string]().
			Title("Partition").
			Options(options...).
			Value(&f.Partition)
	} else {
		partition = huh.NewInput().
			Title("Partition").
			Placeholder("cluster default").
			Value(&f.Partition)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Batch script").
				Placeholder("job.sh").
				Value(&f.Command).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("script path is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Job name").
				Value(&f.Name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return nil
					}
					_, err := slurm.ValidateJobName(s)
					return fieldError(err)
				}),
			partition,
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Time limit").
				Placeholder("HH:MM:SS or D-HH:MM:SS").
				Value(&f.Time).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return nil
					}
					_, err := slurm.ParseDuration(s)
					return fieldError(err)
				}),
			huh.NewInput().
				Title("Nodes").
				Value(&f.Nodes),
			huh.NewInput().
				Title("Memory").
				Placeholder("e.g. 4G or 512M").
				Value(&f.Memory).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return nil
					}
					_, err := slurm.ParseMemoryMB(s)
					return fieldError(err)
				}),
			huh.NewInput().
				Title("GPUs").
				Placeholder("e.g. 1 or a100:2").
				Value(&f.GPUs),
		),
	)

	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrValidation,
			"Submission cancelled",
			"Run without --interactive to submit the template as is")
	}
	return f.Validate()
}

// fieldError strips an error down to its message for inline form display.
func fieldError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s", errors.Summary(err))
}
