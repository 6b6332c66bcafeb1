package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/templates"
	"github.com/rileyhilliard/slurmterm/internal/util"
)

var templateJSON bool

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage job submission templates",
	Long: `List, show, save and delete job templates.

Templates are JSON files of flat key/value fields stored in
~/.config/slurmterm/templates (override with SLURMTERM_TEMPLATES_DIR or
templates.dir in the config). A few defaults are created on first use.`,
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateListCommand(cmd.OutOrStdout(), templateStore(), templateJSON)
	},
}

var templateShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a template's fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateShowCommand(cmd.OutOrStdout(), templateStore(), args[0], templateJSON)
	},
}

var templateSaveCmd = &cobra.Command{
	Use:   "save <name> [key=value...]",
	Short: "Save a template",
	Long: `Save a template from key=value fields, replacing any template with the
same name.

Examples:
  slurmterm template save "GPU Training" partition=gpu time=08:00:00 gpus=a100:1
  slurmterm template save nightly script=nightly.sh memory=16G`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateSaveCommand(cmd.OutOrStdout(), templateStore(), args[0], args[1:])
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a template",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateDeleteCommand(cmd.OutOrStdout(), templateStore(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(templateCmd)
	templateCmd.AddCommand(templateListCmd, templateShowCmd, templateSaveCmd, templateDeleteCmd)
	templateCmd.PersistentFlags().BoolVar(&templateJSON, "json", false, "output in JSON format")
}

func templateListCommand(w io.Writer, store *templates.Store, asJSON bool) error {
	if _, err := store.EnsureDefaults(); err != nil {
		return err
	}
	names, err := store.List()
	if err != nil {
		return err
	}

	if asJSON {
		if names == nil {
			names = []string{}
		}
		return WriteJSONSuccess(w, names)
	}
	if len(names) == 0 {
		fmt.Fprintf(w, "No templates in %s\n", store.Dir())
		return nil
	}
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
	return nil
}

func templateShowCommand(w io.Writer, store *templates.Store, name string, asJSON bool) error {
	rec, err := store.Load(name)
	if err != nil {
		return suggestTemplate(store, name, err)
	}
	if asJSON {
		return WriteJSONSuccess(w, rec.Fields)
	}

	keys := make([]string, 0, len(rec.Fields))
	width := 0
	for k := range rec.Fields {
		keys = append(keys, k)
		if len(k) > width {
			width = len(k)
		}
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "%s\n", rec.Name)
	for _, k := range keys {
		v := rec.Fields[k]
		if v == "" {
			v = "-"
		}
		fmt.Fprintf(w, "  %-*s  %s\n", width, k, v)
	}
	return nil
}

func templateSaveCommand(w io.Writer, store *templates.Store, name string, pairs []string) error {
	form := templates.Form{Mode: "sbatch", Extra: map[string]string{}}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return errors.Validation("Invalid field %q (expected key=value)", pair)
		}
		form.Set(key, value)
	}
	if err := form.Validate(); err != nil {
		return err
	}
	if err := store.Save(name, form.Fields()); err != nil {
		return err
	}
	fmt.Fprintf(w, "Saved template %q\n", strings.TrimSpace(name))
	return nil
}

func templateDeleteCommand(w io.Writer, store *templates.Store, name string) error {
	existed, err := store.Delete(name)
	if err != nil {
		return err
	}
	if !existed {
		return suggestTemplate(store, name, errors.New(errors.ErrNotFound,
			fmt.Sprintf("Template %q not found", strings.TrimSpace(name)),
			"Run 'slurmterm template list' to see saved templates"))
	}
	fmt.Fprintf(w, "Deleted template %q\n", strings.TrimSpace(name))
	return nil
}

// suggestTemplate replaces the suggestion of a not-found error with the
// closest saved template names, when there are any.
func suggestTemplate(store *templates.Store, name string, err error) error {
	var stErr *errors.Error
	if !errors.IsCode(err, errors.ErrNotFound) || !stderrors.As(err, &stErr) {
		return err
	}
	names, listErr := store.List()
	if listErr != nil {
		return err
	}
	similar := util.SuggestSimilar(strings.TrimSpace(name), names, 3)
	if len(similar) == 0 {
		return err
	}
	quoted := make([]string, len(similar))
	for i, s := range similar {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return errors.New(errors.ErrNotFound, stErr.Message,
		"Did you mean "+strings.Join(quoted, " or ")+"?")
}
