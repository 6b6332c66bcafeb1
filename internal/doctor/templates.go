package doctor

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/templates"
	"github.com/rileyhilliard/slurmterm/internal/util"
)

// TemplatesCheck loads every saved template and validates its fields.
type TemplatesCheck struct {
	Store *templates.Store
}

func (c *TemplatesCheck) Name() string     { return "templates" }
func (c *TemplatesCheck) Category() string { return CategoryTemplates }

func (c *TemplatesCheck) Run() CheckResult {
	names, err := c.Store.List()
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    errors.Summary(err),
			Suggestion: "Check permissions on " + c.Store.Dir(),
		}
	}

	if len(names) == 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "No templates in " + c.Store.Dir(),
			Suggestion: "Run with --fix to add the built-in templates",
			Fixable:    true,
		}
	}

	var broken []string
	var reasons []string
	for _, name := range names {
		if err := validateTemplate(c.Store, name); err != nil {
			broken = append(broken, name)
			reasons = append(reasons, fmt.Sprintf("%s: %s", name, errors.Summary(err)))
		}
	}

	if len(broken) > 0 {
		return CheckResult{
			Name:   c.Name(),
			Status: StatusWarn,
			Message: fmt.Sprintf("%d of %d %s can't be used: %s",
				len(broken), len(names), util.Pluralize(len(names), "template", "templates"),
				strings.Join(broken, ", ")),
			Suggestion: strings.Join(reasons, "\n"),
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%d %s in %s", len(names), util.Pluralize(len(names), "template", "templates"), c.Store.Dir()),
	}
}

// Fix seeds the built-in templates into an empty store.
func (c *TemplatesCheck) Fix() error {
	_, err := c.Store.EnsureDefaults()
	return err
}

func validateTemplate(store *templates.Store, name string) error {
	rec, err := store.Load(name)
	if err != nil {
		return err
	}
	form := templates.FormFromRecord(rec)
	if err := form.Validate(); err != nil {
		return err
	}
	_, err = form.Params()
	return err
}
