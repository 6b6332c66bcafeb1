package templates

import (
	"regexp"
	"sort"
	"strings"

	"github.com/jinzhu/copier"

	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/slurm"
)

var gpuSpecPattern = regexp.MustCompile(`^[a-zA-Z0-9_]*:?\d+$`)

// Form is the editable state of a job submission. Its string fields map to
// the template keys listed in formKeys.
type Form struct {
	Mode      string `copier:"-"`
	Name      string
	Partition string
	Time      string `copier:"-"`
	Nodes     string `copier:"-"`
	NTasks    string `copier:"-"`
	CPUs      string `copier:"-"`
	Memory    string `copier:"-"`
	GPUs      string `copier:"-"`
	// Command is the batch script path.
	Command    string
	StdoutPath string
	StderrPath string

	// Extra holds template fields with no dedicated form field. Keys that
	// are valid sbatch options are passed through as parameters.
	Extra map[string]string `copier:"-"`
}

// formKeys maps template keys to form fields, in display order.
var formKeys = []struct {
	key string
	get func(*Form) *string
}{
	{"mode", func(f *Form) *string { return &f.Mode }},
	{"name", func(f *Form) *string { return &f.Name }},
	{"partition", func(f *Form) *string { return &f.Partition }},
	{"time", func(f *Form) *string { return &f.Time }},
	{"nodes", func(f *Form) *string { return &f.Nodes }},
	{"ntasks", func(f *Form) *string { return &f.NTasks }},
	{"cpus", func(f *Form) *string { return &f.CPUs }},
	{"memory", func(f *Form) *string { return &f.Memory }},
	{"gpus", func(f *Form) *string { return &f.GPUs }},
	{"script", func(f *Form) *string { return &f.Command }},
	{"output", func(f *Form) *string { return &f.StdoutPath }},
	{"error", func(f *Form) *string { return &f.StderrPath }},
}

// scriptKeys are template fields used to compose job scripts. They never
// become sbatch options.
var scriptKeys = map[string]bool{"modules": true, "env": true, "init": true}

// FormFromRecord fills a form from a template.
func FormFromRecord(r Record) Form {
	f := Form{Extra: map[string]string{}}
	known := map[string]bool{}
	for _, k := range formKeys {
		*k.get(&f) = r.Fields[k.key]
		known[k.key] = true
	}
	for k, v := range r.Fields {
		if !known[k] {
			f.Extra[k] = v
		}
	}
	if f.Mode == "" {
		f.Mode = "sbatch"
	}
	return f
}

// FormFromDetail prefills a form from a job's details so it can be
// submitted again.
func FormFromDetail(d slurm.JobDetail) (Form, error) {
	f := Form{Mode: "sbatch", Extra: map[string]string{}}
	if err := copier.Copy(&f, &d); err != nil {
		return Form{}, errors.WrapWithCode(err, errors.ErrValidation, "Cannot copy job details into the submit form", "")
	}

	if limit := d.TimeLimit.Int64(); limit > 0 {
		f.Time = slurm.FormatDuration(limit * 60)
	}
	f.Nodes = "1"
	if n := d.NodeCount.Int64(); n > 0 {
		f.Nodes = d.NodeCount.String()
	}
	if n := d.TasksPerNode.Int64(); n > 0 {
		f.NTasks = d.TasksPerNode.String()
	}
	if n := d.CPUsPerTask.Int64(); n > 0 {
		f.CPUs = d.CPUsPerTask.String()
	}
	if mb := d.MemoryMB.Int64(); mb > 0 {
		f.Memory = slurm.FormatMemoryMB(mb)
	}
	f.GPUs = gpuSpec(d.GresDisplay())
	return f, nil
}

// gpuSpec reduces Slurm's gres text ("gpu:a100:2(IDX:0-1)") to the form
// spec ("a100:2").
func gpuSpec(gres string) string {
	gres, _, _ = strings.Cut(gres, "(")
	gres, _, _ = strings.Cut(gres, ",")
	return strings.TrimPrefix(strings.TrimSpace(gres), "gpu:")
}

// Fields converts the form back to template fields.
func (f Form) Fields() map[string]string {
	out := make(map[string]string, len(formKeys)+len(f.Extra))
	for k, v := range f.Extra {
		out[k] = v
	}
	for _, k := range formKeys {
		out[k.key] = *k.get(&f)
	}
	return out
}

// Set assigns a template key, routing unknown keys to Extra.
func (f *Form) Set(key, value string) {
	for _, k := range formKeys {
		if k.key == key {
			*k.get(f) = value
			return
		}
	}
	if f.Extra == nil {
		f.Extra = map[string]string{}
	}
	f.Extra[key] = value
}

// Validate checks the values Slurm would reject. Empty fields are allowed
// and simply omitted from the submission.
func (f Form) Validate() error {
	if f.Name != "" {
		if _, err := slurm.ValidateJobName(f.Name); err != nil {
			return err
		}
	}
	if t := strings.TrimSpace(f.Time); t != "" {
		if _, err := slurm.ParseDuration(t); err != nil {
			return errors.Validation("Invalid time format: %q", t)
		}
	}
	if m := strings.TrimSpace(f.Memory); m != "" {
		if _, err := slurm.ParseMemoryMB(m); err != nil {
			return errors.Validation("Invalid memory format: %q", m)
		}
	}
	if g := strings.TrimSpace(f.GPUs); g != "" && !gpuSpecPattern.MatchString(strings.TrimPrefix(g, "gpu:")) {
		return errors.Validation("Invalid GPU spec: %q (expected e.g. '1' or 'a100:2')", g)
	}
	return nil
}

// Params renders the form as sbatch options. Extra fields whose keys are
// not valid option names are skipped.
func (f Form) Params() ([]slurm.Param, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var params []slurm.Param
	add := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			params = append(params, slurm.Param{Key: key, Value: value})
		}
	}
	add("partition", f.Partition)
	add("time", f.Time)
	add("nodes", f.Nodes)
	add("ntasks-per-node", f.NTasks)
	add("cpus-per-task", f.CPUs)
	add("mem", f.Memory)
	if g := strings.TrimSpace(f.GPUs); g != "" {
		if !strings.HasPrefix(g, "gpu") {
			g = "gpu:" + g
		}
		add("gres", g)
	}
	add("job-name", f.Name)
	add("output", f.StdoutPath)
	add("error", f.StderrPath)

	keys := make([]string, 0, len(f.Extra))
	for k := range f.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if scriptKeys[k] {
			continue
		}
		p := slurm.Param{Key: k, Value: f.Extra[k]}
		if slurm.ValidateParam(p) != nil {
			continue
		}
		params = append(params, p)
	}

	for _, p := range params {
		if err := slurm.ValidateParam(p); err != nil {
			return nil, err
		}
	}
	return params, nil
}
