package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/slurmterm/internal/doctor"
	"github.com/rileyhilliard/slurmterm/internal/exec"
	"github.com/rileyhilliard/slurmterm/internal/templates"
)

// clusterRunner pretends every Slurm tool is installed and the controller
// is up, except for the tools listed in missing.
type clusterRunner struct {
	missing map[string]bool
}

func (r *clusterRunner) Run(_ context.Context, name string, args ...string) (exec.Result, error) {
	if r.missing[name] {
		return exec.Result{Stderr: []byte("bash: " + name + ": command not found"), ExitCode: exec.ExitNotFound}, nil
	}
	if name == "scontrol" && len(args) == 1 && args[0] == "ping" {
		return exec.Result{Stdout: []byte("Slurmctld(primary) at ctl01 is UP\n")}, nil
	}
	return exec.Result{Stdout: []byte("slurm 23.11.4\n")}, nil
}

func (r *clusterRunner) Describe() string { return "hpc" }
func (r *clusterRunner) Close() error     { return nil }

func dialCluster(missing ...string) doctor.DialFunc {
	r := &clusterRunner{missing: map[string]bool{}}
	for _, m := range missing {
		r.missing[m] = true
	}
	return func(string, time.Duration) (exec.Runner, error) { return r, nil }
}

func seedTemplates(t *testing.T) {
	t.Helper()
	_, err := templates.NewStore(templates.ResolveDir("")).EnsureDefaults()
	require.NoError(t, err)
}

func TestDoctorCommand_AllClear(t *testing.T) {
	isolateHome(t)
	seedTemplates(t)
	path := writeConfigFile(t, "general:\n  login_host: hpc\n")

	var buf bytes.Buffer
	require.NoError(t, doctorCommand(&buf, doctorOptions{ConfigPath: path, Dial: dialCluster()}))

	out := buf.String()
	for _, want := range []string{"CONFIG", "CONNECTION", "SLURM", "TEMPLATES", "Connected to hpc over SSH", "squeue: slurm 23.11.4", "Everything looks good"} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "CONFIG"), strings.Index(out, "SLURM"))
}

func TestDoctorCommand_ReportsIssues(t *testing.T) {
	isolateHome(t)

	var buf bytes.Buffer
	require.NoError(t, doctorCommand(&buf, doctorOptions{Host: "hpc", Dial: dialCluster("sacct", "sstat")}))

	out := buf.String()
	assert.Contains(t, out, "sacct not found (hpc)")
	assert.Contains(t, out, "sstat not found (hpc)")
	assert.Contains(t, out, "No config file, using built-in defaults")
	assert.Contains(t, out, "4 issues found")
	assert.Contains(t, out, "--fix")
}

func TestDoctorCommand_FixSeedsTemplatesAndConfig(t *testing.T) {
	isolateHome(t)

	var buf bytes.Buffer
	require.NoError(t, doctorCommand(&buf, doctorOptions{Host: "hpc", Fix: true, Dial: dialCluster()}))
	assert.Contains(t, buf.String(), "Everything looks good")

	names, err := templates.NewStore(templates.ResolveDir("")).List()
	require.NoError(t, err)
	assert.NotEmpty(t, names)
}

func TestDoctorCommand_JSON(t *testing.T) {
	isolateHome(t)
	seedTemplates(t)

	var buf bytes.Buffer
	require.NoError(t, doctorCommand(&buf, doctorOptions{Host: "hpc", JSON: true, Dial: dialCluster("sstat")}))

	var env struct {
		Success bool         `json:"success"`
		Data    DoctorOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.True(t, env.Success)
	require.Len(t, env.Data.Categories, 4)
	assert.Equal(t, doctor.CategoryConfig, env.Data.Categories[0].Name)
	assert.Equal(t, 2, env.Data.Summary.Warn)
	assert.Zero(t, env.Data.Summary.Fail)
	assert.False(t, env.Data.Summary.AllClear)
	assert.Contains(t, buf.String(), `"status": "warn"`)
}

func TestDoctorCommand_SkipsSlurmChecksWithoutConnection(t *testing.T) {
	isolateHome(t)
	seedTemplates(t)

	failing := func(string, time.Duration) (exec.Runner, error) {
		return nil, assert.AnError
	}

	var buf bytes.Buffer
	require.NoError(t, doctorCommand(&buf, doctorOptions{Host: "hpc", JSON: true, Dial: failing}))

	var env struct {
		Data DoctorOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	for _, cat := range env.Data.Categories {
		assert.NotEqual(t, doctor.CategorySlurm, cat.Name)
	}
	assert.Equal(t, 1, env.Data.Summary.Fail)
}
