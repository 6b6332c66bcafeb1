package slurm

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// JobDetail is the normalized form of `scontrol show job ID --json`.
// Shape differences between Slurm versions are resolved while decoding;
// an empty JobDetail (ID == "") means the job was not found.
type JobDetail struct {
	ID         string   `mapstructure:"job_id"`
	Name       string   `mapstructure:"name"`
	State      JobState `mapstructure:"job_state"`
	Partition  string   `mapstructure:"partition"`
	User       string   `mapstructure:"user_name"`
	WorkDir    string   `mapstructure:"working_directory"`
	Nodes      string   `mapstructure:"nodes"`
	StdoutPath string   `mapstructure:"standard_output"`
	StderrPath string   `mapstructure:"standard_error"`
	Command    string   `mapstructure:"command"`
	Gres       string   `mapstructure:"gres_detail"`

	SubmitTime   ScalarOrTagged `mapstructure:"submit_time"`
	StartTime    ScalarOrTagged `mapstructure:"start_time"`
	TimeLimit    ScalarOrTagged `mapstructure:"time_limit"` // minutes
	RunTime      ScalarOrTagged `mapstructure:"run_time"`   // seconds
	NodeCount    ScalarOrTagged `mapstructure:"node_count"`
	TasksPerNode ScalarOrTagged `mapstructure:"tasks_per_node"`
	CPUsPerTask  ScalarOrTagged `mapstructure:"cpus_per_task"`
	MemoryMB     ScalarOrTagged `mapstructure:"minimum_memory_per_node"`

	// History is a pre-computed rolling history per metric channel. Only the
	// simulator provides it.
	History map[string][]float64 `mapstructure:"slurmterm_metrics"`
}

// Found reports whether the detail describes a job.
func (d JobDetail) Found() bool {
	return d.ID != ""
}

// HasGPU reports whether the job's gres requests GPUs.
func (d JobDetail) HasGPU() bool {
	return strings.Contains(strings.ToLower(d.Gres), "gpu")
}

// GresDisplay returns the gres text, or "" for Slurm's placeholder values.
func (d JobDetail) GresDisplay() string {
	switch strings.TrimSpace(d.Gres) {
	case "", "(null)", "[]":
		return ""
	}
	return d.Gres
}

var (
	scalarType = reflect.TypeOf(ScalarOrTagged{})
	stateType  = reflect.TypeOf(JobState(""))
)

// detailDecodeHook resolves the shape variations Slurm JSON uses:
// tagged numbers, job_state as a list, and list-valued string fields
// such as gres_detail.
func detailDecodeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	switch {
	case to == scalarType:
		return ParseScalarOrTagged(data), nil
	case to == stateType:
		switch v := data.(type) {
		case []interface{}:
			if len(v) == 0 {
				return StateUnknown, nil
			}
			return ParseState(fmt.Sprint(v[0])), nil
		case string:
			return ParseState(v), nil
		case JobState:
			return v, nil
		}
		return StateUnknown, nil
	case to.Kind() == reflect.String && from.Kind() == reflect.Slice:
		items := reflect.ValueOf(data)
		parts := make([]string, 0, items.Len())
		for i := 0; i < items.Len(); i++ {
			parts = append(parts, fmt.Sprint(items.Index(i).Interface()))
		}
		return strings.Join(parts, ","), nil
	}
	return data, nil
}

// DecodeDetail converts a raw job map into a JobDetail.
func DecodeDetail(raw map[string]interface{}) (JobDetail, error) {
	var d JobDetail
	if len(raw) == 0 {
		return d, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       detailDecodeHook,
		WeaklyTypedInput: true,
		Result:           &d,
	})
	if err != nil {
		return JobDetail{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return JobDetail{}, err
	}
	if d.State == "" {
		d.State = StateUnknown
	}
	return d, nil
}
