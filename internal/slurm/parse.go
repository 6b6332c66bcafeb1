package slurm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rileyhilliard/slurmterm/internal/errors"
)

// SinfoFormat is the -o argument whose output ParseSinfo understands.
const SinfoFormat = "%P|%a|%l|%D|%T|%N|%c|%m|%G"

// SacctFormat is the --format argument whose output ParseSacct understands.
const SacctFormat = "JobID,JobName,Partition,State,Elapsed,TotalCPU,MaxRSS,ExitCode"

// SstatFormat is the --format argument whose output ParseSstat understands.
const SstatFormat = "AveCPU,MaxRSS,MaxVMSize"

// squeueJob mirrors one entry of `squeue --json`. Fields whose shape
// changed across Slurm releases are decoded through ScalarOrTagged or
// the flexible helpers below.
type squeueJob struct {
	JobID            ScalarOrTagged  `json:"job_id"`
	Name             string          `json:"name"`
	Partition        string          `json:"partition"`
	JobState         stateList       `json:"job_state"`
	Time             json.RawMessage `json:"time"`
	Nodes            string          `json:"nodes"`
	NodeCount        ScalarOrTagged  `json:"node_count"`
	StateReason      string          `json:"state_reason"`
	UserName         string          `json:"user_name"`
	WorkingDirectory string          `json:"working_directory"`
	StandardOutput   string          `json:"standard_output"`
	StandardError    string          `json:"standard_error"`
	SubmitTime       ScalarOrTagged  `json:"submit_time"`
}

// stateList accepts job_state as "RUNNING" or ["RUNNING", "..."].
type stateList string

func (s *stateList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		if len(list) > 0 {
			*s = stateList(list[0])
		}
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = stateList(str)
	return nil
}

// ParseSqueue converts `squeue --json` output into snapshots, in the order
// squeue listed them.
func ParseSqueue(data []byte) ([]JobSnapshot, error) {
	var resp struct {
		Jobs []squeueJob `json:"jobs"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSlurm,
			"squeue returned malformed JSON",
			"Check that this Slurm version supports 'squeue --json'")
	}

	jobs := make([]JobSnapshot, 0, len(resp.Jobs))
	for _, e := range resp.Jobs {
		jobs = append(jobs, e.snapshot())
	}
	return jobs, nil
}

func (e squeueJob) snapshot() JobSnapshot {
	nodes := e.Nodes
	if nodes == "" {
		nodes = e.NodeCount.String()
	}
	return JobSnapshot{
		ID:         e.JobID.String(),
		Name:       e.Name,
		Partition:  e.Partition,
		State:      ParseState(string(e.JobState)),
		TimeUsed:   timeUsed(e.Time),
		Nodes:      nodes,
		Reason:     e.StateReason,
		User:       e.UserName,
		WorkDir:    e.WorkingDirectory,
		StdoutPath: e.StandardOutput,
		StderrPath: e.StandardError,
		SubmitTime: e.SubmitTime.String(),
		NodeList:   e.Nodes,
	}
}

// timeUsed renders squeue's time field, which is either an object with an
// elapsed second count or preformatted text.
func timeUsed(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return FormatDuration(0)
	}
	if raw[0] == '{' {
		var obj struct {
			Elapsed ScalarOrTagged `json:"elapsed"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return FormatDuration(0)
		}
		return FormatDuration(obj.Elapsed.Int64())
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return strings.Trim(string(raw), `"`)
}

// ParseDetailJSON extracts the first job of `scontrol show job ID --json`.
// No jobs means not found: an empty JobDetail and a nil error.
func ParseDetailJSON(data []byte) (JobDetail, error) {
	var resp struct {
		Jobs []map[string]interface{} `json:"jobs"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return JobDetail{}, errors.WrapWithCode(err, errors.ErrSlurm,
			"scontrol returned malformed JSON",
			"Check that this Slurm version supports 'scontrol show job --json'")
	}
	if len(resp.Jobs) == 0 {
		return JobDetail{}, nil
	}
	return DecodeDetail(resp.Jobs[0])
}

// ParsePartitions reads `sinfo -h -o %P`, dropping the default marker.
func ParsePartitions(out string) []string {
	var parts []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts = append(parts, strings.TrimRight(line, "*"))
	}
	return parts
}

// ParseSinfo reads output produced with SinfoFormat. Short lines are skipped.
func ParseSinfo(out string) []SinfoRow {
	var rows []SinfoRow
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		f := strings.Split(line, "|")
		if len(f) < 9 {
			continue
		}
		for i := range f {
			f[i] = strings.TrimRight(strings.TrimSpace(f[i]), "*")
		}
		rows = append(rows, SinfoRow{
			Partition: f[0],
			Avail:     f[1],
			TimeLimit: f[2],
			Nodes:     f[3],
			State:     f[4],
			NodeList:  f[5],
			CPUs:      f[6],
			MemoryMB:  f[7],
			Gres:      f[8],
		})
	}
	return rows
}

// ParseNodes reads `scontrol show nodes`: blank-line separated blocks of
// whitespace separated Key=Value tokens.
func ParseNodes(out string) []NodeRow {
	var nodes []NodeRow
	current := NodeRow{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if len(current) > 0 {
				nodes = append(nodes, current)
				current = NodeRow{}
			}
			continue
		}
		for _, token := range strings.Fields(line) {
			if key, val, ok := strings.Cut(token, "="); ok {
				current[key] = val
			}
		}
	}
	if len(current) > 0 {
		nodes = append(nodes, current)
	}
	return nodes
}

// ParseSacct reads output produced with SacctFormat in parsable mode. Job
// steps (ids containing ".") are dropped.
func ParseSacct(out string) []AccountingRow {
	var rows []AccountingRow
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		f := strings.Split(line, "|")
		if len(f) < 8 {
			continue
		}
		for i := range f {
			f[i] = strings.TrimSpace(f[i])
		}
		if strings.Contains(f[0], ".") {
			continue
		}
		rows = append(rows, AccountingRow{
			JobID:     f[0],
			Name:      f[1],
			Partition: f[2],
			State:     f[3],
			Elapsed:   f[4],
			TotalCPU:  f[5],
			MaxRSS:    f[6],
			ExitCode:  f[7],
		})
	}
	return rows
}

// ParseSstat returns the first line of SstatFormat output that carries
// any value, and false when none does.
func ParseSstat(out string) (LiveSample, bool) {
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		f := strings.Split(line, "|")
		if len(f) < 3 {
			continue
		}
		s := LiveSample{
			AveCPU:    strings.TrimSpace(f[0]),
			MaxRSS:    strings.TrimSpace(f[1]),
			MaxVMSize: strings.TrimSpace(f[2]),
		}
		if !s.Empty() {
			return s, true
		}
	}
	return LiveSample{}, false
}

// ParseClusterName finds ClusterName in `scontrol show config`.
func ParseClusterName(out string) string {
	for _, line := range strings.Split(out, "\n") {
		key, val, ok := strings.Cut(line, "=")
		if ok && strings.TrimSpace(key) == "ClusterName" {
			return strings.TrimSpace(val)
		}
	}
	return "unknown"
}

// ParseGPUUtilization reads nvidia-smi
// --query-gpu=utilization.gpu --format=csv,noheader,nounits output, one
// GPU per line. Unavailable readings ([N/A]) are skipped; output that
// reports a missing driver or device yields no values.
func ParseGPUUtilization(out string) ([]float64, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}

	lower := strings.ToLower(out)
	if strings.Contains(lower, "no devices") ||
		strings.Contains(lower, "not found") ||
		strings.Contains(lower, "failed") {
		return nil, nil
	}

	var values []float64
	for _, line := range strings.Split(out, "\n") {
		field := strings.TrimSpace(strings.Split(line, ",")[0])
		if field == "" || field == "[N/A]" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(field, "%")), 64)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrSlurm,
				fmt.Sprintf("failed to parse GPU utilization '%s'", field), "")
		}
		values = append(values, v)
	}
	return values, nil
}

// ParseSbatchJobID returns the job id from sbatch output
// ("Submitted batch job 12345" or the bare id from --parsable).
func ParseSbatchJobID(out string) (string, error) {
	parts := strings.Fields(out)
	if len(parts) == 0 {
		return "", errors.New(errors.ErrSlurm,
			fmt.Sprintf("Unexpected sbatch output: %q", out), "")
	}
	id := parts[len(parts)-1]
	// --parsable appends ";cluster" on federated setups.
	id, _, _ = strings.Cut(id, ";")
	return id, nil
}
