package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/logger"
	"github.com/rileyhilliard/slurmterm/internal/metrics"
	"github.com/rileyhilliard/slurmterm/internal/poller"
	"github.com/rileyhilliard/slurmterm/internal/slurm"
	"github.com/rileyhilliard/slurmterm/internal/tail"
	"github.com/rileyhilliard/slurmterm/internal/templates"
)

// Stream picks which of a job's log files the inspector follows.
type Stream int

const (
	StreamStdout Stream = iota
	StreamStderr
)

func (s Stream) String() string {
	if s == StreamStderr {
		return "stderr"
	}
	return "stdout"
}

// maxLogBytes bounds the text kept in the log viewport. The oldest lines
// go first.
const maxLogBytes = 2 * 1024 * 1024

// inspector is the state of the Inspector tab for one job.
type inspector struct {
	jobID  string
	poll   *poller.Poller[detailSnapshot]
	window *metrics.Window

	detail  slurm.JobDetail
	loaded  bool
	missing bool

	stream  Stream
	logPath string
	log     strings.Builder
	view    viewport.Model

	// form is the resubmit form, open while non-nil.
	form *templates.Form
}

func newInspector(jobID string) *inspector {
	return &inspector{
		jobID:  jobID,
		window: metrics.NewWindow(metrics.DefaultCapacity),
		view:   viewport.New(80, 10),
	}
}

// path returns the log file for the current stream. Relative paths are
// resolved against the job's working directory.
func (in *inspector) path() string {
	p := in.detail.StdoutPath
	if in.stream == StreamStderr {
		p = in.detail.StderrPath
	}
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if !filepath.IsAbs(p) && in.detail.WorkDir != "" {
		p = filepath.Join(in.detail.WorkDir, p)
	}
	return p
}

func (in *inspector) resetLog(text string) {
	in.log.Reset()
	in.log.WriteString(text)
	in.view.SetContent(text)
	in.view.GotoTop()
}

// appendLog adds text, dropping whole lines from the front once the
// buffer passes maxLogBytes. With no line break left it cuts on a rune
// boundary instead. The view follows new text only when it was already at
// the bottom.
func (in *inspector) appendLog(text string) {
	follow := in.view.AtBottom()
	in.log.WriteString(text)
	if in.log.Len() > maxLogBytes {
		kept := in.log.String()
		kept = kept[len(kept)-maxLogBytes:]
		if i := strings.IndexByte(kept, '\n'); i >= 0 {
			kept = kept[i+1:]
		} else {
			for len(kept) > 0 && !utf8.RuneStart(kept[0]) {
				kept = kept[1:]
			}
		}
		in.log.Reset()
		in.log.WriteString(kept)
	}
	in.view.SetContent(in.log.String())
	if follow {
		in.view.GotoBottom()
	}
}

// resize gives the log viewport whatever the detail panel leaves over.
func (in *inspector) resize(width, body int) {
	h := body - inspectorFixedLines
	if in.form != nil {
		h -= formLines
	}
	if h < 3 {
		h = 3
	}
	in.view.Width = width
	in.view.Height = h
}

// inspect opens the inspector on a job. Opening the job already shown
// keeps its metric window; any other job starts fresh.
func (m *Model) inspect(jobID string) tea.Cmd {
	if jobID == "" {
		return nil
	}
	m.leave()

	if m.insp == nil || m.insp.jobID != jobID {
		m.insp = newInspector(jobID)
	}
	m.detailSeq++
	m.insp.poll = poller.New(fmt.Sprintf("detail-%d", m.detailSeq), m.cfg.Poll.Inspector,
		detailFetch(m.src, m.sampler, jobID, m.log), m.pollOpts...)
	m.insp.loaded = false
	m.insp.missing = false
	m.insp.form = nil
	m.insp.logPath = ""

	m.tab = TabInspector
	m.resize()
	m.setStatus(TabInspector, fmt.Sprintf("Loading job %s…", jobID), levelInfo)
	return m.insp.poll.Start()
}

// detailFetch loads a job's details and, for derived sampling, one live
// usage reading. Usage failures are logged and yield an empty reading.
func detailFetch(src slurm.Source, sampler metrics.Sampler, jobID string, log logger.Logger) poller.FetchFunc[detailSnapshot] {
	return func(ctx context.Context) (detailSnapshot, error) {
		d, err := src.JobDetails(ctx, jobID)
		if err != nil {
			return detailSnapshot{}, err
		}
		snap := detailSnapshot{Detail: d}
		if !d.Found() || sampler.Mode(d) != metrics.ModeDerived {
			return snap, nil
		}

		live, err := src.LiveMetrics(ctx, jobID)
		if err != nil {
			log.Warn("sstat %s: %s", jobID, errors.Summary(err))
		}
		snap.Live = live
		if sampler.WantsGPU(d) {
			gpu, err := src.GPUUtilization(ctx, jobID)
			if err != nil {
				log.Warn("gpu usage %s: %s", jobID, errors.Summary(err))
			}
			snap.GPU = gpu
		}
		return snap, nil
	}
}

// handleDetail applies one inspector poll.
func (m *Model) handleDetail(msg poller.ResultMsg[detailSnapshot]) tea.Cmd {
	in := m.insp
	if in == nil || in.poll == nil || !in.poll.Accept(msg) {
		return nil
	}
	if msg.Err != nil {
		m.setStatus(TabInspector, pollFailure("Job details", msg.Err), levelError)
		return nil
	}

	snap := msg.Value
	if !snap.Detail.Found() {
		in.missing = true
		in.poll.Stop()
		m.tailer.Stop()
		m.setStatus(TabInspector, fmt.Sprintf("could not fetch details for job %s", in.jobID), levelError)
		return nil
	}

	in.detail = snap.Detail
	in.missing = false
	switch m.sampler.Mode(snap.Detail) {
	case metrics.ModeDirect:
		m.sampler.Mirror(in.window, snap.Detail)
	case metrics.ModeDerived:
		if !snap.Live.Empty() || len(snap.GPU) > 0 {
			in.window.Push(m.sampler.Derive(snap.Detail, snap.Live, snap.GPU))
		}
	}
	m.setStatus(TabInspector, fmt.Sprintf("Job %s · %s", in.jobID, snap.Detail.State.Display()), levelInfo)

	if !in.loaded {
		in.loaded = true
		m.startTail()
	}
	return nil
}

// startTail follows the current stream's log file from scratch.
func (m *Model) startTail() {
	in := m.insp
	m.tailer.Stop()
	in.logPath = in.path()
	if in.logPath == "" {
		in.resetLog(fmt.Sprintf("No %s path reported for job %s", in.stream, in.jobID))
		return
	}
	in.resetLog("")
	m.tailer.Start(m.ctx, in.logPath)
}

// handleLogChunk appends tailer output from the current generation.
func (m *Model) handleLogChunk(c tail.Chunk) {
	if m.insp == nil || !m.tailer.Accept(c) {
		return
	}
	text := c.Text
	if c.Err && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	m.insp.appendLog(text)
}

// handleInspectorKey handles keys for the Inspector tab.
func (m Model) handleInspectorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	in := m.insp

	switch msg.String() {
	case KeyBack:
		cmd = m.switchTab(TabMonitor)

	case KeyStream:
		if in.stream == StreamStdout {
			in.stream = StreamStderr
		} else {
			in.stream = StreamStdout
		}
		if in.loaded {
			m.startTail()
		}
		cmd = m.flash("Showing "+in.stream.String(), levelInfo)

	case KeyResubmit:
		if !in.loaded {
			cmd = m.flash("Job details are not loaded yet", levelWarn)
			break
		}
		f, err := templates.FormFromDetail(in.detail)
		if err != nil {
			cmd = m.flash(errors.Summary(err), levelError)
			break
		}
		in.form = &f
		m.resize()

	default:
		in.view, cmd = in.view.Update(msg)
	}
	return m, cmd
}

// handleFormKey handles the resubmit form's keys. It reports false for
// keys the form does not use so they reach the tab.
func (m *Model) handleFormKey(k string) (bool, tea.Cmd) {
	f := m.insp.form
	switch k {
	case KeyBack:
		m.insp.form = nil
		m.resize()
		return true, nil
	case KeyInspect:
		m.insp.form = nil
		m.resize()
		return true, m.submitCmd(*f)
	case KeySave:
		return true, m.saveTemplateCmd(*f)
	}
	return false, nil
}

// submitCmd submits the form's script with its options.
func (m Model) submitCmd(f templates.Form) tea.Cmd {
	params, err := f.Params()
	if err != nil {
		return m.submitFailed(err)
	}
	parent, src, timeout := m.ctx, m.src, m.cfg.General.SubprocessTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		id, err := src.Submit(ctx, f.Command, params)
		return submitMsg{id: id, err: err}
	}
}

func (m Model) submitFailed(err error) tea.Cmd {
	return func() tea.Msg { return submitMsg{err: err} }
}

// saveTemplateCmd stores the form under the job's name, or "job-ID" when
// the name is not a valid template name.
func (m Model) saveTemplateCmd(f templates.Form) tea.Cmd {
	name, err := templates.ValidateName(f.Name)
	if err != nil {
		name = "job-" + m.insp.jobID
	}
	store := m.store
	fields := f.Fields()
	return func() tea.Msg {
		return templateSavedMsg{name: name, err: store.Save(name, fields)}
	}
}

func (m *Model) handleSubmit(msg submitMsg) tea.Cmd {
	if msg.err != nil {
		return m.flash("Submit failed: "+errors.Summary(msg.err), levelError)
	}
	return m.flash(fmt.Sprintf("Submitted job %s", msg.id), levelSuccess)
}
