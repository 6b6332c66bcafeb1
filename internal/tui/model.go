package tui

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/slurmterm/internal/config"
	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/logger"
	"github.com/rileyhilliard/slurmterm/internal/metrics"
	"github.com/rileyhilliard/slurmterm/internal/notify"
	"github.com/rileyhilliard/slurmterm/internal/poller"
	"github.com/rileyhilliard/slurmterm/internal/queue"
	"github.com/rileyhilliard/slurmterm/internal/slurm"
	"github.com/rileyhilliard/slurmterm/internal/tail"
	"github.com/rileyhilliard/slurmterm/internal/templates"
	"github.com/rileyhilliard/slurmterm/internal/ui"
)

// Tab identifies a dashboard tab.
type Tab int

const (
	TabMonitor Tab = iota
	TabInspector
	TabHardware
	TabHistory
)

var tabNames = []string{"Monitor", "Inspector", "Hardware", "History"}

// String returns the tab's title.
func (t Tab) String() string {
	if t < 0 || int(t) >= len(tabNames) {
		return "unknown"
	}
	return tabNames[t]
}

// toastDuration is how long a transient status message stays up.
const toastDuration = 5 * time.Second

// Layout heights outside the tab body.
const (
	headerHeight = 2
	footerHeight = 2
)

// Options configures a Model.
type Options struct {
	Source slurm.Source
	Config *config.Config

	// User whose queue and history are shown. Empty uses Source.CurrentUser.
	User string

	// Cluster skips the cluster name lookup when set.
	Cluster string

	Bridge    *Bridge
	Templates *templates.Store
	Logger    logger.Logger
	Now       func() time.Time

	// Bell rings the terminal bell. Defaults to writing BEL to stdout.
	Bell func()

	// Context bounds the log tailer. Defaults to context.Background.
	Context context.Context

	// Reload rereads the configuration for the reload key. Nil disables it.
	Reload func() (*config.Config, error)
}

// status is a line shown in the footer.
type status struct {
	text  string
	level level
}

// toast is a status that expires.
type toast struct {
	status
	seq int
}

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	ctx     context.Context
	src     slurm.Source
	cfg     *config.Config
	user    string
	cluster string
	log     logger.Logger
	now     func() time.Time
	bell    func()
	policy  notify.Policy
	sampler metrics.Sampler
	bridge  *Bridge
	tailer  *tail.Tailer
	store   *templates.Store
	reload  func() (*config.Config, error)

	pollOpts []poller.Option

	tab      Tab
	width    int
	height   int
	showHelp bool
	quitting bool

	// Monitor tab
	queue      *queue.View
	queuePoll  *poller.Poller[[]slurm.JobSnapshot]
	queueTable table.Model
	filter     textinput.Model
	filtering  bool

	// Inspector tab; nil until a job is opened.
	insp      *inspector
	detailSeq int

	// Hardware tab
	hwPoll *poller.Poller[hardwareSnapshot]
	hw     hardwareSnapshot
	hwView viewport.Model

	// History tab
	histPoll  *poller.Poller[[]slurm.AccountingRow]
	histTable table.Model

	status   map[Tab]status
	toast    toast
	toastSeq int
}

// New creates a dashboard model. Nothing polls until Init.
func New(opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	bell := opts.Bell
	if bell == nil {
		bell = func() { fmt.Fprint(os.Stdout, "\a") }
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	bridge := opts.Bridge
	if bridge == nil {
		bridge = NewBridge(nil)
	}
	store := opts.Templates
	if store == nil {
		store = templates.NewStore(templates.ResolveDir(cfg.Templates.Dir))
	}
	user := opts.User
	if user == "" {
		user = opts.Source.CurrentUser()
	}

	filter := textinput.New()
	filter.Prompt = "/ "
	filter.Placeholder = "filter by name, id, state or partition"
	filter.CharLimit = 64

	m := Model{
		ctx:     ctx,
		src:     opts.Source,
		cfg:     cfg,
		user:    user,
		cluster: opts.Cluster,
		log:     logger.OrDefault(opts.Logger),
		now:     now,
		bell:    bell,
		policy: notify.Policy{
			OnComplete: cfg.Notifications.OnComplete,
			OnFail:     cfg.Notifications.OnFail,
			Bell:       cfg.Notifications.Bell,
		},
		sampler: metrics.Sampler{GPUEnabled: cfg.GPU.Enabled, Now: now},
		bridge:  bridge,
		tailer:  tail.New(bridge.LogChunk),
		store:   store,
		reload:  opts.Reload,
		pollOpts: []poller.Option{
			poller.WithTimeout(cfg.General.SubprocessTimeout),
			poller.WithClock(now),
		},
		queue:      queue.New(queue.WithClock(now)),
		queueTable: newTable(queueColumns, true),
		filter:     filter,
		hwView:     viewport.New(80, 20),
		histTable:  newTable(historyColumns, true),
		status:     make(map[Tab]status),
	}
	m.queuePoll = poller.New("queue", cfg.Poll.Monitor, queueFetch(m.src, user), m.pollOpts...)
	m.hwPoll = poller.New("hardware", cfg.Poll.Hardware, hardwareFetch(m.src), m.pollOpts...)
	m.histPoll = poller.New("history", cfg.Poll.History, historyFetch(m.src, user, cfg.General.HistoryWindow), m.pollOpts...)
	return m
}

// newTable builds an empty table with navigation-only key bindings, so
// single letter actions never scroll.
func newTable(cols []ui.TableColumn, focused bool) table.Model {
	t := ui.NewTable(cols, nil, 10, focused)
	t.KeyMap = tableKeyMap()
	return t
}

// Init starts the monitor tab and looks up the cluster name.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.clusterCmd(), m.queuePoll.Start())
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case poller.TickMsg:
		cmd = m.handleTick(msg)

	case poller.ResultMsg[[]slurm.JobSnapshot]:
		cmd = m.handleQueue(msg)

	case poller.ResultMsg[detailSnapshot]:
		cmd = m.handleDetail(msg)

	case poller.ResultMsg[hardwareSnapshot]:
		cmd = m.handleHardware(msg)

	case poller.ResultMsg[[]slurm.AccountingRow]:
		cmd = m.handleHistory(msg)

	case LogChunkMsg:
		m.handleLogChunk(msg.Chunk)

	case clusterMsg:
		m.cluster = msg.name

	case actionMsg:
		cmd = m.handleAction(msg)

	case submitMsg:
		cmd = m.handleSubmit(msg)

	case templateSavedMsg:
		if msg.err != nil {
			cmd = m.flash("Could not save template: "+errors.Summary(msg.err), levelError)
		} else {
			cmd = m.flash(fmt.Sprintf("Saved template %q", msg.name), levelSuccess)
		}

	case clearToastMsg:
		if msg.seq == m.toast.seq {
			m.toast = toast{}
		}
	}

	return m, cmd
}

// Tab returns the visible tab.
func (m Model) Tab() Tab {
	return m.tab
}

// handleTick routes a poller tick. Every poller ignores ticks that are
// not its own.
func (m *Model) handleTick(msg poller.TickMsg) tea.Cmd {
	cmds := []tea.Cmd{
		m.queuePoll.HandleTick(msg),
		m.hwPoll.HandleTick(msg),
		m.histPoll.HandleTick(msg),
	}
	if m.insp != nil && m.insp.poll != nil {
		cmds = append(cmds, m.insp.poll.HandleTick(msg))
	}
	return tea.Batch(cmds...)
}

// switchTab stops the current tab's pollers and starts the target's.
func (m *Model) switchTab(t Tab) tea.Cmd {
	if t == m.tab {
		return nil
	}
	if t == TabInspector {
		if m.insp == nil {
			return m.flash("No job inspected yet: press enter on a job", levelWarn)
		}
		return m.inspect(m.insp.jobID)
	}

	m.leave()
	m.tab = t
	switch t {
	case TabMonitor:
		return m.queuePoll.Start()
	case TabHardware:
		return m.hwPoll.Start()
	case TabHistory:
		return m.histPoll.Start()
	}
	return nil
}

// leave stops whatever the visible tab runs in the background.
func (m *Model) leave() {
	switch m.tab {
	case TabMonitor:
		m.queuePoll.Stop()
		m.filtering = false
		m.filter.Blur()
	case TabInspector:
		if m.insp != nil {
			if m.insp.poll != nil {
				m.insp.poll.Stop()
			}
			m.insp.form = nil
		}
		m.tailer.Stop()
	case TabHardware:
		m.hwPoll.Stop()
	case TabHistory:
		m.histPoll.Stop()
	}
}

// refresh asks the visible tab's poller for an immediate fetch.
func (m *Model) refresh() tea.Cmd {
	var cmd tea.Cmd
	var ok bool
	switch m.tab {
	case TabMonitor:
		cmd, ok = m.queuePoll.Refresh()
	case TabInspector:
		if m.insp != nil && m.insp.poll != nil {
			cmd, ok = m.insp.poll.Refresh()
		}
	case TabHardware:
		cmd, ok = m.hwPoll.Refresh()
	case TabHistory:
		cmd, ok = m.histPoll.Refresh()
	}
	if !ok {
		return m.flash("Refresh skipped: a poll is running or ran moments ago", levelWarn)
	}
	return tea.Batch(cmd, m.flash("Refreshing…", levelInfo))
}

// reloadConfig rereads the config file and applies it to the running
// dashboard. On error the current settings stay in effect.
func (m *Model) reloadConfig() tea.Cmd {
	if m.reload == nil {
		return m.flash("Config reload is not available", levelWarn)
	}
	cfg, err := m.reload()
	if err != nil {
		m.log.Warn("config reload failed: %s", errors.Summary(err))
		return m.flash("Config not reloaded: "+errors.Summary(err), levelError)
	}
	m.applyConfig(cfg)
	return m.flash("Configuration reloaded", levelInfo)
}

// applyConfig swaps in cfg. Intervals and timeouts apply from each
// poller's next tick; the source and user are kept. A job already open in
// the inspector keeps its GPU setting until it is inspected again.
func (m *Model) applyConfig(cfg *config.Config) {
	m.cfg = cfg
	m.policy = notify.Policy{
		OnComplete: cfg.Notifications.OnComplete,
		OnFail:     cfg.Notifications.OnFail,
		Bell:       cfg.Notifications.Bell,
	}
	m.sampler.GPUEnabled = cfg.GPU.Enabled
	m.pollOpts = []poller.Option{
		poller.WithTimeout(cfg.General.SubprocessTimeout),
		poller.WithClock(m.now),
	}

	m.queuePoll.SetInterval(cfg.Poll.Monitor)
	m.hwPoll.SetInterval(cfg.Poll.Hardware)
	m.histPoll.SetInterval(cfg.Poll.History)
	m.histPoll.SetFetch(historyFetch(m.src, m.user, cfg.General.HistoryWindow))
	m.queuePoll.SetTimeout(cfg.General.SubprocessTimeout)
	m.hwPoll.SetTimeout(cfg.General.SubprocessTimeout)
	m.histPoll.SetTimeout(cfg.General.SubprocessTimeout)
	if m.insp != nil && m.insp.poll != nil {
		m.insp.poll.SetInterval(cfg.Poll.Inspector)
		m.insp.poll.SetTimeout(cfg.General.SubprocessTimeout)
	}

	if dir := templates.ResolveDir(cfg.Templates.Dir); dir != m.store.Dir() {
		m.store = templates.NewStore(dir)
	}
}

// shutdown stops every poller and the tailer.
func (m *Model) shutdown() {
	m.quitting = true
	m.queuePoll.Stop()
	m.hwPoll.Stop()
	m.histPoll.Stop()
	if m.insp != nil && m.insp.poll != nil {
		m.insp.poll.Stop()
	}
	m.tailer.Stop()
}

// resize lays the tab bodies out for the terminal size.
func (m *Model) resize() {
	body := m.bodyHeight()

	tableHeight := body - 1
	if tableHeight < 3 {
		tableHeight = 3
	}
	m.queueTable.SetHeight(tableHeight)
	m.queueTable.SetWidth(m.width)
	m.histTable.SetHeight(body)
	m.histTable.SetWidth(m.width)

	m.hwView.Width = m.width
	m.hwView.Height = body

	if m.insp != nil {
		m.insp.resize(m.width, body)
	}
}

func (m Model) bodyHeight() int {
	h := m.height - headerHeight - footerHeight
	if h < 3 {
		h = 3
	}
	return h
}

func (m *Model) setStatus(t Tab, text string, l level) {
	m.status[t] = status{text: text, level: l}
}

// flash shows a transient status and schedules its removal.
func (m *Model) flash(text string, l level) tea.Cmd {
	m.toastSeq++
	m.toast = toast{status: status{text: text, level: l}, seq: m.toastSeq}
	seq := m.toastSeq
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return clearToastMsg{seq: seq}
	})
}

// clusterCmd looks up the cluster name unless one was given.
func (m Model) clusterCmd() tea.Cmd {
	if m.cluster != "" {
		return nil
	}
	src, timeout := m.src, m.cfg.General.SubprocessTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return clusterMsg{name: src.ClusterName(ctx)}
	}
}

// pollFailure is the status line for a failed poll. The previous data
// stays on screen.
func pollFailure(what string, err error) string {
	if errors.IsTimeout(err) {
		return fmt.Sprintf("%s timed out, showing last data: %s", what, errors.Summary(err))
	}
	return fmt.Sprintf("%s failed, showing last data: %s", what, errors.Summary(err))
}
