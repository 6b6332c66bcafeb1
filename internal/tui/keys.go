package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

// Key bindings as constants for consistency.
const (
	KeyQuit       = "q"
	KeyQuitAlt    = "ctrl+c"
	KeyToggleHelp = "?"
	KeyRefresh    = "r"
	KeyReload     = "ctrl+r"
	KeyMonitor    = "1"
	KeyInspector  = "2"
	KeyHardware   = "3"
	KeyHistory    = "4"
	KeyNextTab    = "tab"
	KeyFilter     = "/"
	KeySelect     = " "
	KeyClearSel   = "x"
	KeyCancel     = "c"
	KeyHold       = "h"
	KeyRelease    = "u"
	KeyInspect    = "enter"
	KeyBack       = "esc"
	KeyStream     = "o"
	KeyResubmit   = "s"
	KeySave       = "t"
)

var tabKeys = map[string]Tab{
	KeyMonitor:   TabMonitor,
	KeyInspector: TabInspector,
	KeyHardware:  TabHardware,
	KeyHistory:   TabHistory,
}

// tableKeyMap keeps only cursor movement so action keys reach the model.
func tableKeyMap() table.KeyMap {
	return table.KeyMap{
		LineUp:     key.NewBinding(key.WithKeys("up", "k")),
		LineDown:   key.NewBinding(key.WithKeys("down", "j")),
		PageUp:     key.NewBinding(key.WithKeys("pgup")),
		PageDown:   key.NewBinding(key.WithKeys("pgdown")),
		GotoTop:    key.NewBinding(key.WithKeys("home")),
		GotoBottom: key.NewBinding(key.WithKeys("end")),
	}
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := msg.String()

	if k == KeyQuitAlt {
		m.shutdown()
		return m, tea.Quit
	}

	// The filter input swallows everything while focused.
	if m.filtering {
		return m.handleFilterKey(msg)
	}

	// Help toggle takes priority
	if k == KeyToggleHelp {
		m.showHelp = !m.showHelp
		return m, nil
	}
	if m.showHelp {
		switch k {
		case KeyBack:
			m.showHelp = false
		case KeyQuit:
			m.shutdown()
			return m, tea.Quit
		}
		return m, nil
	}

	if m.tab == TabInspector && m.insp != nil && m.insp.form != nil {
		if handled, cmd := m.handleFormKey(k); handled {
			return m, cmd
		}
	}

	switch k {
	case KeyQuit:
		m.shutdown()
		return m, tea.Quit
	case KeyNextTab:
		cmd := m.switchTab(m.nextTab())
		return m, cmd
	case KeyRefresh:
		cmd := m.refresh()
		return m, cmd
	case KeyReload:
		cmd := m.reloadConfig()
		return m, cmd
	}
	if t, ok := tabKeys[k]; ok {
		cmd := m.switchTab(t)
		return m, cmd
	}

	var cmd tea.Cmd
	switch m.tab {
	case TabMonitor:
		return m.handleMonitorKey(msg)
	case TabInspector:
		return m.handleInspectorKey(msg)
	case TabHardware:
		if k == KeyBack {
			cmd = m.switchTab(TabMonitor)
			break
		}
		m.hwView, cmd = m.hwView.Update(msg)
	case TabHistory:
		if k == KeyBack {
			cmd = m.switchTab(TabMonitor)
			break
		}
		m.histTable, cmd = m.histTable.Update(msg)
	}
	return m, cmd
}

// nextTab cycles tabs, skipping the inspector until a job was opened.
func (m Model) nextTab() Tab {
	next := (m.tab + 1) % Tab(len(tabNames))
	if next == TabInspector && m.insp == nil {
		next++
	}
	return next
}
