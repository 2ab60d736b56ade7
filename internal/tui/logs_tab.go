package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

const maxLogLines = 5000

// logsTabModel tails the embedded gateway's log output.
type logsTabModel struct {
	hook       *LogHook
	viewport   viewport.Model
	lines      []string
	autoScroll bool
	minLevel   int
	width      int
	height     int
	ready      bool
}

type logLineMsg string

var levelRank = map[string]int{"trace": 0, "debug": 0, "info": 1, "warn": 2, "warning": 2, "error": 3, "fatal": 3, "panic": 3}

var filterNames = []string{"ALL", "INFO+", "WARN+", "ERROR"}

func newLogsTabModel(hook *LogHook) logsTabModel {
	return logsTabModel{hook: hook, autoScroll: true}
}

func (m logsTabModel) Init() tea.Cmd {
	return m.waitForLog
}

func (m logsTabModel) waitForLog() tea.Msg {
	if m.hook == nil {
		return nil
	}
	line, ok := <-m.hook.Chan()
	if !ok {
		return nil
	}
	return logLineMsg(line)
}

func (m logsTabModel) Update(msg tea.Msg) (logsTabModel, tea.Cmd) {
	switch msg := msg.(type) {
	case localeChangedMsg:
		m.refresh()
		return m, nil

	case logLineMsg:
		m.lines = append(m.lines, string(msg))
		if len(m.lines) > maxLogLines {
			m.lines = m.lines[len(m.lines)-maxLogLines:]
		}
		m.refresh()
		return m, m.waitForLog

	case tea.KeyMsg:
		switch msg.String() {
		case "a":
			m.autoScroll = !m.autoScroll
			m.refresh()
			return m, nil
		case "c":
			m.lines = nil
			m.refresh()
			return m, nil
		case "1", "2", "3", "4":
			m.minLevel = int(msg.String()[0] - '1')
			m.refresh()
			return m, nil
		}
		wasAtBottom := m.viewport.AtBottom()
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		if wasAtBottom && !m.viewport.AtBottom() {
			m.autoScroll = false
		} else if m.viewport.AtBottom() {
			m.autoScroll = true
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *logsTabModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderLogs())
	if m.autoScroll {
		m.viewport.GotoBottom()
	}
}

func (m *logsTabModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if !m.ready {
		m.viewport = viewport.New(w, h)
		m.ready = true
	} else {
		m.viewport.Width = w
		m.viewport.Height = h
	}
	m.refresh()
}

func (m logsTabModel) View() string {
	if !m.ready {
		return T("loading")
	}
	return m.viewport.View()
}

func (m logsTabModel) renderLogs() string {
	var sb strings.Builder

	scroll := successStyle.Render(T("logs_auto_scroll"))
	if !m.autoScroll {
		scroll = warningStyle.Render(T("logs_paused"))
	}
	sb.WriteString(titleStyle.Render(fmt.Sprintf(" %s  %s  %s: %s  %s: %d",
		T("logs_title"), scroll, T("logs_filter"), filterNames[m.minLevel], T("logs_lines"), len(m.lines))))
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render(T("logs_help")))
	sb.WriteString("\n")
	sb.WriteString(divider(m.width))
	sb.WriteString("\n")

	if len(m.lines) == 0 {
		sb.WriteString(subtitleStyle.Render(T("logs_waiting")))
		return sb.String()
	}
	for _, line := range m.lines {
		level := lineLevel(line)
		if levelRank[level] < m.minLevel {
			continue
		}
		sb.WriteString(logLevelStyle(level).Render(line))
		sb.WriteString("\n")
	}
	return sb.String()
}

// lineLevel extracts the level from "[time] [request-id] [level] ...". Lines in
// another shape count as info.
func lineLevel(line string) string {
	rest := line
	for i := 0; i < 3; i++ {
		open := strings.IndexByte(rest, '[')
		end := strings.IndexByte(rest, ']')
		if open < 0 || end < open {
			return "info"
		}
		if i == 2 {
			level := strings.TrimSpace(rest[open+1 : end])
			if _, ok := levelRank[level]; ok {
				return level
			}
			return "info"
		}
		rest = rest[end+1:]
	}
	return "info"
}
