package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/assessly/assessly-gateway/sdk/assessment"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// candidatesTabModel lists candidates and picks the one the quiz is submitted for.
type candidatesTabModel struct {
	client    *Client
	ctx       context.Context
	items     []assessment.Candidate
	cursor    int
	selected  string
	filter    textinput.Model
	filtering bool
	err       error
	width     int
	height    int
}

type candidatesMsg struct {
	items []assessment.Candidate
	err   error
}

type candidateSelectedMsg struct {
	candidate assessment.Candidate
}

func newCandidatesTabModel(ctx context.Context, client *Client) candidatesTabModel {
	ti := textinput.New()
	ti.CharLimit = 128
	ti.Prompt = "/ "
	return candidatesTabModel{client: client, ctx: ctx, filter: ti}
}

func (m candidatesTabModel) Init() tea.Cmd {
	return m.fetch
}

func (m candidatesTabModel) fetch() tea.Msg {
	items, err := m.client.Candidates(m.ctx, m.filter.Value())
	return candidatesMsg{items: items, err: err}
}

func (m candidatesTabModel) editing() bool { return m.filtering }

func (m candidatesTabModel) Update(msg tea.Msg) (candidatesTabModel, tea.Cmd) {
	switch msg := msg.(type) {
	case candidatesMsg:
		m.err = msg.err
		if msg.err == nil {
			m.items = msg.items
			if m.cursor >= len(m.items) {
				m.cursor = max(len(m.items)-1, 0)
			}
		}
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			switch msg.String() {
			case "enter":
				m.filtering = false
				m.filter.Blur()
				m.cursor = 0
				return m, m.fetch
			case "esc":
				m.filtering = false
				m.filter.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "/":
			m.filtering = true
			m.filter.Placeholder = T("cand_filter")
			return m, m.filter.Focus()
		case "r":
			return m, m.fetch
		case "enter":
			if m.cursor < len(m.items) {
				c := m.items[m.cursor]
				m.selected = c.ID
				return m, func() tea.Msg { return candidateSelectedMsg{candidate: c} }
			}
		}
	}
	return m, nil
}

func (m *candidatesTabModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.filter.Width = max(w-4, 10)
}

func (m candidatesTabModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(T("cand_title")))
	sb.WriteString("\n")
	if m.filtering {
		sb.WriteString(m.filter.View())
		sb.WriteString("\n")
		sb.WriteString(helpStyle.Render(T("cand_filtering")))
	} else {
		sb.WriteString(helpStyle.Render(T("cand_help")))
		if f := strings.TrimSpace(m.filter.Value()); f != "" {
			sb.WriteString(subtitleStyle.Render("  / " + f))
		}
	}
	sb.WriteString("\n")
	sb.WriteString(divider(m.width))
	sb.WriteString("\n")

	if m.err != nil {
		sb.WriteString(errorStyle.Render(T("error_prefix") + m.err.Error()))
		sb.WriteString("\n")
	}
	if len(m.items) == 0 {
		sb.WriteString(subtitleStyle.Render(T("cand_empty")))
		return sb.String()
	}

	rows := max(m.height-5, 1)
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	end := min(start+rows, len(m.items))
	for i := start; i < end; i++ {
		c := m.items[i]
		mark := "  "
		if c.ID != "" && c.ID == m.selected {
			mark = "✓ "
		}
		line := fmt.Sprintf("%s%-28s %-32s %s", mark, c.FullName, c.Email, c.InterviewLevel)
		if m.width > 0 {
			line = fitStringWidth(line, m.width)
		}
		if i == m.cursor {
			sb.WriteString(selectedRowStyle.Render(line))
		} else {
			sb.WriteString(valueStyle.Render(line))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
