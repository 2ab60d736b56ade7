package tui

import (
	"fmt"
	"strings"

	"github.com/assessly/assessly-gateway/sdk/assessment"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// resultTabModel reviews the last submission.
type resultTabModel struct {
	client     *Client
	submission *assessment.Submission
	summary    assessment.Summary
	status     string
	statusErr  bool
	viewport   viewport.Model
	width      int
	height     int
	ready      bool

	copyText    func(string) error
	openBrowser func(string) error
}

func newResultTabModel(client *Client) resultTabModel {
	return resultTabModel{
		client:      client,
		copyText:    clipboard.WriteAll,
		openBrowser: openBrowser,
	}
}

func (m resultTabModel) Update(msg tea.Msg) (resultTabModel, tea.Cmd) {
	switch msg := msg.(type) {
	case localeChangedMsg:
		m.refresh()
		return m, nil

	case submittedMsg:
		if msg.err == nil && msg.submission != nil {
			m.submission = msg.submission
			m.summary = assessment.Summarize(msg.submission)
			m.status = ""
			m.refresh()
			m.viewport.GotoTop()
		}
		return m, nil

	case tea.KeyMsg:
		if m.submission == nil {
			return m, nil
		}
		switch msg.String() {
		case "c":
			m.setStatus(T("copied"), m.copyText(m.submission.ID))
			return m, nil
		case "o":
			m.setStatus(T("opened"), m.openBrowser(m.client.ReviewURL(m.submission.ID)))
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *resultTabModel) setStatus(ok string, err error) {
	if err != nil {
		m.status = T("error_prefix") + err.Error()
		m.statusErr = true
	} else {
		m.status = ok
		m.statusErr = false
	}
}

func (m *resultTabModel) refresh() {
	if m.ready {
		m.viewport.SetContent(m.renderAnswers())
	}
}

func (m *resultTabModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	bodyH := max(h-6, 1)
	if !m.ready {
		m.viewport = viewport.New(w, bodyH)
		m.ready = true
	} else {
		m.viewport.Width = w
		m.viewport.Height = bodyH
	}
	m.refresh()
}

func (m resultTabModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(T("result_title")))
	sb.WriteString("\n")
	if m.submission == nil {
		sb.WriteString(subtitleStyle.Render(T("result_empty")))
		return sb.String()
	}
	sb.WriteString(helpStyle.Render(T("result_help")))
	sb.WriteString("\n")

	header := labelStyle.Render(T("result_id")+": ") + valueStyle.Render(m.submission.ID)
	if c := m.submission.Candidate; c != nil && c.FullName != "" {
		header += "  " + valueStyle.Render(c.FullName)
	}
	sb.WriteString(header)
	sb.WriteString("\n")
	s := m.summary
	sb.WriteString(successStyle.Render(fmt.Sprintf(T("result_score"), s.Correct, s.Total, s.Percent, s.Skipped)))
	if m.status != "" {
		sb.WriteString("  ")
		if m.statusErr {
			sb.WriteString(errorStyle.Render(m.status))
		} else {
			sb.WriteString(successStyle.Render(m.status))
		}
	}
	sb.WriteString("\n")
	sb.WriteString(divider(m.width))
	sb.WriteString("\n")
	if m.ready {
		sb.WriteString(m.viewport.View())
	} else {
		sb.WriteString(m.renderAnswers())
	}
	return sb.String()
}

func (m resultTabModel) renderAnswers() string {
	if m.submission == nil {
		return ""
	}
	var sb strings.Builder
	for i, a := range m.submission.Answers {
		mark, style := "✗", errorStyle
		switch {
		case a.IsSkip == 1:
			mark, style = "–", warningStyle
		case a.Point > 0:
			mark, style = "✓", successStyle
		}
		text := a.QuestionID
		if a.Question != nil && a.Question.Question != "" {
			text = a.Question.Question
		}
		sb.WriteString(style.Render(mark))
		sb.WriteString(valueStyle.Render(fmt.Sprintf(" %d. %s", i+1, text)))
		sb.WriteString("\n")
		if a.Answer.Answer != nil {
			chosen := fmt.Sprintf("#%d", *a.Answer.Answer+1)
			if q := a.Question; q != nil && *a.Answer.Answer >= 0 && *a.Answer.Answer < len(q.Options) {
				chosen = q.Options[*a.Answer.Answer]
			}
			sb.WriteString(helpStyle.Render(fmt.Sprintf("    %s: %s", T("result_answer"), chosen)))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
