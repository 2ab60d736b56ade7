package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/assessly/assessly-gateway/sdk/assessment"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// quizTabModel answers the basket questions one at a time and submits the draft.
type quizTabModel struct {
	client *Client
	ctx    context.Context

	questions []assessment.Question
	draft     *assessment.Draft
	candidate *assessment.Candidate
	index     int

	note        textinput.Model
	editingNote bool
	submitting  bool

	err    error
	width  int
	height int
}

type submittedMsg struct {
	submission *assessment.Submission
	err        error
}

func newQuizTabModel(ctx context.Context, client *Client) quizTabModel {
	ti := textinput.New()
	ti.CharLimit = 1000
	return quizTabModel{client: client, ctx: ctx, note: ti}
}

func (m quizTabModel) editing() bool { return m.editingNote }

func (m quizTabModel) candidateID() string {
	if m.candidate == nil {
		return ""
	}
	return m.candidate.ID
}

// reset rebuilds the draft for questions, keeping answers of questions that stay.
func (m *quizTabModel) reset(questions []assessment.Question) {
	draft := assessment.NewDraft(m.candidateID(), questions)
	if m.draft != nil {
		for _, q := range questions {
			prev, ok := m.draft.Answer(q.ID)
			if !ok {
				continue
			}
			switch {
			case prev.Answer != nil:
				draft.Choose(q.ID, *prev.Answer)
			case prev.IsSkip == 1:
				draft.Skip(q.ID)
			}
			if prev.Other != "" {
				draft.Note(q.ID, prev.Other)
			}
		}
	}
	m.questions = questions
	m.draft = draft
	if m.index >= len(questions) {
		m.index = max(len(questions)-1, 0)
	}
}

func (m quizTabModel) submit() tea.Msg {
	sub, err := m.client.Submit(m.ctx, m.draft)
	return submittedMsg{submission: sub, err: err}
}

func (m quizTabModel) Update(msg tea.Msg) (quizTabModel, tea.Cmd) {
	switch msg := msg.(type) {
	case basketMsg:
		m.reset(msg.Questions)
		return m, nil

	case candidateSelectedMsg:
		c := msg.candidate
		m.candidate = &c
		if m.draft != nil {
			m.draft.CandidateID = c.ID
		}
		return m, nil

	case submittedMsg:
		m.submitting = false
		m.err = msg.err
		if msg.err == nil {
			m.client.Basket().Clear()
		}
		return m, nil

	case tea.KeyMsg:
		if m.editingNote {
			switch msg.String() {
			case "enter":
				if q, ok := m.current(); ok {
					m.draft.Note(q.ID, strings.TrimSpace(m.note.Value()))
				}
				m.editingNote = false
				m.note.Blur()
				return m, nil
			case "esc":
				m.editingNote = false
				m.note.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.note, cmd = m.note.Update(msg)
			return m, cmd
		}

		q, ok := m.current()
		if !ok || m.submitting {
			return m, nil
		}
		key := msg.String()
		switch key {
		case "left", "h":
			if m.index > 0 {
				m.index--
			}
		case "right", "l":
			if m.index < len(m.questions)-1 {
				m.index++
			}
		case "s":
			m.draft.Skip(q.ID)
			if m.index < len(m.questions)-1 {
				m.index++
			}
		case "n":
			m.editingNote = true
			prev, _ := m.draft.Answer(q.ID)
			m.note.SetValue(prev.Other)
			m.note.Placeholder = T("quiz_note")
			return m, m.note.Focus()
		case "ctrl+s":
			if m.candidate == nil {
				m.err = errors.New(T("quiz_need_candidate"))
				return m, nil
			}
			m.draft.CandidateID = m.candidate.ID
			m.err = nil
			m.submitting = true
			return m, m.submit
		default:
			if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
				option := int(key[0] - '1')
				if option < len(q.Options) {
					m.draft.Choose(q.ID, option)
				}
			}
		}
	}
	return m, nil
}

func (m quizTabModel) current() (assessment.Question, bool) {
	if m.draft == nil || m.index < 0 || m.index >= len(m.questions) {
		return assessment.Question{}, false
	}
	return m.questions[m.index], true
}

func (m *quizTabModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.note.Width = max(w-12, 10)
}

func (m quizTabModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(T("quiz_title")))
	sb.WriteString("\n")
	if m.editingNote {
		sb.WriteString(helpStyle.Render(T("quiz_note_help")))
	} else {
		sb.WriteString(helpStyle.Render(T("quiz_help")))
	}
	sb.WriteString("\n")
	if m.candidate != nil {
		sb.WriteString(labelStyle.Render(fmt.Sprintf(T("cand_selected"), m.candidate.FullName)))
	} else {
		sb.WriteString(warningStyle.Render(T("cand_none")))
	}
	sb.WriteString("\n")
	sb.WriteString(divider(m.width))
	sb.WriteString("\n")

	if m.err != nil {
		sb.WriteString(errorStyle.Render(T("error_prefix") + m.err.Error()))
		sb.WriteString("\n")
	}
	if m.submitting {
		sb.WriteString(warningStyle.Render(T("quiz_submitting")))
		sb.WriteString("\n")
	}

	q, ok := m.current()
	if !ok {
		sb.WriteString(subtitleStyle.Render(T("quiz_empty")))
		return sb.String()
	}
	answer, _ := m.draft.Answer(q.ID)

	sb.WriteString(subtitleStyle.Render(fmt.Sprintf(T("quiz_progress"), m.index+1, len(m.questions), m.draft.Answered())))
	sb.WriteString("\n\n")
	text := strings.TrimSpace(q.Question)
	if m.width > 4 {
		text = lipgloss.NewStyle().Width(m.width - 2).Render(text)
	}
	sb.WriteString(valueStyle.Render(text))
	sb.WriteString("\n\n")
	for i, option := range q.Options {
		line := fmt.Sprintf("  [%d] %s", i+1, option)
		if answer.Answer != nil && *answer.Answer == i {
			sb.WriteString(chosenOptionStyle.Render("▸" + line[1:]))
		} else {
			sb.WriteString(valueStyle.Render(line))
		}
		sb.WriteString("\n")
	}
	if answer.IsSkip == 1 {
		sb.WriteString(warningStyle.Render("  " + T("quiz_skipped")))
		sb.WriteString("\n")
	}
	if m.editingNote {
		sb.WriteString("\n")
		sb.WriteString(m.note.View())
	} else if answer.Other != "" {
		sb.WriteString("\n")
		sb.WriteString(labelStyle.Render(T("quiz_note") + ": "))
		sb.WriteString(valueStyle.Render(answer.Other))
	}
	return sb.String()
}
