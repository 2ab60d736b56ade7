package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/assessly/assessly-gateway/sdk/assessment"
	"github.com/assessly/assessly-gateway/sdk/virtuallist"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	questionRowEstimate = 2
	questionOverscan    = 2
)

var searchPageSizes = []int{10, 20, 50}

// questionsTabModel searches questions and shows the quiz basket. Only the rows
// intersecting the viewport are rendered; their measured heights feed back into
// the list for the next frame.
type questionsTabModel struct {
	client *Client
	ctx    context.Context

	catalog  *assessment.Catalog
	topic    int
	language int
	position int
	pageSize int

	questions []assessment.Question
	list      *virtuallist.List
	cursor    int
	scrollTop float64

	err    error
	width  int
	height int
}

type catalogMsg struct {
	catalog *assessment.Catalog
	err     error
}

type searchDoneMsg struct {
	err error
}

// basketMsg carries basket changes to the Questions and Quiz tabs.
type basketMsg assessment.BasketEvent

func newQuestionsTabModel(ctx context.Context, client *Client) questionsTabModel {
	return questionsTabModel{
		client:   client,
		ctx:      ctx,
		topic:    -1,
		language: -1,
		position: -1,
		list:     virtuallist.New(0, questionRowEstimate, questionOverscan),
	}
}

func (m questionsTabModel) Init() tea.Cmd {
	return m.fetchCatalog
}

func (m questionsTabModel) fetchCatalog() tea.Msg {
	catalog, err := m.client.Catalog(m.ctx)
	return catalogMsg{catalog: catalog, err: err}
}

func (m questionsTabModel) search() tea.Msg {
	_, err := m.client.SearchQuestions(m.ctx, m.query())
	return searchDoneMsg{err: err}
}

func (m questionsTabModel) query() assessment.QuestionSearch {
	q := assessment.QuestionSearch{PageSize: searchPageSizes[m.pageSize]}
	if m.catalog == nil {
		return q
	}
	if m.topic >= 0 && m.topic < len(m.catalog.Topics) {
		t := m.catalog.Topics[m.topic]
		q.Topic = firstNonEmpty(t.ID, t.Title)
	}
	if m.language >= 0 && m.language < len(m.catalog.Languages) {
		l := m.catalog.Languages[m.language]
		q.Language = firstNonEmpty(l.ID, l.Name)
	}
	if m.position >= 0 && m.position < len(m.catalog.Positions) {
		p := m.catalog.Positions[m.position]
		q.Position = firstNonEmpty(p.ID, p.Title)
	}
	return q
}

func (m questionsTabModel) Update(msg tea.Msg) (questionsTabModel, tea.Cmd) {
	switch msg := msg.(type) {
	case catalogMsg:
		m.err = msg.err
		if msg.err == nil {
			m.catalog = msg.catalog
			m.topic, m.language, m.position = -1, -1, -1
		}
		return m, nil

	case searchDoneMsg:
		m.err = msg.err
		return m, nil

	case basketMsg:
		m.setQuestions(msg.Questions)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			m.moveCursor(-1)
		case "down", "j":
			m.moveCursor(1)
		case "pgup":
			m.moveCursor(-max(m.listHeight()/questionRowEstimate, 1))
		case "pgdown":
			m.moveCursor(max(m.listHeight()/questionRowEstimate, 1))
		case "t":
			if m.catalog != nil {
				m.topic = cycleIndex(m.topic, len(m.catalog.Topics))
			}
		case "g":
			if m.catalog != nil {
				m.language = cycleIndex(m.language, len(m.catalog.Languages))
			}
		case "p":
			if m.catalog != nil {
				m.position = cycleIndex(m.position, len(m.catalog.Positions))
			}
		case "z":
			m.pageSize = (m.pageSize + 1) % len(searchPageSizes)
		case "enter":
			m.err = nil
			return m, m.search
		case "r":
			return m, m.fetchCatalog
		case "x":
			if m.cursor < len(m.questions) {
				m.client.Basket().Remove(m.questions[m.cursor].ID)
			}
		case "c":
			m.client.Basket().Clear()
		}
	}
	return m, nil
}

// cycleIndex steps through -1 (any) and 0..n-1.
func cycleIndex(cur, n int) int {
	if n == 0 {
		return -1
	}
	cur++
	if cur >= n {
		return -1
	}
	return cur
}

func (m *questionsTabModel) setQuestions(questions []assessment.Question) {
	m.questions = questions
	m.list = virtuallist.New(len(questions), questionRowEstimate, questionOverscan)
	if m.cursor >= len(questions) {
		m.cursor = max(len(questions)-1, 0)
	}
	m.scrollTop = 0
	m.ensureVisible()
}

func (m *questionsTabModel) moveCursor(delta int) {
	if len(m.questions) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.questions)-1)
	m.ensureVisible()
}

// ensureVisible scrolls so the cursor row lies within the viewport.
func (m *questionsTabModel) ensureVisible() {
	viewport := float64(m.listHeight())
	top := m.list.Offset(m.cursor)
	bottom := top + m.list.Height(m.cursor)
	switch {
	case top < m.scrollTop:
		m.scrollTop = top
	case bottom > m.scrollTop+viewport:
		m.scrollTop = bottom - viewport
	}
	if m.scrollTop < 0 {
		m.scrollTop = 0
	}
}

func (m questionsTabModel) listHeight() int {
	return max(m.height-6, 1)
}

func (m *questionsTabModel) SetSize(w, h int) {
	if w != m.width && m.list != nil {
		// Row heights depend on wrapping; measure again at the new width.
		m.list = virtuallist.New(len(m.questions), questionRowEstimate, questionOverscan)
	}
	m.width = w
	m.height = h
	m.ensureVisible()
}

func (m questionsTabModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(T("q_title")))
	sb.WriteString("\n")
	sb.WriteString(m.renderFilters())
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render(T("q_help1")))
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render(T("q_help2")))
	sb.WriteString("\n")
	sb.WriteString(divider(m.width))
	sb.WriteString("\n")

	if m.err != nil {
		sb.WriteString(errorStyle.Render(T("error_prefix") + m.err.Error()))
		sb.WriteString("\n")
	}
	if len(m.questions) == 0 {
		sb.WriteString(subtitleStyle.Render(T("q_empty")))
		return sb.String()
	}
	sb.WriteString(strings.Join(m.renderWindow(), "\n"))
	return sb.String()
}

func (m questionsTabModel) renderFilters() string {
	name := func(idx int, pick func(int) string) string {
		if idx < 0 {
			return T("any")
		}
		return pick(idx)
	}
	var topic, language, position string
	if m.catalog != nil {
		topic = name(m.topic, func(i int) string { return m.catalog.Topics[i].Title })
		language = name(m.language, func(i int) string { return m.catalog.Languages[i].Name })
		position = name(m.position, func(i int) string { return m.catalog.Positions[i].Title })
	} else {
		topic, language, position = T("any"), T("any"), T("any")
	}
	return fmt.Sprintf(" %s %s  %s %s  %s %s  %s %d  %s",
		labelStyle.Render(T("q_topic")+":"), valueStyle.Render(topic),
		labelStyle.Render(T("q_language")+":"), valueStyle.Render(language),
		labelStyle.Render(T("q_position")+":"), valueStyle.Render(position),
		labelStyle.Render(T("q_page_size")+":"), searchPageSizes[m.pageSize],
		subtitleStyle.Render(fmt.Sprintf(T("q_count"), len(m.questions))))
}

// renderWindow lays the visible rows onto a canvas of listHeight lines.
func (m questionsTabModel) renderWindow() []string {
	viewport := m.listHeight()
	canvas := make([]string, viewport)
	m.list.Render(m.scrollTop, float64(viewport), func(p virtuallist.Placement) {
		rows := m.renderRow(p.Index)
		m.list.Measure(p.Index, float64(len(rows)))
		for i, row := range rows {
			y := int(p.Top-m.scrollTop) + i
			if y >= 0 && y < viewport {
				canvas[y] = row
			}
		}
	})
	end := len(canvas)
	for end > 0 && canvas[end-1] == "" {
		end--
	}
	return canvas[:end]
}

func (m questionsTabModel) renderRow(index int) []string {
	q := m.questions[index]
	text := fmt.Sprintf("%d. %s", index+1, strings.TrimSpace(q.Question))
	if m.width > 4 {
		text = lipgloss.NewStyle().Width(m.width - 2).Render(text)
	}
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	meta := "   " + fmt.Sprintf(T("q_meta"), q.Difficulty, len(q.Options))
	if q.Topic != "" {
		meta += " • " + q.Topic
	}
	lines = append(lines, meta)

	style := valueStyle
	if index == m.cursor {
		style = selectedRowStyle
	}
	for i := range lines {
		if i == len(lines)-1 && index != m.cursor {
			lines[i] = helpStyle.Render(lines[i])
			continue
		}
		lines[i] = style.Render(lines[i])
	}
	return lines
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
