package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/assessly/assessly-gateway/sdk/assessment"
	"github.com/assessly/assessly-gateway/sdk/session"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Tab identifiers. Logs is last so hiding it leaves the other indices intact.
const (
	tabCandidates = iota
	tabQuestions
	tabQuiz
	tabResult
	tabLogs
	tabCount
)

// App is the root bubbletea model. It owns the login gate, the tab sub-models and
// the loading spinner driven by the client's loading coordinator.
type App struct {
	ctx    context.Context
	client *Client

	activeTab   int
	tabs        []string
	logsEnabled bool

	authenticated  bool
	emailInput     textinput.Model
	passwordInput  textinput.Model
	authError      string
	authConnecting bool

	candidates candidatesTabModel
	questions  questionsTabModel
	quiz       quizTabModel
	result     resultTabModel
	logs       logsTabModel

	spinner   spinner.Model
	loading   bool
	loadingCh <-chan bool
	basketCh  <-chan assessment.BasketEvent
	closers   []func()

	width  int
	height int
	ready  bool

	initialized [tabCount]bool
}

type loginMsg struct {
	err error
}

type loadingMsg bool

type authExpiredMsg struct {
	kind session.Kind
}

// localeChangedMsg is broadcast when the user toggles the locale.
type localeChangedMsg struct{}

// NewApp builds the root model. A non-nil hook enables the Logs tab.
func NewApp(ctx context.Context, client *Client, hook *LogHook) App {
	if ctx == nil {
		ctx = context.Background()
	}
	email := textinput.New()
	email.CharLimit = 254
	email.Focus()

	password := textinput.New()
	password.CharLimit = 512
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '*'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = warningStyle

	loadingCh, stopLoading := client.Loader().Subscribe()
	basketCh, stopBasket := client.Basket().Subscribe()

	app := App{
		ctx:           ctx,
		client:        client,
		activeTab:     tabCandidates,
		logsEnabled:   hook != nil,
		authenticated: client.HasSession(),
		emailInput:    email,
		passwordInput: password,
		candidates:    newCandidatesTabModel(ctx, client),
		questions:     newQuestionsTabModel(ctx, client),
		quiz:          newQuizTabModel(ctx, client),
		result:        newResultTabModel(client),
		logs:          newLogsTabModel(hook),
		spinner:       sp,
		loadingCh:     loadingCh,
		basketCh:      basketCh,
		closers:       []func(){stopLoading, stopBasket},
	}
	app.refreshTabs()
	app.setInputPrompts()
	if app.authenticated {
		app.initialized[tabCandidates] = true
	}
	return app
}

// Close releases the subscriptions taken by NewApp.
func (a App) Close() {
	for _, fn := range a.closers {
		fn()
	}
}

func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForLoading(a.loadingCh),
		waitForBasket(a.basketCh),
		waitForAuthFailure(a.client.AuthFailures()),
	}
	if a.logsEnabled {
		cmds = append(cmds, a.logs.Init())
	}
	if a.authenticated {
		cmds = append(cmds, a.candidates.Init())
	} else {
		cmds = append(cmds, textinput.Blink)
	}
	return tea.Batch(cmds...)
}

func waitForLoading(ch <-chan bool) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return loadingMsg(v)
	}
}

func waitForBasket(ch <-chan assessment.BasketEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return basketMsg(ev)
	}
}

func waitForAuthFailure(ch <-chan session.Kind) tea.Cmd {
	return func() tea.Msg {
		kind, ok := <-ch
		if !ok {
			return nil
		}
		return authExpiredMsg{kind: kind}
	}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		if a.width > 0 {
			a.emailInput.Width = a.width - 16
			a.passwordInput.Width = a.width - 16
		}
		contentH := max(a.height-4, 1) // tab bar + status bar
		a.candidates.SetSize(a.width, contentH)
		a.questions.SetSize(a.width, contentH)
		a.quiz.SetSize(a.width, contentH)
		a.result.SetSize(a.width, contentH)
		a.logs.SetSize(a.width, contentH)
		return a, nil

	case loadingMsg:
		a.loading = bool(msg)
		cmds := []tea.Cmd{waitForLoading(a.loadingCh)}
		if a.loading {
			cmds = append(cmds, a.spinner.Tick)
		}
		return a, tea.Batch(cmds...)

	case spinner.TickMsg:
		if !a.loading {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case basketMsg:
		a.questions, _ = a.questions.Update(msg)
		a.quiz, _ = a.quiz.Update(msg)
		return a, waitForBasket(a.basketCh)

	case authExpiredMsg:
		a.signOut(T("session_expired"))
		return a, tea.Batch(waitForAuthFailure(a.client.AuthFailures()), textinput.Blink)

	case loginMsg:
		a.authConnecting = false
		if msg.err != nil {
			a.authError = fmt.Sprintf(T("login_fail"), msg.err.Error())
			return a, nil
		}
		a.authError = ""
		a.authenticated = true
		a.passwordInput.SetValue("")
		a.initialized = [tabCount]bool{}
		return a, a.initTabIfNeeded()

	case logLineMsg:
		var cmd tea.Cmd
		a.logs, cmd = a.logs.Update(msg)
		return a, cmd

	case candidatesMsg:
		var cmd tea.Cmd
		a.candidates, cmd = a.candidates.Update(msg)
		return a, cmd

	case catalogMsg, searchDoneMsg:
		var cmd tea.Cmd
		a.questions, cmd = a.questions.Update(msg)
		return a, cmd

	case candidateSelectedMsg:
		a.quiz, _ = a.quiz.Update(msg)
		return a, nil

	case submittedMsg:
		a.quiz, _ = a.quiz.Update(msg)
		a.result, _ = a.result.Update(msg)
		if msg.err == nil {
			a.activeTab = tabResult
		}
		return a, nil

	case tea.KeyMsg:
		if !a.authenticated {
			return a.updateLogin(msg)
		}
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "ctrl+x":
			a.client.Logout()
			a.signOut("")
			return a, textinput.Blink
		}
		if !a.activeEditing() {
			switch msg.String() {
			case "q":
				return a, tea.Quit
			case "L":
				ToggleLocale()
				a.refreshTabs()
				a.setInputPrompts()
				return a.broadcast(localeChangedMsg{})
			case "tab":
				a.activeTab = (a.activeTab + 1) % len(a.tabs)
				return a, a.initTabIfNeeded()
			case "shift+tab":
				a.activeTab = (a.activeTab - 1 + len(a.tabs)) % len(a.tabs)
				return a, a.initTabIfNeeded()
			}
		}
	}

	if !a.authenticated {
		return a.updateInputs(msg)
	}

	var cmd tea.Cmd
	switch a.activeTab {
	case tabCandidates:
		a.candidates, cmd = a.candidates.Update(msg)
	case tabQuestions:
		a.questions, cmd = a.questions.Update(msg)
	case tabQuiz:
		a.quiz, cmd = a.quiz.Update(msg)
	case tabResult:
		a.result, cmd = a.result.Update(msg)
	case tabLogs:
		a.logs, cmd = a.logs.Update(msg)
	}
	return a, cmd
}

func (a App) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return a, tea.Quit
	case "ctrl+l":
		ToggleLocale()
		a.refreshTabs()
		a.setInputPrompts()
		return a, nil
	case "tab", "shift+tab", "up", "down":
		if a.emailInput.Focused() {
			a.emailInput.Blur()
			return a, a.passwordInput.Focus()
		}
		a.passwordInput.Blur()
		return a, a.emailInput.Focus()
	case "enter":
		if a.authConnecting {
			return a, nil
		}
		email := strings.TrimSpace(a.emailInput.Value())
		password := a.passwordInput.Value()
		if email == "" || strings.TrimSpace(password) == "" {
			a.authError = T("login_required")
			return a, nil
		}
		a.authError = ""
		a.authConnecting = true
		return a, a.login(email, password)
	}
	return a.updateInputs(msg)
}

func (a App) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmdEmail, cmdPassword tea.Cmd
	a.emailInput, cmdEmail = a.emailInput.Update(msg)
	a.passwordInput, cmdPassword = a.passwordInput.Update(msg)
	return a, tea.Batch(cmdEmail, cmdPassword)
}

func (a App) login(email, password string) tea.Cmd {
	return func() tea.Msg {
		return loginMsg{err: a.client.Login(a.ctx, email, password)}
	}
}

// signOut returns to the login gate. Tabs fetch their data again after the next login.
func (a *App) signOut(reason string) {
	a.authenticated = false
	a.authConnecting = false
	a.authError = reason
	a.passwordInput.SetValue("")
	a.passwordInput.Blur()
	a.emailInput.Focus()
	a.initialized = [tabCount]bool{}
}

func (a App) activeEditing() bool {
	switch a.activeTab {
	case tabCandidates:
		return a.candidates.editing()
	case tabQuiz:
		return a.quiz.editing()
	}
	return false
}

func (a *App) refreshTabs() {
	names := TabNames()
	if a.logsEnabled {
		a.tabs = names
	} else {
		a.tabs = names[:tabLogs]
	}
	if a.activeTab >= len(a.tabs) {
		a.activeTab = len(a.tabs) - 1
	}
}

func (a *App) initTabIfNeeded() tea.Cmd {
	if a.initialized[a.activeTab] {
		return nil
	}
	a.initialized[a.activeTab] = true
	switch a.activeTab {
	case tabCandidates:
		return a.candidates.Init()
	case tabQuestions:
		return a.questions.Init()
	}
	return nil
}

func (a *App) setInputPrompts() {
	a.emailInput.Prompt = fmt.Sprintf("  %-10s ", T("login_email")+":")
	a.passwordInput.Prompt = fmt.Sprintf("  %-10s ", T("login_password")+":")
}

func (a App) broadcast(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmdLogs, cmdResult tea.Cmd
	a.logs, cmdLogs = a.logs.Update(msg)
	a.result, cmdResult = a.result.Update(msg)
	return a, tea.Batch(cmdLogs, cmdResult)
}

func (a App) View() string {
	if !a.authenticated {
		return a.renderLoginView()
	}
	if !a.ready {
		return T("initializing_tui")
	}

	var sb strings.Builder
	sb.WriteString(a.renderTabBar())
	sb.WriteString("\n")
	switch a.activeTab {
	case tabCandidates:
		sb.WriteString(a.candidates.View())
	case tabQuestions:
		sb.WriteString(a.questions.View())
	case tabQuiz:
		sb.WriteString(a.quiz.View())
	case tabResult:
		sb.WriteString(a.result.View())
	case tabLogs:
		sb.WriteString(a.logs.View())
	}
	sb.WriteString("\n")
	sb.WriteString(a.renderStatusBar())
	return sb.String()
}

func (a App) renderLoginView() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(T("login_title")))
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render(T("login_help")))
	sb.WriteString("\n\n")
	if a.authConnecting {
		sb.WriteString(warningStyle.Render(a.spinner.View() + " " + T("login_connecting")))
		sb.WriteString("\n\n")
	}
	if strings.TrimSpace(a.authError) != "" {
		sb.WriteString(errorStyle.Render(a.authError))
		sb.WriteString("\n\n")
	}
	sb.WriteString(a.emailInput.View())
	sb.WriteString("\n")
	sb.WriteString(a.passwordInput.View())
	sb.WriteString("\n\n")
	sb.WriteString(helpStyle.Render(T("login_enter")))
	return sb.String()
}

func (a App) renderTabBar() string {
	var tabs []string
	for i, name := range a.tabs {
		if i == a.activeTab {
			tabs = append(tabs, tabActiveStyle.Render(name))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(name))
		}
	}
	return tabBarStyle.Width(a.width).Render(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
}

func (a App) renderStatusBar() string {
	left := strings.TrimRight(T("status_left"), " ")
	if a.loading {
		left += "  " + a.spinner.View() + " " + T("loading")
	}
	right := strings.TrimRight(T("status_right"), " ")

	width := max(a.width, 1)
	// statusBarStyle pads one column on each side.
	contentWidth := max(width-2, 0)
	if lipgloss.Width(left) > contentWidth {
		left = fitStringWidth(left, contentWidth)
		right = ""
	}
	remaining := max(contentWidth-lipgloss.Width(left), 0)
	if lipgloss.Width(right) > remaining {
		right = fitStringWidth(right, remaining)
	}
	gap := max(contentWidth-lipgloss.Width(left)-lipgloss.Width(right), 0)
	return statusBarStyle.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}

// fitStringWidth cuts text to at most maxWidth terminal cells.
func fitStringWidth(text string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if lipgloss.Width(text) <= maxWidth {
		return text
	}
	var out strings.Builder
	width := 0
	for _, r := range text {
		w := lipgloss.Width(string(r))
		if width+w > maxWidth {
			break
		}
		out.WriteRune(r)
		width += w
	}
	return out.String()
}

// Run starts the terminal client and blocks until the user quits. output is
// where bubbletea renders; nil selects os.Stdout.
func Run(ctx context.Context, client *Client, hook *LogHook, output io.Writer) error {
	if output == nil {
		output = os.Stdout
	}
	if ctx == nil {
		ctx = context.Background()
	}
	app := NewApp(ctx, client, hook)
	defer app.Close()
	p := tea.NewProgram(app, tea.WithContext(ctx), tea.WithAltScreen(), tea.WithOutput(output))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
