package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/assessly/assessly-gateway/internal/config"
	"github.com/assessly/assessly-gateway/sdk/assessment"
	"github.com/assessly/assessly-gateway/sdk/session"
	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
)

// fakeGateway answers the proxy routes the terminal client uses.
type fakeGateway struct {
	mu          sync.Mutex
	rejectLogin bool
	searchQuery string
	submitted   map[string]any
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/proxy/oauth/token":
		if g.rejectLogin {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"acc-1","refresh_token":"ref-1","token_type":"Bearer","expires_in":3600}`))
	case r.URL.Path == "/api/proxy/candidates":
		_, _ = w.Write([]byte(`{"data":[{"_id":"cand-1","full_name":"Ada Lovelace","email":"ada@example.com"},{"_id":"cand-2","full_name":"Alan Turing","email":"alan@example.com"}]}`))
	case r.URL.Path == "/api/proxy/questions/search":
		g.searchQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"data":[{"_id":"q1","question":"What is a goroutine?","options":["thread","coroutine","process"]},{"_id":"q2","question":"What does defer do?","options":["delay","cleanup"]}]}`))
	case r.URL.Path == "/api/proxy/submissions" && r.Method == http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		g.submitted = map[string]any{}
		_ = json.Unmarshal(body, &g.submitted)
		_, _ = w.Write([]byte(`{"_id":"sub-1","message":"Submission created"}`))
	case r.URL.Path == "/api/proxy/submissions/sub-1":
		_, _ = w.Write([]byte(`{"data":{"_id":"sub-1","candidate_id":"cand-1","answers":[` +
			`{"question_id":"q1","answer":1,"other":"","point":1,"is_skip":0},` +
			`{"question_id":"q2","answer":null,"other":"","point":0,"is_skip":1}]}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not found"}`))
	}
}

func (g *fakeGateway) lastSearch() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.searchQuery
}

func (g *fakeGateway) lastSubmission() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.submitted
}

func newTestClient(t *testing.T) (*Client, *fakeGateway) {
	t.Helper()
	gw := &fakeGateway{}
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Client.BaseURL = srv.URL
	cfg.Client.TokenFile = filepath.Join(t.TempDir(), "session.json")
	cfg.Client.MinLoadingTimeMS = 1
	return NewClient(cfg), gw
}

func newTestApp(t *testing.T, client *Client) App {
	t.Helper()
	app := NewApp(context.Background(), client, nil)
	t.Cleanup(app.Close)
	model, _ := app.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return model.(App)
}

func update(t *testing.T, app App, msg tea.Msg) (App, tea.Cmd) {
	t.Helper()
	model, cmd := app.Update(msg)
	return model.(App), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestLoginFlow(t *testing.T) {
	client, _ := newTestClient(t)
	app := newTestApp(t, client)
	if app.authenticated {
		t.Fatal("fresh client must start at the login gate")
	}

	app, cmd := update(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || app.authError != T("login_required") {
		t.Fatalf("empty credentials: error=%q cmd=%v", app.authError, cmd != nil)
	}

	app.emailInput.SetValue("ada@example.com")
	app.passwordInput.SetValue("secret")
	app, cmd = update(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	if !app.authConnecting || cmd == nil {
		t.Fatal("enter should start signing in")
	}
	msg := cmd()
	if lm, ok := msg.(loginMsg); !ok || lm.err != nil {
		t.Fatalf("login msg = %#v", msg)
	}

	app, cmd = update(t, app, msg)
	if !app.authenticated || app.authConnecting {
		t.Fatal("login should open the tabs")
	}
	if !client.HasSession() {
		t.Fatal("tokens were not stored")
	}
	if app.passwordInput.Value() != "" {
		t.Fatal("password must be cleared after login")
	}
	if cmd == nil {
		t.Fatal("candidates tab should fetch after login")
	}
	app, _ = update(t, app, cmd())
	if len(app.candidates.items) != 2 || app.candidates.items[0].FullName != "Ada Lovelace" {
		t.Fatalf("candidates = %+v", app.candidates.items)
	}
}

func TestLoginFailureShowsError(t *testing.T) {
	client, gw := newTestClient(t)
	gw.mu.Lock()
	gw.rejectLogin = true
	gw.mu.Unlock()
	app := newTestApp(t, client)

	app.emailInput.SetValue("ada@example.com")
	app.passwordInput.SetValue("wrong")
	app, cmd := update(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	app, _ = update(t, app, cmd())
	if app.authenticated {
		t.Fatal("rejected login must stay at the gate")
	}
	if !strings.HasPrefix(app.authError, "Sign in failed") {
		t.Fatalf("authError = %q", app.authError)
	}
}

func TestAuthFailureReturnsToLogin(t *testing.T) {
	client, _ := newTestClient(t)
	client.tokens.SetPair(session.TokenPair{AccessToken: "acc", RefreshToken: "ref"})
	app := newTestApp(t, client)
	if !app.authenticated {
		t.Fatal("stored session should skip the login gate")
	}

	client.onAuthFailure(session.KindAuthExpired)
	msg := waitForAuthFailure(client.AuthFailures())()
	if am, ok := msg.(authExpiredMsg); !ok || am.kind != session.KindAuthExpired {
		t.Fatalf("msg = %#v", msg)
	}
	app, cmd := update(t, app, msg)
	if app.authenticated || app.authError != T("session_expired") {
		t.Fatalf("authenticated=%v error=%q", app.authenticated, app.authError)
	}
	if cmd == nil {
		t.Fatal("app must keep listening for auth failures")
	}
}

func TestLogoutClearsSession(t *testing.T) {
	client, _ := newTestClient(t)
	client.tokens.SetPair(session.TokenPair{AccessToken: "acc", RefreshToken: "ref"})
	app := newTestApp(t, client)

	app, _ = update(t, app, tea.KeyMsg{Type: tea.KeyCtrlX})
	if app.authenticated || client.HasSession() {
		t.Fatal("ctrl+x should sign out and forget tokens")
	}
}

func TestTabCyclingAndLocale(t *testing.T) {
	t.Cleanup(func() { SetLocale("en") })
	client, _ := newTestClient(t)
	client.tokens.SetPair(session.TokenPair{AccessToken: "acc", RefreshToken: "ref"})
	app := newTestApp(t, client)

	if len(app.tabs) != tabLogs {
		t.Fatalf("tabs = %v, logs tab must be hidden without a hook", app.tabs)
	}
	for _, want := range []int{tabQuestions, tabQuiz, tabResult, tabCandidates} {
		app, _ = update(t, app, tea.KeyMsg{Type: tea.KeyTab})
		if app.activeTab != want {
			t.Fatalf("active tab = %d, want %d", app.activeTab, want)
		}
	}
	app, _ = update(t, app, tea.KeyMsg{Type: tea.KeyShiftTab})
	if app.activeTab != tabResult {
		t.Fatalf("shift+tab went to %d", app.activeTab)
	}

	app, _ = update(t, app, runes("L"))
	if CurrentLocale() != "zh" || app.tabs[0] != zhTabNames[0] {
		t.Fatalf("locale = %s tabs = %v", CurrentLocale(), app.tabs)
	}
}

func TestCandidateFilterKeepsKeys(t *testing.T) {
	client, _ := newTestClient(t)
	client.tokens.SetPair(session.TokenPair{AccessToken: "acc", RefreshToken: "ref"})
	app := newTestApp(t, client)

	app, _ = update(t, app, runes("/"))
	if !app.candidates.filtering {
		t.Fatal("/ should open the filter")
	}
	app, _ = update(t, app, runes("q"))
	if !app.candidates.filtering || app.candidates.filter.Value() != "q" {
		t.Fatalf("q must be typed into the filter, got %q", app.candidates.filter.Value())
	}

	app, cmd := update(t, app, tea.KeyMsg{Type: tea.KeyEsc})
	if app.candidates.filtering || cmd != nil {
		t.Fatal("esc should close the filter")
	}
}

func TestQuizAssemblyAndSubmit(t *testing.T) {
	client, gw := newTestClient(t)
	client.tokens.SetPair(session.TokenPair{AccessToken: "acc", RefreshToken: "ref"})
	app := newTestApp(t, client)

	// Select the first candidate.
	app, _ = update(t, app, app.candidates.fetch())
	app, cmd := update(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	app, _ = update(t, app, cmd())
	if app.quiz.candidateID() != "cand-1" {
		t.Fatalf("candidate = %q", app.quiz.candidateID())
	}

	// Search on the Questions tab; the result reaches both tabs through the basket.
	app, _ = update(t, app, tea.KeyMsg{Type: tea.KeyTab})
	app, cmd = update(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	if msg := cmd().(searchDoneMsg); msg.err != nil {
		t.Fatalf("search: %v", msg.err)
	}
	if q := gw.lastSearch(); q != "page_size=10" {
		t.Fatalf("search query = %q", q)
	}
	app, _ = update(t, app, waitForBasket(app.basketCh)())
	if len(app.questions.questions) != 2 || len(app.quiz.questions) != 2 {
		t.Fatalf("questions=%d quiz=%d", len(app.questions.questions), len(app.quiz.questions))
	}

	// Answer q1 with the second option and skip q2.
	app, _ = update(t, app, tea.KeyMsg{Type: tea.KeyTab})
	app, _ = update(t, app, runes("2"))
	app, _ = update(t, app, runes("l"))
	app, _ = update(t, app, runes("s"))
	if a, _ := app.quiz.draft.Answer("q1"); a.Answer == nil || *a.Answer != 1 {
		t.Fatalf("q1 answer = %+v", a)
	}
	if a, _ := app.quiz.draft.Answer("q2"); a.IsSkip != 1 || a.Answer != nil {
		t.Fatalf("q2 answer = %+v", a)
	}

	app, cmd = update(t, app, tea.KeyMsg{Type: tea.KeyCtrlS})
	if !app.quiz.submitting || cmd == nil {
		t.Fatal("ctrl+s should submit")
	}
	msg := cmd().(submittedMsg)
	if msg.err != nil {
		t.Fatalf("submit: %v", msg.err)
	}
	submitted := gw.lastSubmission()
	if submitted["candidate_id"] != "cand-1" {
		t.Fatalf("submitted = %v", submitted)
	}
	answers, _ := submitted["answers"].([]any)
	if len(answers) != 2 {
		t.Fatalf("answers = %v", submitted["answers"])
	}

	app, _ = update(t, app, msg)
	if app.activeTab != tabResult {
		t.Fatalf("active tab = %d", app.activeTab)
	}
	want := assessment.Summary{Total: 2, Correct: 1, Skipped: 1, Percent: 50}
	if app.result.summary != want {
		t.Fatalf("summary = %+v", app.result.summary)
	}
	if !strings.Contains(app.View(), "sub-1") {
		t.Fatal("result view should show the submission id")
	}
}

func TestSubmitRequiresCandidate(t *testing.T) {
	client, _ := newTestClient(t)
	m := newQuizTabModel(context.Background(), client)
	m, _ = m.Update(basketMsg{Kind: assessment.BasketLoaded, Questions: []assessment.Question{{ID: "q1", Options: []string{"a"}}}})

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd != nil || m.err == nil || m.err.Error() != T("quiz_need_candidate") {
		t.Fatalf("err = %v cmd = %v", m.err, cmd != nil)
	}
}

func TestQuizKeepsAnswersAcrossBasketChanges(t *testing.T) {
	client, _ := newTestClient(t)
	m := newQuizTabModel(context.Background(), client)
	q1 := assessment.Question{ID: "q1", Options: []string{"a", "b"}}
	q2 := assessment.Question{ID: "q2", Options: []string{"a", "b"}}
	m, _ = m.Update(basketMsg{Kind: assessment.BasketLoaded, Questions: []assessment.Question{q1, q2}})
	m, _ = m.Update(runes("2"))

	m, _ = m.Update(basketMsg{Kind: assessment.BasketRemoved, Questions: []assessment.Question{q1}})
	if a, ok := m.draft.Answer("q1"); !ok || a.Answer == nil || *a.Answer != 1 {
		t.Fatalf("q1 answer lost: %+v", a)
	}
	if _, ok := m.draft.Answer("q2"); ok {
		t.Fatal("removed question still in draft")
	}
}

func TestResultCopyAndOpen(t *testing.T) {
	client, _ := newTestClient(t)
	m := newResultTabModel(client)
	var copied, opened string
	m.copyText = func(s string) error { copied = s; return nil }
	m.openBrowser = func(s string) error { opened = s; return nil }
	m.SetSize(80, 20)

	m, _ = m.Update(submittedMsg{submission: &assessment.Submission{ID: "sub-9"}})
	m, _ = m.Update(runes("c"))
	if copied != "sub-9" || m.status != T("copied") {
		t.Fatalf("copied=%q status=%q", copied, m.status)
	}
	m, _ = m.Update(runes("o"))
	if !strings.HasSuffix(opened, "/submissions/sub-9") || m.status != T("opened") {
		t.Fatalf("opened=%q status=%q", opened, m.status)
	}

	m.copyText = func(string) error { return fmt.Errorf("no clipboard") }
	m, _ = m.Update(runes("c"))
	if !m.statusErr || !strings.Contains(m.status, "no clipboard") {
		t.Fatalf("status = %q", m.status)
	}
}

func TestQuestionsRenderOnlyVisibleRows(t *testing.T) {
	client, _ := newTestClient(t)
	m := newQuestionsTabModel(context.Background(), client)
	m.SetSize(80, 16)

	questions := make([]assessment.Question, 100)
	for i := range questions {
		questions[i] = assessment.Question{ID: fmt.Sprintf("q%d", i), Question: fmt.Sprintf("Q-%03d", i), Options: []string{"a", "b"}}
	}
	m, _ = m.Update(basketMsg{Kind: assessment.BasketLoaded, Questions: questions})

	view := m.View()
	if !strings.Contains(view, "Q-000") || strings.Contains(view, "Q-050") {
		t.Fatalf("initial window wrong:\n%s", view)
	}
	for i := 0; i < 30; i++ {
		m, _ = m.Update(runes("j"))
	}
	view = m.View()
	if !strings.Contains(view, "Q-030") || strings.Contains(view, "Q-000") {
		t.Fatalf("window did not follow the cursor:\n%s", view)
	}
	if m.scrollTop <= 0 {
		t.Fatalf("scrollTop = %v", m.scrollTop)
	}
}

func TestCycleIndex(t *testing.T) {
	tests := []struct {
		cur, n, want int
	}{
		{cur: -1, n: 0, want: -1},
		{cur: -1, n: 2, want: 0},
		{cur: 0, n: 2, want: 1},
		{cur: 1, n: 2, want: -1},
	}
	for _, tt := range tests {
		if got := cycleIndex(tt.cur, tt.n); got != tt.want {
			t.Fatalf("cycleIndex(%d, %d) = %d, want %d", tt.cur, tt.n, got, tt.want)
		}
	}
}

func TestLineLevel(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{line: "[2025-12-23 20:14:04] [a1b2c3d4] [warn ] rate limited", want: "warn"},
		{line: "[2025-12-23 20:14:04] [--------] [error] [proxy.go:88] boom", want: "error"},
		{line: "[2025-12-23 20:14:04] [--------] [debug] detail", want: "debug"},
		{line: "plain text", want: "info"},
	}
	for _, tt := range tests {
		if got := lineLevel(tt.line); got != tt.want {
			t.Fatalf("lineLevel(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestLogHookDropsOldest(t *testing.T) {
	hook := NewLogHook(2)
	logger := log.New()
	for _, msg := range []string{"first", "second", "third"} {
		entry := log.NewEntry(logger)
		entry.Level = log.InfoLevel
		entry.Message = msg
		entry.Time = time.Date(2025, 12, 23, 20, 14, 4, 0, time.UTC)
		if err := hook.Fire(entry); err != nil {
			t.Fatalf("Fire: %v", err)
		}
	}
	got := []string{<-hook.Chan(), <-hook.Chan()}
	want := []string{
		"[2025-12-23 20:14:04] [--------] [info ] second",
		"[2025-12-23 20:14:04] [--------] [info ] third",
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLogsTabFilter(t *testing.T) {
	m := newLogsTabModel(NewLogHook(1))
	m.SetSize(120, 20)
	for _, line := range []string{
		"[t] [--------] [debug] noisy",
		"[t] [--------] [info ] started",
		"[t] [--------] [error] failed",
	} {
		m, _ = m.Update(logLineMsg(line))
	}
	m, _ = m.Update(runes("3"))
	out := m.renderLogs()
	if strings.Contains(out, "noisy") || strings.Contains(out, "started") || !strings.Contains(out, "failed") {
		t.Fatalf("warn+ filter output:\n%s", out)
	}
	m, _ = m.Update(runes("c"))
	if len(m.lines) != 0 {
		t.Fatal("c should clear the buffer")
	}
}
