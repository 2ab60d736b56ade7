package assessment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/assessly/assessly-gateway/sdk/session"
)

func TestBuildQuery(t *testing.T) {
	active := false
	got := BuildQuery(map[string]any{
		"topic":     "go",
		"empty":     "",
		"nil":       nil,
		"skills":    []string{"go", "sql"},
		"none":      []string{},
		"page":      2,
		"is_active": &active,
		"unset":     (*bool)(nil),
	})
	want := "is_active=false&page=2&skills=go%2Csql&topic=go"
	if got.Encode() != want {
		t.Fatalf("want %q, got %q", want, got.Encode())
	}
}

func TestQuestionSearchValues(t *testing.T) {
	q := QuestionSearch{Topic: "t1", PageSize: 20, IgnoreQuestionIDs: []string{"a", "b"}}
	want := "ignore_question_ids=a%2Cb&page_size=20&topic=t1"
	if got := q.Values().Encode(); got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := session.NewClient(session.Config{BaseURL: srv.URL, Tracker: session.NewTracker()})
	return NewService(client)
}

func TestSearchQuestionsDecodesPage(t *testing.T) {
	var gotPath, gotQuery string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		_, _ = w.Write([]byte(`{"status":"success","data":[{"_id":"q1","question":"What?","options":["a","b"]}],"pagination":{"total":41,"page":1,"pageSize":20,"totalPages":3}}`))
	})

	page, err := svc.SearchQuestions(context.Background(), QuestionSearch{Topic: "go", PageSize: 20})
	if err != nil {
		t.Fatalf("SearchQuestions: %v", err)
	}
	if gotPath != "/api/proxy/questions/search" || gotQuery != "page_size=20&topic=go" {
		t.Fatalf("request = %s?%s", gotPath, gotQuery)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "q1" || len(page.Items[0].Options) != 2 {
		t.Fatalf("items = %+v", page.Items)
	}
	if page.Pagination.TotalPages != 3 || page.Pagination.Total != 41 {
		t.Fatalf("pagination = %+v", page.Pagination)
	}
}

func TestCandidateByEmail(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("email") == "ada@example.com" {
			_, _ = w.Write([]byte(`{"status":"success","data":[{"_id":"c1","full_name":"Ada","email":"ada@example.com"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","data":[]}`))
	})

	c, err := svc.CandidateByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("CandidateByEmail: %v", err)
	}
	if c.ID != "c1" {
		t.Fatalf("candidate = %+v", c)
	}
	if _, err = svc.CandidateByEmail(context.Background(), "nobody@example.com"); !session.IsKind(err, session.KindNotFound) {
		t.Fatalf("kind = %s, want not_found", session.KindOf(err))
	}
}

func TestLoadCatalog(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/proxy/topics":
			_, _ = w.Write([]byte(`{"status":"success","data":[{"_id":"t1","title":"Concurrency"}]}`))
		case "/api/proxy/languages":
			_, _ = w.Write([]byte(`{"status":"success","data":[{"_id":"l1","name":"Go"}]}`))
		case "/api/proxy/positions":
			_, _ = w.Write([]byte(`{"status":"success","data":[{"_id":"p1","title":"Backend"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	catalog, err := svc.LoadCatalog(context.Background())
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(catalog.Topics) != 1 || len(catalog.Languages) != 1 || len(catalog.Positions) != 1 {
		t.Fatalf("catalog = %+v", catalog)
	}
}

func TestLoadCatalogPropagatesFailure(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/proxy/languages" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","data":[]}`))
	})
	if _, err := svc.LoadCatalog(context.Background()); !session.IsKind(err, session.KindServer) {
		t.Fatalf("kind = %s, want server_error", session.KindOf(err))
	}
}

func TestSubmitSendsDraft(t *testing.T) {
	var body map[string]any
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		_, _ = w.Write([]byte(`{"status":"success","data":{"message":"saved","score":1}}`))
	})

	draft := NewDraft("c1", []Question{{ID: "q1"}, {ID: "q2"}})
	draft.Choose("q1", 2)
	draft.Skip("q2")

	res, err := svc.Submit(context.Background(), draft)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Message != "saved" {
		t.Fatalf("result = %+v", res)
	}
	answers, _ := body["answers"].([]any)
	if body["candidate_id"] != "c1" || len(answers) != 2 {
		t.Fatalf("body = %v", body)
	}
	second, _ := answers[1].(map[string]any)
	if second["answer"] != nil || second["is_skip"] != float64(1) {
		t.Fatalf("skipped answer = %v", second)
	}
}

func TestSubmitRequiresCandidate(t *testing.T) {
	svc := NewService(session.NewClient(session.Config{BaseURL: "http://127.0.0.1:1"}))
	_, err := svc.Submit(context.Background(), NewDraft("", nil))
	if !session.IsKind(err, session.KindValidation) {
		t.Fatalf("kind = %s, want validation_error", session.KindOf(err))
	}
}

func TestGetSubmissionAcceptsArray(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":[{"_id":"s1","candidate_id":"c1","answers":[{"question_id":"q1","answer":1,"other":"","point":1,"is_skip":0}]}]}`))
	})
	sub, err := svc.GetSubmission(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if sub.ID != "s1" || len(sub.Answers) != 1 || sub.Answers[0].Point != 1 {
		t.Fatalf("submission = %+v", sub)
	}
}

func TestSummarize(t *testing.T) {
	one := 1
	sub := &Submission{Answers: []SubmissionAnswer{
		{Answer: Answer{QuestionID: "a", Answer: &one, Point: 1}},
		{Answer: Answer{QuestionID: "b", Answer: &one, Point: 0}},
		{Answer: Answer{QuestionID: "c", IsSkip: 1}},
	}}
	got := Summarize(sub)
	want := Summary{Total: 3, Correct: 1, Skipped: 1, Percent: 33}
	if got != want {
		t.Fatalf("want %+v, got %+v", want, got)
	}
	if got := Summarize(&Submission{}); got.Percent != 0 {
		t.Fatalf("empty submission percent = %d", got.Percent)
	}
}

func TestNewDraftBlankAnswers(t *testing.T) {
	d := NewDraft("c1", []Question{{ID: "q1"}, {ID: "q2"}})
	if len(d.Answers) != 2 {
		t.Fatalf("answers = %d", len(d.Answers))
	}
	for _, a := range d.Answers {
		if a.Answer != nil || a.Point != 0 || a.IsSkip != 0 || a.Other != "" {
			t.Fatalf("answer not blank: %+v", a)
		}
	}
	if d.Choose("missing", 1) {
		t.Fatal("Choose accepted an unknown question")
	}
	d.Skip("q1")
	d.Choose("q1", 3)
	a, _ := d.Answer("q1")
	if a.IsSkip != 0 || a.Answer == nil || *a.Answer != 3 {
		t.Fatalf("answer = %+v", a)
	}
	if d.Answered() != 1 {
		t.Fatalf("Answered() = %d", d.Answered())
	}
}

func TestBasket(t *testing.T) {
	b := NewBasket()
	events, unsubscribe := b.Subscribe()
	defer unsubscribe()

	b.Load([]Question{{ID: "q1"}, {ID: "q2"}})
	ev := <-events
	if ev.Kind != BasketLoaded || len(ev.Questions) != 2 {
		t.Fatalf("event = %+v", ev)
	}

	b.Add(Question{ID: "q2"}, Question{ID: "q3"})
	ev = <-events
	if ev.Kind != BasketAdded || len(ev.Questions) != 3 {
		t.Fatalf("event = %+v", ev)
	}

	if !b.Remove("q1") || b.Remove("q1") {
		t.Fatal("Remove reported wrong presence")
	}
	ev = <-events
	if ev.Kind != BasketRemoved || len(b.Items()) != 2 {
		t.Fatalf("event = %+v items = %v", ev, b.Items())
	}

	b.Load([]Question{{ID: "q9"}})
	ev = <-events
	if ev.Kind != BasketLoaded || len(ev.Questions) != 1 || ev.Questions[0].ID != "q9" {
		t.Fatalf("Loaded did not replace the list: %+v", ev)
	}
}
