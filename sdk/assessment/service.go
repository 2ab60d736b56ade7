package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/assessly/assessly-gateway/sdk/session"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// ProxyPrefix is where the gateway exposes the upstream API.
const ProxyPrefix = "/api/proxy"

// Service is a typed client for the assessment API. All calls go through the
// session client, so they share its token refresh and error classification.
type Service struct {
	client *session.Client
	prefix string
}

// NewService wraps client. Paths are resolved below ProxyPrefix.
func NewService(client *session.Client) *Service {
	return &Service{client: client, prefix: ProxyPrefix}
}

// Page is one page of a list endpoint.
type Page[T any] struct {
	Items      []T
	Pagination Pagination
}

func (s *Service) path(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return s.prefix + "/" + strings.Join(escaped, "/")
}

func listPage[T any](ctx context.Context, s *Service, path string, query url.Values) (*Page[T], error) {
	resp, err := s.client.Do(ctx, &session.Call{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return nil, err
	}
	page := &Page[T]{}
	if err = resp.DecodeData(&page.Items); err != nil {
		return nil, err
	}
	if p := gjson.GetBytes(resp.Body, "pagination"); p.IsObject() {
		if err = json.Unmarshal([]byte(p.Raw), &page.Pagination); err != nil {
			return nil, fmt.Errorf("assessment: decode pagination: %w", err)
		}
	}
	return page, nil
}

// ListCandidates returns one page of candidates.
func (s *Service) ListCandidates(ctx context.Context, q CandidateQuery) (*Page[Candidate], error) {
	return listPage[Candidate](ctx, s, s.path("candidates"), q.Values())
}

func (s *Service) GetCandidate(ctx context.Context, id string) (*Candidate, error) {
	var out Candidate
	if err := s.client.GetJSON(ctx, s.path("candidates", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) CreateCandidate(ctx context.Context, c Candidate) (*Candidate, error) {
	var out Candidate
	if err := s.client.PostJSON(ctx, s.path("candidates"), c, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCandidate sends a partial update.
func (s *Service) UpdateCandidate(ctx context.Context, id string, fields map[string]any) (*Candidate, error) {
	var out Candidate
	if err := s.client.PutJSON(ctx, s.path("candidates", id), fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) DeleteCandidate(ctx context.Context, id string) error {
	return s.client.Delete(ctx, s.path("candidates", id))
}

// CandidateByEmail resolves the candidate record of an authenticated user.
// A user without a candidate record yields a NotFound error.
func (s *Service) CandidateByEmail(ctx context.Context, email string) (*Candidate, error) {
	email = strings.TrimSpace(email)
	page, err := s.ListCandidates(ctx, CandidateQuery{Email: email, PageSize: 1})
	if err != nil {
		return nil, err
	}
	for i := range page.Items {
		if strings.EqualFold(page.Items[i].Email, email) {
			return &page.Items[i], nil
		}
	}
	return nil, &session.Error{Kind: session.KindNotFound, StatusCode: http.StatusNotFound, Message: "no candidate registered for " + email}
}

// SearchQuestions returns one page of questions.
func (s *Service) SearchQuestions(ctx context.Context, q QuestionSearch) (*Page[Question], error) {
	return listPage[Question](ctx, s, s.path("questions", "search"), q.Values())
}

func (s *Service) GetQuestion(ctx context.Context, id string) (*Question, error) {
	var out Question
	if err := s.client.GetJSON(ctx, s.path("questions", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateRequest asks the upstream to produce new questions.
type GenerateRequest struct {
	Topic    string `json:"topic,omitempty"`
	Language string `json:"language,omitempty"`
	Position string `json:"position,omitempty"`
	Count    int    `json:"count,omitempty"`
}

func (s *Service) GenerateQuestions(ctx context.Context, req GenerateRequest) ([]Question, error) {
	var out []Question
	if err := s.client.PostJSON(ctx, s.path("questions", "generate"), req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) ListTopics(ctx context.Context, q TopicQuery) ([]Topic, error) {
	var out []Topic
	if err := s.client.GetJSON(ctx, s.path("topics"), q.Values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) GetTopic(ctx context.Context, id string) (*Topic, error) {
	var out Topic
	if err := s.client.GetJSON(ctx, s.path("topics", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) ListLanguages(ctx context.Context, q LanguageQuery) ([]Language, error) {
	var out []Language
	if err := s.client.GetJSON(ctx, s.path("languages"), q.Values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) GetLanguage(ctx context.Context, id string) (*Language, error) {
	var out Language
	if err := s.client.GetJSON(ctx, s.path("languages", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) ListPositions(ctx context.Context, q PositionQuery) ([]Position, error) {
	var out []Position
	if err := s.client.GetJSON(ctx, s.path("positions"), q.Values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) GetPosition(ctx context.Context, id string) (*Position, error) {
	var out Position
	if err := s.client.GetJSON(ctx, s.path("positions", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Catalog holds the filter choices offered when assembling a quiz.
type Catalog struct {
	Topics    []Topic
	Languages []Language
	Positions []Position
}

// LoadCatalog fetches topics, languages and positions concurrently. The first
// failure cancels the remaining requests.
func (s *Service) LoadCatalog(ctx context.Context) (*Catalog, error) {
	var catalog Catalog
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		catalog.Topics, err = s.ListTopics(gctx, TopicQuery{})
		return err
	})
	g.Go(func() (err error) {
		catalog.Languages, err = s.ListLanguages(gctx, LanguageQuery{})
		return err
	})
	g.Go(func() (err error) {
		catalog.Positions, err = s.ListPositions(gctx, PositionQuery{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// Submit posts a completed draft.
func (s *Service) Submit(ctx context.Context, d *Draft) (*SubmitResult, error) {
	if d == nil || d.CandidateID == "" {
		return nil, &session.Error{Kind: session.KindValidation, StatusCode: http.StatusUnprocessableEntity,
			Fields: []session.FieldError{{Field: "candidate_id", Message: "is required"}}, Message: "candidate_id: is required"}
	}
	var out SubmitResult
	if err := s.client.PostJSON(ctx, s.path("submissions"), d, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSubmission fetches a stored submission. Upstreams that answer with a
// one-element array are accepted.
func (s *Service) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	resp, err := s.client.Do(ctx, &session.Call{Method: http.MethodGet, Path: s.path("submissions", id)})
	if err != nil {
		return nil, err
	}
	data := resp.Data()
	if data.IsArray() {
		data = data.Get("0")
	}
	if !data.Exists() {
		return nil, &session.Error{Kind: session.KindNotFound, StatusCode: http.StatusNotFound, Message: "submission not found"}
	}
	var out Submission
	if err = json.Unmarshal([]byte(data.Raw), &out); err != nil {
		return nil, fmt.Errorf("assessment: decode submission: %w", err)
	}
	return &out, nil
}
