package tui

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/assessly/assessly-gateway/internal/config"
	"github.com/assessly/assessly-gateway/internal/util"
	"github.com/assessly/assessly-gateway/sdk/assessment"
	"github.com/assessly/assessly-gateway/sdk/loading"
	"github.com/assessly/assessly-gateway/sdk/session"
	log "github.com/sirupsen/logrus"
)

// Client bundles the session client, the assessment services and the shared
// loading indicator used by every screen.
type Client struct {
	baseURL  string
	tokens   session.TokenStore
	oauth    *session.OAuthRefresher
	http     *session.Client
	service  *assessment.Service
	loader   *loading.Coordinator
	basket   *assessment.Basket
	authFail chan session.Kind
}

// NewClient creates a client talking to the gateway at cfg.Client.BaseURL.
// Tokens are persisted in cfg.Client.TokenFile, or the per-user default location.
func NewClient(cfg *config.Config) *Client {
	if cfg == nil {
		cfg = &config.Config{}
	}
	base := strings.TrimRight(cfg.Client.BaseURL, "/")

	tokenFile := strings.TrimSpace(cfg.Client.TokenFile)
	if tokenFile == "" {
		tokenFile = session.DefaultTokenPath()
	}
	if expanded, err := util.ExpandHome(tokenFile); err == nil {
		tokenFile = expanded
	} else {
		log.WithError(err).Warn("tui: failed to expand token file path")
	}
	tokens := session.NewFileTokenStore(tokenFile)

	httpClient := util.NewHTTPClient(cfg.ProxyURL, 0)
	tokenPath := strings.Trim(cfg.Auth.TokenPath, "/")
	if tokenPath == "" {
		tokenPath = config.DefaultTokenPath
	}

	c := &Client{
		baseURL:  base,
		tokens:   tokens,
		loader:   loading.New(time.Duration(cfg.Client.MinLoadingTimeMS) * time.Millisecond),
		basket:   assessment.NewBasket(),
		authFail: make(chan session.Kind, 1),
	}
	c.oauth = session.NewOAuthRefresher(session.OAuthConfig{
		TokenURL:     base + assessment.ProxyPrefix + "/" + tokenPath,
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		HTTPClient:   httpClient,
	}, tokens)

	sessionCfg := session.Config{
		BaseURL:       base,
		Timeout:       time.Duration(cfg.Client.RequestTimeoutSeconds) * time.Second,
		HTTPClient:    httpClient,
		Tokens:        tokens,
		Tracker:       session.NewTracker(),
		Refresher:     c.oauth,
		OnAuthFailure: c.onAuthFailure,
	}
	if page := strings.TrimSpace(cfg.Client.CSRFPageURL); page != "" {
		sessionCfg.CSRF = &session.MetaTagCSRF{URL: page, Client: httpClient, Timeout: sessionCfg.Timeout}
	}
	c.http = session.NewClient(sessionCfg)
	c.service = assessment.NewService(c.http)
	return c
}

func (c *Client) onAuthFailure(kind session.Kind) {
	select {
	case c.authFail <- kind:
	default:
	}
}

// AuthFailures delivers the kind of every unrecoverable session failure.
func (c *Client) AuthFailures() <-chan session.Kind { return c.authFail }

// Loader is the loading indicator shared by all requests of this client.
func (c *Client) Loader() *loading.Coordinator { return c.loader }

// Basket holds the questions assembled for the next quiz.
func (c *Client) Basket() *assessment.Basket { return c.basket }

// HasSession reports whether a stored access token is available.
func (c *Client) HasSession() bool { return c.tokens.HasAccess() }

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.loader.WithLoading(func() error {
		_, err := c.oauth.Login(ctx, email, password)
		return err
	})
}

// Logout cancels in-flight requests and forgets the stored tokens.
func (c *Client) Logout() {
	c.http.CancelAll()
	c.tokens.Clear()
	c.basket.Clear()
}

// Candidates lists candidates whose name matches filter.
func (c *Client) Candidates(ctx context.Context, filter string) ([]assessment.Candidate, error) {
	page, err := loading.Do(c.loader, func() (*assessment.Page[assessment.Candidate], error) {
		return c.service.ListCandidates(ctx, assessment.CandidateQuery{
			Name:          strings.TrimSpace(filter),
			PageSize:      100,
			SortBy:        "full_name",
			SortDirection: "asc",
		})
	})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Catalog loads the topics, languages and positions used as search filters.
func (c *Client) Catalog(ctx context.Context) (*assessment.Catalog, error) {
	return loading.Do(c.loader, func() (*assessment.Catalog, error) {
		return c.service.LoadCatalog(ctx)
	})
}

// SearchQuestions runs a search and loads the result into the basket.
func (c *Client) SearchQuestions(ctx context.Context, q assessment.QuestionSearch) ([]assessment.Question, error) {
	page, err := loading.Do(c.loader, func() (*assessment.Page[assessment.Question], error) {
		return c.service.SearchQuestions(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	c.basket.Load(page.Items)
	return page.Items, nil
}

// Submit posts the draft and fetches the reviewed submission.
func (c *Client) Submit(ctx context.Context, d *assessment.Draft) (*assessment.Submission, error) {
	return loading.Do(c.loader, func() (*assessment.Submission, error) {
		res, err := c.service.Submit(ctx, d)
		if err != nil {
			return nil, err
		}
		if res.ID == "" {
			return nil, fmt.Errorf("submission accepted without an id: %s", res.Message)
		}
		return c.service.GetSubmission(ctx, res.ID)
	})
}

// Ping checks that the gateway answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.http.Do(ctx, &session.Call{Method: http.MethodGet, Path: "/healthz"})
	return err
}

// ReviewURL is the browser page showing a submission.
func (c *Client) ReviewURL(submissionID string) string {
	return c.baseURL + "/submissions/" + url.PathEscape(submissionID)
}
