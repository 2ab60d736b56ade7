package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds every request that has no explicit timeout.
const DefaultTimeout = 30 * time.Second

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}

// RequestMiddleware prepares an outgoing call. Returning an error aborts the call.
type RequestMiddleware func(*Call) error

// ResponseMiddleware transforms the outcome of a call.
type ResponseMiddleware func(*Call, *Response, error) (*Response, error)

// Config assembles a Client.
type Config struct {
	// BaseURL is prefixed to relative call paths.
	BaseURL string
	// Timeout defaults to DefaultTimeout.
	Timeout    time.Duration
	HTTPClient *http.Client
	Tokens     TokenStore
	// Tracker enables supersession of identical requests. Nil disables it.
	Tracker   *Tracker
	Refresher Refresher
	CSRF      CSRFSource
	// OnAuthFailure runs when the session cannot be recovered and the user must log in.
	OnAuthFailure func(Kind)
}

// Call is one logical request flowing through the pipeline.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
	Header http.Header
	// Retried is set once the call has been replayed after a token refresh.
	Retried bool

	parent        context.Context
	ctx           context.Context
	fingerprint   string
	handle        *Handle
	cancelTimeout context.CancelFunc
	token         string
	abortCause    error
	replay        func() (*Response, error)
}

// Context returns the context the call runs under.
func (c *Call) Context() context.Context {
	if c.ctx != nil {
		return c.ctx
	}
	if c.parent != nil {
		return c.parent
	}
	return context.Background()
}

// Fingerprint returns the tracker key of the call, empty when untracked.
func (c *Call) Fingerprint() string { return c.fingerprint }

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client issues authenticated requests with supersession, single-flight token refresh
// and typed error classification.
type Client struct {
	baseURL       string
	timeout       time.Duration
	httpClient    *http.Client
	tokens        TokenStore
	tracker       *Tracker
	refresher     Refresher
	csrf          CSRFSource
	onAuthFailure func(Kind)

	refreshGroup singleflight.Group

	mu          sync.RWMutex
	requestMWs  []RequestMiddleware
	responseMWs []ResponseMiddleware
}

// NewClient builds a Client from cfg, filling defaults.
func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		timeout:       cfg.Timeout,
		httpClient:    cfg.HTTPClient,
		tokens:        cfg.Tokens,
		tracker:       cfg.Tracker,
		refresher:     cfg.Refresher,
		csrf:          cfg.CSRF,
		onAuthFailure: cfg.OnAuthFailure,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.tokens == nil {
		c.tokens = NewMemoryTokenStore()
	}
	c.requestMWs = []RequestMiddleware{c.trackRequest, c.attachCSRF, c.attachAuth, c.applyTimeout}
	return c
}

// Tokens returns the store the client reads credentials from.
func (c *Client) Tokens() TokenStore { return c.tokens }

// Use appends request middlewares after the built-in ones.
func (c *Client) Use(mws ...RequestMiddleware) {
	c.mu.Lock()
	c.requestMWs = append(c.requestMWs, mws...)
	c.mu.Unlock()
}

// UseResponse appends response middlewares; they run after classification.
func (c *Client) UseResponse(mws ...ResponseMiddleware) {
	c.mu.Lock()
	c.responseMWs = append(c.responseMWs, mws...)
	c.mu.Unlock()
}

// CancelAll aborts every tracked in-flight request.
func (c *Client) CancelAll() {
	if c.tracker != nil {
		c.tracker.CancelAll()
	}
}

// Do runs call through the pipeline. Failures are always *Error.
func (c *Client) Do(ctx context.Context, call *Call) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if call.Method == "" {
		call.Method = http.MethodGet
	}
	call.replay = func() (*Response, error) {
		return c.roundTrip(ctx, call)
	}
	resp, err := c.roundTrip(ctx, call)
	resp, err = c.classify(call, resp, err)

	c.mu.RLock()
	mws := append([]ResponseMiddleware(nil), c.responseMWs...)
	c.mu.RUnlock()
	for _, mw := range mws {
		resp, err = mw(call, resp, err)
	}
	return resp, err
}

func (c *Client) roundTrip(ctx context.Context, call *Call) (*Response, error) {
	resp, err := c.attempt(ctx, call)
	return c.recoverUnauthorized(call, resp, err)
}

func (c *Client) attempt(ctx context.Context, call *Call) (*Response, error) {
	call.parent = ctx
	call.ctx = ctx
	call.abortCause = nil
	if call.Header == nil {
		call.Header = make(http.Header)
	}
	defer c.finish(call)

	c.mu.RLock()
	mws := append([]RequestMiddleware(nil), c.requestMWs...)
	c.mu.RUnlock()
	for _, mw := range mws {
		if err := mw(call); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(call.ctx, call.Method, c.resolve(call), bodyReader(call.Body))
	if err != nil {
		return nil, newError(KindUnknown, 0, "invalid request", err)
	}
	req.Header = call.Header.Clone()
	if len(call.Body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		call.abortCause = context.Cause(call.ctx)
		return nil, err
	}
	defer func() {
		if errClose := httpResp.Body.Close(); errClose != nil {
			log.Errorf("session client: close response body: %v", errClose)
		}
	}()
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		call.abortCause = context.Cause(call.ctx)
		return nil, err
	}
	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: body}, nil
}

// finish ends tracking and releases the timeout on every exit path.
func (c *Client) finish(call *Call) {
	if c.tracker != nil && call.handle != nil {
		c.tracker.End(call.fingerprint, call.handle)
	}
	call.handle = nil
	if call.cancelTimeout != nil {
		call.cancelTimeout()
		call.cancelTimeout = nil
	}
}

func (c *Client) resolve(call *Call) string {
	target := call.Path
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(target, "/")
	}
	if len(call.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + call.Query.Encode()
	}
	return target
}

func bodyReader(body []byte) io.Reader {
	if len(body) == 0 {
		return nil
	}
	return bytes.NewReader(body)
}

func (c *Client) trackRequest(call *Call) error {
	if c.tracker == nil {
		return nil
	}
	call.fingerprint = Fingerprint(call.Method, call.Path, call.Query, call.Body)
	call.ctx, call.handle = c.tracker.Begin(call.ctx, call.fingerprint)
	return nil
}

func (c *Client) attachCSRF(call *Call) error {
	if c.csrf == nil {
		return nil
	}
	if token := c.csrf.CSRFToken(call.ctx); token != "" {
		call.Header.Set("X-CSRF-Token", token)
	}
	return nil
}

func (c *Client) attachAuth(call *Call) error {
	token := call.token
	if token == "" {
		token, _ = c.tokens.Access()
	}
	if token != "" {
		call.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

func (c *Client) applyTimeout(call *Call) error {
	call.ctx, call.cancelTimeout = context.WithTimeoutCause(call.ctx, c.timeout, ErrTimeout)
	return nil
}

// recoverUnauthorized handles a first 401 by refreshing once and replaying the call.
func (c *Client) recoverUnauthorized(call *Call, resp *Response, err error) (*Response, error) {
	if err != nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if call.Retried {
		c.tokens.Clear()
		c.authFailed(KindAuthExpired)
		return nil, newError(KindAuthExpired, http.StatusUnauthorized, "", nil)
	}
	call.Retried = true

	token, errRefresh := c.refreshAccess(call.parent)
	if errRefresh != nil {
		if call.parent.Err() != nil {
			return nil, newError(KindCancelled, 0, "", context.Cause(call.parent))
		}
		if errors.Is(errRefresh, errNoRefreshToken) {
			return nil, newError(KindAuthRequired, http.StatusUnauthorized, "", nil)
		}
		return nil, newError(KindAuthExpired, http.StatusUnauthorized, "", errRefresh)
	}
	call.token = token
	return call.replay()
}

// refreshAccess joins the in-flight refresh or starts one. The exchange runs on a
// context detached from the caller, so a cancelled waiter never fails the others.
func (c *Client) refreshAccess(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	ch := c.refreshGroup.DoChan("refresh", func() (interface{}, error) {
		refreshToken, ok := c.tokens.Refresh()
		if !ok || c.refresher == nil {
			c.tokens.Clear()
			c.authFailed(KindAuthRequired)
			return nil, errNoRefreshToken
		}
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		pair, err := c.refresher.Refresh(refreshCtx, refreshToken)
		if err != nil {
			log.WithError(err).Warn("session client: token refresh failed")
			c.tokens.Clear()
			c.authFailed(KindAuthExpired)
			return nil, err
		}
		if pair.RefreshToken == "" {
			pair.RefreshToken = refreshToken
		}
		c.tokens.SetPair(pair)
		log.Debug("session client: token refreshed")
		return pair.AccessToken, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		token, _ := res.Val.(string)
		return token, nil
	}
}

func (c *Client) authFailed(kind Kind) {
	if c.onAuthFailure != nil {
		c.onAuthFailure(kind)
	}
}

// classify maps whatever reached the end of the pipeline to exactly one error kind.
func (c *Client) classify(call *Call, resp *Response, err error) (*Response, error) {
	if err != nil {
		var sessionErr *Error
		if errors.As(err, &sessionErr) {
			return nil, sessionErr
		}
		return nil, classifyTransport(call, err)
	}
	if resp == nil {
		return nil, newError(KindUnknown, 0, "", nil)
	}
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}
	return nil, classifyStatus(resp)
}

func classifyTransport(call *Call, err error) *Error {
	cause := call.abortCause
	switch {
	case errors.Is(cause, ErrSuperseded), errors.Is(cause, ErrCancelled):
		return newError(KindCancelled, 0, "", cause)
	case errors.Is(cause, ErrTimeout):
		return newError(KindTimeout, 0, "", err)
	case call.parent != nil && errors.Is(call.parent.Err(), context.DeadlineExceeded):
		return newError(KindTimeout, 0, "", err)
	case call.parent != nil && call.parent.Err() != nil:
		return newError(KindCancelled, 0, "", err)
	case errors.Is(err, context.Canceled):
		return newError(KindCancelled, 0, "", err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(KindTimeout, 0, "", err)
	default:
		return newError(KindNetwork, 0, "", err)
	}
}

func classifyStatus(resp *Response) *Error {
	status := resp.StatusCode
	switch {
	case status == http.StatusUnauthorized:
		return newError(KindAuthExpired, status, "", nil)
	case status == http.StatusForbidden:
		return newError(KindForbidden, status, "", nil)
	case status == http.StatusNotFound:
		return newError(KindNotFound, status, "", nil)
	case status == http.StatusUnprocessableEntity && len(validationFields(resp.Body)) > 0:
		return NewValidationError(validationFields(resp.Body))
	case status >= http.StatusInternalServerError:
		return newError(KindServer, status, "", nil)
	default:
		msg := serverMessage(resp.Body)
		if msg == "" {
			msg = fmt.Sprintf("request failed with status %d", status)
		}
		return newError(KindUnknown, status, msg, nil)
	}
}
