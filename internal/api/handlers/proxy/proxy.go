// Package proxy implements the /api/proxy/*path route: it checks the path against
// the allow-list, sanitises JSON bodies, attaches the session's access token and
// forwards the request to the upstream assessment API.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/assessly/assessly-gateway/internal/api/handlers"
	"github.com/assessly/assessly-gateway/internal/logging"
	"github.com/assessly/assessly-gateway/internal/metrics"
	"github.com/assessly/assessly-gateway/sdk/session"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// maxRequestBody caps request bodies read for sanitising.
const maxRequestBody = 10 << 20

// Options configures a Handler.
type Options struct {
	// UpstreamBaseURL is the API root every path is resolved against.
	UpstreamBaseURL string
	// TokenPath is the upstream token endpoint relative to the base URL. POSTs to
	// /api/proxy/<TokenPath> are forwarded untouched.
	TokenPath       string
	AllowedPrefixes []string
	Sanitize        bool
	Transport       http.RoundTripper
	Stores          handlers.StoreFactory
	Metrics         *metrics.Metrics
}

// Handler forwards allowed requests to the upstream.
type Handler struct {
	upstream  *url.URL
	tokenPath string
	stores    handlers.StoreFactory
	metrics   *metrics.Metrics
	proxy     *httputil.ReverseProxy

	mu       sync.RWMutex
	allowed  map[string]struct{}
	sanitize bool
}

type forwardKey struct{}

// forward carries per-request routing decisions from Handle to the Director.
type forward struct {
	path          string
	authorization string
	store         session.TokenStore
	tokenRoute    bool
}

// New builds a Handler.
func New(opts Options) (*Handler, error) {
	upstream, err := url.Parse(strings.TrimRight(opts.UpstreamBaseURL, "/"))
	if err != nil || upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream base url %q", opts.UpstreamBaseURL)
	}
	h := &Handler{
		upstream:  upstream,
		tokenPath: strings.Trim(opts.TokenPath, "/"),
		stores:    opts.Stores,
		metrics:   opts.Metrics,
	}
	if h.stores == nil {
		h.stores = handlers.CookieStores(session.CookieOptions{})
	}
	h.UpdateConfig(opts.AllowedPrefixes, opts.Sanitize)

	h.proxy = &httputil.ReverseProxy{
		Director:       h.direct,
		Transport:      opts.Transport,
		ModifyResponse: h.modifyResponse,
		ErrorHandler:   h.handleError,
	}
	return h, nil
}

// UpdateConfig swaps the allow-list and sanitising flag, e.g. after a config reload.
func (h *Handler) UpdateConfig(allowedPrefixes []string, sanitize bool) {
	allowed := make(map[string]struct{}, len(allowedPrefixes))
	for _, p := range allowedPrefixes {
		if p = strings.ToLower(strings.Trim(strings.TrimSpace(p), "/")); p != "" {
			allowed[p] = struct{}{}
		}
	}
	h.mu.Lock()
	h.allowed = allowed
	h.sanitize = sanitize
	h.mu.Unlock()
}

func (h *Handler) isAllowed(prefix string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.allowed[strings.ToLower(prefix)]
	return ok
}

func (h *Handler) sanitizeEnabled() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sanitize
}

// Handle is the gin handler for /api/proxy/*path.
func (h *Handler) Handle(c *gin.Context) {
	path := strings.Trim(c.Param("path"), "/")
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." || seg == "." {
			handlers.AbortWithError(c, http.StatusBadRequest, "Invalid path", nil)
			return
		}
	}
	prefix, _, _ := strings.Cut(path, "/")

	fwd := &forward{path: path}
	switch {
	case h.tokenPath != "" && path == h.tokenPath && c.Request.Method == http.MethodPost:
		fwd.tokenRoute = true
		fwd.store = h.stores(c)
	case !h.isAllowed(prefix):
		h.metrics.ObserveProxy(prefix, http.StatusForbidden, 0)
		handlers.AbortWithError(c, http.StatusForbidden, "Path not allowed", nil)
		return
	default:
		if auth := c.GetHeader("Authorization"); auth != "" {
			fwd.authorization = auth
		} else if token, ok := h.stores(c).Access(); ok {
			fwd.authorization = "Bearer " + token
		}
		if err := h.sanitizeBody(c.Request); err != nil {
			h.metrics.ObserveProxy(prefix, http.StatusBadRequest, 0)
			handlers.AbortWithError(c, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	entry := log.WithFields(log.Fields{
		"request_id": logging.GetGinRequestID(c),
		"method":     c.Request.Method,
		"prefix":     prefix,
	})
	entry.Debugf("forwarding /%s", path)

	done := h.metrics.TrackInFlight()
	start := time.Now()
	req := c.Request.WithContext(context.WithValue(c.Request.Context(), forwardKey{}, fwd))
	h.proxy.ServeHTTP(c.Writer, req)
	done()

	status := c.Writer.Status()
	h.metrics.ObserveProxy(prefix, status, time.Since(start))
	entry.WithField("status", status).Debug("upstream responded")
}

// sanitizeBody rewrites a JSON request body with every string value escaped.
// Non-JSON bodies are forwarded as they are.
func (h *Handler) sanitizeBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || !h.sanitizeEnabled() {
		return nil
	}
	if ct := req.Header.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "json") {
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(req.Body, maxRequestBody+1))
	_ = req.Body.Close()
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(raw) > maxRequestBody {
		return errors.New("request body too large")
	}

	body := raw
	if len(bytes.TrimSpace(raw)) > 0 {
		if body, err = SanitizeJSON(raw); err != nil {
			return err
		}
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.Header.Del("Content-Length")
	return nil
}

func (h *Handler) direct(req *http.Request) {
	fwd, _ := req.Context().Value(forwardKey{}).(*forward)
	if fwd == nil {
		fwd = &forward{}
	}
	req.URL.Scheme = h.upstream.Scheme
	req.URL.Host = h.upstream.Host
	req.URL.Path = strings.TrimRight(h.upstream.Path, "/") + "/" + fwd.path
	req.URL.RawPath = ""
	req.Host = h.upstream.Host

	// Session cookies stay at the gateway.
	req.Header.Del("Cookie")
	req.Header.Del("Authorization")
	if fwd.authorization != "" {
		req.Header.Set("Authorization", fwd.authorization)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set("Accept-Encoding", acceptEncoding)
	if id := logging.GetRequestID(req.Context()); id != "" {
		req.Header.Set(logging.RequestIDHeader, id)
	}
}

func (h *Handler) modifyResponse(resp *http.Response) error {
	if err := decodeResponse(resp); err != nil {
		return err
	}
	fwd, _ := resp.Request.Context().Value(forwardKey{}).(*forward)
	if fwd == nil || !fwd.tokenRoute || resp.StatusCode != http.StatusOK {
		return nil
	}

	// Mirror tokens issued through the token route into the session.
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return fmt.Errorf("read token response: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if access := gjson.GetBytes(body, "access_token").String(); access != "" && fwd.store != nil {
		fwd.store.SetPair(session.TokenPair{
			AccessToken:  access,
			RefreshToken: gjson.GetBytes(body, "refresh_token").String(),
		})
	}
	return nil
}

func (h *Handler) handleError(rw http.ResponseWriter, req *http.Request, err error) {
	entry := log.WithFields(log.Fields{
		"request_id": logging.GetRequestID(req.Context()),
		"upstream":   h.upstream.Host,
		"error":      err,
	})
	if errors.Is(err, context.Canceled) {
		entry.Debugf("client went away during %s %s", req.Method, req.URL.Path)
	} else {
		entry.Errorf("upstream proxy error for %s %s", req.Method, req.URL.Path)
	}
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(http.StatusBadGateway)
	body, _ := json.Marshal(handlers.ErrorResponse{Message: "Proxy error", Error: err.Error()})
	_, _ = rw.Write(body)
}
