package session

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

// CSRFSource supplies the anti-forgery token attached as X-CSRF-Token.
type CSRFSource interface {
	CSRFToken(ctx context.Context) string
}

// StaticCSRF is a fixed token.
type StaticCSRF string

func (s StaticCSRF) CSRFToken(context.Context) string { return string(s) }

// DefaultCSRFRetry is how long a page without a token is trusted before it is
// fetched again.
const DefaultCSRFRetry = 30 * time.Second

// MetaTagCSRF reads the token from <meta name="csrf-token"> of a page. A found
// token is cached for good; a miss is cached for RetryAfter.
type MetaTagCSRF struct {
	URL    string
	Client *http.Client
	// Timeout bounds one page fetch. Default is DefaultTimeout.
	Timeout time.Duration
	// RetryAfter defaults to DefaultCSRFRetry.
	RetryAfter time.Duration

	now func() time.Time

	mu       sync.Mutex
	token    string
	missedAt time.Time
}

func (m *MetaTagCSRF) CSRFToken(ctx context.Context) string {
	if m == nil || m.URL == "" {
		return ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != "" {
		return m.token
	}
	now := time.Now
	if m.now != nil {
		now = m.now
	}
	retry := m.RetryAfter
	if retry <= 0 {
		retry = DefaultCSRFRetry
	}
	if !m.missedAt.IsZero() && now().Sub(m.missedAt) < retry {
		return ""
	}

	m.token = m.fetch(ctx)
	if m.token == "" {
		m.missedAt = now()
	}
	return m.token
}

func (m *MetaTagCSRF) fetch(ctx context.Context) string {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
	if err != nil {
		return ""
	}
	resp, err := client.Do(req)
	if err != nil {
		log.WithError(err).Debug("csrf: fetch page failed")
		return ""
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("csrf: close response body: %v", errClose)
		}
	}()
	return ParseCSRFMeta(resp.Body)
}

// ParseCSRFMeta scans an HTML document for the csrf-token meta tag.
func ParseCSRFMeta(r io.Reader) string {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "meta" {
				continue
			}
			var name, content string
			for _, attr := range tok.Attr {
				switch strings.ToLower(attr.Key) {
				case "name":
					name = attr.Val
				case "content":
					content = attr.Val
				}
			}
			if strings.EqualFold(name, "csrf-token") {
				return strings.TrimSpace(content)
			}
		}
	}
}
