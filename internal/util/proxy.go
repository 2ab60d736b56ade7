package util

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// NewTransport returns an HTTP transport routed through proxyURL. Supported schemes
// are socks5, http and https; an empty proxyURL yields a direct transport.
func NewTransport(proxyURL string) (*http.Transport, error) {
	base := http.DefaultTransport.(*http.Transport).Clone()
	proxyURL = strings.TrimSpace(proxyURL)
	if proxyURL == "" {
		return base, nil
	}
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	switch parsed.Scheme {
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if parsed.User != nil {
			password, _ := parsed.User.Password()
			auth = &proxy.Auth{User: parsed.User.Username(), Password: password}
		}
		dialer, errSOCKS5 := proxy.SOCKS5("tcp", parsed.Host, auth, proxy.Direct)
		if errSOCKS5 != nil {
			return nil, fmt.Errorf("create SOCKS5 dialer: %w", errSOCKS5)
		}
		base.Proxy = nil
		if ctxDialer, ok := dialer.(proxy.ContextDialer); ok {
			base.DialContext = ctxDialer.DialContext
		} else {
			base.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	case "http", "https":
		base.Proxy = http.ProxyURL(parsed)
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", parsed.Scheme)
	}
	return base, nil
}

// NewHTTPClient builds a client for outbound calls. An invalid proxy URL is logged
// and the client falls back to a direct connection.
func NewHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport, err := NewTransport(proxyURL)
	if err != nil {
		log.Errorf("outbound proxy %s ignored: %v", MaskProxyURL(proxyURL), err)
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// MaskProxyURL hides credentials embedded in a proxy URL.
func MaskProxyURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return raw
	}
	if _, hasPassword := parsed.User.Password(); hasPassword {
		parsed.User = url.UserPassword(parsed.User.Username(), "xxxxx")
	}
	return parsed.String()
}
