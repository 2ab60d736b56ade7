// Package middleware provides the gateway's Gin middleware: the per-client
// sliding-window rate limiter and the page guard.
package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/assessly/assessly-gateway/internal/logging"
	"github.com/assessly/assessly-gateway/internal/metrics"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// Reset is when the oldest request in the window expires.
	Reset time.Time
	// RetryAfter is set on rejected requests.
	RetryAfter time.Duration
}

// RateLimiter keeps, per client, the timestamps of the requests inside the
// current window. A request is admitted while fewer than limit timestamps are younger
// than window.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string][]time.Time
	now     func() time.Time
}

// NewRateLimiter builds a limiter. A limit <= 0 admits everything.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Update changes limit and window in place. Recorded timestamps are kept.
func (l *RateLimiter) Update(limit int, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limit = limit
	l.window = window
}

// Limits returns the current limit and window.
func (l *RateLimiter) Limits() (int, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit, l.window
}

// Allow records a request for key if the window has room.
func (l *RateLimiter) Allow(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.limit <= 0 {
		return Decision{Allowed: true, Limit: l.limit, Reset: now}
	}
	hits := prune(l.clients[key], now.Add(-l.window))

	d := Decision{Limit: l.limit}
	if len(hits) < l.limit {
		hits = append(hits, now)
		d.Allowed = true
	}
	l.clients[key] = hits
	d.Remaining = max(l.limit-len(hits), 0)
	d.Reset = hits[0].Add(l.window)
	if !d.Allowed {
		d.RetryAfter = d.Reset.Sub(now)
	}
	return d
}

// prune drops timestamps at or before cutoff. Timestamps are appended in order,
// so the survivors form a suffix.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0], hits[i:]...)
}

// Sweep forgets clients without requests in the current window.
func (l *RateLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.window)
	removed := 0
	for key, hits := range l.clients {
		if hits = prune(hits, cutoff); len(hits) == 0 {
			delete(l.clients, key)
			removed++
			continue
		}
		l.clients[key] = hits
	}
	return removed
}

// Clients returns the number of tracked clients.
func (l *RateLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Run sweeps idle clients every interval until ctx ends.
func (l *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				log.Debugf("rate limiter: forgot %d idle client(s)", n)
			}
		}
	}
}

// RateLimit applies l to every request, keyed by client IP. All responses carry
// the X-RateLimit headers; rejected ones get 429 and Retry-After.
func RateLimit(l *RateLimiter, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := c.ClientIP()
		d := l.Allow(client)
		if d.Limit <= 0 {
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set(HeaderLimit, strconv.Itoa(d.Limit))
		h.Set(HeaderRemaining, strconv.Itoa(d.Remaining))
		h.Set(HeaderReset, strconv.FormatInt(d.Reset.Unix(), 10))

		if !d.Allowed {
			retry := int(math.Ceil(d.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			h.Set(HeaderRetryAfter, strconv.Itoa(retry))
			m.RateLimited()
			log.WithFields(log.Fields{
				"request_id": logging.GetGinRequestID(c),
				"client":     client,
				"remaining":  0,
			}).Warn("rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many requests"})
			return
		}
		c.Next()
	}
}
