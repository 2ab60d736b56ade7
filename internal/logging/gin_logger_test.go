package logging

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func newLoggedEngine(t *testing.T) (*gin.Engine, *test.Hook) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hook := test.NewGlobal()
	original := log.GetLevel()
	log.SetLevel(log.DebugLevel)
	t.Cleanup(func() {
		log.SetLevel(original)
		log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
	})

	engine := gin.New()
	engine.Use(GinLogrusLogger(), GinLogrusRecovery())
	return engine, hook
}

func TestGinLogrusLoggerAssignsRequestID(t *testing.T) {
	engine, hook := newLoggedEngine(t)
	var seen string
	engine.GET("/api/proxy/topics", func(c *gin.Context) {
		seen = GetRequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/proxy/topics", nil))

	id := rec.Header().Get(RequestIDHeader)
	if len(id) != 8 {
		t.Fatalf("request id = %q", id)
	}
	if seen != id {
		t.Fatalf("context id %q, header id %q", seen, id)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Data["request_id"] != id {
		t.Fatalf("log entry = %+v", entry)
	}
	if entry.Level != log.DebugLevel {
		t.Fatalf("level = %s", entry.Level)
	}
}

func TestGinLogrusLoggerReusesInboundRequestID(t *testing.T) {
	tests := []struct {
		name    string
		inbound string
		reuse   bool
	}{
		{name: "valid", inbound: "0f3c2a9e-7d1b-4d5e", reuse: true},
		{name: "too short", inbound: "abc", reuse: false},
		{name: "bad characters", inbound: "abcd1234\r\nx", reuse: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := newLoggedEngine(t)
			engine.GET("/api/auth/session", func(c *gin.Context) { c.Status(http.StatusNoContent) })

			req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
			req.Header.Set(RequestIDHeader, tt.inbound)
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if (got == tt.inbound) != tt.reuse {
				t.Fatalf("inbound %q, response %q", tt.inbound, got)
			}
		})
	}
}

func TestGinLogrusLoggerLevels(t *testing.T) {
	tests := []struct {
		status int
		level  log.Level
	}{
		{status: http.StatusOK, level: log.DebugLevel},
		{status: http.StatusTooManyRequests, level: log.WarnLevel},
		{status: http.StatusBadGateway, level: log.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			engine, hook := newLoggedEngine(t)
			engine.GET("/login", func(c *gin.Context) { c.Status(tt.status) })

			engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/login?password=hunter22", nil))

			entry := hook.LastEntry()
			if entry == nil {
				t.Fatal("no log entry")
			}
			if entry.Level != tt.level {
				t.Fatalf("level = %s, want %s", entry.Level, tt.level)
			}
			if strings.Contains(entry.Message, "hunter22") {
				t.Fatalf("password leaked: %s", entry.Message)
			}
			if rid, _ := entry.Data["request_id"].(string); rid != "" {
				t.Fatalf("page request got request id %q", rid)
			}
		})
	}
}

func TestSetVerboseAccessLog(t *testing.T) {
	engine, hook := newLoggedEngine(t)
	SetVerboseAccessLog(true)
	t.Cleanup(func() { SetVerboseAccessLog(false) })
	engine.GET("/about", func(c *gin.Context) { c.Status(http.StatusOK) })

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/about", nil))
	if entry := hook.LastEntry(); entry == nil || entry.Level != log.InfoLevel {
		t.Fatalf("entry = %+v", entry)
	}
}

func TestSkipGinRequestLogging(t *testing.T) {
	engine, hook := newLoggedEngine(t)
	engine.GET("/healthz", func(c *gin.Context) {
		SkipGinRequestLogging(c)
		c.Status(http.StatusOK)
	})

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if n := len(hook.AllEntries()); n != 0 {
		t.Fatalf("expected no entries, got %d", n)
	}
}

func TestGinLogrusRecoveryRepanicsErrAbortHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(GinLogrusRecovery())
	engine.GET("/abort", func(c *gin.Context) { panic(http.ErrAbortHandler) })

	defer func() {
		err, ok := recover().(error)
		if !ok || !errors.Is(err, http.ErrAbortHandler) {
			t.Fatalf("expected ErrAbortHandler panic, got %v", err)
		}
	}()
	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/abort", nil))
}

func TestGinLogrusRecoveryHandlesRegularPanic(t *testing.T) {
	engine, hook := newLoggedEngine(t)
	engine.GET("/api/boom", func(c *gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Internal server error") {
		t.Fatalf("body = %s", rec.Body.String())
	}
	var recovered bool
	for _, e := range hook.AllEntries() {
		if strings.HasPrefix(e.Message, "recovered from panic") {
			recovered = true
		}
	}
	if !recovered {
		t.Fatal("panic was not logged")
	}
}

func TestLogFormatter(t *testing.T) {
	entry := &log.Entry{
		Logger:  log.StandardLogger(),
		Time:    time.Date(2025, 12, 23, 20, 14, 4, 0, time.UTC),
		Level:   log.WarnLevel,
		Message: "rate limited\n",
		Data: log.Fields{
			"request_id": "a1b2c3d4",
			"client":     "10.0.0.1",
			"remaining":  0,
			"ignored":    "x",
		},
	}
	out, err := (&LogFormatter{}).Format(entry)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	want := "[2025-12-23 20:14:04] [a1b2c3d4] [warn ] rate limited client=10.0.0.1 remaining=0\n"
	if string(out) != want {
		t.Fatalf("got  %q\nwant %q", out, want)
	}
}
