// Package api assembles the gateway HTTP server: logging and recovery, the page
// guard, the rate-limited /api group with the auth and proxy routes, health and
// metrics endpoints, and an optional static page directory.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/assessly/assessly-gateway/internal/api/handlers"
	"github.com/assessly/assessly-gateway/internal/api/handlers/auth"
	"github.com/assessly/assessly-gateway/internal/api/handlers/proxy"
	"github.com/assessly/assessly-gateway/internal/api/middleware"
	"github.com/assessly/assessly-gateway/internal/config"
	"github.com/assessly/assessly-gateway/internal/logging"
	"github.com/assessly/assessly-gateway/internal/metrics"
	"github.com/assessly/assessly-gateway/internal/util"
	"github.com/assessly/assessly-gateway/sdk/session"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// ServerOption customises server construction.
type ServerOption func(*serverOptionConfig)

type serverOptionConfig struct {
	extraMiddleware    []gin.HandlerFunc
	engineConfigurator func(*gin.Engine)
	routerConfigurator func(*gin.Engine, *config.Config)
	stores             handlers.StoreFactory
	transport          http.RoundTripper
	metrics            *metrics.Metrics
}

// WithMiddleware appends Gin middleware after logging and recovery.
func WithMiddleware(mw ...gin.HandlerFunc) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.extraMiddleware = append(cfg.extraMiddleware, mw...)
	}
}

// WithEngineConfigurator lets callers mutate the Gin engine before middleware is attached.
func WithEngineConfigurator(fn func(*gin.Engine)) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.engineConfigurator = fn
	}
}

// WithRouterConfigurator runs after the default routes are registered.
func WithRouterConfigurator(fn func(*gin.Engine, *config.Config)) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.routerConfigurator = fn
	}
}

// WithStoreFactory overrides where request tokens are kept.
func WithStoreFactory(stores handlers.StoreFactory) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.stores = stores
	}
}

// WithTransport sets the round tripper used for upstream requests.
func WithTransport(rt http.RoundTripper) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.transport = rt
	}
}

// WithMetrics shares a metrics registry with the caller.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.metrics = m
	}
}

// Server is the gateway HTTP server.
type Server struct {
	engine  *gin.Engine
	server  *http.Server
	limiter *middleware.RateLimiter
	proxy   *proxy.Handler
	metrics *metrics.Metrics
	pg      *session.PostgresTokenStore

	mu  sync.RWMutex
	cfg *config.Config

	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer builds the server and its routes. When the session store is
// "postgres" the session table is created if missing.
func NewServer(cfg *config.Config, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("api: nil config")
	}
	optionState := &serverOptionConfig{}
	for _, opt := range opts {
		opt(optionState)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		limiter:   middleware.NewRateLimiter(rateLimit(cfg), rateWindow(cfg)),
		metrics:   optionState.metrics,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	stores, err := s.resolveStores(ctx, cfg, optionState.stores)
	if err != nil {
		cancel()
		return nil, err
	}

	transport := optionState.transport
	if transport == nil {
		t, errTransport := util.NewTransport(cfg.ProxyURL)
		if errTransport != nil {
			cancel()
			return nil, fmt.Errorf("api: upstream transport: %w", errTransport)
		}
		t.ResponseHeaderTimeout = time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second
		transport = t
	}

	s.proxy, err = proxy.New(proxy.Options{
		UpstreamBaseURL: cfg.Upstream.BaseURL,
		TokenPath:       cfg.Auth.TokenPath,
		AllowedPrefixes: cfg.Proxy.AllowedPrefixes,
		Sanitize:        !cfg.Proxy.DisableSanitize,
		Transport:       transport,
		Stores:          stores,
		Metrics:         s.metrics,
	})
	if err != nil {
		s.closeStores()
		cancel()
		return nil, err
	}
	authHandler := auth.New(auth.Options{
		TokenURL:     cfg.TokenURL(),
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		HTTPClient:   &http.Client{Transport: transport, Timeout: time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second},
		Stores:       stores,
		Metrics:      s.metrics,
	})

	engine := gin.New()
	if optionState.engineConfigurator != nil {
		optionState.engineConfigurator(engine)
	}
	engine.Use(logging.GinLogrusLogger(), logging.GinLogrusRecovery())
	engine.Use(optionState.extraMiddleware...)
	engine.Use(middleware.PageGuard(stores))

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", func(c *gin.Context) {
		logging.SkipGinRequestLogging(c)
		s.metrics.Handler().ServeHTTP(c.Writer, c.Request)
	})

	apiGroup := engine.Group("/api", middleware.RateLimit(s.limiter, s.metrics))
	authHandler.Register(apiGroup.Group("/auth"))
	apiGroup.Any("/proxy/*path", s.proxy.Handle)

	engine.NoRoute(s.noRoute(cfg.PagesDir))

	if optionState.routerConfigurator != nil {
		optionState.routerConfigurator(engine, cfg)
	}
	s.engine = engine
	s.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) resolveStores(ctx context.Context, cfg *config.Config, override handlers.StoreFactory) (handlers.StoreFactory, error) {
	cookieOpts := session.CookieOptions{Secure: cfg.Production, Domain: cfg.Session.CookieDomain}
	if override != nil {
		return override, nil
	}
	if cfg.Session.Store != "postgres" {
		return handlers.CookieStores(cookieOpts), nil
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pg, err := session.NewPostgresTokenStore(initCtx, session.PostgresTokenStoreConfig{
		DSN:    cfg.Session.PostgresDSN,
		Schema: cfg.Session.PostgresSchema,
		Table:  cfg.Session.PostgresTable,
	})
	if err != nil {
		return nil, fmt.Errorf("api: postgres session store: %w", err)
	}
	if err = pg.EnsureSchema(initCtx); err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("api: postgres session schema: %w", err)
	}
	s.pg = pg
	log.Info("sessions are stored in postgres")
	return handlers.PostgresStores(pg, cookieOpts), nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Stop is called. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	go s.limiter.Run(s.ctx, time.Minute)

	s.mu.RLock()
	log.Infof("gateway listening on %s, upstream %s", s.server.Addr, s.cfg.Upstream.BaseURL)
	s.mu.RUnlock()
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: serve: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully and releases the session store.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	err := s.server.Shutdown(ctx)
	s.closeStores()
	return err
}

func (s *Server) closeStores() {
	if s.pg != nil {
		if err := s.pg.Close(); err != nil {
			log.Warnf("failed to close postgres session store: %v", err)
		}
		s.pg = nil
	}
}

// UpdateConfig applies a reloaded config. Listen address, upstream URL and the
// session store only change on restart.
func (s *Server) UpdateConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	s.mu.Unlock()

	s.limiter.Update(rateLimit(cfg), rateWindow(cfg))
	s.proxy.UpdateConfig(cfg.Proxy.AllowedPrefixes, !cfg.Proxy.DisableSanitize)
	util.SetLogLevel(cfg)
	logging.SetVerboseAccessLog(cfg.RequestLog)

	if old != nil && (old.Upstream.BaseURL != cfg.Upstream.BaseURL || old.Addr() != cfg.Addr() || old.Session.Store != cfg.Session.Store) {
		log.Warn("listen address, upstream or session store changed; restart the gateway to apply")
	}
	log.Debugf("gateway config applied: rate limit %d/%ds, %d allowed prefixes",
		cfg.RateLimit.Requests, cfg.RateLimit.WindowSeconds, len(cfg.Proxy.AllowedPrefixes))
}

func (s *Server) handleHealth(c *gin.Context) {
	logging.SkipGinRequestLogging(c)
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).Truncate(time.Second).String(),
	})
}

// noRoute serves the static page directory when configured, otherwise a JSON 404.
func (s *Server) noRoute(pagesDir string) gin.HandlerFunc {
	notFound := func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{Message: "Not found"})
	}
	pagesDir = strings.TrimSpace(pagesDir)
	if pagesDir == "" {
		return notFound
	}
	if info, err := os.Stat(pagesDir); err != nil || !info.IsDir() {
		log.Warnf("pages directory %s is not usable, static pages disabled", pagesDir)
		return notFound
	}
	files := http.FileServer(http.Dir(pagesDir))
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			notFound(c)
			return
		}
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			notFound(c)
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	}
}

func rateLimit(cfg *config.Config) int {
	if cfg.RateLimit.Disabled {
		return 0
	}
	return cfg.RateLimit.Requests
}

func rateWindow(cfg *config.Config) time.Duration {
	return time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
}
