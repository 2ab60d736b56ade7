// Package auth serves the gateway's session endpoints. Login and refresh store
// the upstream token pair in the session (HttpOnly cookies or a server-side
// session) and also return it as JSON for clients that keep their own tokens.
package auth

import (
	"net/http"
	"strings"

	"github.com/assessly/assessly-gateway/internal/api/handlers"
	"github.com/assessly/assessly-gateway/internal/logging"
	"github.com/assessly/assessly-gateway/internal/metrics"
	"github.com/assessly/assessly-gateway/sdk/session"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Options configures the auth handlers.
type Options struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
	Stores       handlers.StoreFactory
	Metrics      *metrics.Metrics
}

// Handler implements login, refresh, logout and session status.
type Handler struct {
	oauth   *session.OAuthRefresher
	stores  handlers.StoreFactory
	metrics *metrics.Metrics
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func New(opts Options) *Handler {
	stores := opts.Stores
	if stores == nil {
		stores = handlers.CookieStores(session.CookieOptions{})
	}
	return &Handler{
		oauth: session.NewOAuthRefresher(session.OAuthConfig{
			TokenURL:     opts.TokenURL,
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			HTTPClient:   opts.HTTPClient,
		}, nil),
		stores:  stores,
		metrics: opts.Metrics,
	}
}

// Register mounts the handlers on an /api/auth group.
func (h *Handler) Register(group *gin.RouterGroup) {
	group.POST("/login", h.Login)
	group.POST("/refresh", h.Refresh)
	group.POST("/logout", h.Logout)
	group.GET("/session", h.Session)
}

// Login performs a password grant with email and password from a JSON or form
// body and stores the resulting pair in the session.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		handlers.AbortWithError(c, http.StatusBadRequest, "Invalid login request", err)
		return
	}
	username := strings.TrimSpace(req.Email)
	if username == "" {
		username = strings.TrimSpace(req.Username)
	}
	if username == "" || req.Password == "" {
		handlers.AbortWithError(c, http.StatusBadRequest, "Email and password are required", nil)
		return
	}

	pair, err := h.oauth.Login(c.Request.Context(), username, req.Password)
	h.metrics.AuthEvent("login", err == nil)
	if err != nil {
		log.WithFields(log.Fields{
			"request_id": logging.GetGinRequestID(c),
			"kind":       session.KindOf(err),
		}).Info("login rejected")
		h.abortWithSessionError(c, err)
		return
	}
	h.stores(c).SetPair(pair)
	c.JSON(http.StatusOK, pair)
}

// Refresh exchanges the session's refresh token for a new pair. A failed refresh
// ends the session.
func (h *Handler) Refresh(c *gin.Context) {
	store := h.stores(c)
	refreshToken, _ := store.Refresh()

	pair, err := h.oauth.Refresh(c.Request.Context(), refreshToken)
	h.metrics.AuthEvent("refresh", err == nil)
	if err != nil {
		if kind := session.KindOf(err); kind == session.KindAuthRequired || kind == session.KindAuthExpired {
			store.Clear()
		}
		h.abortWithSessionError(c, err)
		return
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	store.SetPair(pair)
	c.JSON(http.StatusOK, pair)
}

// Logout clears the session.
func (h *Handler) Logout(c *gin.Context) {
	h.stores(c).Clear()
	h.metrics.AuthEvent("logout", true)
	c.Status(http.StatusNoContent)
}

// Session reports whether the request carries an access token.
func (h *Handler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"authenticated": h.stores(c).HasAccess()})
}

func (h *Handler) abortWithSessionError(c *gin.Context, err error) {
	status := handlers.StatusForKind(session.KindOf(err))
	c.AbortWithStatusJSON(status, handlers.ErrorResponse{Message: err.Error()})
}
