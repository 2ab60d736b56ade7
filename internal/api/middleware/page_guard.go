package middleware

import (
	"net/http"
	"strings"

	"github.com/assessly/assessly-gateway/internal/api/handlers"
	"github.com/gin-gonic/gin"
)

const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

var (
	exactPublicRoutes  = []string{"/", LoginPath, "/about", "/contact", "/healthz", "/metrics"}
	prefixPublicRoutes = []string{"/api/", "/_next/", "/favicon.ico"}
)

// IsPublicRoute reports whether path is reachable without a session.
func IsPublicRoute(path string) bool {
	for _, p := range exactPublicRoutes {
		if path == p {
			return true
		}
	}
	for _, p := range prefixPublicRoutes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// PageGuard redirects page requests: without an access token every protected
// page goes to /login, and with one /login goes to /dashboard. Only GET and HEAD
// are guarded.
func PageGuard(stores handlers.StoreFactory) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodGet && method != http.MethodHead {
			c.Next()
			return
		}
		path := c.Request.URL.Path
		isLogin := path == LoginPath
		if !isLogin && IsPublicRoute(path) {
			c.Next()
			return
		}

		hasToken := stores(c).HasAccess()
		switch {
		case !hasToken && !isLogin:
			c.Redirect(http.StatusFound, LoginPath)
			c.Abort()
		case hasToken && isLogin:
			c.Redirect(http.StatusFound, DashboardPath)
			c.Abort()
		default:
			c.Next()
		}
	}
}
