// Package handlers holds what the gateway's route handlers share: the per-request
// token store factory and the JSON error shape.
package handlers

import (
	"net/http"
	"strings"

	"github.com/assessly/assessly-gateway/sdk/session"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every gateway-generated error.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// StoreFactory returns the token store bound to one request. Writes to the store
// end up in the response (cookies) or in a server-side session.
type StoreFactory func(c *gin.Context) session.TokenStore

// CookieStores keeps both tokens in HttpOnly cookies.
func CookieStores(opts session.CookieOptions) StoreFactory {
	return func(c *gin.Context) session.TokenStore {
		return session.NewCookieTokenStore(c.Writer, c.Request, opts)
	}
}

// PostgresStores keeps tokens server side, keyed by the session cookie.
func PostgresStores(store *session.PostgresTokenStore, opts session.CookieOptions) StoreFactory {
	return func(c *gin.Context) session.TokenStore {
		return store.ForRequest(c.Writer, c.Request, opts)
	}
}

// AbortWithError writes an ErrorResponse and stops the handler chain.
func AbortWithError(c *gin.Context, status int, message string, err error) {
	body := ErrorResponse{Message: message}
	if err != nil {
		body.Error = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}

// BearerToken extracts the token of an "Authorization: Bearer ..." header.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// StatusForKind maps a session error kind to the status the gateway answers with.
func StatusForKind(kind session.Kind) int {
	switch kind {
	case session.KindAuthRequired, session.KindAuthExpired:
		return http.StatusUnauthorized
	case session.KindForbidden:
		return http.StatusForbidden
	case session.KindNotFound:
		return http.StatusNotFound
	case session.KindValidation:
		return http.StatusUnprocessableEntity
	case session.KindTimeout:
		return http.StatusGatewayTimeout
	case session.KindNetwork, session.KindServer:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
