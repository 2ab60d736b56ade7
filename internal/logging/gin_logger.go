// Package logging wires logrus into the gateway: the global formatter and file
// rotation, request IDs, and Gin middleware for access logs and panic recovery.
package logging

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/assessly/assessly-gateway/internal/util"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// trackedPrefixes receive request IDs.
var trackedPrefixes = []string{"/api/"}

const skipGinLogKey = "__gin_skip_request_logging__"

var verboseAccessLog atomic.Bool

// SetVerboseAccessLog logs successful requests at info level instead of debug.
func SetVerboseAccessLog(enabled bool) {
	verboseAccessLog.Store(enabled)
}

// GinLogrusLogger logs every request through logrus. API requests get a request
// ID, reused from an inbound X-Request-ID when well formed, and echoed in the response.
//
// Output: [2025-12-23 20:14:10] [a1b2c3d4] [info ] 200 |    23ms |       127.0.0.1 | GET     "/api/proxy/topics"
func GinLogrusLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := util.MaskSensitiveQuery(c.Request.URL.RawQuery)

		var requestID string
		if isTrackedPath(path) {
			requestID = c.GetHeader(RequestIDHeader)
			if !acceptRequestID(requestID) {
				requestID = GenerateRequestID()
			}
			SetGinRequestID(c, requestID)
			c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))
			c.Header(RequestIDHeader, requestID)
		}

		c.Next()

		if shouldSkipGinRequestLogging(c) {
			return
		}
		if raw != "" {
			path += "?" + raw
		}
		latency := time.Since(start)
		if latency > time.Minute {
			latency = latency.Truncate(time.Second)
		} else {
			latency = latency.Truncate(time.Millisecond)
		}

		statusCode := c.Writer.Status()
		logLine := fmt.Sprintf("%3d | %8v | %15s | %-7s \"%s\"", statusCode, latency, c.ClientIP(), c.Request.Method, path)
		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			logLine += " | " + strings.TrimSpace(errorMessage)
		}

		entry := log.WithField("request_id", requestID)
		switch {
		case statusCode >= http.StatusInternalServerError:
			entry.Error(logLine)
		case statusCode >= http.StatusBadRequest:
			entry.Warn(logLine)
		case verboseAccessLog.Load():
			entry.Info(logLine)
		default:
			entry.Debug(logLine)
		}
	}
}

func isTrackedPath(path string) bool {
	for _, prefix := range trackedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// GinLogrusRecovery recovers handler panics, logs the stack and answers 500.
// http.ErrAbortHandler is re-panicked so net/http aborts the connection quietly.
func GinLogrusRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		if err, ok := recovered.(error); ok && errors.Is(err, http.ErrAbortHandler) {
			panic(http.ErrAbortHandler)
		}

		log.WithFields(log.Fields{
			"request_id": GetGinRequestID(c),
			"error":      recovered,
		}).Errorf("recovered from panic on %s\n%s", c.Request.URL.Path, debug.Stack())

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	})
}

// SkipGinRequestLogging suppresses the access log line for the current request.
func SkipGinRequestLogging(c *gin.Context) {
	if c != nil {
		c.Set(skipGinLogKey, true)
	}
}

func shouldSkipGinRequestLogging(c *gin.Context) bool {
	return c != nil && c.GetBool(skipGinLogKey)
}
