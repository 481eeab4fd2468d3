package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/bundler/internal/logging"
)

// requestIDHeader echoes the correlation id back to the client.
const requestIDHeader = "X-Request-Id"

// RequestLogger tags each request with a correlation id and logs method,
// path, status, and latency.
func RequestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, reqID)

		c.Next()

		log.Info(c.Request.Context(), "http request",
			"request_id", reqID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String())
	}
}

// Recovery converts handler panics into a 500 without killing the server.
func Recovery(log logging.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error(c.Request.Context(), "panic in request handler",
			"path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(500, gin.H{"error": "internal server error"})
	})
}
