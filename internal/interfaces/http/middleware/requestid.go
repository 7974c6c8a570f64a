// Package middleware provides the gin middleware chain for the HTTP API:
// request identity, structured request logging, panic recovery, CORS, body
// size limits, and per-route metrics.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader is the header carrying the request correlation id.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the gin context key under which the id is stored.
const requestIDKey = "request_id"

// RequestID propagates the caller's X-Request-ID, generating a fresh UUID
// when the header is absent. The id is stored on the context and echoed on
// the response so clients and logs can correlate.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

// RequestIDFrom returns the request id assigned by RequestID, or "" when the
// middleware did not run.
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
