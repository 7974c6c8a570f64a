package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/prometheus"
)

// Metrics records one observation per request into the HTTP request counter
// and duration histogram. The path label is the route template
// ("/api/v1/scans/:id"), not the raw URL, so label cardinality stays bounded.
func Metrics(m *prometheus.AppMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		prometheus.RecordHTTPRequest(m, c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
