package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/drivelink/drivelink-api/internal/service"
)

// Metrics records request duration and counts per route. Requests that
// match no route collapse into one label so internet scans hitting the
// public webhook host cannot explode the path cardinality, and scrapes of
// /metrics are not observed by themselves.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		path := c.FullPath()
		if path == "/metrics" {
			c.Next()
			return
		}
		if path == "" {
			path = "unmatched"
		}

		start := time.Now()
		c.Next()
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
