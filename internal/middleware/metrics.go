package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cafe-roster-api/internal/service"
)

// UnmatchedRoute labels requests that hit no registered route, keeping
// scanner traffic from creating one series per probed URL.
const UnmatchedRoute = "unmatched"

// Metrics records latency, status and in-flight count per route template.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}
		metrics.TrackInFlight(1)
		defer metrics.TrackInFlight(-1)

		started := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = UnmatchedRoute
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(started))
	}
}
