package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/campus-core-api/internal/service"
)

// Metrics records request duration and status per route. The registered
// route template keeps label cardinality bounded; unmatched requests fall
// back to the raw path.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
