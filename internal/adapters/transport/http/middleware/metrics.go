package middleware

import (
	"strconv"
	"time"

	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics observes request latency labelled by route template, so path
// parameters never become label values.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
