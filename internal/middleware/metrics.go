package middleware

import (
	"time"

	"restaurant_ordering/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Instrument records request counts and latency by route template.
func Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
