package middleware

import (
	"strconv"
	"time"

	"mentor_chat_server/internal/infrastructure/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics 记录 HTTP 请求数和耗时
// path 标签使用路由模板（如 /chat/history/:otherId），避免标签基数爆炸
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(
			c.Request.Method, path,
		).Observe(time.Since(start).Seconds())
	}
}
