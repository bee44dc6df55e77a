package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oncodose/treatment-api/pkg/logger"
)

// RequestLogger logs one line per request after it completes.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info("request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"request_id", RequestID(c),
		)
	}
}
