package config

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

const slowRequest = 200 * time.Millisecond

func PerformanceLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", latency,
		}
		// websocket sessions are long-lived by nature
		if latency > slowRequest && c.FullPath() != "/realtime" {
			log.Warn("slow request", attrs...)
			return
		}
		log.Info("request", attrs...)
	}
}
