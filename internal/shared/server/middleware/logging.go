package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"caption-backend/internal/shared/telemetry"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"bytes":       c.Writer.Size(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"session_id":  SessionIDFromContext(c),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if videoID := c.GetString("videoId"); videoID != "" {
			fields["video_id"] = videoID
		}
		if warning := c.GetString("intakeWarning"); warning != "" {
			fields["intake_warning"] = warning
		}
		telemetry.Info("request.complete", fields)
	}
}
