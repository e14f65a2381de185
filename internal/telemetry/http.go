package telemetry

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPLogger logs every finished request. Server errors are logged at error level with the handler errors.
func HTTPLogger(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", status,
			"duration", time.Since(start),
		}

		switch {
		case status >= 500:
			l.ErrorContext(c.Request.Context(), "http: request failed", append(attrs, "error", c.Errors.String())...)
		case status >= 400:
			l.WarnContext(c.Request.Context(), "http: request rejected", append(attrs, "error", c.Errors.String())...)
		default:
			l.InfoContext(c.Request.Context(), "http: request done", attrs...)
		}
	}
}
